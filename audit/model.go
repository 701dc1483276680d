// api/audit/model.go
package audit

import (
	"time"

	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
)

type DecisionLog struct {
	Timestamp       time.Time `json:"timestamp"`
	SubscriptionID  string    `json:"subscription_id"`
	PDPID           string    `json:"pdp_id"`
	ConfigurationID string    `json:"configuration_id"`
	SubjectID       string    `json:"subject_id,omitempty"`
	Action          string    `json:"action,omitempty"`
	Decision        string    `json:"decision"`
	Outcome         string    `json:"outcome,omitempty"`
	Documents       []string  `json:"documents,omitempty"`
	Attributes      []string  `json:"attributes,omitempty"`
	Errors          []string  `json:"errors,omitempty"`
	Coverage        bool      `json:"coverage"`
}

// FromVote flattens a combined vote into a log entry: contributing document
// names, attribute names and error messages are lifted out of the
// provenance tree.
func FromVote(subscriptionID string, sub pdpmodel.AuthorizationSubscription, vote pdpmodel.Vote) DecisionLog {
	log := DecisionLog{
		Timestamp:       time.Now().UTC(),
		SubscriptionID:  subscriptionID,
		PDPID:           vote.Metadata.PDPID,
		ConfigurationID: vote.Metadata.ConfigurationID,
		SubjectID:       subjectID(sub),
		Action:          sub.Action,
		Decision:        string(vote.Decision()),
		Outcome:         string(vote.Outcome),
	}
	for _, c := range vote.ContributingVotes {
		log.Documents = append(log.Documents, c.Metadata.Name)
	}
	for _, a := range vote.CollectAttributes() {
		log.Attributes = append(log.Attributes, a.Name)
	}
	for _, e := range vote.Errors {
		log.Errors = append(log.Errors, e.String())
	}
	return log
}

func subjectID(sub pdpmodel.AuthorizationSubscription) string {
	if id, ok := sub.Subject["id"].(string); ok {
		return id
	}
	return ""
}
