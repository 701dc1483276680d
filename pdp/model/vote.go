package model

// VoterMetadata identifies the policy document or combined configuration a
// vote originates from, together with its statically known outcome hint.
type VoterMetadata struct {
	Name            string  `json:"name"`
	PDPID           string  `json:"pdp_id"`
	ConfigurationID string  `json:"configuration_id"`
	Outcome         Outcome `json:"outcome"`
	HasConstraints  bool    `json:"has_constraints"`
}

// AttributeRecord notes one external attribute that contributed to a vote.
type AttributeRecord struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Vote is one voter's contribution to an authorization decision. Votes are
// treated as immutable values: combiners never mutate a vote in place, every
// derivation copies the slices it extends.
type Vote struct {
	Authorization          AuthorizationDecision `json:"authorization"`
	Errors                 []Value               `json:"errors,omitempty"`
	ContributingAttributes []AttributeRecord     `json:"contributing_attributes,omitempty"`
	ContributingVotes      []Vote                `json:"contributing_votes,omitempty"`
	Metadata               VoterMetadata         `json:"metadata"`
	Outcome                Outcome               `json:"outcome"`
}

// NewVote builds an applicable vote for the given decision and constraints.
func NewVote(decision Decision, obligations, advice []Value, resource Value, meta VoterMetadata, contributing []Vote) Vote {
	return Vote{
		Authorization: AuthorizationDecision{
			Decision:    decision,
			Obligations: obligations,
			Advice:      advice,
			Resource:    resource,
		},
		ContributingVotes: contributing,
		Metadata:          meta,
		Outcome:           OutcomeOf(decision),
	}
}

// Abstain builds a NOT_APPLICABLE vote. Its outcome hint is the voter's
// static outcome, i.e. what the voter could have decided.
func Abstain(meta VoterMetadata) Vote {
	return Vote{
		Authorization: AuthorizationDecision{Decision: NotApplicable},
		Metadata:      meta,
		Outcome:       meta.Outcome,
	}
}

// NewErrorVote builds an INDETERMINATE vote carrying an evaluation fault.
// The outcome hint is taken from the voter metadata so combiners can judge
// whether the fault is critical.
func NewErrorVote(err Value, meta VoterMetadata) Vote {
	return Vote{
		Authorization: AuthorizationDecision{Decision: Indeterminate},
		Errors:        []Value{err},
		Metadata:      meta,
		Outcome:       meta.Outcome,
	}
}

func (v Vote) Decision() Decision { return v.Authorization.Decision }

func (v Vote) IsApplicable() bool {
	return v.Authorization.Decision == Permit || v.Authorization.Decision == Deny
}

func (v Vote) HasErrors() bool { return len(v.Errors) > 0 }

// AppendContributing returns a copy of v with next added to its provenance.
// The original vote's slice is left untouched.
func (v Vote) AppendContributing(next Vote) Vote {
	contributing := make([]Vote, 0, len(v.ContributingVotes)+1)
	contributing = append(contributing, v.ContributingVotes...)
	contributing = append(contributing, next)
	v.ContributingVotes = contributing
	return v
}

// CollectAttributes walks the provenance tree and returns every attribute
// record that contributed to this vote, in evaluation order.
func (v Vote) CollectAttributes() []AttributeRecord {
	var out []AttributeRecord
	out = append(out, v.ContributingAttributes...)
	for _, c := range v.ContributingVotes {
		out = append(out, c.CollectAttributes()...)
	}
	return out
}

// MergeErrorValues concatenates two error lists into a fresh slice.
func MergeErrorValues(a, b []Value) []Value {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]Value, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
