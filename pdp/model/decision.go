package model

// Decision is the result category of a single vote or of a combined
// authorization decision.
type Decision string

const (
	Permit        Decision = "PERMIT"
	Deny          Decision = "DENY"
	NotApplicable Decision = "NOT_APPLICABLE"
	Indeterminate Decision = "INDETERMINATE"
)

// Outcome is the static hint of what decisions a voter can still produce.
// The zero value means the outcome is unknown, which combiners treat as the
// most pessimistic case.
type Outcome string

const (
	OutcomeUnknown      Outcome = ""
	OutcomePermit       Outcome = "PERMIT"
	OutcomeDeny         Outcome = "DENY"
	OutcomePermitOrDeny Outcome = "PERMIT_OR_DENY"
)

// OutcomeOf maps an applicable decision to its outcome hint. Decisions
// without an inherent direction map to OutcomePermitOrDeny.
func OutcomeOf(d Decision) Outcome {
	switch d {
	case Permit:
		return OutcomePermit
	case Deny:
		return OutcomeDeny
	default:
		return OutcomePermitOrDeny
	}
}

// MergeOutcomes widens two outcome hints. Matching hints stay narrow,
// anything else widens to PERMIT_OR_DENY.
func MergeOutcomes(a, b Outcome) Outcome {
	if a == OutcomeUnknown {
		return b
	}
	if b == OutcomeUnknown {
		return a
	}
	if a == b {
		return a
	}
	return OutcomePermitOrDeny
}

// AuthorizationDecision is the constraint-carrying payload of a vote: the
// decision plus the obligations, advice and optional transformed resource
// attached to it.
type AuthorizationDecision struct {
	Decision    Decision `json:"decision"`
	Obligations []Value  `json:"obligations,omitempty"`
	Advice      []Value  `json:"advice,omitempty"`
	Resource    Value    `json:"resource,omitempty"`
}

// Equals compares decision, obligations, advice and resource. Used by the
// strict unanimity check.
func (a AuthorizationDecision) Equals(other AuthorizationDecision) bool {
	return a.Decision == other.Decision &&
		ValueListsEqual(a.Obligations, other.Obligations) &&
		ValueListsEqual(a.Advice, other.Advice) &&
		ValuesEqual(a.Resource, other.Resource)
}
