package combining

import "github.com/dev-sgill/arbiter/api/pdp/model"

// Finalize applies error handling and the default decision to a combined
// vote. Abstaining error handling turns an indeterminate vote into
// NOT_APPLICABLE while keeping its provenance and error values for the
// audit trail; the default decision is deliberately not applied in that
// case. The default decision only replaces a genuine NOT_APPLICABLE result
// and carries no constraints.
func Finalize(v model.Vote, p Parameters) model.Vote {
	if v.Decision() == model.Indeterminate {
		if p.ErrorHandling == ErrorsAbstain {
			out := v
			out.Authorization = model.AuthorizationDecision{Decision: model.NotApplicable}
			return out
		}
		return v
	}
	if v.Decision() == model.NotApplicable && p.DefaultDecision != nil {
		out := v
		out.Authorization = model.AuthorizationDecision{Decision: *p.DefaultDecision}
		out.Outcome = model.OutcomeOf(*p.DefaultDecision)
		return out
	}
	return v
}
