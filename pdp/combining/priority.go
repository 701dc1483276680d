package combining

import "github.com/dev-sgill/arbiter/api/pdp/model"

// PriorityCombiner implements the overrides family: a vote for the
// priority decision beats everything else, the opposite decision beats
// abstentions and harmless faults. Combination does not stop on a priority
// decision because later priority votes still contribute constraints; it
// only stops on a critical fault.
type PriorityCombiner struct {
	Priority model.Decision
}

// isCritical reports whether a fault with the given outcome hint could have
// changed the result under the given priority. A voter that could only have
// produced the non-priority decision is harmless; an unknown outcome is
// assumed critical.
func isCritical(o model.Outcome, priority model.Decision) bool {
	switch o {
	case model.OutcomePermit:
		return priority == model.Permit
	case model.OutcomeDeny:
		return priority == model.Deny
	case model.OutcomePermitOrDeny:
		return true
	default:
		return true
	}
}

func (c PriorityCombiner) IsTerminal(v model.Vote) bool {
	return v.Decision() == model.Indeterminate && isCritical(v.Outcome, c.Priority)
}

func (c PriorityCombiner) Combine(acc, next model.Vote, meta model.VoterMetadata) model.Vote {
	contributing := appendVote(acc.ContributingVotes, next)
	errs := model.MergeErrorValues(acc.Errors, next.Errors)

	// A critical fault absorbs the combination. The hint widens to cover
	// what the accumulator could still have produced; an abstaining
	// accumulator constrains nothing.
	if next.Decision() == model.Indeterminate && isCritical(next.Outcome, c.Priority) {
		outcome := next.Outcome
		if acc.Decision() != model.NotApplicable {
			outcome = model.MergeOutcomes(acc.Outcome, next.Outcome)
		}
		return model.Vote{
			Authorization:     model.AuthorizationDecision{Decision: model.Indeterminate},
			Errors:            errs,
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           outcome,
		}
	}

	nonPriority := model.Permit
	if c.Priority == model.Permit {
		nonPriority = model.Deny
	}
	accD, nextD := acc.Decision(), next.Decision()

	switch {
	case accD == c.Priority && nextD == c.Priority:
		return c.agree(acc, next, errs, contributing, meta)
	case accD == c.Priority:
		return decisionVote(acc.Authorization, contributing, meta)
	case nextD == c.Priority:
		return decisionVote(next.Authorization, contributing, meta)
	case accD == nonPriority && nextD == nonPriority:
		return c.agree(acc, next, errs, contributing, meta)
	case accD == nonPriority:
		return decisionVote(acc.Authorization, contributing, meta)
	case nextD == nonPriority:
		return decisionVote(next.Authorization, contributing, meta)
	case accD == model.Indeterminate || nextD == model.Indeterminate:
		// Only harmless faults reach this point; keep collecting, a real
		// decision may still clear them.
		return model.Vote{
			Authorization:     model.AuthorizationDecision{Decision: model.Indeterminate},
			Errors:            errs,
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           model.MergeOutcomes(acc.Outcome, next.Outcome),
		}
	default:
		return model.Vote{
			Authorization:     model.AuthorizationDecision{Decision: model.NotApplicable},
			Errors:            errs,
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           model.MergeOutcomes(acc.Outcome, next.Outcome),
		}
	}
}

// agree merges two votes for the same decision.
func (c PriorityCombiner) agree(acc, next model.Vote, errs []model.Value, contributing []model.Vote, meta model.VoterMetadata) model.Vote {
	resource, ok := mergeResources(acc.Authorization.Resource, next.Authorization.Resource)
	if !ok {
		return model.Vote{
			Authorization:     model.AuthorizationDecision{Decision: model.Indeterminate},
			Errors:            appendError(errs, model.NewError(transformationUncertaintyMsg)),
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           model.OutcomeOf(acc.Decision()),
		}
	}
	auth := model.AuthorizationDecision{
		Decision:    acc.Decision(),
		Obligations: mergeConstraints(acc.Authorization.Obligations, next.Authorization.Obligations),
		Advice:      mergeConstraints(acc.Authorization.Advice, next.Authorization.Advice),
		Resource:    resource,
	}
	return decisionVote(auth, contributing, meta)
}
