package combining

import "github.com/dev-sgill/arbiter/api/pdp/model"

// UnanimousCombiner requires all applicable voters to agree. In the normal
// mode agreement means the same decision; constraints of agreeing votes are
// merged. In strict mode the full authorization including obligations,
// advice and resource must be identical, and nothing is merged.
type UnanimousCombiner struct {
	Strict bool
}

// IsTerminal: a strict disagreement can never recover. In normal mode an
// indeterminate accumulator is only final once its outcome has widened to
// PERMIT_OR_DENY; a narrower indeterminate could still widen.
func (c UnanimousCombiner) IsTerminal(v model.Vote) bool {
	return v.Decision() == model.Indeterminate &&
		(c.Strict || v.Outcome == model.OutcomePermitOrDeny)
}

func (c UnanimousCombiner) Combine(acc, next model.Vote, meta model.VoterMetadata) model.Vote {
	contributing := appendVote(acc.ContributingVotes, next)
	errs := model.MergeErrorValues(acc.Errors, next.Errors)

	if next.Decision() == model.NotApplicable {
		out := acc
		out.ContributingVotes = contributing
		out.Metadata = meta
		if acc.Decision() == model.NotApplicable {
			out.Outcome = model.MergeOutcomes(acc.Outcome, next.Outcome)
		}
		return out
	}
	if acc.Decision() == model.NotApplicable {
		return model.Vote{
			Authorization:     next.Authorization,
			Errors:            errs,
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           next.Outcome,
		}
	}

	// A fault on either side taints the whole combination.
	if acc.Decision() == model.Indeterminate || next.Decision() == model.Indeterminate {
		return model.Vote{
			Authorization:     model.AuthorizationDecision{Decision: model.Indeterminate},
			Errors:            errs,
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           model.MergeOutcomes(acc.Outcome, next.Outcome),
		}
	}

	if c.Strict {
		if !acc.Authorization.Equals(next.Authorization) {
			outcome := model.OutcomePermitOrDeny
			if acc.Decision() == next.Decision() {
				outcome = model.OutcomeOf(acc.Decision())
			}
			return model.Vote{
				Authorization:     model.AuthorizationDecision{Decision: model.Indeterminate},
				Errors:            appendError(errs, model.NewError("Votes are not identical")),
				ContributingVotes: contributing,
				Metadata:          meta,
				Outcome:           outcome,
			}
		}
		return model.Vote{
			Authorization:     acc.Authorization,
			Errors:            errs,
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           acc.Outcome,
		}
	}

	if acc.Decision() != next.Decision() {
		return model.Vote{
			Authorization:     model.AuthorizationDecision{Decision: model.Indeterminate},
			Errors:            appendError(errs, model.NewError("Votes disagree: %s vs %s", acc.Decision(), next.Decision())),
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           model.OutcomePermitOrDeny,
		}
	}

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
	return model.Vote{
		Authorization: model.AuthorizationDecision{
			Decision:    acc.Decision(),
			Obligations: mergeConstraints(acc.Authorization.Obligations, next.Authorization.Obligations),
			Advice:      mergeConstraints(acc.Authorization.Advice, next.Authorization.Advice),
			Resource:    resource,
		},
		Errors:            errs,
		ContributingVotes: contributing,
		Metadata:          meta,
		Outcome:           model.OutcomeOf(acc.Decision()),
	}
}
