package combining

import "github.com/dev-sgill/arbiter/api/pdp/model"

// UniqueCombiner implements only-one-applicable: at most one voter may be
// applicable, a second applicable vote makes the result indeterminate. Any
// fault is absorbing and stops the fold immediately.
type UniqueCombiner struct{}

func (UniqueCombiner) IsTerminal(v model.Vote) bool {
	return v.Decision() == model.Indeterminate
}

func (UniqueCombiner) Combine(acc, next model.Vote, meta model.VoterMetadata) model.Vote {
	contributing := appendVote(acc.ContributingVotes, next)
	errs := model.MergeErrorValues(acc.Errors, next.Errors)

	switch {
	case next.Decision() == model.Indeterminate:
		return model.Vote{
			Authorization:     model.AuthorizationDecision{Decision: model.Indeterminate},
			Errors:            errs,
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           next.Outcome,
		}
	case next.Decision() == model.NotApplicable:
		out := acc
		out.ContributingVotes = contributing
		out.Metadata = meta
		if acc.Decision() == model.NotApplicable {
			out.Outcome = model.MergeOutcomes(acc.Outcome, next.Outcome)
		}
		return out
	case acc.Decision() == model.NotApplicable:
		return model.Vote{
			Authorization:     next.Authorization,
			Errors:            errs,
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           next.Outcome,
		}
	default:
		// Second applicable vote. The outcome hint reflects the decisions
		// actually seen so far.
		return model.Vote{
			Authorization:     model.AuthorizationDecision{Decision: model.Indeterminate},
			Errors:            appendError(errs, model.NewError("Multiple applicable policies in only-one-applicable configuration")),
			ContributingVotes: contributing,
			Metadata:          meta,
			Outcome:           model.MergeOutcomes(model.OutcomeOf(acc.Decision()), model.OutcomeOf(next.Decision())),
		}
	}
}
