package combining

import "github.com/dev-sgill/arbiter/api/pdp/model"

// FirstCombiner implements first-applicable combination: the first vote
// that is not an abstention settles the result, later voters are never
// consulted. Abstaining voters still show up in the provenance.
type FirstCombiner struct{}

func (FirstCombiner) IsTerminal(v model.Vote) bool {
	return v.Decision() != model.NotApplicable
}

func (FirstCombiner) Combine(acc, next model.Vote, meta model.VoterMetadata) model.Vote {
	if acc.Decision() != model.NotApplicable {
		return acc
	}
	out := model.Vote{
		Authorization:     next.Authorization,
		Errors:            next.Errors,
		ContributingVotes: appendVote(acc.ContributingVotes, next),
		Metadata:          meta,
		Outcome:           next.Outcome,
	}
	if next.Decision() == model.NotApplicable {
		out.Outcome = model.MergeOutcomes(acc.Outcome, next.Outcome)
	}
	return out
}
