// Package combining implements the vote combining algorithms of the
// decision point: the pairwise combiners, the fold drivers that run them
// over vote lists, and the compilers that turn classified policy documents
// into voters of the cheapest possible evaluation tier.
package combining

import (
	"github.com/dev-sgill/arbiter/api/pdp/model"
)

// Combiner merges votes pairwise into an accumulator vote. Implementations
// must be pure: they never mutate their inputs and are safe for concurrent
// use.
type Combiner interface {
	// Combine merges the next vote into the accumulator and returns the new
	// accumulator. The accumulator passed in is never terminal.
	Combine(acc, next model.Vote, meta model.VoterMetadata) model.Vote
	// IsTerminal reports whether the accumulator can no longer change, so
	// folding may stop without looking at further votes.
	IsTerminal(v model.Vote) bool
}

// AccumulatorFrom lifts a single vote into an accumulator carrying the
// combined configuration's metadata, with the vote itself as the first
// provenance entry. Attribute records stay on the contributing vote so the
// provenance tree holds each record exactly once.
func AccumulatorFrom(v model.Vote, meta model.VoterMetadata) model.Vote {
	acc := v
	acc.Metadata = meta
	acc.ContributingVotes = []model.Vote{v}
	acc.ContributingAttributes = nil
	return acc
}

// FoldVotes combines a fresh list of votes. An empty list yields an
// abstention.
func FoldVotes(c Combiner, votes []model.Vote, meta model.VoterMetadata) model.Vote {
	if len(votes) == 0 {
		return model.Abstain(meta)
	}
	return FoldInto(c, AccumulatorFrom(votes[0], meta), votes[1:], meta)
}

// FoldInto folds votes into an existing accumulator. The accumulator is not
// re-wrapped and not re-appended to its own provenance. Terminality is
// checked before every combination step.
func FoldInto(c Combiner, acc model.Vote, votes []model.Vote, meta model.VoterMetadata) model.Vote {
	for _, v := range votes {
		if c.IsTerminal(acc) {
			break
		}
		acc = c.Combine(acc, v, meta)
	}
	return acc
}

func appendVote(votes []model.Vote, v model.Vote) []model.Vote {
	out := make([]model.Vote, 0, len(votes)+1)
	out = append(out, votes...)
	out = append(out, v)
	return out
}

func appendError(errs []model.Value, err model.ErrorValue) []model.Value {
	out := make([]model.Value, 0, len(errs)+1)
	out = append(out, errs...)
	out = append(out, err)
	return out
}

// mergeResources merges the optional transformed resources of two agreeing
// votes. Two different defined resources cannot be merged: that is a
// transformation uncertainty and the second return value is false.
func mergeResources(a, b model.Value) (model.Value, bool) {
	if !model.IsDefined(a) {
		return b, true
	}
	if !model.IsDefined(b) {
		return a, true
	}
	if a.Equals(b) {
		return a, true
	}
	return nil, false
}

func mergeConstraints(a, b []model.Value) []model.Value {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]model.Value, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// decisionVote builds a settled PERMIT or DENY accumulator. Collected
// non-critical errors are dropped: once a decision wins they can no longer
// influence it.
func decisionVote(auth model.AuthorizationDecision, contributing []model.Vote, meta model.VoterMetadata) model.Vote {
	return model.Vote{
		Authorization:     auth,
		ContributingVotes: contributing,
		Metadata:          meta,
		Outcome:           model.OutcomeOf(auth.Decision),
	}
}

const transformationUncertaintyMsg = "Transformation uncertainty: conflicting resource replacements in combined votes"
