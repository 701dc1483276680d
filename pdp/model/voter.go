package model

import "context"

// Voter is the closed set of compiled voter shapes. A voter is either a
// vote already settled at compile time, a pure function of the evaluation
// context, or a stream of votes that re-emits as external attributes
// change. Nothing outside this package can add a fourth shape.
type Voter interface {
	isVoter()
}

// Vote doubles as the constant voter: a document whose vote is fully known
// at compile time is represented by the vote itself.
func (Vote) isVoter() {}

// PureVoter computes a vote synchronously from the evaluation context.
type PureVoter func(ectx *EvaluationContext) Vote

func (PureVoter) isVoter() {}

// VoteStream is a cold stream of votes. Each call opens a fresh
// subscription; the returned channel is closed when ctx is cancelled or the
// stream completes.
type VoteStream func(ctx context.Context) <-chan Vote

// StreamVoter binds an evaluation context and yields the vote stream for it.
type StreamVoter func(ectx *EvaluationContext) VoteStream

func (StreamVoter) isVoter() {}

// VoteWithCoverage pairs a combined vote with the individual votes of every
// document in the configuration, in document order. Coverage evaluation
// never short-circuits, so the list is complete even when the combined vote
// settled early.
type VoteWithCoverage struct {
	Vote     Vote   `json:"vote"`
	Coverage []Vote `json:"coverage"`
}

// CoverageStream is the streaming counterpart of VoteWithCoverage.
type CoverageStream func(ctx context.Context) <-chan VoteWithCoverage

// CoverageEvaluator is the closed set of coverage evaluator shapes,
// mirroring Voter without the constant tier: coverage always re-evaluates.
type CoverageEvaluator interface {
	isCoverageEvaluator()
}

// PureCoverageEvaluator evaluates every document synchronously.
type PureCoverageEvaluator func(ectx *EvaluationContext) VoteWithCoverage

func (PureCoverageEvaluator) isCoverageEvaluator() {}

// StreamCoverageEvaluator re-evaluates coverage on attribute changes.
type StreamCoverageEvaluator func(ectx *EvaluationContext) CoverageStream

func (StreamCoverageEvaluator) isCoverageEvaluator() {}
