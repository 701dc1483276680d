package combining

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-sgill/arbiter/api/pdp/model"
)

func firstCoverage(t *testing.T, cs model.CoverageStream) model.VoteWithCoverage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	select {
	case vc, ok := <-cs(ctx):
		require.True(t, ok, "coverage stream closed without emitting")
		return vc
	case <-ctx.Done():
		t.Fatal("no coverage emission before timeout")
		return model.VoteWithCoverage{}
	}
}

func TestCoverageEvaluatesEveryDocument(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmUnique, ErrorHandling: ErrorsPropagate}
	evaluated := false
	docs := []model.CompiledDocument{
		constantDoc(errorVote("broken", model.OutcomeDeny)),
		pureDoc("healthy", model.OutcomePermit, func(*model.EvaluationContext) model.Vote {
			evaluated = true
			return permitVote("healthy")
		}),
	}

	ev, err := CompileCoverage(p, docs, combinedMeta)
	require.NoError(t, err)

	pure, ok := ev.(model.PureCoverageEvaluator)
	require.True(t, ok, "expected a pure coverage evaluator")
	vc := pure(&model.EvaluationContext{})

	// The fault is absorbing for the combined result, but the audit path
	// still records every document's own vote.
	assert.True(t, evaluated)
	require.Len(t, vc.Coverage, 2)
	assert.Equal(t, "broken", vc.Coverage[0].Metadata.Name)
	assert.Equal(t, "healthy", vc.Coverage[1].Metadata.Name)
	assert.Equal(t, model.Indeterminate, vc.Vote.Decision())
	assert.Equal(t, model.Permit, vc.Coverage[1].Decision())
}

func TestCoveragePreservesDocumentOrder(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmFirst, ErrorHandling: ErrorsPropagate}
	var order []string
	eval := func(name string, v model.Vote) model.CompiledDocument {
		return pureDoc(name, model.OutcomeUnknown, func(*model.EvaluationContext) model.Vote {
			order = append(order, name)
			return v
		})
	}
	docs := []model.CompiledDocument{
		eval("a", abstainVote("a", model.OutcomePermit)),
		eval("b", denyVote("b")),
		eval("c", permitVote("c")),
	}

	ev, err := CompileCoverage(p, docs, combinedMeta)
	require.NoError(t, err)

	vc := ev.(model.PureCoverageEvaluator)(&model.EvaluationContext{})

	// first-applicable settles on b, yet c is still evaluated for coverage.
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, model.Deny, vc.Vote.Decision())
	require.Len(t, vc.Coverage, 3)
	assert.Equal(t, model.Permit, vc.Coverage[2].Decision())
}

func TestCoverageAppliesFinalization(t *testing.T) {
	def := model.Deny
	p := Parameters{Algorithm: AlgorithmDenyOverrides, DefaultDecision: &def, ErrorHandling: ErrorsPropagate}
	docs := []model.CompiledDocument{
		constantDoc(abstainVote("a", model.OutcomePermit)),
		pureDoc("b", model.OutcomeDeny, func(*model.EvaluationContext) model.Vote {
			return abstainVote("b", model.OutcomeDeny)
		}),
	}

	ev, err := CompileCoverage(p, docs, combinedMeta)
	require.NoError(t, err)

	vc := ev.(model.PureCoverageEvaluator)(&model.EvaluationContext{})

	assert.Equal(t, model.Deny, vc.Vote.Decision())
	assert.Empty(t, vc.Vote.Authorization.Obligations)
	assert.Equal(t, model.OutcomeDeny, vc.Vote.Outcome)
	require.Len(t, vc.Coverage, 2)
	assert.Equal(t, model.NotApplicable, vc.Coverage[0].Decision())
	assert.Equal(t, model.NotApplicable, vc.Coverage[1].Decision())
}

func TestCoverageErrorsAbstain(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmDenyOverrides, ErrorHandling: ErrorsAbstain}
	docs := []model.CompiledDocument{
		constantDoc(errorVote("broken", model.OutcomeDeny)),
	}

	ev, err := CompileCoverage(p, docs, combinedMeta)
	require.NoError(t, err)

	vc := ev.(model.PureCoverageEvaluator)(&model.EvaluationContext{})

	assert.Equal(t, model.NotApplicable, vc.Vote.Decision())
	assert.True(t, vc.Vote.HasErrors())
}

func TestCoverageStreamPath(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmDenyOverrides, ErrorHandling: ErrorsPropagate}
	docs := []model.CompiledDocument{
		constantDoc(permitVote("a")),
		pureDoc("b", model.OutcomePermit, func(*model.EvaluationContext) model.Vote {
			return permitVote("b")
		}),
		streamDoc("c", model.OutcomeDeny, denyVote("c")),
	}

	ev, err := CompileCoverage(p, docs, combinedMeta)
	require.NoError(t, err)

	sev, ok := ev.(model.StreamCoverageEvaluator)
	require.True(t, ok, "expected a stream coverage evaluator")
	vc := firstCoverage(t, sev(&model.EvaluationContext{}))

	assert.Equal(t, model.Deny, vc.Vote.Decision())
	require.Len(t, vc.Coverage, 3)
	assert.Equal(t, "a", vc.Coverage[0].Metadata.Name)
	assert.Equal(t, "b", vc.Coverage[1].Metadata.Name)
	assert.Equal(t, "c", vc.Coverage[2].Metadata.Name)
}

func TestCoverageFirstApplicableStreamsEveryDocument(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmFirst, ErrorHandling: ErrorsPropagate}
	docs := []model.CompiledDocument{
		streamDoc("a", model.OutcomeUnknown, abstainVote("a", model.OutcomeUnknown)),
		constantDoc(denyVote("b")),
		pureDoc("c", model.OutcomePermit, func(*model.EvaluationContext) model.Vote {
			return permitVote("c")
		}),
	}

	ev, err := CompileCoverage(p, docs, combinedMeta)
	require.NoError(t, err)

	sev, ok := ev.(model.StreamCoverageEvaluator)
	require.True(t, ok, "expected a stream coverage evaluator")
	vc := firstCoverage(t, sev(&model.EvaluationContext{}))

	// first-applicable settles on b, yet the chain keeps walking so the
	// coverage list still holds every document in order.
	assert.Equal(t, model.Deny, vc.Vote.Decision())
	require.Len(t, vc.Coverage, 3)
	assert.Equal(t, "a", vc.Coverage[0].Metadata.Name)
	assert.Equal(t, "b", vc.Coverage[1].Metadata.Name)
	assert.Equal(t, "c", vc.Coverage[2].Metadata.Name)
	assert.Equal(t, model.Permit, vc.Coverage[2].Decision())
}

func TestCoverageFirstApplicableSubscribesTailLazily(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmFirst, ErrorHandling: ErrorsPropagate}

	headVotes := make(chan model.Vote, 1)
	head := model.StreamDocument{
		Meta: docMeta("head", model.OutcomeUnknown),
		Subscribe: func(*model.EvaluationContext) model.VoteStream {
			return func(ctx context.Context) <-chan model.Vote {
				out := make(chan model.Vote)
				go func() {
					defer close(out)
					select {
					case v := <-headVotes:
						out <- v
					case <-ctx.Done():
					}
				}()
				return out
			}
		},
	}

	tailSubscribed := make(chan struct{}, 1)
	tail := model.StreamDocument{
		Meta: docMeta("tail", model.OutcomeDeny),
		Subscribe: func(*model.EvaluationContext) model.VoteStream {
			return func(ctx context.Context) <-chan model.Vote {
				tailSubscribed <- struct{}{}
				out := make(chan model.Vote, 1)
				out <- denyVote("tail")
				close(out)
				return out
			}
		},
	}

	ev, err := CompileCoverage(p, []model.CompiledDocument{head, tail}, combinedMeta)
	require.NoError(t, err)

	sev, ok := ev.(model.StreamCoverageEvaluator)
	require.True(t, ok, "expected a stream coverage evaluator")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	emissions := sev(&model.EvaluationContext{})(ctx)

	// The tail is reached through the head's projection, so nothing may
	// touch it while the head is still silent.
	select {
	case <-tailSubscribed:
		t.Fatal("tail subscribed before the head voted")
	default:
	}

	headVotes <- abstainVote("head", model.OutcomeUnknown)

	select {
	case vc, ok := <-emissions:
		require.True(t, ok, "coverage stream closed without emitting")
		assert.Equal(t, model.Deny, vc.Vote.Decision())
		require.Len(t, vc.Coverage, 2)
		assert.Equal(t, "head", vc.Coverage[0].Metadata.Name)
		assert.Equal(t, "tail", vc.Coverage[1].Metadata.Name)
	case <-ctx.Done():
		t.Fatal("no coverage emission before timeout")
	}
}

func TestCoverageRejectsUnknownAlgorithm(t *testing.T) {
	p := Parameters{Algorithm: Algorithm("consensus")}

	_, err := CompileCoverage(p, nil, combinedMeta)
	assert.Error(t, err)
}
