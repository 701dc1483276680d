package combining

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-sgill/arbiter/api/pdp/model"
	"github.com/dev-sgill/arbiter/api/pdp/stream"
)

func constantDoc(v model.Vote) model.CompiledDocument {
	return model.ConstantDocument{Meta: v.Metadata, Vote: v}
}

func pureDoc(name string, outcome model.Outcome, eval func(*model.EvaluationContext) model.Vote) model.CompiledDocument {
	return model.PureDocument{Meta: docMeta(name, outcome), Evaluate: eval}
}

func streamDoc(name string, outcome model.Outcome, votes ...model.Vote) model.CompiledDocument {
	return model.StreamDocument{
		Meta: docMeta(name, outcome),
		Subscribe: func(ectx *model.EvaluationContext) model.VoteStream {
			return func(ctx context.Context) <-chan model.Vote {
				out := make(chan model.Vote, len(votes))
				for _, v := range votes {
					out <- v
				}
				close(out)
				return out
			}
		},
	}
}

func collectFirst(t *testing.T, vs model.VoteStream) model.Vote {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := stream.First(ctx, vs)
	require.NoError(t, err)
	return v
}

func TestClassifyDropsConstantAbstentions(t *testing.T) {
	docs := []model.CompiledDocument{
		constantDoc(abstainVote("a", model.OutcomePermit)),
		constantDoc(permitVote("b")),
		constantDoc(errorVote("c", model.OutcomeDeny)),
		pureDoc("d", model.OutcomePermit, func(*model.EvaluationContext) model.Vote { return permitVote("d") }),
	}

	st := Classify(docs)

	require.Len(t, st.ConstantVotes, 2)
	assert.Equal(t, "b", st.ConstantVotes[0].Metadata.Name)
	assert.Equal(t, "c", st.ConstantVotes[1].Metadata.Name)
	assert.Len(t, st.PureDocs, 1)
	assert.Empty(t, st.StreamDocs)
}

func TestCombinedMetadata(t *testing.T) {
	docs := []model.CompiledDocument{
		constantDoc(permitVote("a")),
		constantDoc(denyVote("b")),
	}

	meta := CombinedMetadata("combined", "pdp-test", "config-test", docs)

	assert.Equal(t, model.OutcomePermitOrDeny, meta.Outcome)
	assert.False(t, meta.HasConstraints)
}

func TestCompileAllConstantFoldsAtCompileTime(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmDenyOverrides, ErrorHandling: ErrorsPropagate}
	docs := []model.CompiledDocument{
		constantDoc(permitVote("a")),
		constantDoc(denyVote("b")),
	}

	voter, err := CompileVoter(p, docs, combinedMeta)
	require.NoError(t, err)

	vote, ok := voter.(model.Vote)
	require.True(t, ok, "expected a settled constant voter")
	assert.Equal(t, model.Deny, vote.Decision())
}

func TestCompileEmptyConfigurationAbstains(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmDenyOverrides, ErrorHandling: ErrorsPropagate}

	voter, err := CompileVoter(p, nil, combinedMeta)
	require.NoError(t, err)

	vote, ok := voter.(model.Vote)
	require.True(t, ok)
	assert.Equal(t, model.NotApplicable, vote.Decision())
}

func TestCompileTerminalConstantShadowsPureDocs(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmUnique, ErrorHandling: ErrorsPropagate}
	evaluated := false
	docs := []model.CompiledDocument{
		constantDoc(errorVote("broken", model.OutcomeDeny)),
		pureDoc("never-evaluated", model.OutcomePermit, func(*model.EvaluationContext) model.Vote {
			evaluated = true
			return permitVote("never-evaluated")
		}),
	}

	voter, err := CompileVoter(p, docs, combinedMeta)
	require.NoError(t, err)

	// The fault is absorbing under only-one-applicable, so the whole
	// configuration settles at compile time.
	vote, ok := voter.(model.Vote)
	require.True(t, ok)
	assert.Equal(t, model.Indeterminate, vote.Decision())
	assert.False(t, evaluated)
}

func TestCompileMixedConstantAndPure(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmDenyOverrides, ErrorHandling: ErrorsPropagate}
	docs := []model.CompiledDocument{
		constantDoc(permitVote("a")),
		pureDoc("b", model.OutcomeDeny, func(*model.EvaluationContext) model.Vote { return denyVote("b") }),
	}

	voter, err := CompileVoter(p, docs, combinedMeta)
	require.NoError(t, err)

	pure, ok := voter.(model.PureVoter)
	require.True(t, ok, "expected a pure voter")
	vote := pure(&model.EvaluationContext{})
	assert.Equal(t, model.Deny, vote.Decision())
}

func TestCompileStreamTier(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmDenyOverrides, ErrorHandling: ErrorsPropagate}
	docs := []model.CompiledDocument{
		constantDoc(permitVote("a")),
		streamDoc("b", model.OutcomeDeny, denyVote("b")),
	}

	voter, err := CompileVoter(p, docs, combinedMeta)
	require.NoError(t, err)

	sv, ok := voter.(model.StreamVoter)
	require.True(t, ok, "expected a stream voter")
	vote := collectFirst(t, sv(&model.EvaluationContext{}))
	assert.Equal(t, model.Deny, vote.Decision())
}

func TestCompileStreamTierSettledBeforeSubscribe(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmUnique, ErrorHandling: ErrorsPropagate}
	docs := []model.CompiledDocument{
		pureDoc("a", model.OutcomeDeny, func(*model.EvaluationContext) model.Vote {
			return errorVote("a", model.OutcomeDeny)
		}),
		streamDoc("b", model.OutcomePermit, permitVote("b")),
	}

	voter, err := CompileVoter(p, docs, combinedMeta)
	require.NoError(t, err)

	sv, ok := voter.(model.StreamVoter)
	require.True(t, ok)
	// The pure tier already absorbed; the stream document is never consulted.
	vote := collectFirst(t, sv(&model.EvaluationContext{}))
	assert.Equal(t, model.Indeterminate, vote.Decision())
	assert.Len(t, vote.ContributingVotes, 1)
}

func TestCompileFirstRespectsDocumentOrder(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmFirst, ErrorHandling: ErrorsPropagate}
	evaluated := []string{}
	docs := []model.CompiledDocument{
		pureDoc("a", model.OutcomeUnknown, func(*model.EvaluationContext) model.Vote {
			evaluated = append(evaluated, "a")
			return abstainVote("a", model.OutcomePermit)
		}),
		pureDoc("b", model.OutcomeUnknown, func(*model.EvaluationContext) model.Vote {
			evaluated = append(evaluated, "b")
			return denyVote("b")
		}),
		pureDoc("c", model.OutcomeUnknown, func(*model.EvaluationContext) model.Vote {
			evaluated = append(evaluated, "c")
			return permitVote("c")
		}),
	}

	voter, err := CompileVoter(p, docs, combinedMeta)
	require.NoError(t, err)

	pure, ok := voter.(model.PureVoter)
	require.True(t, ok)
	vote := pure(&model.EvaluationContext{})

	assert.Equal(t, model.Deny, vote.Decision())
	// Lazy: c is never evaluated.
	assert.Equal(t, []string{"a", "b"}, evaluated)
}

func TestCompileFirstAllConstant(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmFirst, ErrorHandling: ErrorsPropagate}
	docs := []model.CompiledDocument{
		constantDoc(abstainVote("a", model.OutcomePermit)),
		constantDoc(permitVote("b")),
	}

	voter := MustCompile(p, docs, combinedMeta)

	vote, ok := voter.(model.Vote)
	require.True(t, ok)
	assert.Equal(t, model.Permit, vote.Decision())
}

func TestMustCompilePanicsOnUnknownAlgorithm(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile(Parameters{Algorithm: "majority-vote"}, nil, combinedMeta)
	})
}

func TestCompileFirstStreamChain(t *testing.T) {
	p := Parameters{Algorithm: AlgorithmFirst, ErrorHandling: ErrorsPropagate}
	docs := []model.CompiledDocument{
		streamDoc("a", model.OutcomeUnknown, abstainVote("a", model.OutcomePermit)),
		pureDoc("b", model.OutcomeUnknown, func(*model.EvaluationContext) model.Vote { return denyVote("b") }),
	}

	voter, err := CompileVoter(p, docs, combinedMeta)
	require.NoError(t, err)

	sv, ok := voter.(model.StreamVoter)
	require.True(t, ok)
	vote := collectFirst(t, sv(&model.EvaluationContext{}))

	assert.Equal(t, model.Deny, vote.Decision())
	// Provenance covers the abstaining stream document and the deciding one.
	require.Len(t, vote.ContributingVotes, 2)
	assert.Equal(t, "a", vote.ContributingVotes[0].Metadata.Name)
	assert.Equal(t, "b", vote.ContributingVotes[1].Metadata.Name)
}
