package combining

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-sgill/arbiter/api/pdp/model"
)

func TestUnanimousAgreementMergesConstraints(t *testing.T) {
	c := UnanimousCombiner{}
	o1 := model.ObjectValue{"type": "log"}
	o2 := model.ObjectValue{"type": "notify"}
	votes := []model.Vote{
		permitWith("a", []model.Value{o1}, nil),
		permitWith("b", []model.Value{o2}, nil),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.Permit, result.Decision())
	assert.Len(t, result.Authorization.Obligations, 2)
	assert.Equal(t, model.OutcomePermit, result.Outcome)
}

func TestUnanimousDisagreementIsIndeterminate(t *testing.T) {
	c := UnanimousCombiner{}
	votes := []model.Vote{
		permitVote("a"),
		denyVote("b"),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.Indeterminate, result.Decision())
	assert.Equal(t, model.OutcomePermitOrDeny, result.Outcome)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].String(), "Votes disagree")
}

func TestUnanimousDisagreementIsTerminal(t *testing.T) {
	c := UnanimousCombiner{}
	votes := []model.Vote{
		permitVote("a"),
		denyVote("b"),
		permitVote("never-reached"),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.Indeterminate, result.Decision())
	assert.Len(t, result.ContributingVotes, 2)
}

func TestUnanimousIgnoresAbstentions(t *testing.T) {
	c := UnanimousCombiner{}
	votes := []model.Vote{
		abstainVote("a", model.OutcomeDeny),
		permitVote("b"),
		abstainVote("c", model.OutcomeDeny),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.Permit, result.Decision())
	assert.Len(t, result.ContributingVotes, 3)
}

func TestUnanimousFaultTaintsCombination(t *testing.T) {
	c := UnanimousCombiner{}
	votes := []model.Vote{
		permitVote("a"),
		errorVote("broken", model.OutcomePermit),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.Indeterminate, result.Decision())
	assert.True(t, result.HasErrors())
	assert.Equal(t, model.OutcomePermit, result.Outcome)
}

func TestUnanimousNarrowFaultNotTerminal(t *testing.T) {
	c := UnanimousCombiner{}
	// A permit-direction fault has not widened yet, so folding continues
	// and a deny vote widens it.
	votes := []model.Vote{
		errorVote("broken", model.OutcomePermit),
		denyVote("b"),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.Indeterminate, result.Decision())
	assert.Equal(t, model.OutcomePermitOrDeny, result.Outcome)
	assert.Len(t, result.ContributingVotes, 2)
}

func TestUnanimousStrictIdenticalVotes(t *testing.T) {
	c := UnanimousCombiner{Strict: true}
	o := model.ObjectValue{"type": "log"}
	votes := []model.Vote{
		permitWith("a", []model.Value{o}, model.StringValue("r")),
		permitWith("b", []model.Value{o}, model.StringValue("r")),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.Permit, result.Decision())
	// Strict mode keeps the authorization as-is instead of merging.
	assert.Len(t, result.Authorization.Obligations, 1)
}

func TestUnanimousStrictRejectsDifferentConstraints(t *testing.T) {
	c := UnanimousCombiner{Strict: true}
	votes := []model.Vote{
		permitWith("a", []model.Value{model.ObjectValue{"type": "log"}}, nil),
		permitWith("b", nil, nil),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.Indeterminate, result.Decision())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].String(), "not identical")
	// Both votes were permits, the direction survives.
	assert.Equal(t, model.OutcomePermit, result.Outcome)
}

func TestUnanimousStrictFailureIsTerminal(t *testing.T) {
	c := UnanimousCombiner{Strict: true}
	votes := []model.Vote{
		permitWith("a", []model.Value{model.ObjectValue{"type": "log"}}, nil),
		permitWith("b", nil, nil),
		permitVote("never-reached"),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Len(t, result.ContributingVotes, 2)
}

func TestUnanimousTransformationUncertainty(t *testing.T) {
	c := UnanimousCombiner{}
	votes := []model.Vote{
		permitWith("a", nil, model.StringValue("resource-a")),
		permitWith("b", nil, model.StringValue("resource-b")),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.Indeterminate, result.Decision())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].String(), "Transformation uncertainty")
}

func TestUnanimousAllAbstain(t *testing.T) {
	c := UnanimousCombiner{}
	votes := []model.Vote{
		abstainVote("a", model.OutcomePermit),
		abstainVote("b", model.OutcomeDeny),
	}

	result := FoldVotes(c, votes, combinedMeta)

	assert.Equal(t, model.NotApplicable, result.Decision())
	assert.Equal(t, model.OutcomePermitOrDeny, result.Outcome)
}
