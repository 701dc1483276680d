package combining

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	"github.com/dev-sgill/arbiter/api/pdp/model"
)

func TestParseAlgorithm(t *testing.T) {
	permit := model.Permit
	deny := model.Deny

	tests := []struct {
		expr string
		want Parameters
	}{
		{
			expr: "deny-overrides",
			want: Parameters{Algorithm: AlgorithmDenyOverrides, ErrorHandling: ErrorsPropagate},
		},
		{
			expr: "permit-overrides or deny",
			want: Parameters{Algorithm: AlgorithmPermitOverrides, DefaultDecision: &deny, ErrorHandling: ErrorsPropagate},
		},
		{
			expr: "first-applicable or permit",
			want: Parameters{Algorithm: AlgorithmFirst, DefaultDecision: &permit, ErrorHandling: ErrorsPropagate},
		},
		{
			expr: "first-applicable or abstain",
			want: Parameters{Algorithm: AlgorithmFirst, ErrorHandling: ErrorsPropagate},
		},
		{
			expr: "unanimous strict",
			want: Parameters{Algorithm: AlgorithmUnanimous, Strict: true, ErrorHandling: ErrorsPropagate},
		},
		{
			expr: "unanimous strict or deny, errors abstain",
			want: Parameters{Algorithm: AlgorithmUnanimous, Strict: true, DefaultDecision: &deny, ErrorHandling: ErrorsAbstain},
		},
		{
			expr: "only-one-applicable, errors propagate",
			want: Parameters{Algorithm: AlgorithmUnique, ErrorHandling: ErrorsPropagate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Algorithm, got.Algorithm)
			assert.Equal(t, tt.want.Strict, got.Strict)
			assert.Equal(t, tt.want.ErrorHandling, got.ErrorHandling)
			if tt.want.DefaultDecision == nil {
				assert.Nil(t, got.DefaultDecision)
			} else {
				require.NotNil(t, got.DefaultDecision)
				assert.Equal(t, *tt.want.DefaultDecision, *got.DefaultDecision)
			}
		})
	}
}

func TestParseAlgorithmRejectsUnknown(t *testing.T) {
	exprs := []string{
		"",
		"majority-vote",
		"deny-overrides or maybe",
		"deny-overrides, errors ignore",
		"deny-overrides strict",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseAlgorithm(expr)
			assert.ErrorIs(t, err, arbiter_errors.ErrUnknownAlgorithm)
		})
	}
}

func TestCombinerFor(t *testing.T) {
	p, err := ParseAlgorithm("deny-overrides")
	require.NoError(t, err)
	c, err := combinerFor(p)
	require.NoError(t, err)
	assert.Equal(t, PriorityCombiner{Priority: model.Deny}, c)

	p, err = ParseAlgorithm("unanimous strict")
	require.NoError(t, err)
	c, err = combinerFor(p)
	require.NoError(t, err)
	assert.Equal(t, UnanimousCombiner{Strict: true}, c)
}
