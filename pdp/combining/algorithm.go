package combining

import (
	"fmt"
	"strings"

	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	"github.com/dev-sgill/arbiter/api/pdp/model"
)

type Algorithm string

const (
	AlgorithmFirst           Algorithm = "first-applicable"
	AlgorithmUnanimous       Algorithm = "unanimous"
	AlgorithmDenyOverrides   Algorithm = "deny-overrides"
	AlgorithmPermitOverrides Algorithm = "permit-overrides"
	AlgorithmUnique          Algorithm = "only-one-applicable"
)

// ErrorHandling selects what happens to an indeterminate combined vote
// during finalization.
type ErrorHandling string

const (
	ErrorsPropagate ErrorHandling = "propagate"
	ErrorsAbstain   ErrorHandling = "abstain"
)

// Parameters is a fully resolved combining algorithm configuration.
type Parameters struct {
	Algorithm       Algorithm
	Strict          bool
	DefaultDecision *model.Decision
	ErrorHandling   ErrorHandling
}

// ParseAlgorithm parses an algorithm expression as it appears in the
// configuration, e.g.
//
//	"deny-overrides"
//	"unanimous strict or deny"
//	"first-applicable or abstain, errors abstain"
//
// The optional "or" clause names the default decision applied to a
// NOT_APPLICABLE result; the optional "errors" clause selects whether an
// INDETERMINATE result propagates or abstains. Defaults are no default
// decision and propagating errors.
func ParseAlgorithm(expr string) (Parameters, error) {
	p := Parameters{ErrorHandling: ErrorsPropagate}

	head := expr
	if i := strings.Index(expr, ","); i >= 0 {
		head = expr[:i]
		switch tail := strings.TrimSpace(expr[i+1:]); tail {
		case "errors propagate":
			p.ErrorHandling = ErrorsPropagate
		case "errors abstain":
			p.ErrorHandling = ErrorsAbstain
		default:
			return Parameters{}, fmt.Errorf("%w: unknown error handling %q", arbiter_errors.ErrUnknownAlgorithm, tail)
		}
	}

	head = strings.TrimSpace(head)
	if i := strings.Index(head, " or "); i >= 0 {
		switch def := strings.TrimSpace(head[i+4:]); def {
		case "abstain":
			p.DefaultDecision = nil
		case "permit":
			d := model.Permit
			p.DefaultDecision = &d
		case "deny":
			d := model.Deny
			p.DefaultDecision = &d
		default:
			return Parameters{}, fmt.Errorf("%w: unknown default decision %q", arbiter_errors.ErrUnknownAlgorithm, def)
		}
		head = strings.TrimSpace(head[:i])
	}

	if strings.HasSuffix(head, " strict") {
		p.Strict = true
		head = strings.TrimSpace(strings.TrimSuffix(head, " strict"))
	}

	switch Algorithm(head) {
	case AlgorithmFirst, AlgorithmUnanimous, AlgorithmDenyOverrides, AlgorithmPermitOverrides, AlgorithmUnique:
		p.Algorithm = Algorithm(head)
	default:
		return Parameters{}, fmt.Errorf("%w: %q", arbiter_errors.ErrUnknownAlgorithm, head)
	}
	if p.Strict && p.Algorithm != AlgorithmUnanimous {
		return Parameters{}, fmt.Errorf("%w: strict mode only applies to unanimous", arbiter_errors.ErrUnknownAlgorithm)
	}
	return p, nil
}

func combinerFor(p Parameters) (Combiner, error) {
	switch p.Algorithm {
	case AlgorithmFirst:
		return FirstCombiner{}, nil
	case AlgorithmUnanimous:
		return UnanimousCombiner{Strict: p.Strict}, nil
	case AlgorithmDenyOverrides:
		return PriorityCombiner{Priority: model.Deny}, nil
	case AlgorithmPermitOverrides:
		return PriorityCombiner{Priority: model.Permit}, nil
	case AlgorithmUnique:
		return UniqueCombiner{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", arbiter_errors.ErrUnknownAlgorithm, p.Algorithm)
	}
}
