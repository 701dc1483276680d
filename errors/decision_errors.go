// api/errors/decision_errors.go
package errors

import "errors"

var (
	ErrUnknownAlgorithm      = errors.New("unknown combining algorithm")
	ErrInvalidSubscription   = errors.New("invalid authorization subscription")
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrConfigurationNotFound = errors.New("configuration not found")
	ErrConfigurationLocked   = errors.New("configuration update already in progress")
	ErrNoDecision            = errors.New("decision stream completed without a decision")
	ErrDecisionTimeout       = errors.New("decision timed out")
	ErrCoverageNotAvailable  = errors.New("coverage evaluation is disabled")
)
