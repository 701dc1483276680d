package model

import (
	"context"
	"time"
)

// AuthorizationSubscription is the question a client asks the decision
// point: may subject perform action on resource in this environment.
type AuthorizationSubscription struct {
	Subject     map[string]interface{} `json:"subject" binding:"required"`
	Action      string                 `json:"action" binding:"required"`
	Resource    map[string]interface{} `json:"resource" binding:"required"`
	Environment map[string]interface{} `json:"environment,omitempty"`
	Timestamp   time.Time              `json:"timestamp,omitempty"`
}

// AttributeSource provides live external attributes to streaming voters.
type AttributeSource interface {
	// Current returns the last known value for an attribute, if any.
	Current(name string) (Value, bool)
	// Observe opens a subscription for an attribute. The current value, when
	// known, is delivered first; the channel is closed when ctx is cancelled.
	Observe(ctx context.Context, name string) <-chan Value
}

// EvaluationContext carries everything a voter may consult while voting.
type EvaluationContext struct {
	Subscription    AuthorizationSubscription
	Attributes      AttributeSource
	PDPID           string
	ConfigurationID string
}
