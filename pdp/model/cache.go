package model

import "time"

// DecisionCacheEntry is what the redis decision cache stores per
// subscription hash. Only settled decisions from the constant and pure
// tiers are cached; stream results are never cached.
type DecisionCacheEntry struct {
	Decision        AuthorizationDecision `json:"decision"`
	ConfigurationID string                `json:"configuration_id"`
	CachedAt        time.Time             `json:"cached_at"`
}
