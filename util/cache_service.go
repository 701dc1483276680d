// api/util/cache_service.go

package util

import (
	"context"
	"time"

	"github.com/dev-sgill/arbiter/api/db"
	"github.com/dev-sgill/arbiter/api/model"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
)

// CacheService fronts the redis cache for policy definitions and settled
// decisions. It satisfies the decision point's cache interface.
type CacheService struct{}

func NewCacheService() *CacheService {
	return &CacheService{}
}

func (c *CacheService) GetPolicy(ctx context.Context, policyID string) (*model.PolicyDefinition, error) {
	return db.GetCachedPolicyDefinition(ctx, policyID)
}

func (c *CacheService) SetPolicy(ctx context.Context, policy model.PolicyDefinition) error {
	return db.CachePolicyDefinition(ctx, &policy)
}

func (c *CacheService) DeletePolicy(ctx context.Context, policyID string) error {
	return db.DeleteCachedPolicyDefinition(ctx, policyID)
}

func (c *CacheService) Get(ctx context.Context, key string) (*pdpmodel.DecisionCacheEntry, error) {
	return db.GetCachedDecision(ctx, key)
}

func (c *CacheService) Set(ctx context.Context, key string, entry pdpmodel.DecisionCacheEntry) error {
	return db.CacheDecision(ctx, key, entry)
}

func (c *CacheService) DeleteDecision(ctx context.Context, key string) error {
	return db.DeleteCachedDecision(ctx, key)
}

func (c *CacheService) InvalidateDecisions(ctx context.Context) error {
	return db.InvalidateDecisions(ctx)
}

// Lock acquires a distributed lock so only one instance mutates the named
// resource at a time. Returns false when another holder has the lock.
func (c *CacheService) Lock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	return db.LockResource(ctx, resource, ttl)
}

func (c *CacheService) Unlock(ctx context.Context, resource string) error {
	return db.UnlockResource(ctx, resource)
}
