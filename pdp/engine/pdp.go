// Package engine hosts the policy decision point: it owns the compiled
// voter for the active configuration and answers one-shot decision
// requests, live decision subscriptions and coverage evaluations.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	logger "github.com/dev-sgill/arbiter/api/logging"
	"github.com/dev-sgill/arbiter/api/model"
	"github.com/dev-sgill/arbiter/api/pdp/combining"
	"github.com/dev-sgill/arbiter/api/pdp/documents"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
	"github.com/dev-sgill/arbiter/api/pdp/stream"
)

// DecisionCache caches settled decisions from the constant and pure tiers.
type DecisionCache interface {
	Get(ctx context.Context, key string) (*pdpmodel.DecisionCacheEntry, error)
	Set(ctx context.Context, key string, entry pdpmodel.DecisionCacheEntry) error
}

type PolicyDecisionPoint struct {
	pdpID      string
	attributes pdpmodel.AttributeSource
	cache      DecisionCache

	// DisableCoverage skips coverage compilation; Coverage then fails
	// with ErrCoverageNotAvailable. Set before UpdateConfiguration.
	DisableCoverage bool

	mu       sync.RWMutex
	configID string
	params   combining.Parameters
	meta     pdpmodel.VoterMetadata
	voter    pdpmodel.Voter
	coverage pdpmodel.CoverageEvaluator
}

// NewPolicyDecisionPoint creates a decision point without an active
// configuration. Decisions fail with ErrConfigurationNotFound until
// UpdateConfiguration has been called once. Both attributes and cache may
// be nil.
func NewPolicyDecisionPoint(pdpID string, attributes pdpmodel.AttributeSource, cache DecisionCache) *PolicyDecisionPoint {
	return &PolicyDecisionPoint{
		pdpID:      pdpID,
		attributes: attributes,
		cache:      cache,
	}
}

// UpdateConfiguration compiles the configuration and atomically swaps it
// in. Running subscriptions keep the voter they subscribed with.
func (p *PolicyDecisionPoint) UpdateConfiguration(cfg model.PDPConfiguration) error {
	params, err := combining.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return err
	}

	docs := documents.CompileAll(cfg.Policies, p.pdpID, cfg.ID)
	meta := combining.CombinedMetadata(cfg.Name, p.pdpID, cfg.ID, docs)
	voter, err := combining.CompileVoter(params, docs, meta)
	if err != nil {
		return err
	}
	var coverage pdpmodel.CoverageEvaluator
	if !p.DisableCoverage {
		coverage, err = combining.CompileCoverage(params, docs, meta)
		if err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.configID = cfg.ID
	p.params = params
	p.meta = meta
	p.voter = voter
	p.coverage = coverage
	p.mu.Unlock()

	logger.Info("PDP configuration updated",
		zap.String("pdpId", p.pdpID),
		zap.String("configurationId", cfg.ID),
		zap.String("algorithm", cfg.Algorithm),
		zap.Int("documents", len(docs)))
	return nil
}

type snapshot struct {
	configID string
	params   combining.Parameters
	meta     pdpmodel.VoterMetadata
	voter    pdpmodel.Voter
	coverage pdpmodel.CoverageEvaluator
}

func (p *PolicyDecisionPoint) snapshot() (snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.voter == nil {
		return snapshot{}, arbiter_errors.ErrConfigurationNotFound
	}
	return snapshot{
		configID: p.configID,
		params:   p.params,
		meta:     p.meta,
		voter:    p.voter,
		coverage: p.coverage,
	}, nil
}

func (p *PolicyDecisionPoint) evaluationContext(sub pdpmodel.AuthorizationSubscription, configID string) *pdpmodel.EvaluationContext {
	return &pdpmodel.EvaluationContext{
		Subscription:    sub,
		Attributes:      p.attributes,
		PDPID:           p.pdpID,
		ConfigurationID: configID,
	}
}

// Decide answers a subscription once. Stream voters are subscribed and the
// first emission is taken.
func (p *PolicyDecisionPoint) Decide(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (pdpmodel.Vote, error) {
	s, err := p.snapshot()
	if err != nil {
		return pdpmodel.Vote{}, err
	}
	ectx := p.evaluationContext(sub, s.configID)

	switch v := s.voter.(type) {
	case pdpmodel.Vote:
		return combining.Finalize(v, s.params), nil
	case pdpmodel.PureVoter:
		key := subscriptionKey(sub, s.configID)
		if cached := p.cachedDecision(ctx, key, s); cached != nil {
			return *cached, nil
		}
		vote := combining.Finalize(v(ectx), s.params)
		p.storeDecision(ctx, key, vote, s.configID)
		return vote, nil
	case pdpmodel.StreamVoter:
		vote, err := stream.First(ctx, v(ectx))
		if err != nil {
			return pdpmodel.Vote{}, err
		}
		return combining.Finalize(vote, s.params), nil
	default:
		return pdpmodel.Vote{}, arbiter_errors.ErrConfigurationNotFound
	}
}

// Subscribe opens a live decision subscription. Constant and pure voters
// emit exactly one decision and then hold the channel open; stream voters
// re-emit whenever a contributing attribute changes. The returned id
// identifies the subscription in logs and the audit trail.
func (p *PolicyDecisionPoint) Subscribe(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (<-chan pdpmodel.Vote, string, error) {
	s, err := p.snapshot()
	if err != nil {
		return nil, "", err
	}
	ectx := p.evaluationContext(sub, s.configID)
	id := uuid.NewString()
	out := make(chan pdpmodel.Vote)

	emitOnce := func(vote pdpmodel.Vote) {
		defer close(out)
		select {
		case out <- vote:
		case <-ctx.Done():
			return
		}
		<-ctx.Done()
	}

	switch v := s.voter.(type) {
	case pdpmodel.Vote:
		go emitOnce(combining.Finalize(v, s.params))
	case pdpmodel.PureVoter:
		go emitOnce(combining.Finalize(v(ectx), s.params))
	case pdpmodel.StreamVoter:
		go func() {
			defer close(out)
			for vote := range v(ectx)(ctx) {
				select {
				case out <- combining.Finalize(vote, s.params):
				case <-ctx.Done():
					return
				}
			}
		}()
	default:
		close(out)
		return nil, "", arbiter_errors.ErrConfigurationNotFound
	}

	logger.Debug("Decision subscription opened",
		zap.String("pdpId", p.pdpID),
		zap.String("subscriptionId", id),
		zap.String("configurationId", s.configID))
	return out, id, nil
}

// Coverage evaluates every document of the configuration for the
// subscription, without short-circuiting, for auditing purposes.
func (p *PolicyDecisionPoint) Coverage(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (pdpmodel.VoteWithCoverage, error) {
	s, err := p.snapshot()
	if err != nil {
		return pdpmodel.VoteWithCoverage{}, err
	}
	ectx := p.evaluationContext(sub, s.configID)

	switch c := s.coverage.(type) {
	case pdpmodel.PureCoverageEvaluator:
		return c(ectx), nil
	case pdpmodel.StreamCoverageEvaluator:
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()
		select {
		case vc, ok := <-c(ectx)(sctx):
			if !ok {
				return pdpmodel.VoteWithCoverage{}, arbiter_errors.ErrNoDecision
			}
			return vc, nil
		case <-ctx.Done():
			return pdpmodel.VoteWithCoverage{}, ctx.Err()
		}
	default:
		return pdpmodel.VoteWithCoverage{}, arbiter_errors.ErrCoverageNotAvailable
	}
}

// ConfigurationID returns the id of the active configuration.
func (p *PolicyDecisionPoint) ConfigurationID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.configID
}

func (p *PolicyDecisionPoint) cachedDecision(ctx context.Context, key string, s snapshot) *pdpmodel.Vote {
	if p.cache == nil || key == "" {
		return nil
	}
	entry, err := p.cache.Get(ctx, key)
	if err != nil || entry == nil {
		return nil
	}
	if entry.ConfigurationID != s.configID {
		return nil
	}
	logger.Debug("Decision cache hit", zap.String("pdpId", p.pdpID), zap.String("configurationId", s.configID))
	vote := pdpmodel.Vote{
		Authorization: entry.Decision,
		Metadata:      s.meta,
		Outcome:       pdpmodel.OutcomeOf(entry.Decision.Decision),
	}
	return &vote
}

func (p *PolicyDecisionPoint) storeDecision(ctx context.Context, key string, vote pdpmodel.Vote, configID string) {
	if p.cache == nil || key == "" {
		return
	}
	entry := pdpmodel.DecisionCacheEntry{
		Decision:        vote.Authorization,
		ConfigurationID: configID,
	}
	if err := p.cache.Set(ctx, key, entry); err != nil {
		logger.Warn("Failed to cache decision", zap.Error(err))
	}
}

// subscriptionKey hashes the subscription content. The timestamp is
// excluded so identical questions share a cache slot. An unmarshalable
// subscription yields the empty key, which is never cached.
func subscriptionKey(sub pdpmodel.AuthorizationSubscription, configID string) string {
	sub.Timestamp = time.Time{}
	raw, err := json.Marshal(sub)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(append(raw, configID...))
	return hex.EncodeToString(sum[:])
}
