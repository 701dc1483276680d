package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-sgill/arbiter/api/audit"
	"github.com/dev-sgill/arbiter/api/dao"
	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	logger "github.com/dev-sgill/arbiter/api/logging"
	"github.com/dev-sgill/arbiter/api/model"
	"github.com/dev-sgill/arbiter/api/pdp/combining"
	"github.com/dev-sgill/arbiter/api/pdp/engine"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
	"github.com/dev-sgill/arbiter/api/util"
)

// configurationLockTTL bounds how long a crashed instance can hold the
// configuration update lock.
const configurationLockTTL = 30 * time.Second

// DecisionService fronts the policy decision point: it answers decision
// requests, manages live subscriptions, reloads the configuration when
// policies change, and writes every decision to the audit trail.
type DecisionService struct {
	pdp             *engine.PolicyDecisionPoint
	configDAO       *dao.ConfigurationDAO
	auditService    audit.Service
	validationUtil  *util.ValidationUtil
	cacheService    *util.CacheService
	eventBus        *util.EventBus
	configID        string
	decisionTimeout time.Duration
}

// NewDecisionService creates a new instance of DecisionService and wires it
// to policy change events so the compiled configuration stays current.
func NewDecisionService(pdp *engine.PolicyDecisionPoint, configDAO *dao.ConfigurationDAO, auditService audit.Service, validationUtil *util.ValidationUtil, cacheService *util.CacheService, eventBus *util.EventBus, configID string, decisionTimeout time.Duration) *DecisionService {
	service := &DecisionService{
		pdp:             pdp,
		configDAO:       configDAO,
		auditService:    auditService,
		validationUtil:  validationUtil,
		cacheService:    cacheService,
		eventBus:        eventBus,
		configID:        configID,
		decisionTimeout: decisionTimeout,
	}

	// Any policy change invalidates the compiled voter
	eventBus.Subscribe("policy.created", service.handlePolicyChange)
	eventBus.Subscribe("policy.updated", service.handlePolicyChange)
	eventBus.Subscribe("policy.deleted", service.handlePolicyChange)

	return service
}

func (s *DecisionService) handlePolicyChange(ctx context.Context, event util.Event) error {
	logger.Info("Policy change event received, reloading configuration",
		zap.String("eventType", event.Type),
		zap.String("configID", s.configID))
	return s.ReloadConfiguration(ctx)
}

// ReloadConfiguration loads the stored configuration, recompiles the voter
// and drops all cached decisions from the previous compilation.
func (s *DecisionService) ReloadConfiguration(ctx context.Context) error {
	config, err := s.configDAO.GetConfiguration(ctx, s.configID)
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err), zap.String("configID", s.configID))
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := s.pdp.UpdateConfiguration(*config); err != nil {
		logger.Error("Failed to compile configuration", zap.Error(err), zap.String("configID", s.configID))
		return fmt.Errorf("failed to compile configuration: %w", err)
	}

	if err := s.cacheService.InvalidateDecisions(ctx); err != nil {
		logger.Warn("Failed to invalidate cached decisions after reload", zap.Error(err))
	}

	return nil
}

// UpdateConfiguration validates and persists a new configuration, then
// recompiles the decision point against it. A distributed lock guards
// against concurrent updates from other instances.
func (s *DecisionService) UpdateConfiguration(ctx context.Context, config model.PDPConfiguration) error {
	config.ID = s.configID
	if err := s.validationUtil.ValidateConfiguration(config); err != nil {
		return fmt.Errorf("%w: %v", arbiter_errors.ErrInvalidConfiguration, err)
	}
	if _, err := combining.ParseAlgorithm(config.Algorithm); err != nil {
		return err
	}

	lockResource := fmt.Sprintf("configuration:%s", s.configID)
	locked, err := s.cacheService.Lock(ctx, lockResource, configurationLockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire configuration lock: %w", err)
	}
	if !locked {
		return arbiter_errors.ErrConfigurationLocked
	}
	defer func() {
		if err := s.cacheService.Unlock(ctx, lockResource); err != nil {
			logger.Warn("Failed to release configuration lock", zap.Error(err))
		}
	}()

	if err := s.configDAO.SaveConfiguration(ctx, config); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	logger.Info("Configuration updated",
		zap.String("configID", s.configID),
		zap.String("algorithm", config.Algorithm))
	return s.ReloadConfiguration(ctx)
}

// Decide answers an authorization subscription once and logs the decision.
func (s *DecisionService) Decide(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (pdpmodel.Vote, error) {
	if err := s.validationUtil.ValidateSubscription(sub); err != nil {
		return pdpmodel.Vote{}, fmt.Errorf("invalid subscription: %w", err)
	}

	if s.decisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.decisionTimeout)
		defer cancel()
	}

	start := time.Now()
	vote, err := s.pdp.Decide(ctx, sub)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = arbiter_errors.ErrDecisionTimeout
		}
		logger.Error("Decision failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return pdpmodel.Vote{}, err
	}

	logger.Info("Decision rendered",
		zap.String("decision", string(vote.Decision())),
		zap.Duration("duration", time.Since(start)))

	s.logDecision(ctx, uuid.NewString(), sub, vote)
	return vote, nil
}

// Subscribe opens a live decision subscription. Every emission is logged to
// the audit trail under the subscription id.
func (s *DecisionService) Subscribe(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (<-chan pdpmodel.Vote, string, error) {
	if err := s.validationUtil.ValidateSubscription(sub); err != nil {
		return nil, "", fmt.Errorf("invalid subscription: %w", err)
	}

	votes, id, err := s.pdp.Subscribe(ctx, sub)
	if err != nil {
		return nil, "", err
	}

	out := make(chan pdpmodel.Vote)
	go func() {
		defer close(out)
		for vote := range votes {
			s.logDecision(ctx, id, sub, vote)
			select {
			case out <- vote:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, id, nil
}

// Coverage evaluates every policy document for the subscription and returns
// the combined decision along with the individual document results.
func (s *DecisionService) Coverage(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (pdpmodel.VoteWithCoverage, error) {
	if err := s.validationUtil.ValidateSubscription(sub); err != nil {
		return pdpmodel.VoteWithCoverage{}, fmt.Errorf("invalid subscription: %w", err)
	}

	if s.decisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.decisionTimeout)
		defer cancel()
	}

	coverage, err := s.pdp.Coverage(ctx, sub)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = arbiter_errors.ErrDecisionTimeout
		}
		logger.Error("Coverage evaluation failed", zap.Error(err))
		return pdpmodel.VoteWithCoverage{}, err
	}

	s.logDecision(ctx, uuid.NewString(), sub, coverage.Vote)
	return coverage, nil
}

// QueryDecisionLogs searches the audit trail.
func (s *DecisionService) QueryDecisionLogs(ctx context.Context, from, to time.Time, subjectID, decision string) ([]audit.DecisionLog, error) {
	return s.auditService.QueryLogs(ctx, from, to, subjectID, decision)
}

func (s *DecisionService) logDecision(ctx context.Context, subscriptionID string, sub pdpmodel.AuthorizationSubscription, vote pdpmodel.Vote) {
	if s.auditService == nil {
		return
	}
	if err := s.auditService.LogDecision(ctx, audit.FromVote(subscriptionID, sub, vote)); err != nil {
		logger.Warn("Failed to write decision audit log",
			zap.Error(err),
			zap.String("subscriptionId", subscriptionID))
	}
}
