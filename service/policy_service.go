package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dev-sgill/arbiter/api/dao"
	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	logger "github.com/dev-sgill/arbiter/api/logging"
	"github.com/dev-sgill/arbiter/api/model"
	"github.com/dev-sgill/arbiter/api/util"
)

// PolicyService handles business logic for policy definition operations
type PolicyService struct {
	policyDAO       *dao.PolicyDAO
	validationUtil  *util.ValidationUtil
	cacheService    *util.CacheService
	notificationSvc *util.NotificationService
	eventBus        *util.EventBus
}

// NewPolicyService creates a new instance of PolicyService
func NewPolicyService(policyDAO *dao.PolicyDAO, validationUtil *util.ValidationUtil, cacheService *util.CacheService, notificationSvc *util.NotificationService, eventBus *util.EventBus) *PolicyService {
	service := &PolicyService{
		policyDAO:       policyDAO,
		validationUtil:  validationUtil,
		cacheService:    cacheService,
		notificationSvc: notificationSvc,
		eventBus:        eventBus,
	}

	// Set up event subscriptions
	eventBus.Subscribe("policy.created", service.handlePolicyCreated)
	eventBus.Subscribe("policy.updated", service.handlePolicyUpdated)
	eventBus.Subscribe("policy.deleted", service.handlePolicyDeleted)

	return service
}

func (s *PolicyService) handlePolicyCreated(ctx context.Context, event util.Event) error {
	policy := event.Payload.(model.PolicyDefinition)
	logger.Info("Policy created event received", zap.String("policyID", policy.ID))

	// A new policy changes what the active configuration decides, so any
	// cached decisions are stale.
	if err := s.cacheService.InvalidateDecisions(ctx); err != nil {
		logger.Error("Failed to invalidate cached decisions", zap.Error(err), zap.String("policyID", policy.ID))
		return err
	}

	// Notify relevant services or systems
	if err := s.notificationSvc.NotifyPolicyChange(ctx, "created", policy); err != nil {
		logger.Warn("Failed to send policy creation notification", zap.Error(err), zap.String("policyID", policy.ID))
	}

	return nil
}

func (s *PolicyService) handlePolicyUpdated(ctx context.Context, event util.Event) error {
	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		logger.Error("Invalid event payload type", zap.Any("payload", event.Payload))
		return fmt.Errorf("invalid event payload type: %T", event.Payload)
	}

	var oldPolicy, newPolicy model.PolicyDefinition
	if old, ok := payload["old"]; ok {
		oldPolicy, ok = old.(model.PolicyDefinition)
		if !ok {
			logger.Error("Invalid old policy type", zap.Any("oldPolicy", old))
			return fmt.Errorf("invalid old policy type: %T", old)
		}
	} else {
		logger.Error("Old policy not found in event payload", zap.Any("payload", payload))
		return errors.New("old policy not found in event payload")
	}

	if new, ok := payload["new"]; ok {
		newPolicy, ok = new.(model.PolicyDefinition)
		if !ok {
			logger.Error("Invalid new policy type", zap.Any("newPolicy", new))
			return fmt.Errorf("invalid new policy type: %T", new)
		}
	} else {
		logger.Error("New policy not found in event payload", zap.Any("payload", payload))
		return errors.New("new policy not found in event payload")
	}

	logger.Info("Policy updated event received",
		zap.String("policyID", newPolicy.ID),
		zap.Int("oldVersion", oldPolicy.Version),
		zap.Int("newVersion", newPolicy.Version))

	if err := s.cacheService.InvalidateDecisions(ctx); err != nil {
		logger.Error("Failed to invalidate cached decisions", zap.Error(err), zap.String("policyID", newPolicy.ID))
		// Continue execution despite the error
	}

	// Notify relevant services or systems
	if err := s.notificationSvc.NotifyPolicyChange(ctx, "updated", newPolicy); err != nil {
		logger.Warn("Failed to send policy update notification", zap.Error(err), zap.String("policyID", newPolicy.ID))
		// Continue execution despite the error
	}

	return nil
}

func (s *PolicyService) handlePolicyDeleted(ctx context.Context, event util.Event) error {
	policyID, ok := event.Payload.(string)
	if !ok {
		logger.Error("Invalid event payload type", zap.Any("payload", event.Payload))
		return fmt.Errorf("invalid event payload type: %T", event.Payload)
	}

	logger.Info("Policy deleted event received", zap.String("policyID", policyID))

	if err := s.cacheService.InvalidateDecisions(ctx); err != nil {
		logger.Error("Failed to invalidate cached decisions", zap.Error(err), zap.String("policyID", policyID))
		// Continue execution despite the error
	}

	// Notify relevant services or systems
	if err := s.notificationSvc.NotifyPolicyChange(ctx, "deleted", model.PolicyDefinition{ID: policyID}); err != nil {
		logger.Warn("Failed to send policy deletion notification", zap.Error(err), zap.String("policyID", policyID))
		// Continue execution despite the error
	}

	return nil
}

// CreatePolicy handles the creation of a new policy definition
func (s *PolicyService) CreatePolicy(ctx context.Context, policy model.PolicyDefinition, userID string) (*model.PolicyDefinition, error) {
	if err := s.validationUtil.ValidatePolicy(policy); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	policy.CreatedAt = time.Now()
	policy.UpdatedAt = time.Now()
	policy.Version = 1

	policyID, err := s.policyDAO.CreatePolicy(ctx, policy)
	if err != nil {
		logger.Error("Error creating policy", zap.Error(err), zap.String("userID", userID))
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}

	policy.ID = policyID

	// Update cache
	if err := s.cacheService.SetPolicy(ctx, policy); err != nil {
		logger.Warn("Failed to cache policy", zap.Error(err), zap.String("policyID", policyID))
	}

	// Publish event for asynchronous processing
	s.eventBus.Publish(ctx, "policy.created", policy)

	logger.Info("Policy created successfully", zap.String("policyID", policyID), zap.String("userID", userID))
	return &policy, nil
}

// UpdatePolicy handles updates to an existing policy definition
func (s *PolicyService) UpdatePolicy(ctx context.Context, policy model.PolicyDefinition, userID string) (*model.PolicyDefinition, error) {
	if err := s.validationUtil.ValidatePolicy(policy); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	oldPolicy, err := s.policyDAO.GetPolicy(ctx, policy.ID)
	if err != nil {
		logger.Error("Error retrieving existing policy", zap.Error(err), zap.String("policyID", policy.ID))
		return nil, err
	}

	// Check if there are any differences between the old and new policies
	if !s.hasPolicyChanged(oldPolicy, &policy) {
		logger.Info("No changes detected in the policy, skipping update", zap.String("policyID", policy.ID))
		return oldPolicy, nil
	}

	policy.UpdatedAt = time.Now()
	policy.Version = oldPolicy.Version + 1

	updatedPolicy, err := s.policyDAO.UpdatePolicy(ctx, policy)
	if err != nil {
		logger.Error("Error updating policy", zap.Error(err), zap.String("policyID", policy.ID), zap.String("userID", userID))
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}

	// Update cache
	if err := s.cacheService.SetPolicy(ctx, *updatedPolicy); err != nil {
		logger.Warn("Failed to update policy in cache", zap.Error(err), zap.String("policyID", policy.ID))
	}

	// Publish event for asynchronous processing
	s.eventBus.Publish(ctx, "policy.updated", map[string]interface{}{
		"old": *oldPolicy,
		"new": *updatedPolicy,
	})

	logger.Info("Policy updated successfully", zap.String("policyID", policy.ID), zap.String("userID", userID))
	return updatedPolicy, nil
}

// DeletePolicy handles the deletion of a policy definition
func (s *PolicyService) DeletePolicy(ctx context.Context, policyID string, userID string) error {
	err := s.policyDAO.DeletePolicy(ctx, policyID)
	if err != nil {
		logger.Error("Error deleting policy", zap.Error(err), zap.String("policyID", policyID), zap.String("userID", userID))
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	// Remove from cache
	if err := s.cacheService.DeletePolicy(ctx, policyID); err != nil {
		logger.Warn("Failed to delete policy from cache", zap.Error(err), zap.String("policyID", policyID))
	}

	// Publish event for asynchronous processing
	s.eventBus.Publish(ctx, "policy.deleted", policyID)

	logger.Info("Policy deleted successfully", zap.String("policyID", policyID), zap.String("userID", userID))
	return nil
}

// GetPolicy retrieves a policy definition by its ID
func (s *PolicyService) GetPolicy(ctx context.Context, policyID string) (*model.PolicyDefinition, error) {
	// Try to get from cache first
	cachedPolicy, err := s.cacheService.GetPolicy(ctx, policyID)
	if err == nil && cachedPolicy != nil {
		return cachedPolicy, nil
	}

	policy, err := s.policyDAO.GetPolicy(ctx, policyID)
	if err != nil {
		if errors.Is(err, arbiter_errors.ErrPolicyNotFound) {
			return nil, arbiter_errors.ErrPolicyNotFound
		}
		logger.Error("Error retrieving policy", zap.Error(err), zap.String("policyID", policyID))
		return nil, arbiter_errors.ErrInternalServer
	}

	// Update cache
	if err := s.cacheService.SetPolicy(ctx, *policy); err != nil {
		logger.Warn("Failed to cache policy", zap.Error(err), zap.String("policyID", policyID))
	}

	return policy, nil
}

// ListPolicies retrieves all policy definitions, possibly with pagination
func (s *PolicyService) ListPolicies(ctx context.Context, limit int, offset int) ([]*model.PolicyDefinition, error) {
	policies, err := s.policyDAO.ListPolicies(ctx, limit, offset)
	if err != nil {
		logger.Error("Error listing policies", zap.Error(err), zap.Int("limit", limit), zap.Int("offset", offset))
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	return policies, nil
}

// BulkCreatePolicies creates multiple policy definitions in parallel
func (s *PolicyService) BulkCreatePolicies(ctx context.Context, policies []model.PolicyDefinition, userID string) ([]string, error) {
	g, ctx := errgroup.WithContext(ctx)
	policyIDs := make([]string, len(policies))

	// Limit concurrency to avoid overwhelming the system
	semaphore := make(chan struct{}, 10)

	for i, policy := range policies {
		i, policy := i, policy
		g.Go(func() error {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			createdPolicy, err := s.CreatePolicy(ctx, policy, userID)
			if err != nil {
				return err
			}
			policyIDs[i] = createdPolicy.ID
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Error in bulk create policies", zap.Error(err), zap.String("userID", userID))
		return nil, fmt.Errorf("failed to bulk create policies: %w", err)
	}

	logger.Info("Bulk create policies completed", zap.Int("count", len(policyIDs)), zap.String("userID", userID))
	return policyIDs, nil
}

// SearchPolicies searches for policy definitions based on given criteria
func (s *PolicyService) SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]*model.PolicyDefinition, error) {
	policies, err := s.policyDAO.SearchPolicies(ctx, criteria)
	if err != nil {
		logger.Error("Error searching policies", zap.Error(err), zap.Any("criteria", criteria))
		return nil, fmt.Errorf("failed to search policies: %w", err)
	}

	return policies, nil
}

// hasPolicyChanged checks if there are any differences between the old and new policies
func (s *PolicyService) hasPolicyChanged(oldPolicy, newPolicy *model.PolicyDefinition) bool {
	if oldPolicy.Name != newPolicy.Name ||
		oldPolicy.Description != newPolicy.Description ||
		oldPolicy.Effect != newPolicy.Effect ||
		oldPolicy.Active != newPolicy.Active ||
		!reflect.DeepEqual(oldPolicy.Subjects, newPolicy.Subjects) ||
		!reflect.DeepEqual(oldPolicy.Resources, newPolicy.Resources) ||
		!reflect.DeepEqual(oldPolicy.Actions, newPolicy.Actions) ||
		!reflect.DeepEqual(oldPolicy.Conditions, newPolicy.Conditions) ||
		!reflect.DeepEqual(oldPolicy.Obligations, newPolicy.Obligations) ||
		!reflect.DeepEqual(oldPolicy.Advice, newPolicy.Advice) {
		return true
	}
	return false
}
