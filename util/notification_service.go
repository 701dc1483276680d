// api/util/notification_service.go

package util

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	logger "github.com/dev-sgill/arbiter/api/logging"
	"github.com/dev-sgill/arbiter/api/model"
)

type NotificationService struct {
	// You might want to add dependencies here, such as a message queue client
}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

func (n *NotificationService) NotifyPolicyChange(ctx context.Context, changeType string, policy model.PolicyDefinition) error {
	// In a real implementation, you might send this to a message queue or external notification service
	switch changeType {
	case "created":
		logger.Info("NOTIFICATION: New policy created",
			zap.String("policyID", policy.ID),
			zap.String("policyName", policy.Name))
	case "updated":
		logger.Info("NOTIFICATION: Policy updated",
			zap.String("policyID", policy.ID),
			zap.String("policyName", policy.Name))
	case "deleted":
		logger.Info("NOTIFICATION: Policy deleted",
			zap.String("policyID", policy.ID))
	default:
		return fmt.Errorf("unknown change type: %s", changeType)
	}

	// Here you would implement the actual notification logic
	// This could involve sending messages to a queue, calling an external API, etc.

	return nil
}

func (n *NotificationService) NotifyConfigurationChange(ctx context.Context, config model.PDPConfiguration) error {
	// Logic to notify downstream enforcement points about configuration changes
	logger.Info("Notifying configuration change",
		zap.String("configID", config.ID),
		zap.String("algorithm", config.Algorithm),
		zap.Int("policyCount", len(config.Policies)))
	return nil
}

func (n *NotificationService) NotifyAdmins(ctx context.Context, message string) error {
	// Logic to notify all system administrators
	logger.Info("Notifying admins", zap.String("message", message))
	return nil
}
