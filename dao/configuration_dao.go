// api/dao/configuration_dao.go
package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	logger "github.com/dev-sgill/arbiter/api/logging"
	"github.com/dev-sgill/arbiter/api/model"
	helper_util "github.com/dev-sgill/arbiter/api/util/helper"
)

// ConfigurationDAO persists the decision point configuration: which combining
// algorithm expression is in force. The policy set itself lives on POLICY
// nodes and is joined in at load time.
type ConfigurationDAO struct {
	Driver    neo4j.Driver
	PolicyDAO *PolicyDAO
}

func NewConfigurationDAO(driver neo4j.Driver, policyDAO *PolicyDAO) *ConfigurationDAO {
	return &ConfigurationDAO{Driver: driver, PolicyDAO: policyDAO}
}

// SaveConfiguration upserts the configuration node
func (dao *ConfigurationDAO) SaveConfiguration(ctx context.Context, config model.PDPConfiguration) error {
	start := time.Now()
	logger.Info("Saving configuration",
		zap.String("configID", config.ID),
		zap.String("algorithm", config.Algorithm))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (c:CONFIGURATION {id: $id})
        ON CREATE SET c += $props
        ON MATCH SET c += $props
        RETURN c.id
        `
		_, err := transaction.Run(query, map[string]interface{}{
			"id": config.ID,
			"props": map[string]interface{}{
				"name":      config.Name,
				"algorithm": config.Algorithm,
				"updatedAt": time.Now().Format(time.RFC3339),
			},
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		return nil, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to save configuration",
			zap.Error(err),
			zap.String("configID", config.ID),
			zap.Duration("duration", duration))
		return err
	}

	logger.Info("Configuration saved successfully",
		zap.String("configID", config.ID),
		zap.Duration("duration", duration))
	return nil
}

// GetConfiguration loads the configuration node and joins in the active
// policy definitions.
func (dao *ConfigurationDAO) GetConfiguration(ctx context.Context, configID string) (*model.PDPConfiguration, error) {
	start := time.Now()
	logger.Info("Retrieving configuration", zap.String("configID", configID))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (c:CONFIGURATION {id: $id})
    RETURN c
    `
	result, err := session.Run(query, map[string]interface{}{"id": configID})
	if err != nil {
		logger.Error("Failed to execute get configuration query",
			zap.Error(err),
			zap.String("configID", configID),
			zap.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to execute get configuration query: %w", err)
	}

	if !result.Next() {
		logger.Warn("Configuration not found",
			zap.String("configID", configID),
			zap.Duration("duration", time.Since(start)))
		return nil, arbiter_errors.ErrConfigurationNotFound
	}

	node := result.Record().Values[0].(neo4j.Node)
	config := &model.PDPConfiguration{ID: configID}
	if name, ok := node.Props["name"].(string); ok {
		config.Name = name
	}
	if algorithm, ok := node.Props["algorithm"].(string); ok {
		config.Algorithm = algorithm
	} else {
		return nil, fmt.Errorf("failed to assert type for configuration algorithm: %v", node.Props["algorithm"])
	}
	// The driver may hand the timestamp back as a string or a native time
	if updatedAt, err := helper_util.ParseNullableTime(node.Props["updatedAt"]); err == nil && updatedAt != nil {
		config.UpdatedAt = *updatedAt
	}

	active := true
	policies, err := dao.PolicyDAO.SearchPolicies(ctx, model.PolicySearchCriteria{Active: &active})
	if err != nil {
		return nil, fmt.Errorf("failed to load active policies: %w", err)
	}
	for _, p := range policies {
		config.Policies = append(config.Policies, *p)
	}

	logger.Info("Configuration retrieved successfully",
		zap.String("configID", configID),
		zap.Int("policyCount", len(config.Policies)),
		zap.Duration("duration", time.Since(start)))
	return config, nil
}
