// api/dao/policy_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	arbiter_errors "github.com/dev-sgill/arbiter/api/errors"
	logger "github.com/dev-sgill/arbiter/api/logging"
	"github.com/dev-sgill/arbiter/api/model"
)

type PolicyDAO struct {
	Driver neo4j.Driver
}

func NewPolicyDAO(driver neo4j.Driver) *PolicyDAO {
	dao := &PolicyDAO{Driver: driver}
	// Ensure unique constraint on Policy ID
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on the Policy ID
func (dao *PolicyDAO) EnsureUniqueConstraint(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on Policy ID")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close Neo4j session", zap.Error(err))
		}
	}()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_policy_id IF NOT EXISTS
        FOR (p:POLICY) REQUIRE p.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			logger.Error("Failed to create unique constraint", zap.Error(err))
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to ensure unique constraint on Policy ID", zap.Error(err))
		return err
	}

	logger.Info("Successfully ensured unique constraint on Policy ID")
	return nil
}

// CreatePolicy creates a new policy definition node in Neo4j
func (dao *PolicyDAO) CreatePolicy(ctx context.Context, policy model.PolicyDefinition) (string, error) {
	start := time.Now()
	logger.Info("Creating new policy", zap.String("policyName", policy.Name))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if policy.ID == "" {
		policy.ID = uuid.New().String() // Generate a new UUID if ID is not provided
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		// First, check if the policy already exists
		checkQuery := `
        MATCH (p:POLICY {id: $id})
        RETURN p.id
        `
		checkResult, err := transaction.Run(checkQuery, map[string]interface{}{"id": policy.ID})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if checkResult.Next() {
			return nil, arbiter_errors.ErrPolicyConflict
		}

		createQuery := `
            MERGE (p:POLICY {id: $id})
            ON CREATE SET p += $props
            ON MATCH SET p += $props
            RETURN p.id as id
        `
		createResult, err := transaction.Run(createQuery, map[string]interface{}{
			"id":    policy.ID,
			"props": policyProps(policy, time.Now()),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if createResult.Next() {
			id, found := createResult.Record().Get("id")
			if !found {
				return nil, arbiter_errors.ErrInternalServer
			}
			return id, nil
		}
		return nil, arbiter_errors.ErrInternalServer
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to create policy",
			zap.Error(err),
			zap.String("policyName", policy.Name),
			zap.Duration("duration", duration))
		return "", err
	}

	policyID := fmt.Sprintf("%v", result)
	logger.Info("Policy created successfully",
		zap.String("policyID", policyID),
		zap.Duration("duration", duration))
	return policyID, nil
}

// UpdatePolicy updates an existing policy definition in Neo4j
func (dao *PolicyDAO) UpdatePolicy(ctx context.Context, policy model.PolicyDefinition) (*model.PolicyDefinition, error) {
	start := time.Now()
	logger.Info("Updating policy", zap.String("policyID", policy.ID))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	var updatedPolicy *model.PolicyDefinition
	oldPolicy, err := dao.GetPolicy(ctx, policy.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	_, err = session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
				MATCH (p:POLICY {id: $id})
				SET p += $props
				RETURN p
				`
		props := policyProps(policy, time.Now())
		props["createdAt"] = oldPolicy.CreatedAt.Format(time.RFC3339)
		result, err := transaction.Run(query, map[string]interface{}{
			"id":    policy.ID,
			"props": props,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to execute update query: %w", err)
		}
		if result.Next() {
			node := result.Record().Values[0].(neo4j.Node)
			updatedPolicy, _ = mapNodeToPolicy(node)
			return nil, nil
		}
		return nil, arbiter_errors.ErrPolicyNotFound
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to update policy",
			zap.Error(err),
			zap.String("policyID", policy.ID),
			zap.Duration("duration", duration))
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}

	logger.Info("Policy updated successfully",
		zap.String("policyID", policy.ID),
		zap.Duration("duration", duration))
	return updatedPolicy, nil
}

// DeletePolicy deletes a policy definition from Neo4j
func (dao *PolicyDAO) DeletePolicy(ctx context.Context, policyID string) error {
	start := time.Now()
	logger.Info("Deleting policy", zap.String("policyID", policyID))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:POLICY {id: $id})
        DETACH DELETE p
        `
		result, err := transaction.Run(query, map[string]interface{}{"id": policyID})
		if err != nil {
			return nil, fmt.Errorf("failed to execute delete query: %w", err)
		}
		summary, err := result.Consume()
		if err != nil {
			return nil, fmt.Errorf("failed to consume delete result: %w", err)
		}
		if summary.Counters().NodesDeleted() == 0 {
			return nil, arbiter_errors.ErrPolicyNotFound
		}
		return nil, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to delete policy",
			zap.Error(err),
			zap.String("policyID", policyID),
			zap.Duration("duration", duration))
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	logger.Info("Policy deleted successfully",
		zap.String("policyID", policyID),
		zap.Duration("duration", duration))
	return nil
}

// GetPolicy retrieves a policy definition from Neo4j by its ID
func (dao *PolicyDAO) GetPolicy(ctx context.Context, policyID string) (*model.PolicyDefinition, error) {
	start := time.Now()
	logger.Info("Retrieving policy", zap.String("policyID", policyID))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (p:POLICY {id: $id})
    RETURN p
    `
	result, err := session.Run(query, map[string]interface{}{"id": policyID})
	if err != nil {
		logger.Error("Failed to execute get policy query",
			zap.Error(err),
			zap.String("policyID", policyID),
			zap.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to execute get policy query: %w", err)
	}

	if result.Next() {
		node := result.Record().Values[0].(neo4j.Node)
		policy, err := mapNodeToPolicy(node)
		if err != nil {
			logger.Error("Failed to map policy node to struct",
				zap.Error(err),
				zap.String("policyID", policyID),
				zap.Duration("duration", time.Since(start)))
			return nil, fmt.Errorf("failed to map policy node to struct: %w", err)
		}
		logger.Info("Policy retrieved successfully",
			zap.String("policyID", policyID),
			zap.Duration("duration", time.Since(start)))
		return policy, nil
	}

	logger.Warn("Policy not found",
		zap.String("policyID", policyID),
		zap.Duration("duration", time.Since(start)))
	return nil, arbiter_errors.ErrPolicyNotFound
}

// ListPolicies retrieves all policy definitions from Neo4j with pagination
func (dao *PolicyDAO) ListPolicies(ctx context.Context, limit int, offset int) ([]*model.PolicyDefinition, error) {
	start := time.Now()
	logger.Info("Listing policies", zap.Int("limit", limit), zap.Int("offset", offset))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (p:POLICY)
    RETURN p
    ORDER BY p.createdAt ASC
    SKIP $offset
    LIMIT $limit
    `
	result, err := session.Run(query, map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	})
	if err != nil {
		logger.Error("Failed to execute list policies query",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to execute list policies query: %w", err)
	}

	var policies []*model.PolicyDefinition
	for result.Next() {
		node := result.Record().Values[0].(neo4j.Node)
		policy, err := mapNodeToPolicy(node)
		if err != nil {
			logger.Error("Failed to map policy node to struct",
				zap.Error(err),
				zap.Duration("duration", time.Since(start)))
			return nil, fmt.Errorf("failed to map policy node to struct: %w", err)
		}
		policies = append(policies, policy)
	}

	logger.Info("Policies listed successfully",
		zap.Int("count", len(policies)),
		zap.Duration("duration", time.Since(start)))

	return policies, nil
}

// SearchPolicies searches for policy definitions based on given criteria
func (dao *PolicyDAO) SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]*model.PolicyDefinition, error) {
	start := time.Now()
	logger.Info("Searching policies", zap.Any("criteria", criteria))

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	var queryBuilder strings.Builder
	queryBuilder.WriteString("MATCH (p:POLICY) WHERE 1=1")

	params := make(map[string]interface{})

	if criteria.Name != "" {
		queryBuilder.WriteString(" AND p.name = $name")
		params["name"] = criteria.Name
	}

	if criteria.Effect != "" {
		queryBuilder.WriteString(" AND p.effect = $effect")
		params["effect"] = criteria.Effect
	}

	if criteria.Active != nil {
		queryBuilder.WriteString(" AND p.active = $active")
		params["active"] = *criteria.Active
	}

	if !criteria.FromDate.IsZero() {
		queryBuilder.WriteString(" AND p.createdAt >= $fromDate")
		params["fromDate"] = criteria.FromDate.Format(time.RFC3339)
	}

	if !criteria.ToDate.IsZero() {
		queryBuilder.WriteString(" AND p.createdAt <= $toDate")
		params["toDate"] = criteria.ToDate.Format(time.RFC3339)
	}

	queryBuilder.WriteString(" RETURN p ORDER BY p.createdAt ASC")

	if criteria.Limit > 0 {
		queryBuilder.WriteString(" LIMIT $limit")
		params["limit"] = criteria.Limit
	}

	result, err := session.Run(queryBuilder.String(), params)
	if err != nil {
		logger.Error("Failed to execute search policies query",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to execute search policies query: %w", err)
	}

	var policies []*model.PolicyDefinition
	for result.Next() {
		node := result.Record().Values[0].(neo4j.Node)
		policy, err := mapNodeToPolicy(node)
		if err != nil {
			logger.Error("Failed to map policy node to struct",
				zap.Error(err),
				zap.Duration("duration", time.Since(start)))
			return nil, fmt.Errorf("failed to map policy node to struct: %w", err)
		}
		policies = append(policies, policy)
	}

	logger.Info("Policies searched successfully",
		zap.Int("count", len(policies)),
		zap.Duration("duration", time.Since(start)))

	return policies, nil
}

// policyProps serializes the nested parts of a definition into JSON node
// properties.
func policyProps(policy model.PolicyDefinition, now time.Time) map[string]interface{} {
	subjectsJSON, _ := json.Marshal(policy.Subjects)
	resourcesJSON, _ := json.Marshal(policy.Resources)
	actionsJSON, _ := json.Marshal(policy.Actions)
	conditionsJSON, _ := json.Marshal(policy.Conditions)
	obligationsJSON, _ := json.Marshal(policy.Obligations)
	adviceJSON, _ := json.Marshal(policy.Advice)
	replacementJSON, _ := json.Marshal(policy.ResourceReplacement)

	return map[string]interface{}{
		"name":                policy.Name,
		"description":         policy.Description,
		"effect":              policy.Effect,
		"version":             policy.Version,
		"createdAt":           now.Format(time.RFC3339),
		"updatedAt":           now.Format(time.RFC3339),
		"active":              policy.Active,
		"subjects":            string(subjectsJSON),
		"resources":           string(resourcesJSON),
		"actions":             string(actionsJSON),
		"conditions":          string(conditionsJSON),
		"obligations":         string(obligationsJSON),
		"advice":              string(adviceJSON),
		"resourceReplacement": string(replacementJSON),
	}
}

// Helper function to map Neo4j Node to PolicyDefinition struct
func mapNodeToPolicy(node neo4j.Node) (*model.PolicyDefinition, error) {
	props := node.Props
	policy := &model.PolicyDefinition{}

	if id, ok := props["id"].(string); ok {
		policy.ID = id
	} else {
		return nil, fmt.Errorf("failed to assert type for policy ID: %v", props["id"])
	}

	if name, ok := props["name"].(string); ok {
		policy.Name = name
	} else {
		return nil, fmt.Errorf("failed to assert type for policy name: %v", props["name"])
	}

	if description, ok := props["description"].(string); ok {
		policy.Description = description
	}

	if effect, ok := props["effect"].(string); ok {
		policy.Effect = effect
	} else {
		return nil, fmt.Errorf("failed to assert type for policy effect: %v", props["effect"])
	}

	if version, ok := props["version"].(int64); ok {
		policy.Version = int(version)
	}

	if createdAt, ok := props["createdAt"].(string); ok {
		policy.CreatedAt = parseTime(createdAt)
	}

	if updatedAt, ok := props["updatedAt"].(string); ok {
		policy.UpdatedAt = parseTime(updatedAt)
	}

	if active, ok := props["active"].(bool); ok {
		policy.Active = active
	}

	if err := unmarshalProp(props, "subjects", &policy.Subjects); err != nil {
		return nil, err
	}
	if err := unmarshalProp(props, "resources", &policy.Resources); err != nil {
		return nil, err
	}
	if err := unmarshalProp(props, "actions", &policy.Actions); err != nil {
		return nil, err
	}
	if err := unmarshalProp(props, "conditions", &policy.Conditions); err != nil {
		return nil, err
	}
	if err := unmarshalProp(props, "obligations", &policy.Obligations); err != nil {
		return nil, err
	}
	if err := unmarshalProp(props, "advice", &policy.Advice); err != nil {
		return nil, err
	}
	if err := unmarshalProp(props, "resourceReplacement", &policy.ResourceReplacement); err != nil {
		return nil, err
	}

	return policy, nil
}

func unmarshalProp(props map[string]interface{}, key string, target interface{}) error {
	raw, ok := props[key].(string)
	if !ok || raw == "" || raw == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("failed to unmarshal policy %s: %w", key, err)
	}
	return nil
}

// Helper function to parse time
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
