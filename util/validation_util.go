// api/util/validation_util.go

package util

import (
	"fmt"

	"github.com/dev-sgill/arbiter/api/model"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

var validOperators = map[string]bool{
	"eq":       true,
	"ne":       true,
	"gt":       true,
	"gte":      true,
	"lt":       true,
	"lte":      true,
	"in":       true,
	"contains": true,
}

func (v *ValidationUtil) ValidatePolicy(policy model.PolicyDefinition) error {
	if policy.Name == "" {
		return fmt.Errorf("policy name cannot be empty")
	}
	if policy.Effect != "permit" && policy.Effect != "deny" {
		return fmt.Errorf("policy effect must be either 'permit' or 'deny'")
	}
	if policy.Version < 0 {
		return fmt.Errorf("policy version cannot be negative")
	}
	for i, condition := range policy.Conditions {
		if err := v.validateCondition(condition); err != nil {
			return fmt.Errorf("invalid condition at index %d: %w", i, err)
		}
	}
	// Add more validation rules as needed
	return nil
}

func (v *ValidationUtil) validateCondition(condition model.Condition) error {
	if condition.SubConditions != nil {
		if condition.SubConditions.Operator != "AND" && condition.SubConditions.Operator != "OR" {
			return fmt.Errorf("sub-condition operator must be 'AND' or 'OR'")
		}
		for _, nested := range condition.SubConditions.Conditions {
			if err := v.validateCondition(nested); err != nil {
				return err
			}
		}
		return nil
	}
	if condition.Attribute == "" {
		return fmt.Errorf("condition attribute cannot be empty")
	}
	if !validOperators[condition.Operator] {
		return fmt.Errorf("unknown condition operator: %s", condition.Operator)
	}
	return nil
}

func (v *ValidationUtil) ValidateSubscription(sub pdpmodel.AuthorizationSubscription) error {
	if len(sub.Subject) == 0 {
		return fmt.Errorf("subscription subject cannot be empty")
	}
	if len(sub.Action) == 0 {
		return fmt.Errorf("subscription action cannot be empty")
	}
	if len(sub.Resource) == 0 {
		return fmt.Errorf("subscription resource cannot be empty")
	}
	// Add more validation rules as needed
	return nil
}

func (v *ValidationUtil) ValidateConfiguration(config model.PDPConfiguration) error {
	if config.ID == "" {
		return fmt.Errorf("configuration ID cannot be empty")
	}
	if config.Algorithm == "" {
		return fmt.Errorf("configuration algorithm cannot be empty")
	}
	return nil
}
