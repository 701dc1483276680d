// api/model/policy.go
package model

import (
	"time"
)

// PolicyDefinition is the stored form of a policy document. Definitions are
// persisted in neo4j and compiled into voters when a configuration is
// loaded or changed.
type PolicyDefinition struct {
	ID                  string                   `json:"id"`
	Name                string                   `json:"name"`
	Description         string                   `json:"description"`
	Effect              string                   `json:"effect"` // "permit" or "deny"
	Subjects            []SubjectMatcher         `json:"subjects"`
	Resources           []ResourceMatcher        `json:"resources"`
	Actions             []string                 `json:"actions"`
	Conditions          []Condition              `json:"conditions"`
	Obligations         []map[string]interface{} `json:"obligations,omitempty"`
	Advice              []map[string]interface{} `json:"advice,omitempty"`
	ResourceReplacement map[string]interface{}   `json:"resource_replacement,omitempty"`
	Version             int                      `json:"version"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
	Active              bool                     `json:"active"`
}

// SubjectMatcher selects the subjects a policy applies to. Empty fields
// match anything.
type SubjectMatcher struct {
	Type       string            `json:"type,omitempty"` // e.g. "user", "role", "group"
	ID         string            `json:"id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ResourceMatcher selects the resources a policy governs.
type ResourceMatcher struct {
	Type       string            `json:"type,omitempty"` // e.g. "file", "database", "api"
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Condition is a single clause of a policy body. Static conditions read
// from the subscription; dynamic conditions read a live attribute from the
// attribute bus and make the compiled document streaming.
type Condition struct {
	Attribute     string        `json:"attribute"`
	Operator      string        `json:"operator"`
	Value         interface{}   `json:"value"`
	SubConditions *ConditionSet `json:"sub_conditions,omitempty"`
	IsDynamic     bool          `json:"is_dynamic"`
}

type ConditionSet struct {
	Operator   string      `json:"operator"` // "AND" or "OR"
	Conditions []Condition `json:"conditions"`
}

type PolicySearchCriteria struct {
	Name     string    `json:"name,omitempty"`
	Effect   string    `json:"effect,omitempty"`
	Active   *bool     `json:"active,omitempty"`
	FromDate time.Time `json:"from_date,omitempty"`
	ToDate   time.Time `json:"to_date,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}

// PDPConfiguration groups the active policy definitions with the combining
// algorithm expression that governs them.
type PDPConfiguration struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Algorithm string             `json:"algorithm"`
	Policies  []PolicyDefinition `json:"policies"`
	UpdatedAt time.Time          `json:"updated_at"`
}
