// Package models defines the core domain models for the CRM automation engine.
package models

import "time"

// TriggerType is the named event type a rule subscribes to.
type TriggerType string

const (
	TriggerLeadCreated      TriggerType = "lead_created"
	TriggerLeadUpdated      TriggerType = "lead_updated"
	TriggerContactCreated   TriggerType = "contact_created"
	TriggerDealCreated      TriggerType = "deal_created"
	TriggerDealStageChanged TriggerType = "deal_stage_changed"
	TriggerDealValueChanged TriggerType = "deal_value_changed"
	TriggerSchedule         TriggerType = "schedule"
)

// RuleAction is one effectful step executed when a rule matches.
type RuleAction struct {
	Kind   string         `json:"kind"   validate:"required"`
	Params map[string]any `json:"params"`
}

// WorkflowRule is a trigger -> condition -> action automation rule.
// Counters are mutated only by the engine; everything else only through
// explicit administrative operations.
type WorkflowRule struct {
	ID             string              `json:"id"          validate:"required"`
	Name           string              `json:"name"        validate:"required,min=3"`
	Description    string              `json:"description"`
	Enabled        bool                `json:"enabled"`
	Trigger        TriggerType         `json:"trigger"     validate:"required"`
	Conditions     []WorkflowCondition `json:"conditions"`
	Actions        []RuleAction        `json:"actions"     validate:"required,min=1,dive"`
	ExecutionCount int64               `json:"execution_count"`
	LastExecutedAt *time.Time          `json:"last_executed_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
