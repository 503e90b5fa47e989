// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/ruleflowhq/ruleflow/pkg/models"
)

// CreateTestRule creates a test WorkflowRule with default values that can be
// overridden.
func CreateTestRule(overrides ...func(*models.WorkflowRule)) *models.WorkflowRule {
	rule := &models.WorkflowRule{
		ID:      uuid.New().String(),
		Name:    "Test Rule",
		Enabled: true,
		Trigger: models.TriggerLeadCreated,
		Actions: []models.RuleAction{
			{Kind: "log", Params: map[string]any{"message": "test", "level": "info"}},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	for _, override := range overrides {
		override(rule)
	}

	return rule
}

// WithTrigger sets the rule trigger.
func WithTrigger(trigger models.TriggerType) func(*models.WorkflowRule) {
	return func(r *models.WorkflowRule) {
		r.Trigger = trigger
	}
}

// WithConditions sets the rule conditions.
func WithConditions(conditions ...models.WorkflowCondition) func(*models.WorkflowRule) {
	return func(r *models.WorkflowRule) {
		r.Conditions = conditions
	}
}

// WithActions sets the rule actions.
func WithActions(actions ...models.RuleAction) func(*models.WorkflowRule) {
	return func(r *models.WorkflowRule) {
		r.Actions = actions
	}
}

// WithName sets the rule name.
func WithName(name string) func(*models.WorkflowRule) {
	return func(r *models.WorkflowRule) {
		r.Name = name
	}
}

// WithEnabled sets the rule enabled status.
func WithEnabled(enabled bool) func(*models.WorkflowRule) {
	return func(r *models.WorkflowRule) {
		r.Enabled = enabled
	}
}

// CreateTestRecordEvent creates a record event with default lead fields.
func CreateTestRecordEvent(overrides ...func(*models.RecordEvent)) models.RecordEvent {
	event := models.RecordEvent{
		RecordID:   uuid.New().String(),
		RecordType: "lead",
		TenantID:   "tenant-1",
		Fields: map[string]any{
			"name":   "Ada Lovelace",
			"email":  "ada@example.com",
			"source": "webform",
		},
		Version:   1,
		UpdatedAt: time.Now().UTC(),
	}

	for _, override := range overrides {
		override(&event)
	}

	return event
}

// WithRecordFields replaces the event field map.
func WithRecordFields(fields map[string]any) func(*models.RecordEvent) {
	return func(e *models.RecordEvent) {
		e.Fields = fields
	}
}

// WithRecordType sets the record type.
func WithRecordType(recordType string) func(*models.RecordEvent) {
	return func(e *models.RecordEvent) {
		e.RecordType = recordType
	}
}

// CreateTestBulkRecord creates a bulk candidate record.
func CreateTestBulkRecord(overrides ...func(*models.BulkRecord)) models.BulkRecord {
	record := models.BulkRecord{
		ID:         uuid.New().String(),
		RecordType: "lead",
		Fields: map[string]any{
			"name":     "Grace Hopper",
			"owner_id": "user-1",
			"status":   "new",
		},
		Version:   1,
		UpdatedAt: time.Now().UTC(),
	}

	for _, override := range overrides {
		override(&record)
	}

	return record
}

// WithBulkFields replaces the bulk record field map.
func WithBulkFields(fields map[string]any) func(*models.BulkRecord) {
	return func(r *models.BulkRecord) {
		r.Fields = fields
	}
}
