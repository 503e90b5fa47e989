package web

import "github.com/ruleflowhq/ruleflow/pkg/models"

// CreateRuleRequest is the rule definition payload. The identifier is
// generated server-side when omitted.
type CreateRuleRequest struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"        validate:"required,min=3"`
	Description string                     `json:"description"`
	Enabled     *bool                      `json:"enabled"`
	Trigger     models.TriggerType         `json:"trigger"     validate:"required"`
	Conditions  []models.WorkflowCondition `json:"conditions"`
	Actions     []models.RuleAction        `json:"actions"     validate:"required,min=1,dive"`
}

// BulkRequest carries the candidate records and the field patch of a bulk
// dry-run or execution.
type BulkRequest struct {
	Records []models.BulkRecord `json:"records" validate:"required,min=1,dive"`
	Patch   map[string]any      `json:"patch"   validate:"required"`
}

// ExecutionHistoryResponse wraps the paged execution log.
type ExecutionHistoryResponse struct {
	Executions []*models.WorkflowExecution `json:"executions"`
	Limit      int                         `json:"limit"`
}
