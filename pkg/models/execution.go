package models

import "time"

// ExecutionStatus is the outcome of a single rule firing.
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusSkipped ExecutionStatus = "skipped"
)

// WorkflowExecution is one append-only audit record of a rule firing.
// RuleName is snapshotted so history survives rule deletion.
type WorkflowExecution struct {
	ID              string          `json:"id"`
	RuleID          string          `json:"rule_id"`
	RuleName        string          `json:"rule_name"`
	TriggeredBy     TriggerType     `json:"triggered_by"`
	TriggeredAt     time.Time       `json:"triggered_at"`
	RecordID        string          `json:"record_id"`
	RecordType      string          `json:"record_type"`
	Status          ExecutionStatus `json:"status"`
	ActionsExecuted int             `json:"actions_executed"`
	Error           string          `json:"error,omitempty"`
	Duration        time.Duration   `json:"duration"`
}

// ExecutionStats aggregates execution history outcomes.
type ExecutionStats struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	SuccessRate float64 `json:"success_rate"` // percentage, one decimal
}
