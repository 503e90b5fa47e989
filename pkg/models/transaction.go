package models

import "time"

// ExecutionMode selects how a bulk automation run applies its changes.
type ExecutionMode string

const (
	ModeDryRun       ExecutionMode = "dry_run"
	ModeRollbackSafe ExecutionMode = "rollback_safe"
	ModeNormal       ExecutionMode = "normal"
)

// TransactionStatus is the state machine of a bulk execution:
// pending -> executing -> completed | rolled_back | failed.
// Completed and rolled_back are terminal; a retry creates a new transaction.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusExecuting  TransactionStatus = "executing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusRolledBack TransactionStatus = "rolled_back"
	TransactionStatusFailed     TransactionStatus = "failed"
)

// RecordChange is one before/after pair produced by a bulk transform.
type RecordChange struct {
	RecordID   string         `json:"record_id"`
	RecordType string         `json:"record_type"`
	Before     map[string]any `json:"before"`
	After      map[string]any `json:"after"`
}

// RollbackCheckpoint is a pre-mutation deep snapshot of one record. A
// checkpoint must exist before that record's mutation is applied.
type RollbackCheckpoint struct {
	RecordID  string         `json:"record_id"`
	Snapshot  map[string]any `json:"snapshot"`
	CreatedAt time.Time      `json:"created_at"`
}

// ExecutionTransaction is the audit artifact of one bulk automation run.
type ExecutionTransaction struct {
	ID                  string               `json:"id"`
	AutomationID        string               `json:"automation_id"`
	Mode                ExecutionMode        `json:"mode"`
	Status              TransactionStatus    `json:"status"`
	RecordsAffected     int                  `json:"records_affected"`
	Changes             []RecordChange       `json:"changes"`
	RollbackCheckpoints []RollbackCheckpoint `json:"rollback_checkpoints"`
	Error               string               `json:"error,omitempty"`
	RollbackReason      string               `json:"rollback_reason,omitempty"`
	StartedAt           time.Time            `json:"started_at"`
	FinishedAt          *time.Time           `json:"finished_at,omitempty"`
}

// Terminal reports whether the transaction reached a final state.
func (t *ExecutionTransaction) Terminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusRolledBack, TransactionStatusFailed:
		return true
	default:
		return false
	}
}
