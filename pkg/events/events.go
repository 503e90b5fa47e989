// Package events defines the event types exchanged with the CRM data layer
// and the audit/notification collaborator.
package events

import (
	"time"

	"github.com/ruleflowhq/ruleflow/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "ruleflow.events"                // Audit and notification events emitted by the engine
const RecordChangeTopic = "ruleflow.records"   // Record change events consumed from the CRM data layer

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Consumed from the CRM data layer.
	RecordChangedEvent EventType = "record.changed"

	// Emitted by the trigger path.
	RuleExecutedEvent EventType = "rule.executed"

	// Emitted by the bulk path.
	TransactionCompletedEvent  EventType = "transaction.completed"
	TransactionRolledBackEvent EventType = "transaction.rolled_back"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RecordChanged wraps the opaque record event that drives trigger dispatch.
type RecordChanged struct {
	BaseEvent

	Trigger models.TriggerType `json:"trigger"`
	Record  models.RecordEvent `json:"record"`
}

func (r RecordChanged) GetType() EventType {
	return RecordChangedEvent
}

// RuleExecuted mirrors one appended execution record for external
// log/notification consumers.
type RuleExecuted struct {
	BaseEvent

	Execution models.WorkflowExecution `json:"execution"`
}

func (r RuleExecuted) GetType() EventType {
	return RuleExecutedEvent
}

type TransactionCompleted struct {
	BaseEvent

	TransactionID   string `json:"transaction_id"`
	AutomationID    string `json:"automation_id"`
	RecordsAffected int    `json:"records_affected"`
}

func (t TransactionCompleted) GetType() EventType {
	return TransactionCompletedEvent
}

type TransactionRolledBack struct {
	BaseEvent

	TransactionID  string `json:"transaction_id"`
	AutomationID   string `json:"automation_id"`
	RollbackReason string `json:"rollback_reason"`
}

func (t TransactionRolledBack) GetType() EventType {
	return TransactionRolledBackEvent
}
