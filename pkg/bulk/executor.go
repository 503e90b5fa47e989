package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/ruleflowhq/ruleflow/pkg/events"
	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ExecuteWithRollback applies a bulk transform all-or-nothing. Records are
// processed strictly in input order: each record is checkpointed before its
// mutation is staged, and staged changes are committed only after every
// record validated. Any failure rolls the whole transaction back; no partial
// effect is externally visible.
func (e *Executor) ExecuteWithRollback(
	ctx context.Context,
	automationID string,
	records []models.BulkRecord,
	transform Transform,
) (*models.ExecutionTransaction, error) {
	transaction := &models.ExecutionTransaction{
		ID:                  generateTransactionID(),
		AutomationID:        automationID,
		Mode:                models.ModeRollbackSafe,
		Status:              models.TransactionStatusPending,
		Changes:             make([]models.RecordChange, 0, len(records)),
		RollbackCheckpoints: make([]models.RollbackCheckpoint, 0, len(records)),
		StartedAt:           time.Now().UTC(),
	}

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "bulk.execute_with_rollback", trace.WithAttributes(
			attribute.String(otelhelper.AutomationIDKey, automationID),
			attribute.String(otelhelper.TransactionIDKey, transaction.ID),
		))
		defer span.End()
	}

	if err := e.transactions.SaveTransaction(ctx, transaction); err != nil {
		return nil, fmt.Errorf("failed to open transaction: %w", err)
	}

	transaction.Status = models.TransactionStatusExecuting
	if err := e.transactions.SaveTransaction(ctx, transaction); err != nil {
		return nil, fmt.Errorf("failed to mark transaction executing: %w", err)
	}

	if err := e.stageChanges(ctx, transaction, records, transform); err != nil {
		e.finishRolledBack(ctx, transaction, err, span)

		return transaction, err
	}

	if err := e.commit(ctx, transaction); err != nil {
		e.finishRolledBack(ctx, transaction, err, span)

		return transaction, err
	}

	now := time.Now().UTC()
	transaction.Status = models.TransactionStatusCompleted
	transaction.FinishedAt = &now
	transaction.RecordsAffected = len(transaction.Changes)

	if err := e.transactions.SaveTransaction(ctx, transaction); err != nil {
		return nil, fmt.Errorf("failed to finalize transaction %s: %w", transaction.ID, err)
	}

	e.publishCompleted(ctx, transaction)

	e.logger.Info("Bulk transaction completed",
		"transaction_id", transaction.ID,
		"automation_id", automationID,
		"records_affected", transaction.RecordsAffected)

	return transaction, nil
}

// stageChanges runs the per-record loop without touching the record store.
// Checkpoints are appended strictly before the record's change is staged, so
// a later commit failure can always restore every record it already touched.
func (e *Executor) stageChanges(
	ctx context.Context,
	transaction *models.ExecutionTransaction,
	records []models.BulkRecord,
	transform Transform,
) error {
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := e.stageRecord(ctx, transaction, record, transform); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) stageRecord(
	ctx context.Context,
	transaction *models.ExecutionTransaction,
	record models.BulkRecord,
	transform Transform,
) error {
	conflict, err := e.detector.DetectConflict(ctx, record)
	if err != nil {
		return err
	}

	base := record.Fields

	intended, err := transform(record.Fields)
	if err != nil {
		return fmt.Errorf("record %s: transform failed: %w", record.ID, err)
	}

	if err := validateChange(record, record.Fields, intended); err != nil {
		return err
	}

	after := intended

	if conflict {
		current, err := e.store.Current(ctx, record.ID)
		if err != nil {
			return fmt.Errorf("failed to load current state of record %s: %w", record.ID, err)
		}

		automationChange := models.RecordChange{
			RecordID:   record.ID,
			RecordType: record.RecordType,
			Before:     record.Fields,
			After:      intended,
		}

		resolved, detection, err := e.detector.HandleConflict(
			record.ID, automationChange, current.Fields, e.resolution)
		if err != nil {
			return err
		}

		e.logger.Warn("Conflict resolved",
			"transaction_id", transaction.ID,
			"record_id", record.ID,
			"resolution", detection.Resolution)

		if resolved == nil {
			// Skipped: no checkpoint, no change, record untouched.
			return nil
		}

		// Checkpoint the actual stored state so rollback restores what
		// really preceded the transaction.
		base = current.Fields
		after = resolved
	}

	snapshot, err := models.CloneFields(base)
	if err != nil {
		return fmt.Errorf("record %s cannot be snapshotted: %w", record.ID, err)
	}

	transaction.RollbackCheckpoints = append(transaction.RollbackCheckpoints, models.RollbackCheckpoint{
		RecordID:  record.ID,
		Snapshot:  snapshot,
		CreatedAt: time.Now().UTC(),
	})

	transaction.Changes = append(transaction.Changes, models.RecordChange{
		RecordID:   record.ID,
		RecordType: record.RecordType,
		Before:     snapshot,
		After:      after,
	})

	return nil
}

// commit applies every staged change through the record store. A failure
// mid-commit restores the records already touched, newest first, before the
// transaction is marked rolled back.
func (e *Executor) commit(ctx context.Context, transaction *models.ExecutionTransaction) error {
	for i, change := range transaction.Changes {
		if err := e.store.ApplyChange(ctx, change); err != nil {
			e.restore(ctx, transaction, i)

			return fmt.Errorf("failed to apply change to record %s: %w", change.RecordID, err)
		}
	}

	return nil
}

// restore reverts the first applied changes of the transaction, newest
// first, using their checkpoints.
func (e *Executor) restore(ctx context.Context, transaction *models.ExecutionTransaction, applied int) {
	for i := applied - 1; i >= 0; i-- {
		if err := e.store.RestoreSnapshot(ctx, transaction.RollbackCheckpoints[i]); err != nil {
			e.logger.Error("Failed to restore record from checkpoint",
				"transaction_id", transaction.ID,
				"record_id", transaction.RollbackCheckpoints[i].RecordID,
				"error", err)
		}
	}
}

func (e *Executor) finishRolledBack(
	ctx context.Context,
	transaction *models.ExecutionTransaction,
	cause error,
	span trace.Span,
) {
	now := time.Now().UTC()
	transaction.Status = models.TransactionStatusRolledBack
	transaction.FinishedAt = &now
	transaction.Error = cause.Error()
	transaction.RollbackReason = cause.Error()
	transaction.RecordsAffected = 0

	if span != nil {
		otelhelper.SetError(span, cause,
			attribute.String(otelhelper.TransactionIDKey, transaction.ID))
	}

	if err := e.transactions.SaveTransaction(ctx, transaction); err != nil {
		e.logger.Error("Failed to save rolled back transaction",
			"transaction_id", transaction.ID, "error", err)
	}

	e.publishRolledBack(ctx, transaction)

	e.logger.Error("Bulk transaction rolled back",
		"transaction_id", transaction.ID,
		"automation_id", transaction.AutomationID,
		"reason", transaction.RollbackReason)
}

// RollbackTransaction explicitly reverts a completed transaction by
// restoring every checkpoint, newest first. It is idempotent: a transaction
// already rolled back returns false without error and is left unchanged.
func (e *Executor) RollbackTransaction(ctx context.Context, transactionID string) (bool, error) {
	transaction, err := e.transactions.TransactionByID(ctx, transactionID)
	if err != nil {
		return false, err
	}

	if transaction.Status == models.TransactionStatusRolledBack {
		return false, nil
	}

	if transaction.Status != models.TransactionStatusCompleted {
		return false, fmt.Errorf("%w: transaction %s is %s",
			ErrNotRevertible, transactionID, transaction.Status)
	}

	for i := len(transaction.RollbackCheckpoints) - 1; i >= 0; i-- {
		checkpoint := transaction.RollbackCheckpoints[i]
		if err := e.store.RestoreSnapshot(ctx, checkpoint); err != nil {
			return false, fmt.Errorf("failed to restore record %s: %w", checkpoint.RecordID, err)
		}
	}

	now := time.Now().UTC()
	transaction.Status = models.TransactionStatusRolledBack
	transaction.FinishedAt = &now
	transaction.RollbackReason = "explicit rollback requested"

	if err := e.transactions.SaveTransaction(ctx, transaction); err != nil {
		return false, fmt.Errorf("failed to save transaction %s: %w", transactionID, err)
	}

	e.publishRolledBack(ctx, transaction)

	e.logger.Info("Transaction explicitly rolled back", "transaction_id", transactionID)

	return true, nil
}

func (e *Executor) publishCompleted(ctx context.Context, transaction *models.ExecutionTransaction) {
	if e.publisher == nil {
		return
	}

	event := events.TransactionCompleted{
		BaseEvent: events.BaseEvent{
			ID:        transaction.ID,
			Type:      events.TransactionCompletedEvent,
			Timestamp: time.Now().UTC(),
		},
		TransactionID:   transaction.ID,
		AutomationID:    transaction.AutomationID,
		RecordsAffected: transaction.RecordsAffected,
	}

	if err := e.publisher.Publish(ctx, transaction.AutomationID, event); err != nil {
		e.logger.Error("Failed to publish transaction event",
			"transaction_id", transaction.ID, "error", err)
	}
}

func (e *Executor) publishRolledBack(ctx context.Context, transaction *models.ExecutionTransaction) {
	if e.publisher == nil {
		return
	}

	event := events.TransactionRolledBack{
		BaseEvent: events.BaseEvent{
			ID:        transaction.ID,
			Type:      events.TransactionRolledBackEvent,
			Timestamp: time.Now().UTC(),
		},
		TransactionID:  transaction.ID,
		AutomationID:   transaction.AutomationID,
		RollbackReason: transaction.RollbackReason,
	}

	if err := e.publisher.Publish(ctx, transaction.AutomationID, event); err != nil {
		e.logger.Error("Failed to publish transaction event",
			"transaction_id", transaction.ID, "error", err)
	}
}
