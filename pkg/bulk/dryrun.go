package bulk

import (
	"context"
	"fmt"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DryRun previews a bulk transform over candidate records without mutating
// anything. It computes every record's before/after pair, runs the four
// safety checks, and reports whether the transform is safe to commit.
func (e *Executor) DryRun(
	ctx context.Context,
	automationID string,
	records []models.BulkRecord,
	transform Transform,
) (*models.DryRunResult, error) {
	if e.tracer != nil {
		var span trace.Span

		ctx, span = e.tracer.Start(ctx, "bulk.dry_run", trace.WithAttributes(
			attribute.String(otelhelper.AutomationIDKey, automationID),
			attribute.Int("ruleflow.records.count", len(records)),
		))
		defer span.End()
	}

	result := &models.DryRunResult{
		AutomationID: automationID,
		Changes:      make([]models.RecordChange, 0, len(records)),
		Warnings:     make([]string, 0),
	}

	var (
		snapshotFailures  []string
		validationErrors  []string
		conflictedRecords []string
	)

	for _, record := range records {
		before, err := models.CloneFields(record.Fields)
		if err != nil {
			snapshotFailures = append(snapshotFailures,
				fmt.Sprintf("record %s cannot be snapshotted: %v", record.ID, err))

			continue
		}

		conflict, err := e.detector.DetectConflict(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("conflict detection failed for record %s: %w", record.ID, err)
		}

		if conflict {
			conflictedRecords = append(conflictedRecords, record.ID)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("record %s may have been modified since selection", record.ID))
		}

		after, err := transform(before)
		if err != nil {
			validationErrors = append(validationErrors,
				fmt.Sprintf("record %s: transform failed: %v", record.ID, err))

			continue
		}

		if err := validateChange(record, before, after); err != nil {
			validationErrors = append(validationErrors, err.Error())

			continue
		}

		result.Changes = append(result.Changes, models.RecordChange{
			RecordID:   record.ID,
			RecordType: record.RecordType,
			Before:     before,
			After:      after,
		})
	}

	result.WouldAffectRecords = len(result.Changes)
	result.SafetyChecks = buildSafetyChecks(
		automationID, snapshotFailures, validationErrors, conflictedRecords)

	failed := false

	for _, check := range result.SafetyChecks {
		if check.Status == models.CheckStatusFailed {
			failed = true
		}
	}

	result.CanProceed = !failed && len(conflictedRecords) == 0

	e.logger.Info("Dry-run complete",
		"automation_id", automationID,
		"would_affect", result.WouldAffectRecords,
		"can_proceed", result.CanProceed,
		"warnings", len(result.Warnings))

	return result, nil
}

func buildSafetyChecks(
	automationID string,
	snapshotFailures, validationErrors, conflictedRecords []string,
) []models.AutomationSafetyCheck {
	rollback := models.AutomationSafetyCheck{
		ID:           generateCheckID(),
		AutomationID: automationID,
		CheckType:    models.CheckRollbackReadiness,
		Status:       models.CheckStatusPassed,
		Message:      "all records can be snapshotted for rollback",
	}
	if len(snapshotFailures) > 0 {
		rollback.Status = models.CheckStatusFailed
		rollback.Message = fmt.Sprintf("%d record(s) cannot be snapshotted: %s",
			len(snapshotFailures), snapshotFailures[0])
	}

	conflict := models.AutomationSafetyCheck{
		ID:           generateCheckID(),
		AutomationID: automationID,
		CheckType:    models.CheckConflictDetection,
		Status:       models.CheckStatusPassed,
		Message:      "no concurrent modifications detected",
	}
	if len(conflictedRecords) > 0 {
		conflict.Status = models.CheckStatusWarning
		conflict.Message = fmt.Sprintf("%d record(s) may have concurrent modifications",
			len(conflictedRecords))
	}

	validation := models.AutomationSafetyCheck{
		ID:           generateCheckID(),
		AutomationID: automationID,
		CheckType:    models.CheckValidation,
		Status:       models.CheckStatusPassed,
		Message:      "all records pass structural validation",
	}
	if len(validationErrors) > 0 {
		validation.Status = models.CheckStatusFailed
		validation.Message = fmt.Sprintf("%d record(s) failed validation: %s",
			len(validationErrors), validationErrors[0])
	}

	// Transforms are pure field mutations; this check is reserved for
	// flagging irreversible external effects.
	sideEffect := models.AutomationSafetyCheck{
		ID:           generateCheckID(),
		AutomationID: automationID,
		CheckType:    models.CheckSideEffect,
		Status:       models.CheckStatusPassed,
		Message:      "transform is a pure data change",
	}

	return []models.AutomationSafetyCheck{rollback, conflict, validation, sideEffect}
}
