package bulk

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence/memory"
	"github.com/ruleflowhq/ruleflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecordStore is an in-memory CRM data layer used to observe what the
// executor actually writes.
type fakeRecordStore struct {
	records   map[string]models.BulkRecord
	failApply map[string]error
	applied   []string
	restored  []string
}

func newFakeRecordStore(records ...models.BulkRecord) *fakeRecordStore {
	store := &fakeRecordStore{
		records:   make(map[string]models.BulkRecord),
		failApply: make(map[string]error),
	}

	for _, record := range records {
		store.records[record.ID] = record
	}

	return store
}

func (s *fakeRecordStore) Current(_ context.Context, recordID string) (models.BulkRecord, error) {
	record, ok := s.records[recordID]
	if !ok {
		return models.BulkRecord{}, errors.New("record not found")
	}

	return record, nil
}

func (s *fakeRecordStore) ApplyChange(_ context.Context, change models.RecordChange) error {
	if err := s.failApply[change.RecordID]; err != nil {
		return err
	}

	record := s.records[change.RecordID]
	record.Fields = change.After
	record.Version++
	record.UpdatedAt = time.Now().UTC()
	s.records[change.RecordID] = record
	s.applied = append(s.applied, change.RecordID)

	return nil
}

func (s *fakeRecordStore) RestoreSnapshot(_ context.Context, checkpoint models.RollbackCheckpoint) error {
	record := s.records[checkpoint.RecordID]
	record.Fields = checkpoint.Snapshot
	s.records[checkpoint.RecordID] = record
	s.restored = append(s.restored, checkpoint.RecordID)

	return nil
}

func newTestExecutor(t *testing.T, store *fakeRecordStore) *Executor {
	t.Helper()

	return NewExecutor(slog.Default(), store, memory.NewPersistence())
}

func threeLeads(store *fakeRecordStore) []models.BulkRecord {
	records := make([]models.BulkRecord, 0, 3)

	for _, id := range []string{"lead-1", "lead-2", "lead-3"} {
		record := testutil.CreateTestBulkRecord(func(r *models.BulkRecord) {
			r.ID = id
			r.Fields = map[string]any{"id": id, "stage": "new", "name": "Lead " + id}
		})
		store.records[id] = record
		records = append(records, record)
	}

	return records
}

func TestDryRun_PreviewsWithoutWriting(t *testing.T) {
	store := newFakeRecordStore()
	executor := newTestExecutor(t, store)
	records := threeLeads(store)

	result, err := executor.DryRun(context.Background(), "auto-1", records,
		FieldPatch(map[string]any{"stage": "qualified"}))
	require.NoError(t, err)

	assert.True(t, result.CanProceed)
	assert.Equal(t, 3, result.WouldAffectRecords)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Changes, 3)

	for _, change := range result.Changes {
		assert.Equal(t, "new", change.Before["stage"])
		assert.Equal(t, "qualified", change.After["stage"])
	}

	require.Len(t, result.SafetyChecks, 4)

	for _, check := range result.SafetyChecks {
		assert.Equal(t, models.CheckStatusPassed, check.Status, string(check.CheckType))
	}

	// Dry-run never writes.
	assert.Empty(t, store.applied)

	for _, record := range records {
		assert.Equal(t, "new", store.records[record.ID].Fields["stage"])
	}
}

func TestDryRun_ValidationFailureBlocks(t *testing.T) {
	store := newFakeRecordStore()
	executor := newTestExecutor(t, store)
	records := threeLeads(store)

	result, err := executor.DryRun(context.Background(), "auto-1", records,
		FieldPatch(map[string]any{"id": "hijacked"}))
	require.NoError(t, err)

	assert.False(t, result.CanProceed)
	assert.Equal(t, 0, result.WouldAffectRecords)

	var validation *models.AutomationSafetyCheck

	for i := range result.SafetyChecks {
		if result.SafetyChecks[i].CheckType == models.CheckValidation {
			validation = &result.SafetyChecks[i]
		}
	}

	require.NotNil(t, validation)
	assert.Equal(t, models.CheckStatusFailed, validation.Status)
}

func TestDryRun_ConflictWarnsWithoutBlockingChecks(t *testing.T) {
	store := newFakeRecordStore()
	executor := newTestExecutor(t, store)
	records := threeLeads(store)

	// lead-2 was edited after selection.
	stale := records[1]
	current := store.records[stale.ID]
	current.Version = stale.Version + 1
	store.records[stale.ID] = current

	result, err := executor.DryRun(context.Background(), "auto-1", records,
		FieldPatch(map[string]any{"stage": "qualified"}))
	require.NoError(t, err)

	assert.False(t, result.CanProceed, "conflicts block proceeding")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "lead-2")

	for _, check := range result.SafetyChecks {
		if check.CheckType == models.CheckConflictDetection {
			assert.Equal(t, models.CheckStatusWarning, check.Status)
		} else {
			assert.Equal(t, models.CheckStatusPassed, check.Status)
		}
	}
}

func TestExecuteWithRollback_Commits(t *testing.T) {
	store := newFakeRecordStore()
	executor := newTestExecutor(t, store)
	records := threeLeads(store)

	transaction, err := executor.ExecuteWithRollback(context.Background(), "auto-1", records,
		FieldPatch(map[string]any{"stage": "qualified"}))
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusCompleted, transaction.Status)
	assert.True(t, transaction.Terminal())
	assert.Equal(t, 3, transaction.RecordsAffected)
	assert.Len(t, transaction.Changes, 3)
	assert.Len(t, transaction.RollbackCheckpoints, 3)
	require.NotNil(t, transaction.FinishedAt)

	for _, record := range records {
		assert.Equal(t, "qualified", store.records[record.ID].Fields["stage"])
	}

	stored, err := executor.Transaction(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, stored.Status)
}

func TestExecuteWithRollback_ValidationAbortsEverything(t *testing.T) {
	store := newFakeRecordStore()
	executor := newTestExecutor(t, store)
	records := threeLeads(store)

	// Record 2's transform attempts to change the identifier.
	transform := func(fields map[string]any) (map[string]any, error) {
		after, err := models.CloneFields(fields)
		if err != nil {
			return nil, err
		}

		after["stage"] = "qualified"
		if after["id"] == "lead-2" {
			after["id"] = "lead-2-hijacked"
		}

		return after, nil
	}

	transaction, err := executor.ExecuteWithRollback(context.Background(), "auto-1", records, transform)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	assert.Equal(t, models.TransactionStatusRolledBack, transaction.Status)
	assert.Contains(t, transaction.RollbackReason, "id")
	assert.Equal(t, 0, transaction.RecordsAffected)

	// Records 1 and 3 were never persisted.
	assert.Empty(t, store.applied)

	for _, record := range records {
		assert.Equal(t, "new", store.records[record.ID].Fields["stage"])
	}
}

func TestExecuteWithRollback_CancellationRollsBack(t *testing.T) {
	store := newFakeRecordStore()
	executor := newTestExecutor(t, store)
	records := threeLeads(store)

	ctx, cancel := context.WithCancel(context.Background())

	// The caller gives up while the first record is being transformed.
	transform := func(fields map[string]any) (map[string]any, error) {
		cancel()

		return FieldPatch(map[string]any{"stage": "qualified"})(fields)
	}

	transaction, err := executor.ExecuteWithRollback(ctx, "auto-1", records, transform)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, models.TransactionStatusRolledBack, transaction.Status)
	assert.Equal(t, context.Canceled.Error(), transaction.RollbackReason)
	assert.Equal(t, 0, transaction.RecordsAffected)

	// Nothing reached the record store.
	assert.Empty(t, store.applied)

	for _, record := range records {
		assert.Equal(t, "new", store.records[record.ID].Fields["stage"])
	}
}

func TestExecuteWithRollback_CommitFailureRestores(t *testing.T) {
	store := newFakeRecordStore()
	executor := newTestExecutor(t, store)
	records := threeLeads(store)

	store.failApply["lead-3"] = errors.New("storage unavailable")

	transaction, err := executor.ExecuteWithRollback(context.Background(), "auto-1", records,
		FieldPatch(map[string]any{"stage": "qualified"}))
	require.Error(t, err)

	assert.Equal(t, models.TransactionStatusRolledBack, transaction.Status)
	assert.Equal(t, []string{"lead-2", "lead-1"}, store.restored, "restores run newest first")

	for _, record := range records {
		assert.Equal(t, "new", store.records[record.ID].Fields["stage"])
	}
}

func TestRollbackTransaction_RevertsAndIsIdempotent(t *testing.T) {
	store := newFakeRecordStore()
	executor := newTestExecutor(t, store)
	records := threeLeads(store)
	ctx := context.Background()

	transaction, err := executor.ExecuteWithRollback(ctx, "auto-1", records,
		FieldPatch(map[string]any{"stage": "qualified"}))
	require.NoError(t, err)

	reverted, err := executor.RollbackTransaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.True(t, reverted)

	for _, record := range records {
		assert.Equal(t, "new", store.records[record.ID].Fields["stage"])
	}

	stored, err := executor.Transaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRolledBack, stored.Status)
	assert.Len(t, stored.Changes, 3, "rollback leaves the audit trail unchanged")

	// Second rollback is a no-op.
	reverted, err = executor.RollbackTransaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.False(t, reverted)

	stored, err = executor.Transaction(ctx, transaction.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Changes, 3)
	assert.Equal(t, 3, stored.RecordsAffected)
}

func TestExecuteWithRollback_ConflictPolicies(t *testing.T) {
	ctx := context.Background()

	conflicted := func(store *fakeRecordStore) []models.BulkRecord {
		records := threeLeads(store)
		current := store.records["lead-2"]
		current.Version = records[1].Version + 1
		current.Fields = map[string]any{
			"id": "lead-2", "stage": "contacted", "name": "Manually Renamed",
		}
		store.records["lead-2"] = current

		return records
	}

	t.Run("fail policy aborts the transaction", func(t *testing.T) {
		store := newFakeRecordStore()
		executor := newTestExecutor(t, store)
		records := conflicted(store)

		transaction, err := executor.ExecuteWithRollback(ctx, "auto-1", records,
			FieldPatch(map[string]any{"stage": "qualified"}))
		require.Error(t, err)
		assert.True(t, IsConflictError(err))
		assert.Equal(t, models.TransactionStatusRolledBack, transaction.Status)
		assert.Empty(t, store.applied)
	})

	t.Run("skip policy leaves the record untouched", func(t *testing.T) {
		store := newFakeRecordStore()
		executor := newTestExecutor(t, store).WithResolution(models.ResolutionSkip)
		records := conflicted(store)

		transaction, err := executor.ExecuteWithRollback(ctx, "auto-1", records,
			FieldPatch(map[string]any{"stage": "qualified"}))
		require.NoError(t, err)

		assert.Equal(t, models.TransactionStatusCompleted, transaction.Status)
		assert.Equal(t, 2, transaction.RecordsAffected)
		assert.Len(t, transaction.RollbackCheckpoints, 2)
		assert.Equal(t, "contacted", store.records["lead-2"].Fields["stage"])
	})

	t.Run("overwrite policy discards the manual edit", func(t *testing.T) {
		store := newFakeRecordStore()
		executor := newTestExecutor(t, store).WithResolution(models.ResolutionOverwrite)
		records := conflicted(store)

		_, err := executor.ExecuteWithRollback(ctx, "auto-1", records,
			FieldPatch(map[string]any{"stage": "qualified"}))
		require.NoError(t, err)

		fields := store.records["lead-2"].Fields
		assert.Equal(t, "qualified", fields["stage"])
		assert.Equal(t, "Lead lead-2", fields["name"], "manual rename is lost")
	})

	t.Run("merge policy keeps untouched manual fields", func(t *testing.T) {
		store := newFakeRecordStore()
		executor := newTestExecutor(t, store).WithResolution(models.ResolutionMerge)
		records := conflicted(store)

		_, err := executor.ExecuteWithRollback(ctx, "auto-1", records,
			FieldPatch(map[string]any{"stage": "qualified"}))
		require.NoError(t, err)

		fields := store.records["lead-2"].Fields
		assert.Equal(t, "qualified", fields["stage"], "automation wins on touched fields")
		assert.Equal(t, "Manually Renamed", fields["name"], "manual edit survives elsewhere")
	})
}

func TestDetector_DetectConflict(t *testing.T) {
	store := newFakeRecordStore()
	detector := NewDetector(store)
	ctx := context.Background()

	record := testutil.CreateTestBulkRecord(func(r *models.BulkRecord) {
		r.ID = "lead-1"
		r.Version = 3
	})
	store.records[record.ID] = record

	conflict, err := detector.DetectConflict(ctx, record)
	require.NoError(t, err)
	assert.False(t, conflict)

	bumped := record
	bumped.Version = 4
	store.records[record.ID] = bumped

	conflict, err = detector.DetectConflict(ctx, record)
	require.NoError(t, err)
	assert.True(t, conflict)
}

func TestDetector_DetectConflict_UpdatedAtFallback(t *testing.T) {
	store := newFakeRecordStore()
	detector := NewDetector(store)
	ctx := context.Background()

	selectedAt := time.Now().UTC()
	record := testutil.CreateTestBulkRecord(func(r *models.BulkRecord) {
		r.ID = "lead-1"
		r.Version = 0
		r.UpdatedAt = selectedAt
	})
	store.records[record.ID] = record

	conflict, err := detector.DetectConflict(ctx, record)
	require.NoError(t, err)
	assert.False(t, conflict)

	edited := record
	edited.UpdatedAt = selectedAt.Add(time.Minute)
	store.records[record.ID] = edited

	conflict, err = detector.DetectConflict(ctx, record)
	require.NoError(t, err)
	assert.True(t, conflict)
}

func TestRollbackTransaction_NotFound(t *testing.T) {
	store := newFakeRecordStore()
	executor := newTestExecutor(t, store)

	_, err := executor.RollbackTransaction(context.Background(), "missing")
	require.Error(t, err)
}
