// Package bulk implements the safety layer for bulk automations: read-only
// dry-run previews, all-or-nothing transactional execution with per-record
// rollback checkpoints, and optimistic conflict detection against concurrent
// manual edits.
package bulk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ruleflowhq/ruleflow/pkg/eventbus"
	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
	"go.opentelemetry.io/otel/trace"
)

// Transform computes the post-change field values for one record from its
// current values. It must not mutate its input.
type Transform func(fields map[string]any) (map[string]any, error)

// FieldPatch builds a transform that overlays the given fields on top of the
// record's current values.
func FieldPatch(patch map[string]any) Transform {
	return func(fields map[string]any) (map[string]any, error) {
		after, err := models.CloneFields(fields)
		if err != nil {
			return nil, err
		}

		if after == nil {
			after = make(map[string]any, len(patch))
		}

		for key, value := range patch {
			after[key] = value
		}

		return after, nil
	}
}

// RecordStore is the CRM data layer boundary the executor commits through.
// The engine never renders or queries CRM data beyond this interface.
type RecordStore interface {
	// Current returns the record's stored state, used for conflict
	// detection and merge resolution.
	Current(ctx context.Context, recordID string) (models.BulkRecord, error)

	// ApplyChange persists one staged change.
	ApplyChange(ctx context.Context, change models.RecordChange) error

	// RestoreSnapshot reverts a record to its checkpointed state.
	RestoreSnapshot(ctx context.Context, checkpoint models.RollbackCheckpoint) error
}

// Executor runs bulk automations. Each transaction processes its records
// strictly sequentially; distinct transactions may run concurrently, sharing
// only the transaction repository.
type Executor struct {
	logger       *slog.Logger
	store        RecordStore
	transactions persistence.TransactionRepository
	detector     *Detector
	resolution   models.ConflictResolution

	publisher eventbus.EventPublisher
	tracer    trace.Tracer
}

func NewExecutor(
	logger *slog.Logger,
	store RecordStore,
	transactions persistence.TransactionRepository,
) *Executor {
	return &Executor{
		logger:       logger.With("module", "bulk"),
		store:        store,
		transactions: transactions,
		detector:     NewDetector(store),
		resolution:   models.ResolutionFail,
	}
}

// WithResolution sets the conflict resolution policy. The default is fail.
func (e *Executor) WithResolution(resolution models.ConflictResolution) *Executor {
	e.resolution = resolution

	return e
}

// WithPublisher attaches the audit event publisher.
func (e *Executor) WithPublisher(publisher eventbus.EventPublisher) *Executor {
	e.publisher = publisher

	return e
}

// WithTracer attaches the tracer used for transaction spans.
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	e.tracer = tracer

	return e
}

// Transaction returns a stored transaction by identifier.
func (e *Executor) Transaction(ctx context.Context, id string) (*models.ExecutionTransaction, error) {
	return e.transactions.TransactionByID(ctx, id)
}

func generateTransactionID() string {
	return fmt.Sprintf("txn-%s", uuid.New().String()[:8])
}

func generateCheckID() string {
	return fmt.Sprintf("check-%s", uuid.New().String()[:8])
}
