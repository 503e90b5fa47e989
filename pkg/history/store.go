// Package history exposes the append-only execution audit log and its
// aggregate statistics.
package history

import (
	"context"
	"fmt"
	"math"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
)

// DefaultPageSize bounds GetExecutionHistory when the caller passes no limit.
const DefaultPageSize = 50

// Store is the engine-facing facade over the execution repository. The
// backing repository keeps the log bounded and safe for concurrent
// append/read.
type Store struct {
	repository persistence.ExecutionRepository
}

func NewStore(repository persistence.ExecutionRepository) *Store {
	return &Store{repository: repository}
}

// Append records one rule firing. Records are never updated or removed.
func (s *Store) Append(ctx context.Context, execution *models.WorkflowExecution) error {
	err := s.repository.AppendExecution(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to append execution %s: %w", execution.ID, err)
	}

	return nil
}

// GetExecutionHistory returns the most recent executions, newest first.
func (s *Store) GetExecutionHistory(ctx context.Context, limit int) ([]*models.WorkflowExecution, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	return s.repository.Executions(ctx, limit)
}

// GetExecutionStats aggregates outcomes across the retained history.
func (s *Store) GetExecutionStats(ctx context.Context) (models.ExecutionStats, error) {
	counts, err := s.repository.CountExecutionsByStatus(ctx)
	if err != nil {
		return models.ExecutionStats{}, fmt.Errorf("failed to count executions: %w", err)
	}

	stats := models.ExecutionStats{
		Successful: counts[models.ExecutionStatusSuccess],
		Failed:     counts[models.ExecutionStatusFailed],
		Skipped:    counts[models.ExecutionStatusSkipped],
	}
	stats.Total = stats.Successful + stats.Failed + stats.Skipped

	if stats.Total > 0 {
		rate := float64(stats.Successful) / float64(stats.Total) * 100
		stats.SuccessRate = math.Round(rate*10) / 10
	}

	return stats, nil
}
