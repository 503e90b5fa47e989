// Package persistence provides the storage abstraction for rules, execution
// history, and bulk transactions. Implementations must keep history
// append-only and rule enable/disable atomic.
package persistence

import (
	"context"

	"github.com/ruleflowhq/ruleflow/pkg/models"
)

// RuleRepository stores workflow rule definitions. Rules returns rules in
// stable registration order so trigger dispatch stays deterministic.
type RuleRepository interface {
	Rules(ctx context.Context) ([]*models.WorkflowRule, error)
	RuleByID(ctx context.Context, id string) (*models.WorkflowRule, error)
	SaveRule(ctx context.Context, rule *models.WorkflowRule) error
	DeleteRule(ctx context.Context, id string) error
}

// ExecutionRepository is the append-only execution history log.
// Executions returns the most recent records first.
type ExecutionRepository interface {
	AppendExecution(ctx context.Context, execution *models.WorkflowExecution) error
	Executions(ctx context.Context, limit int) ([]*models.WorkflowExecution, error)
	CountExecutionsByStatus(ctx context.Context) (map[models.ExecutionStatus]int, error)
}

// TransactionRepository stores bulk execution transactions.
type TransactionRepository interface {
	SaveTransaction(ctx context.Context, transaction *models.ExecutionTransaction) error
	TransactionByID(ctx context.Context, id string) (*models.ExecutionTransaction, error)
}

// Persistence aggregates the repositories a deployment backs with one store.
type Persistence interface {
	RuleRepository
	ExecutionRepository
	TransactionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
