// Package postgresql provides a PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
	"github.com/ruleflowhq/ruleflow/pkg/persistence/sqlbase"
)

var migrations = map[int]string{
	1: `
		CREATE TABLE IF NOT EXISTS rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			trigger_type TEXT NOT NULL,
			conditions JSONB NOT NULL DEFAULT '[]',
			actions JSONB NOT NULL DEFAULT '[]',
			execution_count BIGINT NOT NULL DEFAULT 0,
			last_executed_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_rules_trigger ON rules (trigger_type) WHERE enabled;

		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL,
			rule_name TEXT NOT NULL,
			triggered_by TEXT NOT NULL,
			triggered_at TIMESTAMP WITH TIME ZONE NOT NULL,
			record_id TEXT NOT NULL,
			record_type TEXT NOT NULL,
			status TEXT NOT NULL,
			actions_executed INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ns BIGINT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_executions_triggered_at ON executions (triggered_at DESC);

		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			automation_id TEXT NOT NULL,
			body JSONB NOT NULL
		);
	`,
}

type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := sqlbase.NewMigrationManager(logger, db, migrations)

	err = migrator.RunMigrations(ctx)
	if err != nil {
		return nil, err
	}

	return &Persistence{db: db, logger: logger}, nil
}

func (p *Persistence) Rules(ctx context.Context) ([]*models.WorkflowRule, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , enabled
		  , trigger_type
		  , conditions
		  , actions
		  , execution_count
		  , last_executed_at
		  , created_at
		  , updated_at
		FROM rules
		ORDER BY created_at ASC, id ASC
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	rules := make([]*models.WorkflowRule, 0)

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}

		rules = append(rules, rule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

func (p *Persistence) RuleByID(ctx context.Context, id string) (*models.WorkflowRule, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , enabled
		  , trigger_type
		  , conditions
		  , actions
		  , execution_count
		  , last_executed_at
		  , created_at
		  , updated_at
		FROM rules
		WHERE id = $1
	`

	rule, err := scanRule(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewRuleError("RuleByID", id, persistence.ErrRuleNotFound)
	}

	if err != nil {
		return nil, err
	}

	return rule, nil
}

func (p *Persistence) SaveRule(ctx context.Context, rule *models.WorkflowRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	query := `
		INSERT INTO rules (
			id, name, description, enabled, trigger_type, conditions, actions,
			execution_count, last_executed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			enabled = EXCLUDED.enabled,
			trigger_type = EXCLUDED.trigger_type,
			conditions = EXCLUDED.conditions,
			actions = EXCLUDED.actions,
			execution_count = EXCLUDED.execution_count,
			last_executed_at = EXCLUDED.last_executed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = p.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.Description, rule.Enabled, rule.Trigger,
		conditions, actions, rule.ExecutionCount, rule.LastExecutedAt,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRuleError("SaveRule", rule.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteRule(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM rules WHERE id = $1", id)
	if err != nil {
		return persistence.NewRuleError("DeleteRule", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRuleError("DeleteRule", id, err)
	}

	if affected == 0 {
		return persistence.NewRuleError("DeleteRule", id, persistence.ErrRuleNotFound)
	}

	return nil
}

func (p *Persistence) AppendExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	query := `
		INSERT INTO executions (
			id, rule_id, rule_name, triggered_by, triggered_at, record_id,
			record_type, status, actions_executed, error, duration_ns
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := p.db.ExecContext(ctx, query,
		execution.ID, execution.RuleID, execution.RuleName, execution.TriggeredBy,
		execution.TriggeredAt, execution.RecordID, execution.RecordType,
		execution.Status, execution.ActionsExecuted, execution.Error,
		execution.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to append execution %s: %w", execution.ID, err)
	}

	return nil
}

func (p *Persistence) Executions(ctx context.Context, limit int) ([]*models.WorkflowExecution, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT
			id, rule_id, rule_name, triggered_by, triggered_at, record_id,
			record_type, status, actions_executed, error, duration_ns
		FROM executions
		ORDER BY triggered_at DESC
		LIMIT $1
	`

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		var (
			execution  models.WorkflowExecution
			durationNs int64
		)

		err = rows.Scan(
			&execution.ID, &execution.RuleID, &execution.RuleName,
			&execution.TriggeredBy, &execution.TriggeredAt, &execution.RecordID,
			&execution.RecordType, &execution.Status, &execution.ActionsExecuted,
			&execution.Error, &durationNs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		execution.Duration = time.Duration(durationNs)
		executions = append(executions, &execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (p *Persistence) CountExecutionsByStatus(ctx context.Context) (map[models.ExecutionStatus]int, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM executions GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	counts := make(map[models.ExecutionStatus]int)

	for rows.Next() {
		var (
			status models.ExecutionStatus
			count  int
		)

		err = rows.Scan(&status, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}

		counts[status] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

func (p *Persistence) SaveTransaction(ctx context.Context, transaction *models.ExecutionTransaction) error {
	body, err := json.Marshal(transaction)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction %s: %w", transaction.ID, err)
	}

	query := `
		INSERT INTO transactions (id, automation_id, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body
	`

	_, err = p.db.ExecContext(ctx, query, transaction.ID, transaction.AutomationID, body)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", transaction.ID, err)
	}

	return nil
}

func (p *Persistence) TransactionByID(ctx context.Context, id string) (*models.ExecutionTransaction, error) {
	var body []byte

	err := p.db.QueryRowContext(ctx, "SELECT body FROM transactions WHERE id = $1", id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrTransactionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", id, err)
	}

	var transaction models.ExecutionTransaction

	err = json.Unmarshal(body, &transaction)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction %s: %w", id, err)
	}

	return &transaction, nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*models.WorkflowRule, error) {
	var (
		rule       models.WorkflowRule
		conditions []byte
		actions    []byte
		lastRun    sql.NullTime
	)

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Enabled, &rule.Trigger,
		&conditions, &actions, &rule.ExecutionCount, &lastRun,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	err = json.Unmarshal(conditions, &rule.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}

	err = json.Unmarshal(actions, &rule.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	if lastRun.Valid {
		rule.LastExecutedAt = &lastRun.Time
	}

	return &rule, nil
}
