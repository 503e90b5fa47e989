// Package redis provides a Redis-backed persistence implementation. Rules
// and transactions live in hashes; the execution history is a capped list so
// it stays bounded no matter how busy the engine is.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"
	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
)

const (
	rulesKey        = "ruleflow:rules"
	executionsKey   = "ruleflow:executions"
	transactionsKey = "ruleflow:transactions"

	defaultHistoryLimit = 1000
)

type Persistence struct {
	client       goredis.UniversalClient
	historyLimit int64
}

func NewPersistence(url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Persistence{
		client:       goredis.NewClient(opts),
		historyLimit: defaultHistoryLimit,
	}, nil
}

// NewPersistenceWithClient wires an existing client, used by tests.
func NewPersistenceWithClient(client goredis.UniversalClient) *Persistence {
	return &Persistence{client: client, historyLimit: defaultHistoryLimit}
}

func (p *Persistence) Rules(ctx context.Context) ([]*models.WorkflowRule, error) {
	entries, err := p.client.HGetAll(ctx, rulesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	rules := make([]*models.WorkflowRule, 0, len(entries))

	for id, body := range entries {
		var rule models.WorkflowRule

		err = json.Unmarshal([]byte(body), &rule)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule %s: %w", id, err)
		}

		rules = append(rules, &rule)
	}

	// Hash iteration order is arbitrary; restore registration order.
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].ID < rules[j].ID
		}

		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})

	return rules, nil
}

func (p *Persistence) RuleByID(ctx context.Context, id string) (*models.WorkflowRule, error) {
	body, err := p.client.HGet(ctx, rulesKey, id).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, persistence.NewRuleError("RuleByID", id, persistence.ErrRuleNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch rule %s: %w", id, err)
	}

	var rule models.WorkflowRule

	err = json.Unmarshal([]byte(body), &rule)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule %s: %w", id, err)
	}

	return &rule, nil
}

func (p *Persistence) SaveRule(ctx context.Context, rule *models.WorkflowRule) error {
	body, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule %s: %w", rule.ID, err)
	}

	err = p.client.HSet(ctx, rulesKey, rule.ID, body).Err()
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteRule(ctx context.Context, id string) error {
	removed, err := p.client.HDel(ctx, rulesKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}

	if removed == 0 {
		return persistence.NewRuleError("DeleteRule", id, persistence.ErrRuleNotFound)
	}

	return nil
}

func (p *Persistence) AppendExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	body, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	pipe := p.client.TxPipeline()
	pipe.LPush(ctx, executionsKey, body)
	pipe.LTrim(ctx, executionsKey, 0, p.historyLimit-1)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append execution %s: %w", execution.ID, err)
	}

	return nil
}

func (p *Persistence) Executions(ctx context.Context, limit int) ([]*models.WorkflowExecution, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = p.historyLimit - 1
	}

	entries, err := p.client.LRange(ctx, executionsKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(entries))

	for _, body := range entries {
		var execution models.WorkflowExecution

		err = json.Unmarshal([]byte(body), &execution)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
		}

		executions = append(executions, &execution)
	}

	return executions, nil
}

func (p *Persistence) CountExecutionsByStatus(ctx context.Context) (map[models.ExecutionStatus]int, error) {
	executions, err := p.Executions(ctx, 0)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.ExecutionStatus]int)
	for _, execution := range executions {
		counts[execution.Status]++
	}

	return counts, nil
}

func (p *Persistence) SaveTransaction(ctx context.Context, transaction *models.ExecutionTransaction) error {
	body, err := json.Marshal(transaction)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction %s: %w", transaction.ID, err)
	}

	err = p.client.HSet(ctx, transactionsKey, transaction.ID, body).Err()
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", transaction.ID, err)
	}

	return nil
}

func (p *Persistence) TransactionByID(ctx context.Context, id string) (*models.ExecutionTransaction, error) {
	body, err := p.client.HGet(ctx, transactionsKey, id).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, persistence.ErrTransactionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", id, err)
	}

	var transaction models.ExecutionTransaction

	err = json.Unmarshal([]byte(body), &transaction)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction %s: %w", id, err)
	}

	return &transaction, nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}
