// Package file provides a JSON-file-backed persistence implementation.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
)

const defaultHistoryLimit = 1000

// Persistence stores each rule, execution, and transaction as one JSON file
// under the configured root. A mutex guards concurrent append/read; rule
// enable/disable is atomic because the whole rule file is rewritten.
type Persistence struct {
	root         string
	mu           sync.Mutex
	historyLimit int
}

func NewPersistence(root string) *Persistence {
	return &Persistence{root: root, historyLimit: defaultHistoryLimit}
}

func (p *Persistence) Rules(ctx context.Context) ([]*models.WorkflowRule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.loadRules(ctx)
}

func (p *Persistence) loadRules(_ context.Context) ([]*models.WorkflowRule, error) {
	root := os.DirFS(path.Join(p.root, "rules"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	rules := make([]*models.WorkflowRule, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		rule, err := p.readRule(name[:len(name)-5])
		if err != nil {
			return nil, err
		}

		if rule != nil {
			rules = append(rules, rule)
		}
	}

	// Registration order: CreatedAt, ID as tiebreak for same-instant saves.
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].ID < rules[j].ID
		}

		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})

	return rules, nil
}

func (p *Persistence) RuleByID(_ context.Context, id string) (*models.WorkflowRule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rule, err := p.readRule(id)
	if err != nil {
		return nil, err
	}

	if rule == nil {
		return nil, persistence.NewRuleError("RuleByID", id, persistence.ErrRuleNotFound)
	}

	return rule, nil
}

func (p *Persistence) readRule(id string) (*models.WorkflowRule, error) {
	filePath := filepath.Clean(path.Join(p.root, "rules", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch rule %s: %w", id, err)
	}

	var rule models.WorkflowRule

	err = json.Unmarshal(body, &rule)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule %s: %w", id, err)
	}

	return &rule, nil
}

func (p *Persistence) SaveRule(_ context.Context, rule *models.WorkflowRule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return writeJSON(path.Join(p.root, "rules"), rule.ID, rule)
}

func (p *Persistence) DeleteRule(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := path.Join(p.root, "rules", id+".json")

	err := os.Remove(filePath)
	if err != nil && os.IsNotExist(err) {
		return persistence.NewRuleError("DeleteRule", id, persistence.ErrRuleNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}

	return nil
}

func (p *Persistence) AppendExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := writeJSON(path.Join(p.root, "executions"), execution.ID, execution)
	if err != nil {
		return err
	}

	return p.pruneExecutions(ctx)
}

// pruneExecutions keeps the history bounded by dropping the oldest files.
func (p *Persistence) pruneExecutions(ctx context.Context) error {
	executions, err := p.loadExecutions(ctx)
	if err != nil {
		return err
	}

	for _, stale := range executions[min(p.historyLimit, len(executions)):] {
		err := os.Remove(path.Join(p.root, "executions", stale.ID+".json"))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to prune execution %s: %w", stale.ID, err)
		}
	}

	return nil
}

func (p *Persistence) Executions(ctx context.Context, limit int) ([]*models.WorkflowExecution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	executions, err := p.loadExecutions(ctx)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > len(executions) {
		limit = len(executions)
	}

	return executions[:limit], nil
}

func (p *Persistence) loadExecutions(_ context.Context) ([]*models.WorkflowExecution, error) {
	root := os.DirFS(path.Join(p.root, "executions"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		body, err := os.ReadFile(filepath.Clean(path.Join(p.root, "executions", name)))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, fmt.Errorf("failed to read execution %s: %w", name, err)
		}

		var execution models.WorkflowExecution

		err = json.Unmarshal(body, &execution)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution %s: %w", name, err)
		}

		executions = append(executions, &execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].TriggeredAt.After(executions[j].TriggeredAt)
	})

	return executions, nil
}

func (p *Persistence) CountExecutionsByStatus(ctx context.Context) (map[models.ExecutionStatus]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	executions, err := p.loadExecutions(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.ExecutionStatus]int)
	for _, execution := range executions {
		counts[execution.Status]++
	}

	return counts, nil
}

func (p *Persistence) SaveTransaction(_ context.Context, transaction *models.ExecutionTransaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return writeJSON(path.Join(p.root, "transactions"), transaction.ID, transaction)
}

func (p *Persistence) TransactionByID(_ context.Context, id string) (*models.ExecutionTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	body, err := os.ReadFile(filepath.Clean(path.Join(p.root, "transactions", id+".json")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrTransactionNotFound
		}

		return nil, fmt.Errorf("failed to fetch transaction %s: %w", id, err)
	}

	var transaction models.ExecutionTransaction

	err = json.Unmarshal(body, &transaction)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction %s: %w", id, err)
	}

	return &transaction, nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("persistence root %s is not a directory", p.root)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func writeJSON(dir, id string, entity any) error {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	return os.WriteFile(path.Join(dir, id+".json"), data, 0600)
}
