// Package memory provides an in-memory persistence implementation used as
// the test double and for local development.
package memory

import (
	"context"
	"sync"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
)

const defaultHistoryLimit = 1000

// Persistence keeps all state behind one mutex. Rule order follows
// registration; the execution log is a capped newest-first list.
type Persistence struct {
	mu           sync.RWMutex
	rules        map[string]*models.WorkflowRule
	ruleOrder    []string
	executions   []*models.WorkflowExecution // newest first
	historyLimit int
	transactions map[string]*models.ExecutionTransaction
}

func NewPersistence() *Persistence {
	return &Persistence{
		rules:        make(map[string]*models.WorkflowRule),
		ruleOrder:    make([]string, 0),
		executions:   make([]*models.WorkflowExecution, 0),
		historyLimit: defaultHistoryLimit,
		transactions: make(map[string]*models.ExecutionTransaction),
	}
}

func (p *Persistence) Rules(_ context.Context) ([]*models.WorkflowRule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rules := make([]*models.WorkflowRule, 0, len(p.ruleOrder))
	for _, id := range p.ruleOrder {
		rules = append(rules, copyRule(p.rules[id]))
	}

	return rules, nil
}

func (p *Persistence) RuleByID(_ context.Context, id string) (*models.WorkflowRule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rule, ok := p.rules[id]
	if !ok {
		return nil, persistence.NewRuleError("RuleByID", id, persistence.ErrRuleNotFound)
	}

	return copyRule(rule), nil
}

func (p *Persistence) SaveRule(_ context.Context, rule *models.WorkflowRule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.rules[rule.ID]; !exists {
		p.ruleOrder = append(p.ruleOrder, rule.ID)
	}

	p.rules[rule.ID] = copyRule(rule)

	return nil
}

func (p *Persistence) DeleteRule(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.rules[id]; !ok {
		return persistence.NewRuleError("DeleteRule", id, persistence.ErrRuleNotFound)
	}

	delete(p.rules, id)

	for i, ruleID := range p.ruleOrder {
		if ruleID == id {
			p.ruleOrder = append(p.ruleOrder[:i], p.ruleOrder[i+1:]...)

			break
		}
	}

	return nil
}

func (p *Persistence) AppendExecution(_ context.Context, execution *models.WorkflowExecution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *execution
	p.executions = append([]*models.WorkflowExecution{&stored}, p.executions...)

	if len(p.executions) > p.historyLimit {
		p.executions = p.executions[:p.historyLimit]
	}

	return nil
}

func (p *Persistence) Executions(_ context.Context, limit int) ([]*models.WorkflowExecution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if limit <= 0 || limit > len(p.executions) {
		limit = len(p.executions)
	}

	executions := make([]*models.WorkflowExecution, limit)
	for i := range limit {
		stored := *p.executions[i]
		executions[i] = &stored
	}

	return executions, nil
}

func (p *Persistence) CountExecutionsByStatus(_ context.Context) (map[models.ExecutionStatus]int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	counts := make(map[models.ExecutionStatus]int)
	for _, execution := range p.executions {
		counts[execution.Status]++
	}

	return counts, nil
}

func (p *Persistence) SaveTransaction(_ context.Context, transaction *models.ExecutionTransaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := *transaction
	p.transactions[transaction.ID] = &stored

	return nil
}

func (p *Persistence) TransactionByID(_ context.Context, id string) (*models.ExecutionTransaction, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	transaction, ok := p.transactions[id]
	if !ok {
		return nil, persistence.ErrTransactionNotFound
	}

	stored := *transaction

	return &stored, nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// copyRule shields stored rules from caller mutation; counters still change
// only through SaveRule.
func copyRule(rule *models.WorkflowRule) *models.WorkflowRule {
	copied := *rule
	copied.Conditions = append([]models.WorkflowCondition(nil), rule.Conditions...)
	copied.Actions = append([]models.RuleAction(nil), rule.Actions...)

	return &copied
}
