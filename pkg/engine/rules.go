package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
)

// Register validates and stores a new rule. Validation covers the struct
// shape, that at least one action is present, and that every action kind has
// a registered factory accepting the rule's parameters.
func (e *Engine) Register(ctx context.Context, rule *models.WorkflowRule) error {
	if err := e.validateRule(rule); err != nil {
		return err
	}

	_, err := e.rules.RuleByID(ctx, rule.ID)
	if err == nil {
		return persistence.NewRuleError("Register", rule.ID, persistence.ErrRuleAlreadyExists)
	}

	if !persistence.IsRuleNotFound(err) {
		return fmt.Errorf("failed to check for existing rule %s: %w", rule.ID, err)
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.ExecutionCount = 0
	rule.LastExecutedAt = nil

	if err := e.rules.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}

	e.logger.Info("Rule registered",
		"rule_id", rule.ID, "trigger", rule.Trigger, "actions", len(rule.Actions))

	return nil
}

func (e *Engine) validateRule(rule *models.WorkflowRule) error {
	if err := e.validate.Struct(rule); err != nil {
		return fmt.Errorf("%w: %w", ErrRuleInvalid, err)
	}

	for _, condition := range rule.Conditions {
		if !condition.Operator.Valid() {
			return fmt.Errorf("%w: unknown condition operator '%s'", ErrRuleInvalid, condition.Operator)
		}
	}

	for i, action := range rule.Actions {
		if err := e.registry.ValidateActionParams(action.Kind, action.Params); err != nil {
			return fmt.Errorf("%w: action %d: %w", ErrUnknownActionKind, i, err)
		}
	}

	return nil
}

// Enable marks a rule eligible for dispatch. Enabling an enabled rule is a
// no-op.
func (e *Engine) Enable(ctx context.Context, ruleID string) error {
	return e.setEnabled(ctx, ruleID, true)
}

// Disable removes a rule from dispatch without deleting it. Disabling a
// disabled rule is a no-op.
func (e *Engine) Disable(ctx context.Context, ruleID string) error {
	return e.setEnabled(ctx, ruleID, false)
}

func (e *Engine) setEnabled(ctx context.Context, ruleID string, enabled bool) error {
	rule, err := e.rules.RuleByID(ctx, ruleID)
	if err != nil {
		return err
	}

	if rule.Enabled == enabled {
		return nil
	}

	rule.Enabled = enabled
	rule.UpdatedAt = time.Now().UTC()

	if err := e.rules.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to save rule %s: %w", ruleID, err)
	}

	e.logger.Info("Rule state changed", "rule_id", ruleID, "enabled", enabled)

	return nil
}

// Remove deletes the rule definition. Execution history referencing the rule
// is retained.
func (e *Engine) Remove(ctx context.Context, ruleID string) error {
	if err := e.rules.DeleteRule(ctx, ruleID); err != nil {
		return err
	}

	e.logger.Info("Rule removed", "rule_id", ruleID)

	return nil
}

// List returns all rules in registration order.
func (e *Engine) List(ctx context.Context) ([]*models.WorkflowRule, error) {
	return e.rules.Rules(ctx)
}

// ListEnabled returns the rules currently eligible for dispatch.
func (e *Engine) ListEnabled(ctx context.Context) ([]*models.WorkflowRule, error) {
	rules, err := e.rules.Rules(ctx)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.WorkflowRule, 0, len(rules))

	for _, rule := range rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}

	return enabled, nil
}

// Rule returns one rule by identifier.
func (e *Engine) Rule(ctx context.Context, ruleID string) (*models.WorkflowRule, error) {
	return e.rules.RuleByID(ctx, ruleID)
}
