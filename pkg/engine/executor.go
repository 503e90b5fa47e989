package engine

import (
	"context"
	"fmt"

	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/protocol"
)

// runActions executes the rule's actions sequentially and fail-fast. It
// returns the number of actions that completed before the failure, or all of
// them on success. Actions already executed are not undone; rollback is the
// bulk path's concern.
func (e *Engine) runActions(ctx context.Context, rule *models.WorkflowRule, event models.RecordEvent) (int, error) {
	actionCtx := protocol.ActionContext{
		Rule:    rule,
		Event:   event,
		Results: make(map[string]any),
	}

	for i, step := range rule.Actions {
		action, err := e.registry.CreateAction(step.Kind, step.Params)
		if err != nil {
			return i, &ActionExecutionError{
				RuleID:     rule.ID,
				ActionKind: step.Kind,
				Index:      i,
				Err:        err,
			}
		}

		logger := e.logger.With("rule_id", rule.ID, "action_kind", step.Kind, "action_index", i)

		result, err := action.Execute(ctx, actionCtx, logger)
		if err != nil {
			return i, &ActionExecutionError{
				RuleID:     rule.ID,
				ActionKind: step.Kind,
				Index:      i,
				Err:        err,
			}
		}

		actionCtx.Results[fmt.Sprintf("%s_%d", step.Kind, i)] = result
	}

	return len(rule.Actions), nil
}
