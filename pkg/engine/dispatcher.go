package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ruleflowhq/ruleflow/pkg/events"
	"github.com/ruleflowhq/ruleflow/pkg/models"
	"github.com/ruleflowhq/ruleflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dispatch runs every enabled rule subscribed to the trigger against the
// record event, in registration order. Each rule is isolated: an action
// failure in one rule never prevents later rules from running, and each
// firing appends exactly one execution record. The returned slice mirrors
// the appended records in dispatch order.
func (e *Engine) Dispatch(
	ctx context.Context,
	trigger models.TriggerType,
	event models.RecordEvent,
) ([]*models.WorkflowExecution, error) {
	if e.tracer != nil {
		var span trace.Span

		ctx, span = e.tracer.Start(ctx, "engine.dispatch", trace.WithAttributes(
			attribute.String(otelhelper.TriggerTypeKey, string(trigger)),
			attribute.String(otelhelper.RecordIDKey, event.RecordID),
		))
		defer span.End()
	}

	rules, err := e.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for dispatch: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0)

	for _, rule := range rules {
		if rule.Trigger != trigger {
			continue
		}

		execution := e.fireRule(ctx, rule, trigger, event)
		executions = append(executions, execution)

		if err := e.history.Append(ctx, execution); err != nil {
			e.logger.Error("Failed to append execution record",
				"rule_id", rule.ID, "execution_id", execution.ID, "error", err)
		}

		e.publishRuleExecuted(ctx, execution, event.TenantID)
	}

	e.logger.Debug("Dispatch complete",
		"trigger", trigger, "record_id", event.RecordID, "rules_fired", len(executions))

	return executions, nil
}

// fireRule evaluates conditions and runs actions for one rule. It never
// returns an error: every outcome, including action failure, is expressed as
// the execution record's status.
func (e *Engine) fireRule(
	ctx context.Context,
	rule *models.WorkflowRule,
	trigger models.TriggerType,
	event models.RecordEvent,
) *models.WorkflowExecution {
	started := time.Now().UTC()

	execution := &models.WorkflowExecution{
		ID:          generateExecutionID(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		TriggeredBy: trigger,
		TriggeredAt: started,
		RecordID:    event.RecordID,
		RecordType:  event.RecordType,
	}

	if e.tracer != nil {
		var span trace.Span

		ctx, span = e.tracer.Start(ctx, "engine.fire_rule", trace.WithAttributes(
			attribute.String(otelhelper.RuleIDKey, rule.ID),
		))
		defer span.End()

		defer func() {
			span.SetAttributes(attribute.String(otelhelper.ExecutionStatusKey, string(execution.Status)))
			if execution.Status == models.ExecutionStatusFailed {
				span.SetStatus(codes.Error, execution.Error)
			}
		}()
	}

	if !models.EvaluateConditions(rule.Conditions, event.Fields) {
		execution.Status = models.ExecutionStatusSkipped
		execution.Duration = time.Since(started)

		e.logger.Debug("Rule skipped, conditions not met",
			"rule_id", rule.ID, "record_id", event.RecordID)

		return execution
	}

	executed, err := e.runActions(ctx, rule, event)
	execution.ActionsExecuted = executed
	execution.Duration = time.Since(started)

	if err != nil {
		execution.Status = models.ExecutionStatusFailed
		execution.Error = err.Error()

		e.logger.Error("Rule execution failed",
			"rule_id", rule.ID, "record_id", event.RecordID,
			"actions_executed", executed, "error", err)

		return execution
	}

	execution.Status = models.ExecutionStatusSuccess

	if err := e.markExecuted(ctx, rule.ID, started); err != nil {
		e.logger.Error("Failed to update rule counters", "rule_id", rule.ID, "error", err)
	}

	e.logger.Info("Rule executed",
		"rule_id", rule.ID, "record_id", event.RecordID, "actions_executed", executed)

	return execution
}

// markExecuted increments the invocation counter and stamps lastExecutedAt.
// Counters move only on fully successful firings.
func (e *Engine) markExecuted(ctx context.Context, ruleID string, executedAt time.Time) error {
	e.countersMu.Lock()
	defer e.countersMu.Unlock()

	rule, err := e.rules.RuleByID(ctx, ruleID)
	if err != nil {
		return err
	}

	rule.ExecutionCount++
	rule.LastExecutedAt = &executedAt

	return e.rules.SaveRule(ctx, rule)
}

func (e *Engine) publishRuleExecuted(ctx context.Context, execution *models.WorkflowExecution, tenantID string) {
	if e.publisher == nil {
		return
	}

	event := events.RuleExecuted{
		BaseEvent: events.BaseEvent{
			ID:        execution.ID,
			Type:      events.RuleExecutedEvent,
			Timestamp: time.Now().UTC(),
			TenantID:  tenantID,
		},
		Execution: *execution,
	}

	if err := e.publisher.Publish(ctx, execution.RuleID, event); err != nil {
		e.logger.Error("Failed to publish execution event",
			"execution_id", execution.ID, "error", err)
	}
}
