// Package protocol defines the interfaces and contracts for pluggable
// automation actions.
package protocol

import (
	"context"
	"log/slog"

	"github.com/ruleflowhq/ruleflow/pkg/models"
)

// ActionContext carries everything a running action may depend on: the rule
// being fired, the triggering record event, and the results of the actions
// that already completed for this firing.
type ActionContext struct {
	Rule    *models.WorkflowRule
	Event   models.RecordEvent
	Results map[string]any
}

// Action is one executable step of a matched rule.
type Action interface {
	Execute(ctx context.Context, actionCtx ActionContext, logger *slog.Logger) (any, error)
}

// ActionFactory creates action instances and describes the action kind.
type ActionFactory interface {
	// ID returns the unique action kind (e.g. "assign_owner").
	ID() string

	// Create builds an action from rule-supplied parameters.
	Create(params map[string]any) (Action, error)

	// Schema returns the JSON schema the parameters are validated against
	// at rule registration time.
	Schema() map[string]any
}
