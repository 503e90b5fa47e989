// Package assignowner provides the action that routes a record to an owner.
package assignowner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ruleflowhq/ruleflow/pkg/protocol"
)

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string {
	return "assign_owner"
}

func (f *ActionFactory) Create(params map[string]any) (protocol.Action, error) {
	return NewAction(params)
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"owner_id": map[string]any{
				"type":        "string",
				"description": "User ID the record is assigned to.",
			},
		},
		"required": []string{"owner_id"},
	}
}

type Action struct {
	OwnerID string
}

func NewAction(params map[string]any) (*Action, error) {
	ownerID, _ := params["owner_id"].(string)
	if ownerID == "" {
		return nil, errors.New("assign_owner requires owner_id")
	}

	return &Action{OwnerID: ownerID}, nil
}

// Execute emits the ownership patch the data layer applies. The engine never
// writes CRM records itself.
func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_kind", "assign_owner", "owner_id", a.OwnerID)
	logger.Info("Assigning record owner",
		"record_id", actionCtx.Event.RecordID,
		"record_type", actionCtx.Event.RecordType,
	)

	return map[string]any{
		"record_id": actionCtx.Event.RecordID,
		"patch":     map[string]any{"owner_id": a.OwnerID},
	}, nil
}
