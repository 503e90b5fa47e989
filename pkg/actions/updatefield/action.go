// Package updatefield provides the action that patches a single record field.
package updatefield

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
	return "update_field"
}

func (f *ActionFactory) Create(params map[string]any) (protocol.Action, error) {
	return NewAction(params)
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{
				"type":        "string",
				"description": "Record field to set.",
			},
			"value": map[string]any{
				"description": "New field value.",
			},
		},
		"required": []string{"field"},
	}
}

type Action struct {
	Field string
	Value any
}

func NewAction(params map[string]any) (*Action, error) {
	field, _ := params["field"].(string)
	if field == "" {
		return nil, errors.New("update_field requires field")
	}

	// id and ownership are structural; automations may not touch them here.
	switch field {
	case "id", "tenant_id":
		return nil, errors.New("update_field may not change " + field)
	}

	return &Action{Field: field, Value: params["value"]}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_kind", "update_field", "field", a.Field)
	logger.Info("Patching record field", "record_id", actionCtx.Event.RecordID)

	return map[string]any{
		"record_id": actionCtx.Event.RecordID,
		"patch":     map[string]any{a.Field: a.Value},
	}, nil
}
