package logaction

import (
	"context"
	"log/slog"

	"github.com/ruleflowhq/ruleflow/pkg/protocol"
)

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string {
	return "log"
}

func (f *ActionFactory) Create(params map[string]any) (protocol.Action, error) {
	message, _ := params["message"].(string)

	return &Action{Message: message}, nil
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type": "string",
			},
		},
	}
}

type Action struct {
	Message string
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_kind", "log")

	logger.Info("Executing log action")
	logger.Info("Log message",
		"message", a.Message,
		"record_id", actionCtx.Event.RecordID,
		"fields", actionCtx.Event.Fields,
	)

	return map[string]any{"message": a.Message}, nil
}
