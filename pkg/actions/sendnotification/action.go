// Package sendnotification provides the action that hands a message to the
// external notification collaborator.
package sendnotification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruleflowhq/ruleflow/pkg/protocol"
)

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string {
	return "send_notification"
}

func (f *ActionFactory) Create(params map[string]any) (protocol.Action, error) {
	return NewAction(params)
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient": map[string]any{
				"type":        "string",
				"description": "User or channel receiving the notification.",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "Message template; {{field}} placeholders resolve against the record fields.",
			},
		},
		"required": []string{"recipient", "message"},
	}
}

type Action struct {
	Recipient string
	Message   string
}

func NewAction(params map[string]any) (*Action, error) {
	recipient, _ := params["recipient"].(string)
	message, _ := params["message"].(string)

	if recipient == "" || message == "" {
		return nil, errors.New("send_notification requires recipient and message")
	}

	return &Action{Recipient: recipient, Message: message}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	rendered := renderTemplate(a.Message, actionCtx.Event.Fields)

	logger = logger.With("action_kind", "send_notification", "recipient", a.Recipient)
	logger.Info("Dispatching notification",
		"record_id", actionCtx.Event.RecordID,
		"message", rendered,
	)

	return map[string]any{
		"recipient": a.Recipient,
		"message":   rendered,
	}, nil
}

func renderTemplate(template string, fields map[string]any) string {
	rendered := template

	for key, value := range fields {
		placeholder := "{{" + key + "}}"
		if strings.Contains(rendered, placeholder) {
			rendered = strings.ReplaceAll(rendered, placeholder, stringify(value))
		}
	}

	return rendered
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}

	if value == nil {
		return ""
	}

	return fmt.Sprintf("%v", value)
}
