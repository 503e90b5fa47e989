// Package httprequest provides the action that calls an external HTTP
// endpoint with the triggering record payload.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ruleflowhq/ruleflow/pkg/protocol"
)

const defaultTimeoutSeconds = 30

var (
	// ErrURLRequired is returned when the target URL is missing.
	ErrURLRequired = errors.New("http_request requires url")
	// ErrServerError is returned when the endpoint answers with a 5xx status.
	ErrServerError = errors.New("server error during HTTP request")
)

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string {
	return "http_request"
}

func (f *ActionFactory) Create(params map[string]any) (protocol.Action, error) {
	return NewAction(params)
}

func (f *ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Endpoint receiving the record payload.",
			},
			"method": map[string]any{
				"type":    "string",
				"default": "POST",
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
		},
		"required": []string{"url"},
	}
}

type Action struct {
	URL     string
	Method  string
	Headers map[string]string
	Timeout time.Duration
}

func NewAction(params map[string]any) (*Action, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return nil, ErrURLRequired
	}

	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	headers := make(map[string]string)

	if headersParam, ok := params["headers"].(map[string]any); ok {
		for key, value := range headersParam {
			if s, ok := value.(string); ok {
				headers[key] = s
			}
		}
	}

	return &Action{
		URL:     url,
		Method:  strings.ToUpper(method),
		Headers: headers,
		Timeout: defaultTimeoutSeconds * time.Second,
	}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) (any, error) {
	logger = logger.With("action_kind", "http_request", "url", a.URL, "method", a.Method)
	logger.InfoContext(ctx, "Executing HTTP request action")

	payload, err := json.Marshal(map[string]any{
		"record_id":   actionCtx.Event.RecordID,
		"record_type": actionCtx.Event.RecordType,
		"tenant_id":   actionCtx.Event.TenantID,
		"fields":      actionCtx.Event.Fields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var body io.Reader
	if a.Method != http.MethodGet {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, a.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range a.Headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{Timeout: a.Timeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrServerError)
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(responseBody),
	}

	var decoded any
	if json.Unmarshal(responseBody, &decoded) == nil {
		result["body"] = decoded
	}

	logger.InfoContext(ctx, "HTTP request action completed", "status_code", resp.StatusCode)

	return result, nil
}
