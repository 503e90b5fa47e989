// Package engine implements the trigger path of the automation system: rule
// registration, trigger dispatch, condition evaluation, and sequential
// fail-fast action execution.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ruleflowhq/ruleflow/pkg/eventbus"
	"github.com/ruleflowhq/ruleflow/pkg/history"
	"github.com/ruleflowhq/ruleflow/pkg/persistence"
	"github.com/ruleflowhq/ruleflow/pkg/registry"
	"go.opentelemetry.io/otel/trace"
)

type Engine struct {
	logger   *slog.Logger
	rules    persistence.RuleRepository
	registry *registry.Registry
	history  *history.Store
	validate *validator.Validate

	// publisher and tracer are optional collaborators; nil disables them.
	publisher eventbus.EventPublisher
	tracer    trace.Tracer

	// countersMu serializes the read-modify-write of rule invocation
	// counters so concurrent dispatch of the same rule increments exactly
	// once per successful firing.
	countersMu sync.Mutex
}

func NewEngine(
	logger *slog.Logger,
	rules persistence.RuleRepository,
	registry *registry.Registry,
	history *history.Store,
) *Engine {
	return &Engine{
		logger:   logger.With("module", "engine"),
		rules:    rules,
		registry: registry,
		history:  history,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithPublisher attaches the audit event publisher.
func (e *Engine) WithPublisher(publisher eventbus.EventPublisher) *Engine {
	e.publisher = publisher

	return e
}

// WithTracer attaches the tracer used for dispatch and action spans.
func (e *Engine) WithTracer(tracer trace.Tracer) *Engine {
	e.tracer = tracer

	return e
}

// History exposes the execution audit log facade.
func (e *Engine) History() *history.Store {
	return e.history
}

func generateExecutionID() string {
	return fmt.Sprintf("exec-%s", uuid.New().String()[:8])
}
