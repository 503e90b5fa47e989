// Package registry keeps the table of registered action kinds. New kinds are
// added by registering a factory, not by editing a dispatch conditional.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/ruleflowhq/ruleflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:          logger,
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.actionFactories[factory.ID()] = factory
	r.logger.Debug("Registered action kind", "kind", factory.ID())
}

// CreateAction validates params against the kind's schema and builds the
// action instance.
func (r *Registry) CreateAction(kind string, params map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[kind]
	if !ok {
		return nil, fmt.Errorf("action kind '%s' not registered", kind)
	}

	if err := r.ValidateActionParams(kind, params); err != nil {
		return nil, err
	}

	return factory.Create(params)
}

// ValidateActionParams checks rule-supplied parameters against the JSON
// schema declared by the action kind's factory.
func (r *Registry) ValidateActionParams(kind string, params map[string]any) error {
	factory, ok := r.actionFactories[kind]
	if !ok {
		return fmt.Errorf("action kind '%s' not registered", kind)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("failed to validate params for action kind '%s': %w", kind, err)
	}

	if !result.Valid() {
		return fmt.Errorf("invalid params for action kind '%s': %s", kind, result.Errors()[0].String())
	}

	return nil
}

// AvailableKinds returns all registered action kinds.
func (r *Registry) AvailableKinds() []string {
	kinds := make([]string, 0, len(r.actionFactories))
	for kind := range r.actionFactories {
		kinds = append(kinds, kind)
	}

	return kinds
}
