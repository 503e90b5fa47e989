package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrRuleInvalid signals a rule definition that failed structural
	// validation and was rejected at registration time.
	ErrRuleInvalid = errors.New("rule definition is invalid")

	// ErrUnknownActionKind signals a rule action whose kind has no
	// registered factory.
	ErrUnknownActionKind = errors.New("unknown action kind")
)

// ActionExecutionError reports which action of a rule failed and preserves
// the underlying cause for errors.Is inspection.
type ActionExecutionError struct {
	RuleID     string
	ActionKind string
	Index      int
	Err        error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("rule %s: action %d (%s) failed: %v", e.RuleID, e.Index, e.ActionKind, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err stems from rule validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrRuleInvalid) || errors.Is(err, ErrUnknownActionKind)
}
