// Package models provides condition evaluation for automation rules.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// EvaluateConditions reports whether every condition holds for the given
// field data. It is pure and never errors: unknown operators and
// non-comparable values evaluate to false, an empty condition list is an
// unconditional match, and a missing field behaves as nil.
func EvaluateConditions(conditions []WorkflowCondition, data map[string]any) bool {
	for _, condition := range conditions {
		if !evaluateCondition(condition, data[condition.Field]) {
			return false
		}
	}

	return true
}

func evaluateCondition(condition WorkflowCondition, actual any) bool {
	switch condition.Operator {
	case OperatorEquals:
		return looseEqual(actual, condition.Value)
	case OperatorNotEquals:
		return !looseEqual(actual, condition.Value)
	case OperatorContains:
		return strings.Contains(
			strings.ToLower(coerceString(actual)),
			strings.ToLower(coerceString(condition.Value)),
		)
	case OperatorGreaterThan:
		a, aOK := coerceFloat(actual)
		b, bOK := coerceFloat(condition.Value)

		return aOK && bOK && a > b
	case OperatorLessThan:
		a, aOK := coerceFloat(actual)
		b, bOK := coerceFloat(condition.Value)

		return aOK && bOK && a < b
	case OperatorIsEmpty:
		return actual == nil || actual == ""
	default:
		return false
	}
}

// looseEqual compares scalars the way event payloads arrive: JSON numbers
// decode as float64, so numeric values compare by value rather than type.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}

	if af, aOK := coerceNumber(a); aOK {
		if bf, bOK := coerceNumber(b); bOK {
			return af == bf
		}

		return false
	}

	return a == b
}

// coerceNumber converts native numeric types only; strings stay strings so
// equals("10", 10) is false while greater_than("10", 5) still works.
func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func coerceFloat(value any) (float64, bool) {
	if f, ok := coerceNumber(value); ok {
		return f, true
	}

	if s, ok := value.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)

		return f, err == nil
	}

	return 0, false
}

func coerceString(value any) string {
	if value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}
