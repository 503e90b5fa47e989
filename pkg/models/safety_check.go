package models

// CheckType identifies one safety check computed per dry-run or execution.
type CheckType string

const (
	CheckConflictDetection CheckType = "conflict_detection"
	CheckValidation        CheckType = "validation"
	CheckSideEffect        CheckType = "side_effect"
	CheckRollbackReadiness CheckType = "rollback_readiness"
)

// CheckStatus is the outcome of a safety check.
type CheckStatus string

const (
	CheckStatusPassed  CheckStatus = "passed"
	CheckStatusWarning CheckStatus = "warning"
	CheckStatusFailed  CheckStatus = "failed"
)

// AutomationSafetyCheck is recomputed per dry-run/execution, never persisted.
type AutomationSafetyCheck struct {
	ID           string      `json:"id"`
	AutomationID string      `json:"automation_id"`
	CheckType    CheckType   `json:"check_type"`
	Status       CheckStatus `json:"status"`
	Message      string      `json:"message"`
}
