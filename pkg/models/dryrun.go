package models

// DryRunResult is the read-only preview of a bulk transform. It is computed
// on demand and never persisted.
type DryRunResult struct {
	AutomationID       string                  `json:"automation_id"`
	WouldAffectRecords int                     `json:"would_affect_records"`
	Changes            []RecordChange          `json:"changes"`
	SafetyChecks       []AutomationSafetyCheck `json:"safety_checks"`
	CanProceed         bool                    `json:"can_proceed"`
	Warnings           []string                `json:"warnings"`
}
