package models

// ConflictResolution is the policy applied when an automation change races
// with a concurrent manual edit.
type ConflictResolution string

const (
	ResolutionSkip      ConflictResolution = "skip"      // automation yields, record untouched
	ResolutionOverwrite ConflictResolution = "overwrite" // automation wins, manual change logged and lost
	ResolutionMerge     ConflictResolution = "merge"     // field-level merge of both changes
	ResolutionFail      ConflictResolution = "fail"      // default: raise instead of resolving
)

// ConflictDetection is computed per record during conflict-sensitive
// operations.
type ConflictDetection struct {
	HasConflict     bool               `json:"has_conflict"`
	ConflictType    string             `json:"conflict_type,omitempty"`
	AffectedRecords []string           `json:"affected_records,omitempty"`
	Resolution      ConflictResolution `json:"resolution,omitempty"`
}
