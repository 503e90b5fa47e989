package bulk

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ruleflowhq/ruleflow/pkg/models"
)

// Detector performs the optimistic concurrency check between a record's
// state captured at selection time and its current stored state.
type Detector struct {
	store RecordStore
}

func NewDetector(store RecordStore) *Detector {
	return &Detector{store: store}
}

// DetectConflict reports whether the record was mutated after being selected
// for automation. It compares the version counter captured at selection
// against the current one, falling back to the update timestamp when the
// store carries no version counter.
func (d *Detector) DetectConflict(ctx context.Context, selected models.BulkRecord) (bool, error) {
	if d.store == nil {
		return false, nil
	}

	current, err := d.store.Current(ctx, selected.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load current state of record %s: %w", selected.ID, err)
	}

	if selected.Version != 0 || current.Version != 0 {
		return current.Version != selected.Version, nil
	}

	return current.UpdatedAt.After(selected.UpdatedAt), nil
}

// HandleConflict applies one resolution policy to a detected conflict. The
// automation change carries the selected state and the intended result; the
// manual change is the record's current stored state. It returns the field
// values the record should end up with, or nil when the record is skipped.
func (d *Detector) HandleConflict(
	recordID string,
	automationChange models.RecordChange,
	manualChange map[string]any,
	resolution models.ConflictResolution,
) (map[string]any, *models.ConflictDetection, error) {
	detection := &models.ConflictDetection{
		HasConflict:     true,
		ConflictType:    "concurrent_modification",
		AffectedRecords: []string{recordID},
		Resolution:      resolution,
	}

	switch resolution {
	case models.ResolutionSkip:
		return nil, detection, nil

	case models.ResolutionOverwrite:
		// Automation wins wholesale; the manual edit is reverted.
		return automationChange.After, detection, nil

	case models.ResolutionMerge:
		merged, err := mergeChanges(automationChange, manualChange)
		if err != nil {
			return nil, detection, err
		}

		return merged, detection, nil

	case models.ResolutionFail:
		return nil, detection, &ConflictError{RecordID: recordID}

	default:
		return nil, detection, fmt.Errorf("unknown conflict resolution policy %q", resolution)
	}
}

// mergeChanges keeps the manual edit on every field the automation did not
// touch and the automation's value on every field it did. Fields the
// transform removed are not representable as a patch and keep their manual
// value.
func mergeChanges(automationChange models.RecordChange, manualChange map[string]any) (map[string]any, error) {
	merged, err := models.CloneFields(manualChange)
	if err != nil {
		return nil, fmt.Errorf("failed to merge manual change: %w", err)
	}

	if merged == nil {
		merged = make(map[string]any)
	}

	for field, value := range touchedFields(automationChange.Before, automationChange.After) {
		copied, err := models.CloneFields(map[string]any{field: value})
		if err != nil {
			return nil, fmt.Errorf("failed to merge automation change: %w", err)
		}

		merged[field] = copied[field]
	}

	return merged, nil
}

// touchedFields returns the fields whose values differ between before and
// after, valued from after.
func touchedFields(before, after map[string]any) map[string]any {
	touched := make(map[string]any)

	for field, value := range after {
		previous, existed := before[field]
		if !existed || !reflect.DeepEqual(previous, value) {
			touched[field] = value
		}
	}

	return touched
}
