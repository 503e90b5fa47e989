package bulk

import (
	"reflect"

	"github.com/ruleflowhq/ruleflow/pkg/models"
)

// immutableFields are structural associations no automation may change.
var immutableFields = []string{"id", "tenant_id", "owner_id"}

// validateChange rejects transforms that would change the record identifier
// or its tenant/owner association.
func validateChange(record models.BulkRecord, before, after map[string]any) error {
	if id, ok := after["id"]; ok {
		if idStr, isString := id.(string); !isString || idStr != record.ID {
			return &ValidationError{
				RecordID: record.ID,
				Field:    "id",
				Reason:   "record identifier must not change",
			}
		}
	}

	for _, field := range immutableFields {
		beforeValue, hadBefore := before[field]
		afterValue, hasAfter := after[field]

		if !hadBefore && !hasAfter {
			continue
		}

		if hadBefore != hasAfter || !reflect.DeepEqual(beforeValue, afterValue) {
			if field == "id" && hasAfter {
				// Already checked against the record identifier above.
				continue
			}

			return &ValidationError{
				RecordID: record.ID,
				Field:    field,
				Reason:   "field is immutable under automation",
			}
		}
	}

	return nil
}
