package bulk

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a candidate record violating a structural
	// invariant, such as a transform changing the record identifier.
	ErrValidation = errors.New("record validation failed")

	// ErrConflict signals a concurrent manual edit under the fail
	// resolution policy.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrNotRevertible signals an explicit rollback request against a
	// transaction that never committed anything.
	ErrNotRevertible = errors.New("transaction is not in a revertible state")
)

// ValidationError identifies which record and field broke a structural
// invariant.
type ValidationError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %s: field %q: %s", e.RecordID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ConflictError identifies the record whose concurrent edit aborted the
// operation.
type ConflictError struct {
	RecordID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record %s was modified concurrently", e.RecordID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// IsValidationError reports whether err stems from structural validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflictError reports whether err stems from a detected conflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}
