package domain

import "fmt"

// ValidationError reports malformed or incomplete input. It is never
// retryable and nothing is created or mutated when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StateConflictError reports a label transition that is illegal from the
// label's current status, including lost-update races where a concurrent
// writer moved the label first.
type StateConflictError struct {
	LabelID   string
	From      LabelStatus
	Attempted string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("label %s: cannot %s from status %s", e.LabelID, e.Attempted, e.From)
}

// NewStateConflictError creates a StateConflictError.
func NewStateConflictError(labelID string, from LabelStatus, attempted string) *StateConflictError {
	return &StateConflictError{LabelID: labelID, From: from, Attempted: attempted}
}
