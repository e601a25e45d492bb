package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCeilingExceeded is returned when a turn would exceed the configured maximum.
	ErrCeilingExceeded = errors.New("max turns reached")
	// ErrConcurrencyConflict signals transaction contention; the caller may retry.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	// ErrTimestampParse is returned when a stored timestamp cannot be parsed.
	ErrTimestampParse = errors.New("stored timestamp cannot be parsed")
	// ErrAlreadySubmitted is returned when a write-once survey is submitted again.
	ErrAlreadySubmitted = errors.New("survey already submitted")
	// ErrNotFound is returned when a participant record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPlanningRequired is returned when a "pre" participant chats before planning.
	ErrPlanningRequired = errors.New("planning input required before chat")
	// ErrPlanningNotRequired is returned when a "none" participant submits a plan.
	ErrPlanningNotRequired = errors.New("planning input not required for this condition")
	// ErrNotEligible is returned when the follow-up survey is submitted before the gate opens.
	ErrNotEligible = errors.New("follow-up survey not yet available")
)

// ValidationError reports a missing or malformed caller-supplied field.
// An empty Reason means the field was missing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s required", e.Field)
}

// StorageError wraps an underlying persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
