package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job, user or translator cannot be found
	ErrNotFound = errors.New("not found")

	// ErrJobAlreadyTaken is returned by storage when the pending-to-assigned
	// compare-and-swap finds the job no longer pending
	ErrJobAlreadyTaken = errors.New("job already taken or not in pending status")

	// ErrStaleJob is returned by storage when a job was modified since it was loaded
	ErrStaleJob = errors.New("job was modified concurrently")

	// ErrActiveAssignmentExists is returned by storage when a second active
	// assignment would be recorded for the same job
	ErrActiveAssignmentExists = errors.New("job already has an active assignment")
)

// ValidationError reports missing or invalid input. Its message is shown to the caller verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError reports a lost accept race, an overlapping booking or a rejected transition
type ConflictError struct {
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// NewConflictError creates a new conflict error with a user-facing message
func NewConflictError(message string) error {
	return &ConflictError{Message: message}
}

// TransitionError is a conflict raised when the lifecycle refuses a status change
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s rejected: %s", e.From, e.To, e.Reason)
}

// NotFoundf wraps ErrNotFound with the kind and id of the missing entity
func NotFoundf(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a conflict of any kind
func IsConflict(err error) bool {
	var ce *ConflictError
	var te *TransitionError
	return errors.As(err, &ce) || errors.As(err, &te) || errors.Is(err, ErrJobAlreadyTaken) ||
		errors.Is(err, ErrStaleJob) || errors.Is(err, ErrActiveAssignmentExists)
}
