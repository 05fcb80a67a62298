package domain

import "errors"

var (
	// ErrInvalidPayload is returned when a queued message is not a valid notification intent
	ErrInvalidPayload = errors.New("invalid notification payload")

	// ErrMaxRequeuesExceeded is returned when an intent keeps failing after its requeue budget
	ErrMaxRequeuesExceeded = errors.New("max requeues exceeded")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
