package notifier

import "errors"

var (
	// ErrMalformedMessage is returned when a delivery body cannot be
	// parsed; such messages are dropped, never requeued
	ErrMalformedMessage = errors.New("malformed notification message")

	// ErrUnknownKind is returned for a notification kind this service
	// has no rendering for
	ErrUnknownKind = errors.New("unknown notification kind")
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
