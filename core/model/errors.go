package model

import (
	"errors"
	"fmt"
)

// ValidationError marks input that is invalid on its own terms, such as a
// negative trip distance. Never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// ConflictError marks an operation whose assumptions about vehicle state
// are stale. Never auto-retried; the client needs a state refresh.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

// TransientError marks a transport-level failure (timeout, unreachable
// store). Safe to retry with the same idempotency key.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix, such as a
// referenced vehicle that no longer exists.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string { return "permanent: " + e.Reason }

// Transient wraps err as retryable.
func Transient(err error) error { return &TransientError{Err: err} }

// Permanentf builds a PermanentError from a format string.
func Permanentf(format string, args ...any) error {
	return &PermanentError{Reason: fmt.Sprintf(format, args...)}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is terminal regardless of retries.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
