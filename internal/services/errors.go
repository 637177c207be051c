package services

import (
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound is returned by an ObjectStore when the object does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrRateLimited is returned when a client exceeded its upload quota.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidChunking is returned for a chunk size or overlap that cannot produce windows.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidMaxAttempts is returned when a retry is configured with no attempts.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
)

// ValidationError reports caller input that was rejected. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError reports a failed ledger write that aborted an operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
