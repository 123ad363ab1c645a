package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all result store implementations.
var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("key not found")

	// ErrUnavailable is returned when the backing engine cannot be reached or
	// fails to answer. Callers on the read path degrade instead of failing.
	ErrUnavailable = errors.New("result store unavailable")

	// ErrInvalidKey is returned when an empty key is passed to any operation.
	ErrInvalidKey = errors.New("invalid key")
)

// IsNotFoundError reports whether err is, or wraps, ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailableError reports whether err is, or wraps, ErrUnavailable.
func IsUnavailableError(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Backend   string // The engine behind the store (e.g., "redis", "postgres")
	Operation string // The operation that failed (e.g., "get", "append")
	Key       string // The key the operation targeted
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s %q failed: %v", e.Backend, e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s %q failed", e.Backend, e.Operation, e.Key)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError for the given backend, operation and key.
func NewStoreError(backend, operation, key string, err error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Key:       key,
		Err:       err,
	}
}

// Unavailable wraps err so that it matches ErrUnavailable while keeping the
// original cause in the chain.
func Unavailable(backend, operation, key string, err error) error {
	return NewStoreError(backend, operation, key, fmt.Errorf("%w: %w", ErrUnavailable, err))
}
