package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Common service errors - sentinel errors used across service implementations.
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in service-specific error types
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrUnavailable indicates the result store or broker could not accept a
	// submission. API layer should map this to HTTP 503 Service Unavailable.
	ErrUnavailable = errors.New("task service unavailable")

	// ErrInvalidTaskID indicates an empty task id was requested.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidTaskID = errors.New("invalid task id")
)

// ValidationError reports a malformed submission. It is returned before
// anything is written, so the task never enters the lifecycle.
type ValidationError struct {
	// Field is the offending request field, when known
	Field string
	// Message is a client-safe description of the problem
	Message string
	// Err is the underlying validation failure
	Err error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a ValidationError from err. Field errors from
// go-playground/validator are flattened into one message.
func NewValidationError(field string, err error) *ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag()))
		}
		if field == "" {
			field = fieldErrs[0].Field()
		}
		return &ValidationError{Field: field, Message: strings.Join(parts, "; "), Err: err}
	}
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "submit", "get_status")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// Validation errors are returned directly without wrapping.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidationError(err) {
		return err
	}
	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// unavailable marks err as an ErrUnavailable condition, keeping the cause
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
