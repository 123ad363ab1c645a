package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/mediatask/internal/api/shared"
	"github.com/phrazzld/mediatask/internal/service"
	"github.com/phrazzld/mediatask/internal/store"
	"github.com/phrazzld/mediatask/internal/stream"
	"github.com/phrazzld/mediatask/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Bad request errors
	case service.IsValidationError(err),
		errors.Is(err, service.ErrInvalidTaskID),
		errors.Is(err, task.ErrInvalidTaskID),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	// Store or broker not reachable
	case errors.Is(err, service.ErrUnavailable),
		errors.Is(err, store.ErrUnavailable),
		errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	case errors.Is(err, stream.ErrStreamingUnsupported):
		return http.StatusNotImplemented

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Validation messages are built from field names
// and rule tags and are safe to return as-is.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Error()

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.Is(err, service.ErrInvalidTaskID),
		errors.Is(err, task.ErrInvalidTaskID):
		return "Invalid task id"

	case errors.Is(err, task.ErrQueueFull):
		return "Task queue is full, try again later"

	case errors.Is(err, service.ErrUnavailable),
		errors.Is(err, store.ErrUnavailable),
		errors.Is(err, task.ErrQueueClosed):
		return "Task service is temporarily unavailable"

	case errors.Is(err, stream.ErrStreamingUnsupported):
		return "Streaming is not supported"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the response for err using the status and message
// mappings above. The full error is logged redacted.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)

	var opts []shared.ResponseOption
	var ve *service.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		opts = append(opts, shared.WithField(ve.Field))
	}
	if errors.Is(err, task.ErrQueueFull) {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err, opts...)
}
