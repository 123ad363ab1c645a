package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the analyzer configuration is unusable
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrEmptyVideoPath is returned when Analyze is called without a file
	ErrEmptyVideoPath = errors.New("video path cannot be empty")

	// ErrInvalidResponse is returned when the model answer cannot be used
	ErrInvalidResponse = errors.New("invalid response from gemini")

	// ErrContentBlocked is returned when safety filters block the request
	ErrContentBlocked = errors.New("content blocked by gemini safety filters")

	// ErrTransientFailure is returned when retries are exhausted
	ErrTransientFailure = errors.New("transient gemini failure")

	// ErrFileProcessing is returned when Gemini fails to process an upload
	ErrFileProcessing = errors.New("gemini file processing failed")

	// ErrFileTimeout is returned when an upload does not become active in time
	ErrFileTimeout = errors.New("gemini file processing timed out")
)
