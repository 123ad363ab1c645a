package media

import (
	"errors"
	"fmt"
)

// Media errors
var (
	// ErrUnsupportedSource is returned for sources the fetcher cannot read
	ErrUnsupportedSource = errors.New("unsupported media source")

	// ErrTooLarge is returned when a download exceeds the size limit
	ErrTooLarge = errors.New("media exceeds size limit")

	// ErrInvalidName is returned for artifact names that would escape the
	// output directory
	ErrInvalidName = errors.New("invalid artifact name")
)

// FetchError reports a non-success HTTP response
type FetchError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// TranscodeError reports a failed transcoder run with the tail of its output
type TranscodeError struct {
	Output string
	Err    error
}

// Error implements the error interface
func (e *TranscodeError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("transcode failed: %v", e.Err)
	}
	return fmt.Sprintf("transcode failed: %v: %s", e.Err, e.Output)
}

// Unwrap returns the wrapped error
func (e *TranscodeError) Unwrap() error {
	return e.Err
}
