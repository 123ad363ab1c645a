package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrStreamingUnsupported is returned when the response cannot be flushed
var ErrStreamingUnsupported = errors.New("streaming unsupported by response writer")

// Sink receives encoded events from a Streamer
type Sink interface {
	// Send emits one event carrying data
	Send(data []byte) error

	// Comment emits a comment line, which clients ignore
	Comment(text string) error
}

// EventWriter is a Sink that frames events as server-sent events on an
// HTTP response and flushes after each one.
type EventWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEventWriter prepares w for an event stream and writes the headers.
// It fails when w does not support flushing.
func NewEventWriter(w http.ResponseWriter) (*EventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &EventWriter{w: w, flusher: flusher}, nil
}

// Send writes "data: <data>\n\n" and flushes
func (e *EventWriter) Send(data []byte) error {
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// Comment writes ": <text>\n\n" and flushes
func (e *EventWriter) Comment(text string) error {
	if _, err := fmt.Fprintf(e.w, ": %s\n\n", text); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

var _ Sink = (*EventWriter)(nil)
