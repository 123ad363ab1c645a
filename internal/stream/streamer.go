package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/mediatask/internal/redact"
	"github.com/phrazzld/mediatask/internal/status"
)

// DefaultPollInterval is how often a stream re-reads status
const DefaultPollInterval = time.Second

// Event names carried in the "event" field of wrapped events
const (
	EventTaskListUpdate = "task_list_update"
	EventError          = "error"
)

// Source is the read path a Streamer polls
type Source interface {
	Status(ctx context.Context, id string) (status.View, error)
	Statuses(ctx context.Context) ([]status.View, error)
}

// Config controls polling and keepalive timing
type Config struct {
	// PollInterval between reads. Zero selects DefaultPollInterval
	PollInterval time.Duration

	// KeepaliveInterval is the longest a stream stays silent before it
	// writes a comment line. Zero disables keepalives
	KeepaliveInterval time.Duration
}

// Streamer runs the poll, diff and emit loops. It holds no per-stream
// state, so one Streamer serves every connection.
type Streamer struct {
	source    Source
	interval  time.Duration
	keepalive time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewStreamer creates a Streamer reading from source
func NewStreamer(source Source, cfg Config, logger *slog.Logger) *Streamer {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Streamer{
		source:    source,
		interval:  interval,
		keepalive: cfg.KeepaliveInterval,
		logger:    logger.With("component", "event_streamer"),
		now:       time.Now,
	}
}

// Error is reported when a stream ends because status could not be read
// or encoded. The client has already received an error event.
type Error struct {
	TaskID string
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("task list stream failed: %v", e.Err)
	}
	return fmt.Sprintf("task %s stream failed: %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying read or encode error
func (e *Error) Unwrap() error {
	return e.Err
}

type errorEvent struct {
	Event  string `json:"event"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error"`
}

type listEvent struct {
	Event string            `json:"event"`
	Data  []json.RawMessage `json:"data"`
}

// StreamTask emits the view of task id whenever it changes. After the
// terminal view is sent the stream returns nil. A cancelled ctx also
// returns nil; a sink failure returns the write error; a read failure
// sends one error event and returns an *Error.
func (s *Streamer) StreamTask(ctx context.Context, id string, sink Sink) error {
	logger := s.logger.With("task_id", id)
	logger.Debug("task stream opened")

	var last []byte
	lastWrite := s.now()

	for {
		v, err := s.source.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return s.fail(sink, id, err, logger)
		}

		data, err := json.Marshal(v)
		if err != nil {
			return s.fail(sink, id, err, logger)
		}

		if !bytes.Equal(data, last) {
			if err := sink.Send(data); err != nil {
				logger.Debug("task stream client gone", "error", err)
				return fmt.Errorf("failed to send task event: %w", err)
			}
			last = data
			lastWrite = s.now()
		}

		if v.IsTerminal() {
			logger.Debug("task stream closed on terminal state", "status", v.Status)
			return nil
		}

		done, err := s.wait(ctx, sink, &lastWrite)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// StreamList emits the views of every registered task, in registry order,
// whenever any of them changed or a new id appeared. It never emits when
// nothing changed, and runs until ctx is cancelled (returns nil), the sink
// fails, or status cannot be read (one error event, then *Error).
func (s *Streamer) StreamList(ctx context.Context, sink Sink) error {
	logger := s.logger.With("stream", "task_list")
	logger.Debug("list stream opened")

	snapshots := make(map[string][]byte)
	lastWrite := s.now()

	for {
		views, err := s.source.Statuses(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return s.fail(sink, "", err, logger)
		}

		changed := false
		encoded := make([]json.RawMessage, 0, len(views))
		for _, v := range views {
			data, err := json.Marshal(v)
			if err != nil {
				return s.fail(sink, "", err, logger)
			}
			if prev, ok := snapshots[v.TaskID]; !ok || !bytes.Equal(prev, data) {
				snapshots[v.TaskID] = data
				changed = true
			}
			encoded = append(encoded, data)
		}

		if changed {
			payload, err := json.Marshal(listEvent{Event: EventTaskListUpdate, Data: encoded})
			if err != nil {
				return s.fail(sink, "", err, logger)
			}
			if err := sink.Send(payload); err != nil {
				logger.Debug("list stream client gone", "error", err)
				return fmt.Errorf("failed to send list event: %w", err)
			}
			lastWrite = s.now()
		}

		done, err := s.wait(ctx, sink, &lastWrite)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// wait sleeps one interval. It reports done when ctx is cancelled, and
// writes a keepalive comment when the stream has been quiet long enough.
func (s *Streamer) wait(ctx context.Context, sink Sink, lastWrite *time.Time) (bool, error) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true, nil
	case <-timer.C:
	}

	if s.keepalive > 0 && s.now().Sub(*lastWrite) >= s.keepalive {
		if err := sink.Comment("keepalive"); err != nil {
			return false, fmt.Errorf("failed to send keepalive: %w", err)
		}
		*lastWrite = s.now()
	}
	return false, nil
}

// fail sends the single error event that ends a stream
func (s *Streamer) fail(sink Sink, id string, cause error, logger *slog.Logger) error {
	logger.Error("stream read failed", "error", redact.Error(cause))

	payload, err := json.Marshal(errorEvent{Event: EventError, TaskID: id, Error: redact.Error(cause)})
	if err == nil {
		if sendErr := sink.Send(payload); sendErr != nil {
			logger.Debug("failed to send error event", "error", sendErr)
		}
	}
	return &Error{TaskID: id, Err: cause}
}
