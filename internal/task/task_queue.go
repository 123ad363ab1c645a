package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the TaskQueue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskQueue implements a buffered in-process broker that satisfies both
// TaskQueueReader and TaskQueueWriter interfaces
type TaskQueue struct {
	mu       sync.RWMutex
	dispatch chan Dispatch
	logger   *slog.Logger
	closed   bool
}

// NewTaskQueue creates a new task queue with the specified buffer size
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	if size < 0 {
		size = 0
	}
	return &TaskQueue{
		dispatch: make(chan Dispatch, size),
		logger:   logger,
	}
}

// Enqueue adds a dispatch to the queue for processing
// Returns an error if the queue is full or closed
func (q *TaskQueue) Enqueue(ctx context.Context, d Dispatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.dispatch <- d:
		q.logger.Debug("task enqueued",
			"task_id", d.TaskID,
			"task_type", d.Type,
			"queue_len", len(q.dispatch),
			"queue_cap", cap(q.dispatch))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.dispatch))
	}
}

// Close closes the task queue, preventing further submission
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.dispatch)
		q.logger.Info("task queue closed")
	}
}

// GetChannel returns a read-only channel for consuming dispatches
func (q *TaskQueue) GetChannel() <-chan Dispatch {
	return q.dispatch
}

var (
	_ TaskQueueReader = (*TaskQueue)(nil)
	_ TaskQueueWriter = (*TaskQueue)(nil)
)
