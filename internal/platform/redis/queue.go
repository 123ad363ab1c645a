package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/mediatask/internal/task"
)

// Queue timings
const (
	// defaultPopTimeout bounds each BLPOP so the pump notices Close
	defaultPopTimeout = time.Second

	// pumpRetryDelay is the pause after a failed BLPOP
	pumpRetryDelay = time.Second
)

// ReadyKey returns the list holding dispatches waiting for a worker
func ReadyKey(queueName string) string {
	return "queue:" + queueName + ":ready"
}

// Queue is a broker on a Redis list. It implements task.TaskQueueWriter
// for producers and, once started, task.TaskQueueReader for a worker pool.
type Queue struct {
	rdb        goredis.Cmdable
	key        string
	logger     *slog.Logger
	popTimeout time.Duration

	dispatch chan task.Dispatch

	mu      sync.Mutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewQueue creates a queue named queueName
func NewQueue(rdb goredis.Cmdable, queueName string, logger *slog.Logger) *Queue {
	return &Queue{
		rdb:        rdb,
		key:        ReadyKey(queueName),
		logger:     logger.With("component", "redis_queue", "queue", queueName),
		popTimeout: defaultPopTimeout,
		dispatch:   make(chan task.Dispatch),
		done:       make(chan struct{}),
	}
}

// Enqueue appends d to the ready list
func (q *Queue) Enqueue(ctx context.Context, d task.Dispatch) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return task.ErrQueueClosed
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.key, payload).Err(); err != nil {
		return wrapError("enqueue", q.key, err)
	}

	q.logger.Debug("task enqueued", "task_id", d.TaskID, "task_type", d.Type)
	return nil
}

// Start begins moving dispatches from Redis onto the channel returned by
// GetChannel. The channel is unbuffered, so at most one popped dispatch is
// in flight per process.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	go q.pump(ctx)
}

// GetChannel implements task.TaskQueueReader
func (q *Queue) GetChannel() <-chan task.Dispatch {
	return q.dispatch
}

// Close stops the pump and closes the channel. It is safe to call more
// than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	started := q.started
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	if started {
		<-q.done
	}
	close(q.dispatch)
}

func (q *Queue) pump(ctx context.Context) {
	defer close(q.done)

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := q.rdb.BLPop(ctx, q.popTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			q.logger.Warn("failed to pop dispatch", "error", err)
			select {
			case <-time.After(pumpRetryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		// BLPOP answers [key, value]
		if len(res) != 2 {
			continue
		}
		var d task.Dispatch
		if err := json.Unmarshal([]byte(res[1]), &d); err != nil {
			q.logger.Error("dropping malformed dispatch", "error", err, "payload", res[1])
			continue
		}

		select {
		case q.dispatch <- d:
		case <-ctx.Done():
			q.requeue(res[1], d)
			return
		}
	}
}

// requeue puts a popped dispatch back at the head of the list when the
// queue closes before a worker took it
func (q *Queue) requeue(payload string, d task.Dispatch) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
		q.logger.Error("failed to requeue dispatch on close", "task_id", d.TaskID, "error", err)
	}
}

var (
	_ task.TaskQueueReader = (*Queue)(nil)
	_ task.TaskQueueWriter = (*Queue)(nil)
)
