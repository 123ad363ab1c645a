package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/phrazzld/mediatask/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingQueue is a TaskQueueWriter that rejects every dispatch
type failingQueue struct {
	err error
}

func (q *failingQueue) Enqueue(ctx context.Context, d Dispatch) error { return q.err }
func (q *failingQueue) Close()                                         {}

func TestDispatchEventHandler_Enqueues(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(1, setupTestLogger())
	tasks := NewMockTaskStore()
	handler := NewDispatchEventHandler(queue, tasks, setupTestLogger())

	event, err := events.NewTaskRequestEvent("t1", TaskTypeSimulate, map[string]int{"steps": 2})
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(context.Background(), event))

	d := <-queue.GetChannel()
	assert.Equal(t, "t1", d.TaskID)
	assert.Equal(t, TaskTypeSimulate, d.Type)
	assert.JSONEq(t, `{"steps":2}`, string(d.Params))

	stored, err := tasks.GetDispatch(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", stored.TaskID)
}

func TestDispatchEventHandler_QueueFailure(t *testing.T) {
	t.Parallel()

	handler := NewDispatchEventHandler(&failingQueue{err: ErrQueueFull}, nil, setupTestLogger())

	event, err := events.NewTaskRequestEvent("t1", TaskTypeSimulate, json.RawMessage(`{}`))
	require.NoError(t, err)

	err = handler.HandleEvent(context.Background(), event)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatchEventHandler_MissingTaskID(t *testing.T) {
	t.Parallel()

	handler := NewDispatchEventHandler(NewTaskQueue(1, setupTestLogger()), nil, setupTestLogger())

	event, err := events.NewTaskRequestEvent("", TaskTypeSimulate, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, handler.HandleEvent(context.Background(), event), ErrInvalidTaskID)
}

func TestDispatchEventHandler_EnvelopeFailureStillDispatches(t *testing.T) {
	t.Parallel()

	queue := NewTaskQueue(1, setupTestLogger())
	tasks := NewMockTaskStore()
	tasks.SaveDispatchFn = func(ctx context.Context, d Dispatch) error {
		return errors.New("store down")
	}
	handler := NewDispatchEventHandler(queue, tasks, setupTestLogger())

	event, err := events.NewTaskRequestEvent("t1", TaskTypeSimulate, nil)
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(context.Background(), event))
	assert.Len(t, queue.GetChannel(), 1)
}
