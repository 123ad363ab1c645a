package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/mediatask/internal/events"
	"github.com/phrazzld/mediatask/internal/jobs"
	"github.com/phrazzld/mediatask/internal/status"
	"github.com/phrazzld/mediatask/internal/store"
	"github.com/phrazzld/mediatask/internal/store/memory"
	"github.com/phrazzld/mediatask/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyStore wraps a ResultStore and fails the operations a test selects
type flakyStore struct {
	store.ResultStore

	mu        sync.Mutex
	failGet   func(key string) bool
	failSet   bool
	failList  bool
	failWrite bool
}

func (s *flakyStore) unavailable(op, key string) error {
	return store.Unavailable("flaky", op, key, errors.New("connection refused"))
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	fail := s.failGet != nil && s.failGet(key)
	s.mu.Unlock()
	if fail {
		return nil, s.unavailable("get", key)
	}
	return s.ResultStore.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fail := s.failSet
	s.mu.Unlock()
	if fail {
		return s.unavailable("set", key)
	}
	return s.ResultStore.Set(ctx, key, value)
}

func (s *flakyStore) Append(ctx context.Context, listKey, value string) error {
	s.mu.Lock()
	fail := s.failWrite
	s.mu.Unlock()
	if fail {
		return s.unavailable("append", listKey)
	}
	return s.ResultStore.Append(ctx, listKey, value)
}

func (s *flakyStore) List(ctx context.Context, listKey string) ([]string, error) {
	s.mu.Lock()
	fail := s.failList
	s.mu.Unlock()
	if fail {
		return nil, s.unavailable("list", listKey)
	}
	return s.ResultStore.List(ctx, listKey)
}

type harness struct {
	results  *flakyStore
	tasks    *task.ResultTaskStore
	registry *task.Registry
	queue    *task.TaskQueue
	runner   *task.TaskRunner
	service  TaskService
}

// newHarness wires the service to an in-memory store, broker and catalog.
// ids are handed out in order for successive submissions.
func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()
	logger := testLogger()

	h := &harness{results: &flakyStore{ResultStore: memory.New()}}
	h.tasks = task.NewResultTaskStore(h.results, "")
	h.registry = task.NewRegistry(h.results, "")
	h.queue = task.NewTaskQueue(10, logger)

	emitter := events.NewRouter(logger)
	emitter.Fallback(task.NewDispatchEventHandler(h.queue, h.tasks, logger))

	catalog := jobs.NewDefaultCatalog(jobs.Deps{})
	executor := task.NewExecutor(h.tasks, logger)
	h.runner = task.NewTaskRunner(executor, catalog, h.queue, task.TaskRunnerConfig{WorkerCount: 1}, logger)

	var mu sync.Mutex
	next := 0
	newID := func() string {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(ids) {
			next++
			return fmt.Sprintf("task-%d", next)
		}
		id := ids[next]
		next++
		return id
	}

	svc, err := NewTaskService(h.tasks, h.registry, catalog, emitter, logger, WithIDGenerator(newID))
	require.NoError(t, err)
	h.service = svc
	return h
}

func (h *harness) startWorkers(t *testing.T) {
	t.Helper()
	require.NoError(t, h.runner.Start(context.Background()))
	t.Cleanup(func() {
		h.runner.Stop()
		h.queue.Close()
	})
}

func (h *harness) waitTerminal(t *testing.T, id string) status.View {
	t.Helper()
	var view status.View
	require.Eventually(t, func() bool {
		var err error
		view, err = h.service.GetStatus(context.Background(), id)
		return err == nil && view.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return view
}

func simulate(params string) SubmitRequest {
	return SubmitRequest{Type: task.TaskTypeSimulate, Params: json.RawMessage(params)}
}

func TestNewTaskService_NilDependencies(t *testing.T) {
	h := newHarness(t)
	catalog := jobs.NewCatalog()
	emitter := events.NewRouter(testLogger())

	_, err := NewTaskService(nil, h.registry, catalog, emitter, nil)
	assert.Error(t, err)
	_, err = NewTaskService(h.tasks, nil, catalog, emitter, nil)
	assert.Error(t, err)
	_, err = NewTaskService(h.tasks, h.registry, nil, emitter, nil)
	assert.Error(t, err)
	_, err = NewTaskService(h.tasks, h.registry, catalog, nil, nil)
	assert.Error(t, err)

	var serviceErr *TaskServiceError
	assert.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "create_service", serviceErr.Operation)
}

func TestSubmit_RecordsPendingBeforeDispatch(t *testing.T) {
	h := newHarness(t, "abc123")
	ctx := context.Background()

	result, err := h.service.Submit(ctx, simulate(`{"steps":3}`))
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.TaskID)
	assert.Equal(t, task.StatusPending, result.Status)

	ids, err := h.registry.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123"}, ids)

	rec, err := h.tasks.GetRecord(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, rec.Status)
	assert.Equal(t, task.TaskTypeSimulate, rec.Type)

	select {
	case d := <-h.queue.GetChannel():
		assert.Equal(t, "abc123", d.TaskID)
		assert.JSONEq(t, `{"steps":3}`, string(d.Params))
	default:
		t.Fatal("expected a dispatch on the queue")
	}

	d, err := h.tasks.GetDispatch(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, task.TaskTypeSimulate, d.Type)
}

func TestSubmit_RunsToSuccess(t *testing.T) {
	h := newHarness(t, "abc123")
	h.startWorkers(t)

	_, err := h.service.Submit(context.Background(), simulate(`{"steps":3,"video_id":"abc123"}`))
	require.NoError(t, err)

	view := h.waitTerminal(t, "abc123")
	assert.Equal(t, task.StatusSuccess, view.Status)
	require.NotNil(t, view.Progress)
	assert.Equal(t, 100.0, *view.Progress)
	require.NotNil(t, view.CurrentStep)
	assert.Equal(t, 3, *view.CurrentStep)
	assert.NotNil(t, view.StartTime)
	assert.NotNil(t, view.EndTime)
	require.NotNil(t, view.DurationSeconds)
	assert.GreaterOrEqual(t, *view.DurationSeconds, 0.0)
	assert.Equal(t, "Completed", view.Result["status"])
	assert.Equal(t, "abc123", view.Result["video_id"])
	assert.Nil(t, view.Error)
}

func TestSubmit_FailureAtStep(t *testing.T) {
	h := newHarness(t, "abc123")
	h.startWorkers(t)

	_, err := h.service.Submit(context.Background(), simulate(`{"steps":3,"fail_at_step":2}`))
	require.NoError(t, err)

	view := h.waitTerminal(t, "abc123")
	assert.Equal(t, task.StatusFailure, view.Status)
	require.NotNil(t, view.CurrentStep)
	assert.Equal(t, 2, *view.CurrentStep)
	require.NotNil(t, view.Error)
	assert.Equal(t, "jobs.SimulatedError", view.Error.Type)
	assert.Equal(t, "simulated failure at step 2", view.Error.Message)
	assert.Nil(t, view.Result)
}

func TestListStatuses_SubmissionOrder(t *testing.T) {
	h := newHarness(t, "first", "second")
	h.startWorkers(t)
	ctx := context.Background()

	_, err := h.service.Submit(ctx, simulate(`{"steps":1}`))
	require.NoError(t, err)
	_, err = h.service.Submit(ctx, simulate(`{"steps":2}`))
	require.NoError(t, err)

	h.waitTerminal(t, "first")
	h.waitTerminal(t, "second")

	views, err := h.service.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "first", views[0].TaskID)
	assert.Equal(t, "second", views[1].TaskID)
	for _, v := range views {
		assert.Equal(t, task.StatusSuccess, v.Status)
	}
}

func TestSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		req       SubmitRequest
		wantField string
		wantIs    error
	}{
		{
			name:      "missing type",
			req:       SubmitRequest{Type: "  "},
			wantField: "type",
		},
		{
			name:      "unknown type",
			req:       SubmitRequest{Type: "transcribe_audio"},
			wantField: "type",
			wantIs:    task.ErrUnknownTaskType,
		},
		{
			name:      "params out of range",
			req:       simulate(`{"steps":2000}`),
			wantField: "params",
			wantIs:    jobs.ErrInvalidParams,
		},
		{
			name:      "unknown param",
			req:       simulate(`{"stepz":2}`),
			wantField: "params",
			wantIs:    jobs.ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "abc123")
			ctx := context.Background()

			result, err := h.service.Submit(ctx, tt.req)
			require.Error(t, err)
			assert.Nil(t, result)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}

			// nothing enters the lifecycle
			ids, listErr := h.registry.List(ctx)
			require.NoError(t, listErr)
			assert.Empty(t, ids)
			_, getErr := h.tasks.GetRecord(ctx, "abc123")
			assert.True(t, store.IsNotFoundError(getErr))
		})
	}
}

func TestSubmit_StoreUnavailable(t *testing.T) {
	t.Run("record write fails", func(t *testing.T) {
		h := newHarness(t, "abc123")
		h.results.failSet = true

		_, err := h.service.Submit(context.Background(), simulate(`{}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.ErrorIs(t, err, store.ErrUnavailable)

		h.results.failSet = false
		ids, listErr := h.registry.List(context.Background())
		require.NoError(t, listErr)
		assert.Empty(t, ids)
	})

	t.Run("registry append fails", func(t *testing.T) {
		h := newHarness(t, "abc123")
		h.results.failWrite = true

		_, err := h.service.Submit(context.Background(), simulate(`{}`))
		assert.ErrorIs(t, err, ErrUnavailable)

		select {
		case <-h.queue.GetChannel():
			t.Fatal("unregistered task must not be dispatched")
		default:
		}

		view, err := h.service.GetStatus(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, task.StatusFailure, view.Status)
		require.NotNil(t, view.Error)
		assert.Equal(t, "RegistryError", view.Error.Type)
		assert.Equal(t, "registry", view.Error.Module)
	})
}

func TestSubmit_DispatchFailureAbandonsTask(t *testing.T) {
	h := newHarness(t, "abc123")
	h.queue.Close()
	ctx := context.Background()

	_, err := h.service.Submit(ctx, simulate(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, task.ErrQueueClosed)

	view, err := h.service.GetStatus(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailure, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, "DispatchError", view.Error.Type)
	assert.Equal(t, "broker", view.Error.Module)
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("empty id", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.service.GetStatus(ctx, " ")
		assert.ErrorIs(t, err, ErrInvalidTaskID)
	})

	t.Run("unknown id is pending", func(t *testing.T) {
		h := newHarness(t)
		view, err := h.service.GetStatus(ctx, "nope")
		require.NoError(t, err)
		assert.Equal(t, status.Project("nope", nil), view)
	})

	t.Run("unreadable record degrades to pending", func(t *testing.T) {
		h := newHarness(t, "abc123")
		_, err := h.service.Submit(ctx, simulate(`{}`))
		require.NoError(t, err)

		h.results.failGet = func(string) bool { return true }
		view, err := h.service.GetStatus(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, task.StatusPending, view.Status)
		assert.Nil(t, view.Progress)
	})
}

func TestListStatuses_Degrades(t *testing.T) {
	ctx := context.Background()

	t.Run("unreadable registry yields empty list", func(t *testing.T) {
		h := newHarness(t, "abc123")
		_, err := h.service.Submit(ctx, simulate(`{}`))
		require.NoError(t, err)

		h.results.failList = true
		views, err := h.service.ListStatuses(ctx)
		require.NoError(t, err)
		assert.NotNil(t, views)
		assert.Empty(t, views)
	})

	t.Run("unreadable record is omitted", func(t *testing.T) {
		h := newHarness(t, "first", "broken", "last")
		for i := 0; i < 3; i++ {
			_, err := h.service.Submit(ctx, simulate(`{}`))
			require.NoError(t, err)
		}

		h.results.failGet = func(key string) bool { return strings.HasSuffix(key, "broken") }
		views, err := h.service.ListStatuses(ctx)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "first", views[0].TaskID)
		assert.Equal(t, "last", views[1].TaskID)
	})
}
