package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/mediatask/internal/service"
	"github.com/phrazzld/mediatask/internal/status"
	"github.com/phrazzld/mediatask/internal/store"
	"github.com/phrazzld/mediatask/internal/stream"
	"github.com/phrazzld/mediatask/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTaskService implements service.TaskService with overridable functions
type mockTaskService struct {
	SubmitFn       func(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error)
	GetStatusFn    func(ctx context.Context, id string) (status.View, error)
	ListStatusesFn func(ctx context.Context) ([]status.View, error)
}

func (m *mockTaskService) Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
	return m.SubmitFn(ctx, req)
}

func (m *mockTaskService) GetStatus(ctx context.Context, id string) (status.View, error) {
	return m.GetStatusFn(ctx, id)
}

func (m *mockTaskService) ListStatuses(ctx context.Context) ([]status.View, error) {
	return m.ListStatusesFn(ctx)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type testEnv struct {
	service *mockTaskService
	tasks   *task.MockTaskStore
	ids     []string
	router  http.Handler
}

func setupTestEnv(t *testing.T, pinger store.Pinger) *testEnv {
	t.Helper()

	env := &testEnv{
		service: &mockTaskService{},
		tasks:   task.NewMockTaskStore(),
	}
	reader := status.NewReader(env.tasks, idListerFunc(func(ctx context.Context) ([]string, error) {
		return env.ids, nil
	}))
	streamer := stream.NewStreamer(reader, stream.Config{PollInterval: 5 * time.Millisecond}, testLogger())

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "abc123.mp4"), []byte("video"), 0o644))

	env.router = NewRouter(RouterConfig{
		Tasks:        NewTaskHandler(env.service, streamer, testLogger()),
		Health:       NewHealthHandler(pinger, testLogger()),
		StaticDir:    staticDir,
		StaticPrefix: "/static/processed/",
		Logger:       testLogger(),
	})
	return env
}

type idListerFunc func(ctx context.Context) ([]string, error)

func (f idListerFunc) List(ctx context.Context) ([]string, error) { return f(ctx) }

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestSubmitTask(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantType   string
		wantParams string
		wantField  string
	}{
		{
			name:       "typed submission",
			body:       `{"type":"simulate","params":{"steps":3}}`,
			wantStatus: http.StatusAccepted,
			wantType:   "simulate",
			wantParams: `{"steps":3}`,
		},
		{
			name:       "legacy video id",
			body:       `{"video_id":"abc123"}`,
			wantStatus: http.StatusAccepted,
			wantType:   task.TaskTypeProcessVideo,
			wantParams: `{"video_id":"abc123"}`,
		},
		{
			name:       "video id with explicit type",
			body:       `{"type":"analyze_video","video_id":"abc123"}`,
			wantStatus: http.StatusAccepted,
			wantType:   task.TaskTypeAnalyzeVideo,
			wantParams: `{"video_id":"abc123"}`,
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"type":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "type too long",
			body:       `{"type":"` + strings.Repeat("x", 65) + `"}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "Type",
		},
		{
			name: "params rejected by service",
			body: `{"type":"simulate","params":{"steps":0}}`,
			submitErr: &service.ValidationError{
				Field:   "params",
				Message: "Steps failed on the 'gte' rule",
			},
			wantStatus: http.StatusBadRequest,
			wantType:   "simulate",
			wantParams: `{"steps":0}`,
			wantField:  "params",
		},
		{
			name:       "store unavailable",
			body:       `{"type":"simulate"}`,
			submitErr:  service.NewTaskServiceError("submit", "failed to record task", fmt.Errorf("%w: %w", service.ErrUnavailable, store.ErrUnavailable)),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   "simulate",
		},
		{
			name:       "queue full",
			body:       `{"type":"simulate"}`,
			submitErr:  fmt.Errorf("failed to dispatch task: %w", task.ErrQueueFull),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   "simulate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t, nil)

			var got *service.SubmitRequest
			env.service.SubmitFn = func(ctx context.Context, req service.SubmitRequest) (*service.SubmitResult, error) {
				got = &req
				if tt.submitErr != nil {
					return nil, tt.submitErr
				}
				return &service.SubmitResult{TaskID: "abc123", Status: task.StatusPending}, nil
			}

			req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(tt.body))
			rec := env.do(req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)

			if tt.wantType != "" {
				require.NotNil(t, got)
				assert.Equal(t, tt.wantType, got.Type)
				if tt.wantParams != "" {
					assert.JSONEq(t, tt.wantParams, string(got.Params))
				}
			} else {
				assert.Nil(t, got, "service must not be called")
			}

			if tt.wantStatus == http.StatusAccepted {
				assert.Equal(t, "abc123", body["task_id"])
				assert.Equal(t, "PENDING", body["status"])
				return
			}

			assert.NotEmpty(t, body["error"])
			assert.NotEmpty(t, body["trace_id"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, body["field"])
			}
			assert.NotContains(t, rec.Body.String(), "result store")
		})
	}
}

func TestGetTask(t *testing.T) {
	env := setupTestEnv(t, nil)

	step, total, progress := 2, 3, 66.67
	msg := "Transcoding video"
	env.service.GetStatusFn = func(ctx context.Context, id string) (status.View, error) {
		if id != "abc123" {
			return status.Project(id, nil), nil
		}
		return status.View{
			TaskID:      id,
			Status:      task.StatusProgress,
			CurrentStep: &step,
			TotalSteps:  &total,
			Progress:    &progress,
			Message:     &msg,
		}, nil
	}

	t.Run("known task", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/tasks/abc123", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "abc123", body["task_id"])
		assert.Equal(t, "PROGRESS", body["status"])
		assert.Equal(t, float64(2), body["current_step"])
		assert.Equal(t, "Transcoding video", body["message"])
	})

	t.Run("unknown task is pending", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/tasks/nope", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "PENDING", body["status"])
		assert.Nil(t, body["progress"])
		assert.Contains(t, body, "current_step")
	})

	t.Run("service error", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		env.service.GetStatusFn = func(ctx context.Context, id string) (status.View, error) {
			return status.View{}, service.ErrInvalidTaskID
		}
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/tasks/%20", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListTasks(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.service.ListStatusesFn = func(ctx context.Context) ([]status.View, error) {
		return []status.View{status.Project("a", nil), status.Project("b", nil)}, nil
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var views []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "a", views[0]["task_id"])
	assert.Equal(t, "b", views[1]["task_id"])
}

func TestListTasks_Empty(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.service.ListStatusesFn = func(ctx context.Context) ([]status.View, error) {
		return []status.View{}, nil
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

// readEvents returns the data payloads of every event in an SSE body
func readEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestStreamTask(t *testing.T) {
	env := setupTestEnv(t, nil)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)
	duration := 3.0
	env.tasks.Put(&task.Record{
		ID:              "abc123",
		Status:          task.StatusSuccess,
		CurrentStep:     3,
		TotalSteps:      3,
		Progress:        100,
		Message:         "Task completed successfully",
		StartTime:       &start,
		EndTime:         &end,
		DurationSeconds: &duration,
		Result:          map[string]any{"result_url": "/static/processed/abc123.mp4"},
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/tasks/abc123/events", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "SUCCESS", events[0]["status"])
	assert.Equal(t, "/static/processed/abc123.mp4", events[0]["result_url"])
}

func TestStreamTaskList(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.ids = []string{"abc123"}
	env.tasks.Put(task.NewPendingRecord("abc123", task.TaskTypeSimulate))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks/events/list", nil).WithContext(ctx)
	rec := env.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 1, "unchanged list must not be re-sent")
	assert.Equal(t, stream.EventTaskListUpdate, events[0]["event"])

	data, ok := events[0]["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	assert.Equal(t, "abc123", data[0].(map[string]any)["task_id"])
}

func TestStreamTask_ReadFailure(t *testing.T) {
	env := setupTestEnv(t, nil)
	env.tasks.GetRecordFn = func(ctx context.Context, id string) (*task.Record, error) {
		return nil, store.Unavailable("redis", "get", "task-meta-"+id, errors.New("connection refused"))
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/tasks/abc123/events", nil))

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0]["event"])
	assert.Equal(t, "abc123", events[0]["task_id"])
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t, stubPinger{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	t.Run("store reachable", func(t *testing.T) {
		env := setupTestEnv(t, stubPinger{})
		rec := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("store unreachable", func(t *testing.T) {
		env := setupTestEnv(t, stubPinger{err: errors.New("dial tcp: refused")})
		rec := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), "refused")
	})

	t.Run("no pinger", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		rec := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStaticFiles(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/static/processed/abc123.mp4", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video", rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/static/processed/missing.mp4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, http.StatusInternalServerError},
		{"validation", &service.ValidationError{Field: "type", Message: "x"}, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("submit: %w", &service.ValidationError{}), http.StatusBadRequest},
		{"invalid id", service.ErrInvalidTaskID, http.StatusBadRequest},
		{"store unavailable", fmt.Errorf("read: %w", store.ErrUnavailable), http.StatusServiceUnavailable},
		{"queue closed", task.ErrQueueClosed, http.StatusServiceUnavailable},
		{"streaming unsupported", stream.ErrStreamingUnsupported, http.StatusNotImplemented},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "An unexpected error occurred",
		GetSafeErrorMessage(errors.New("postgres://app:secret@db failed")))
	assert.Equal(t, "invalid type: unknown task type \"nope\"",
		GetSafeErrorMessage(&service.ValidationError{Field: "type", Message: "unknown task type \"nope\""}))
	assert.Equal(t, "Task queue is full, try again later", GetSafeErrorMessage(task.ErrQueueFull))
}
