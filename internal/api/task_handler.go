package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/mediatask/internal/api/shared"
	"github.com/phrazzld/mediatask/internal/platform/logger"
	"github.com/phrazzld/mediatask/internal/service"
	"github.com/phrazzld/mediatask/internal/stream"
)

// TaskStreamer runs the server-sent event loops
type TaskStreamer interface {
	StreamTask(ctx context.Context, id string, sink stream.Sink) error
	StreamList(ctx context.Context, sink stream.Sink) error
}

// TaskHandler handles task submission, status and event stream requests
type TaskHandler struct {
	tasks    service.TaskService
	streamer TaskStreamer
	logger   *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks service.TaskService, streamer TaskStreamer, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:    tasks,
		streamer: streamer,
		logger:   logger.With("component", "task_handler"),
	}
}

// SubmitTask handles POST /api/tasks requests
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var body SubmitTaskRequest
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		if errors.Is(err, shared.ErrEmptyBody) {
			HandleAPIError(w, r, err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := shared.ValidateRequest(&body); err != nil {
		HandleAPIError(w, r, service.NewValidationError("", err))
		return
	}

	req, err := body.toSubmitRequest()
	if err != nil {
		HandleAPIError(w, r, service.NewValidationError("params", err))
		return
	}

	result, err := h.tasks.Submit(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	// 202 Accepted, the task runs asynchronously
	shared.RespondWithJSON(w, r, http.StatusAccepted, result)
}

// GetTask handles GET /api/tasks/{id} requests
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	view, err := h.tasks.GetStatus(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// ListTasks handles GET /api/tasks requests
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	views, err := h.tasks.ListStatuses(r.Context())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, views)
}

// StreamTask handles GET /api/tasks/{id}/events. The stream ends after the
// task's terminal view has been sent.
func (h *TaskHandler) StreamTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	sink, err := stream.NewEventWriter(w)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log := logger.FromContextOrDefault(r.Context(), h.logger)
	if err := h.streamer.StreamTask(r.Context(), id, sink); err != nil {
		log.Debug("task event stream ended with error", "task_id", id, "error", err)
	}
}

// StreamTaskList handles GET /api/tasks/events/list. The stream runs until
// the client disconnects.
func (h *TaskHandler) StreamTaskList(w http.ResponseWriter, r *http.Request) {
	sink, err := stream.NewEventWriter(w)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log := logger.FromContextOrDefault(r.Context(), h.logger)
	if err := h.streamer.StreamList(r.Context(), sink); err != nil {
		log.Debug("task list event stream ended with error", "error", err)
	}
}

// taskID reads the {id} path parameter, writing a 400 when it is blank
func (h *TaskHandler) taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		HandleAPIError(w, r, service.ErrInvalidTaskID)
		return "", false
	}
	return id, true
}
