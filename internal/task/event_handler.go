package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/mediatask/internal/events"
)

// DispatchEventHandler implements events.EventHandler by turning task
// request events into broker dispatches.
type DispatchEventHandler struct {
	queue  TaskQueueWriter
	tasks  TaskStore
	logger *slog.Logger
}

// NewDispatchEventHandler creates a handler that enqueues every event on
// queue. When tasks is non-nil the dispatch envelope is stored first so a
// restarted runner can re-dispatch tasks that never left PENDING.
func NewDispatchEventHandler(queue TaskQueueWriter, tasks TaskStore, logger *slog.Logger) *DispatchEventHandler {
	return &DispatchEventHandler{
		queue:  queue,
		tasks:  tasks,
		logger: logger.With("component", "dispatch_event_handler"),
	}
}

// HandleEvent enqueues the task named by the event. Any failure is returned
// so the submitter can report the broker as unavailable.
func (h *DispatchEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event.TaskID == "" {
		h.logger.Error("event has no task id", "event_id", event.ID, "event_type", event.Type)
		return fmt.Errorf("event %s: %w", event.ID, ErrInvalidTaskID)
	}

	d := Dispatch{
		TaskID:      event.TaskID,
		Type:        event.Type,
		Params:      event.Payload,
		SubmittedAt: event.CreatedAt,
	}

	if h.tasks != nil {
		if err := h.tasks.SaveDispatch(ctx, d); err != nil {
			h.logger.Warn("failed to store dispatch envelope",
				"error", err,
				"task_id", d.TaskID,
				"event_id", event.ID)
		}
	}

	if err := h.queue.Enqueue(ctx, d); err != nil {
		h.logger.Error("failed to enqueue task",
			"error", err,
			"task_id", d.TaskID,
			"task_type", d.Type,
			"event_id", event.ID)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	h.logger.Debug("task dispatched",
		"task_id", d.TaskID,
		"task_type", d.Type,
		"event_id", event.ID)
	return nil
}

// Ensure DispatchEventHandler implements events.EventHandler
var _ events.EventHandler = (*DispatchEventHandler)(nil)
