package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mediatask/internal/events"
	"github.com/phrazzld/mediatask/internal/redact"
	"github.com/phrazzld/mediatask/internal/status"
	"github.com/phrazzld/mediatask/internal/store"
	"github.com/phrazzld/mediatask/internal/task"
)

// ParamsValidator checks a submission's type and params before anything is
// written
type ParamsValidator interface {
	ValidateParams(taskType string, params json.RawMessage) error
}

// SubmitRequest is a validated-on-submit job request
type SubmitRequest struct {
	Type   string
	Params json.RawMessage
}

// SubmitResult is returned to the submitter
type SubmitResult struct {
	TaskID string      `json:"task_id"`
	Status task.Status `json:"status"`
}

// TaskService provides task submission and status operations
type TaskService interface {
	// Submit records a new PENDING task, registers it and dispatches it
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)

	// GetStatus returns the view of one task. Unknown ids and unreadable
	// records yield a PENDING view rather than an error.
	GetStatus(ctx context.Context, id string) (status.View, error)

	// ListStatuses returns the views of every registered task in submission
	// order, skipping any that cannot be read.
	ListStatuses(ctx context.Context) ([]status.View, error)
}

// Option configures the task service
type Option func(*taskServiceImpl)

// WithIDGenerator overrides how task ids are assigned
func WithIDGenerator(newID func() string) Option {
	return func(s *taskServiceImpl) {
		s.newID = newID
	}
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks        task.TaskStore
	registry     *task.Registry
	validator    ParamsValidator
	eventEmitter events.EventEmitter
	newID        func() string
	logger       *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks task.TaskStore,
	registry *task.Registry,
	validator ParamsValidator,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
	opts ...Option,
) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "tasks cannot be nil"}
	}
	if registry == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "registry cannot be nil"}
	}
	if validator == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "validator cannot be nil"}
	}
	if eventEmitter == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &taskServiceImpl{
		tasks:        tasks,
		registry:     registry,
		validator:    validator,
		eventEmitter: eventEmitter,
		newID:        uuid.NewString,
		logger:       logger.With("component", "task_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit validates the request, writes the PENDING record, appends the id
// to the registry and emits the dispatch event, in that order. The record
// exists before the id is listed, so a listed id always has a record.
func (s *taskServiceImpl) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		return nil, &ValidationError{Field: "type", Message: "task type is required"}
	}
	if err := s.validator.ValidateParams(req.Type, req.Params); err != nil {
		s.logger.Debug("rejected task submission", "task_type", req.Type, "error", err)
		if IsValidationError(err) {
			return nil, err
		}
		field := "params"
		if errors.Is(err, task.ErrUnknownTaskType) {
			field = "type"
		}
		return nil, NewValidationError(field, err)
	}

	id := s.newID()
	logger := s.logger.With("task_id", id, "task_type", req.Type)

	// 1. Record the task as PENDING
	if err := s.tasks.SaveRecord(ctx, task.NewPendingRecord(id, req.Type)); err != nil {
		logger.Error("failed to record task", "error", err)
		return nil, NewTaskServiceError("submit", "failed to record task", unavailable(err))
	}

	// 2. Register it
	if err := s.registry.Append(ctx, id); err != nil {
		logger.Error("failed to register task", "error", err)
		s.abandon(ctx, id, req.Type, failedRegistration, err, logger)
		return nil, NewTaskServiceError("submit", "failed to register task", unavailable(err))
	}

	// 3. Hand it to the broker
	event, err := events.NewTaskRequestEvent(id, req.Type, req.Params)
	if err != nil {
		logger.Error("failed to create task request event", "error", err)
		s.abandon(ctx, id, req.Type, failedDispatch, err, logger)
		return nil, NewTaskServiceError("submit", "failed to create event", err)
	}

	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		logger.Error("failed to dispatch task", "error", err, "event_id", event.ID)
		s.abandon(ctx, id, req.Type, failedDispatch, err, logger)
		return nil, NewTaskServiceError("submit", "failed to dispatch task", unavailable(err))
	}

	logger.Info("task submitted", "event_id", event.ID)
	return &SubmitResult{TaskID: id, Status: task.StatusPending}, nil
}

// abandonReason describes why a recorded task never reached a worker
type abandonReason struct {
	message   string
	errorType string
	module    string
}

var (
	failedRegistration = abandonReason{"Task could not be registered", "RegistryError", "registry"}
	failedDispatch     = abandonReason{"Task could not be dispatched", "DispatchError", "broker"}
)

// abandon marks a recorded task that never reached the broker as FAILURE,
// so it does not sit in PENDING forever
func (s *taskServiceImpl) abandon(
	ctx context.Context,
	id, taskType string,
	reason abandonReason,
	cause error,
	logger *slog.Logger,
) {
	pending := task.NewPendingRecord(id, taskType)
	now := time.Now().UTC()
	zero := 0.0

	failed := pending.Clone()
	failed.Status = task.StatusFailure
	failed.Message = reason.message
	failed.StartTime = &now
	failed.EndTime = &now
	failed.DurationSeconds = &zero
	failed.Error = &task.ErrorInfo{
		Type:    reason.errorType,
		Message: redact.Error(cause),
		Module:  reason.module,
	}

	if err := pending.CheckTransition(failed); err != nil {
		logger.Error("invalid abandoned task record", "error", err)
		return
	}
	if err := s.tasks.SaveRecord(context.WithoutCancel(ctx), failed); err != nil {
		logger.Warn("failed to mark abandoned task as failed", "error", err)
	}
}

// GetStatus returns the projected view of task id
func (s *taskServiceImpl) GetStatus(ctx context.Context, id string) (status.View, error) {
	if strings.TrimSpace(id) == "" {
		return status.View{}, ErrInvalidTaskID
	}

	rec, err := s.tasks.GetRecord(ctx, id)
	if err != nil {
		if !store.IsNotFoundError(err) {
			s.logger.Warn("failed to read task record, reporting pending",
				"task_id", id,
				"error", err)
		}
		return status.Project(id, nil), nil
	}
	return status.Project(id, rec), nil
}

// ListStatuses returns the views of every registered task
func (s *taskServiceImpl) ListStatuses(ctx context.Context) ([]status.View, error) {
	ids, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Warn("failed to read task registry, reporting empty list", "error", err)
		return []status.View{}, nil
	}

	views := make([]status.View, 0, len(ids))
	var skipped int
	for _, id := range ids {
		rec, err := s.tasks.GetRecord(ctx, id)
		switch {
		case err == nil:
			views = append(views, status.Project(id, rec))
		case store.IsNotFoundError(err):
			views = append(views, status.Project(id, nil))
		case errors.Is(err, context.Canceled):
			return views, nil
		default:
			skipped++
			s.logger.Warn("failed to read task record, omitting from list",
				"task_id", id,
				"error", err)
		}
	}

	if skipped > 0 {
		s.logger.Warn("returning partial task list",
			"listed_count", len(views),
			"skipped_count", skipped)
	}
	return views, nil
}
