package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Router is an EventEmitter that hands each task request to exactly one
// handler: the one routed for its task type, else the fallback. A task is
// dispatched once, so there is no fan-out.
type Router struct {
	mu       sync.RWMutex
	routes   map[string]EventHandler
	fallback EventHandler
	logger   *slog.Logger
}

// NewRouter creates a Router with no routes
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		routes: make(map[string]EventHandler),
		logger: logger.With("component", "event_router"),
	}
}

// Route sends events of taskType to handler, replacing any earlier route
func (r *Router) Route(taskType string, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[taskType] = handler
}

// Fallback sends events with no route of their own to handler
func (r *Router) Fallback(handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = handler
}

func (r *Router) handlerFor(taskType string) EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.routes[taskType]; ok {
		return h
	}
	return r.fallback
}

// EmitEvent implements EventEmitter. The handler runs synchronously and its
// error is returned, so the submitter learns the task was not dispatched.
func (r *Router) EmitEvent(ctx context.Context, event *TaskRequestEvent) error {
	handler := r.handlerFor(event.Type)
	if handler == nil {
		r.logger.Warn("no route for task request",
			"event_id", event.ID,
			"task_id", event.TaskID,
			"task_type", event.Type)
		return fmt.Errorf("%w: task type %q", ErrNoHandlers, event.Type)
	}

	if err := handler.HandleEvent(ctx, event); err != nil {
		return fmt.Errorf("task request %s: %w", event.ID, err)
	}
	return nil
}

var _ EventEmitter = (*Router)(nil)
