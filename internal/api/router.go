package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/mediatask/internal/api/middleware"
)

// RouterConfig holds what NewRouter mounts
type RouterConfig struct {
	Tasks  *TaskHandler
	Health *HealthHandler

	// StaticDir, when set, is served under StaticPrefix
	StaticDir    string
	StaticPrefix string

	Logger *slog.Logger
}

// NewRouter creates the application router with all routes and middleware
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(cfg.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", cfg.Tasks.SubmitTask)
		r.Get("/tasks", cfg.Tasks.ListTasks)
		r.Get("/tasks/events/list", cfg.Tasks.StreamTaskList)
		r.Get("/tasks/{id}", cfg.Tasks.GetTask)
		r.Get("/tasks/{id}/events", cfg.Tasks.StreamTask)
	})

	r.Get("/health", cfg.Health.Health)
	r.Get("/readyz", cfg.Health.Ready)

	if prefix := strings.Trim(cfg.StaticPrefix, "/"); cfg.StaticDir != "" && prefix != "" {
		fs := http.StripPrefix("/"+prefix, http.FileServer(http.Dir(cfg.StaticDir)))
		r.Handle("/"+prefix+"/*", fs)
	}

	return r
}
