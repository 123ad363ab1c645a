package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/mediatask/internal/api"
	"github.com/phrazzld/mediatask/internal/bootstrap"
	"github.com/phrazzld/mediatask/internal/config"
	"github.com/phrazzld/mediatask/internal/events"
	"github.com/phrazzld/mediatask/internal/jobs"
	"github.com/phrazzld/mediatask/internal/service"
	"github.com/phrazzld/mediatask/internal/status"
	"github.com/phrazzld/mediatask/internal/stream"
	"github.com/phrazzld/mediatask/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Result store, registry and broker
	stack *bootstrap.Stack

	catalog      *jobs.Catalog
	eventEmitter events.EventEmitter
	taskService  service.TaskService
	streamer     *stream.Streamer

	// Embedded workers; nil when workers run in a separate process
	taskRunner    *task.TaskRunner
	cancelWorkers context.CancelFunc
}

// newApplication creates a new application instance with all dependencies initialized
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	stack, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state stack: %w", err)
	}

	app := &application{
		config: cfg,
		logger: logger,
		stack:  stack,
	}

	if err := app.wire(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

func (app *application) wire(ctx context.Context) error {
	var err error

	// The catalog validates submissions even when no worker runs here
	app.catalog, err = app.stack.NewCatalog(ctx, app.logger)
	if err != nil {
		return fmt.Errorf("failed to build job catalog: %w", err)
	}

	router := events.NewRouter(app.logger)
	router.Fallback(task.NewDispatchEventHandler(app.stack.Broker, app.stack.Tasks, app.logger))
	app.eventEmitter = router

	app.taskService, err = service.NewTaskService(
		app.stack.Tasks,
		app.stack.Registry,
		app.catalog,
		app.eventEmitter,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}

	app.streamer = stream.NewStreamer(
		status.NewReader(app.stack.Tasks, app.stack.Registry),
		stream.Config{
			PollInterval:      app.config.Stream.PollInterval,
			KeepaliveInterval: app.config.Stream.KeepaliveInterval,
		},
		app.logger,
	)

	if app.config.Worker.Embedded {
		app.taskRunner = app.stack.NewRunner(app.catalog, app.logger)
	} else {
		app.logger.Info("embedded workers disabled, dispatches wait for a worker process",
			"broker", app.config.Worker.Broker)
	}
	return nil
}

// Run starts the embedded workers and the HTTP server, and blocks until the
// server has shut down.
func (app *application) Run(ctx context.Context) error {
	if err := app.startWorkers(ctx); err != nil {
		app.cleanup()
		return err
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// startWorkers starts the embedded task runner, if any
func (app *application) startWorkers(ctx context.Context) error {
	if app.taskRunner == nil {
		return nil
	}
	workerCtx, cancel := context.WithCancel(ctx)
	app.cancelWorkers = cancel
	return app.stack.StartWorkers(workerCtx, app.taskRunner)
}

// setupRouter mounts the API. Published artifacts are served from the
// output directory when the public base URL is a local path.
func (app *application) setupRouter() http.Handler {
	cfg := api.RouterConfig{
		Tasks:  api.NewTaskHandler(app.taskService, app.streamer, app.logger),
		Health: api.NewHealthHandler(app.stack.Pinger(), app.logger),
		Logger: app.logger,
	}
	if strings.HasPrefix(app.config.Media.PublicBaseURL, "/") {
		cfg.StaticDir = app.config.Media.OutputDir
		cfg.StaticPrefix = app.config.Media.PublicBaseURL
	}
	return api.NewRouter(cfg)
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.cancelWorkers != nil {
		app.cancelWorkers()
	}

	if app.stack != nil {
		if err := app.stack.Close(); err != nil {
			app.logger.Error("Error closing state stack", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
