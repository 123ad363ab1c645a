// Package main implements the entry point for the mediatask API server,
// which accepts media processing jobs and reports their progress over
// HTTP and server-sent events.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/phrazzld/mediatask/internal/config"
	"github.com/phrazzld/mediatask/internal/platform/logger"
)

func main() {
	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
}

// initializeApp loads configuration and sets up structured logging
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store_backend", cfg.Store.Backend,
		"broker", cfg.Worker.Broker,
		"embedded_workers", cfg.Worker.Embedded)
	if cfg.Store.RedisURL != "" {
		appLogger.Debug("Redis configuration", "url_present", true)
	}
	if cfg.LLM.GeminiAPIKey != "" {
		appLogger.Debug("LLM configuration", "gemini_api_key_present", true)
	}

	return cfg, appLogger, nil
}
