// Package main implements a standalone mediatask worker. It consumes
// dispatches from the shared broker and runs them against the shared
// result store, so it scales independently of the API server.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/phrazzld/mediatask/internal/bootstrap"
	"github.com/phrazzld/mediatask/internal/config"
	"github.com/phrazzld/mediatask/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Worker stopped with error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	appLogger = appLogger.With("process", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Open(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to open state stack: %w", err)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			appLogger.Error("Error closing state stack", "error", err)
		}
	}()

	if !stack.SharedBroker() {
		appLogger.Warn("worker is using the in-memory broker and will only run tasks it recovers",
			"broker", cfg.Worker.Broker)
	}

	catalog, err := stack.NewCatalog(ctx, appLogger)
	if err != nil {
		return fmt.Errorf("failed to build job catalog: %w", err)
	}

	runner := stack.NewRunner(catalog, appLogger)
	if err := stack.StartWorkers(ctx, runner); err != nil {
		return err
	}

	<-ctx.Done()
	appLogger.Info("Shutting down workers...")
	runner.Stop()
	appLogger.Info("Worker shutdown completed")
	return nil
}
