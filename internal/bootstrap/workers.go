package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/mediatask/internal/jobs"
	"github.com/phrazzld/mediatask/internal/media"
	"github.com/phrazzld/mediatask/internal/platform/gemini"
	"github.com/phrazzld/mediatask/internal/task"
)

// NewCatalog builds the job catalog with the media collaborators. The
// analyze_video job is only available when a Gemini key is configured.
func (s *Stack) NewCatalog(ctx context.Context, logger *slog.Logger) (*jobs.Catalog, error) {
	cfg := s.Config

	publisher, err := media.NewDirPublisher(cfg.Media.OutputDir, cfg.Media.PublicBaseURL)
	if err != nil {
		return nil, err
	}

	deps := jobs.Deps{
		Fetcher:    media.NewHTTPFetcher(cfg.Media.FetchTimeout, cfg.Media.MaxDownloadBytes, logger),
		Transcoder: media.NewTranscoder(cfg.Media.FFmpegPath, logger),
		Publisher:  publisher,
		UploadDir:  cfg.Media.UploadDir,
	}

	if cfg.LLM.AnalysisEnabled() {
		analyzer, err := gemini.NewAnalyzer(ctx, logger, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize video analyzer: %w", err)
		}
		deps.Analyzer = analyzer
	} else {
		logger.Info("no Gemini API key configured, analyze_video disabled")
	}

	catalog := jobs.NewDefaultCatalog(deps)
	logger.Info("job catalog ready", "task_types", catalog.Types())
	return catalog, nil
}

// NewRunner builds the worker runner reading from the broker. Recovery of
// PENDING tasks is only enabled for the in-memory broker: a shared broker
// still holds their dispatches.
func (s *Stack) NewRunner(factory task.JobFactory, logger *slog.Logger) *task.TaskRunner {
	cfg := s.Config.Worker

	var opts []task.ExecutorOption
	if cfg.WorkDir != "" {
		opts = append(opts, task.WithWorkDir(cfg.WorkDir))
	}
	executor := task.NewExecutor(s.Tasks, logger, opts...)

	recoverPending := cfg.RecoverPending && !s.SharedBroker()
	runner := task.NewTaskRunner(executor, factory, s.Broker, task.TaskRunnerConfig{
		WorkerCount:    cfg.Count,
		RecoverPending: recoverPending,
	}, logger)

	if recoverPending {
		runner.SetRecoverySource(task.RecoverySource{
			Registry: s.Registry,
			Tasks:    s.Tasks,
			Queue:    s.Broker,
		})
	}
	return runner
}

// StartWorkers starts the broker consumer and the runner
func (s *Stack) StartWorkers(ctx context.Context, runner *task.TaskRunner) error {
	s.StartBroker(ctx)
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	s.logger.Info("workers started",
		"worker_count", s.Config.Worker.Count,
		"broker", s.Config.Worker.Broker)
	return nil
}
