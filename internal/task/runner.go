package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/mediatask/internal/store"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// RecoverPending re-dispatches registered tasks still in PENDING on Start.
	// Only meaningful for the in-memory broker, whose queue does not survive
	// a restart.
	RecoverPending bool
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:    2,
		RecoverPending: true,
	}
}

// RecoverySource is where the runner finds tasks to re-dispatch on Start
type RecoverySource struct {
	Registry *Registry
	Tasks    TaskStore
	Queue    TaskQueueWriter
}

// TaskRunner consumes dispatches from a queue and runs them through the
// Executor on a pool of workers
type TaskRunner struct {
	executor   *Executor
	factory    JobFactory
	pool       *WorkerPool
	config     TaskRunnerConfig
	recovery   *RecoverySource
	logger     *slog.Logger
	errHandler func(d Dispatch, err error)
}

// NewTaskRunner creates a new TaskRunner reading from queue
func NewTaskRunner(
	executor *Executor,
	factory JobFactory,
	queue TaskQueueReader,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	logger = logger.With("component", "task_runner")
	r := &TaskRunner{
		executor: executor,
		factory:  factory,
		pool:     NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger),
		config:   config,
		logger:   logger,
		errHandler: func(d Dispatch, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", d.TaskID,
				"task_type", d.Type,
				"error", err)
		},
	}
	r.pool.SetErrorHandler(func(d Dispatch, err error) {
		r.errHandler(d, err)
	})
	return r
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(d Dispatch, err error)) {
	r.errHandler = handler
}

// SetRecoverySource enables Recover for the given registry, store and queue
func (r *TaskRunner) SetRecoverySource(src RecoverySource) {
	r.recovery = &src
}

// Start re-dispatches recoverable tasks and starts the workers
func (r *TaskRunner) Start(ctx context.Context) error {
	if r.config.RecoverPending && r.recovery != nil {
		if err := r.Recover(ctx); err != nil {
			return fmt.Errorf("failed to recover tasks: %w", err)
		}
	}

	r.pool.Start(r.processTask)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (r *TaskRunner) Stop() {
	r.pool.Stop()
}

// Recover re-enqueues every registered task whose record is still PENDING.
// Tasks that reached STARTED or later are left alone: their records are
// owned by the executor that started them.
func (r *TaskRunner) Recover(ctx context.Context) error {
	if r.recovery == nil {
		return nil
	}

	ids, err := r.recovery.Registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list registered tasks: %w", err)
	}

	var requeued, skipped int
	for _, id := range ids {
		rec, err := r.recovery.Tasks.GetRecord(ctx, id)
		if err != nil {
			if !store.IsNotFoundError(err) {
				r.logger.Warn("failed to read task during recovery", "task_id", id, "error", err)
			}
			skipped++
			continue
		}
		if rec.Status != StatusPending {
			continue
		}

		d, err := r.recovery.Tasks.GetDispatch(ctx, id)
		if err != nil {
			r.logger.Warn("pending task has no dispatch envelope", "task_id", id, "error", err)
			skipped++
			continue
		}

		if err := r.recovery.Queue.Enqueue(ctx, *d); err != nil {
			if errors.Is(err, ErrQueueFull) {
				r.logger.Error("failed to requeue pending task, queue is full",
					"task_id", id,
					"task_type", d.Type)
				skipped++
				continue
			}
			return fmt.Errorf("failed to requeue task %s: %w", id, err)
		}
		requeued++
	}

	r.logger.Info("recovered pending tasks",
		"registered_count", len(ids),
		"requeued_count", requeued,
		"skipped_count", skipped)
	return nil
}

// processTask handles execution of a single dispatch
func (r *TaskRunner) processTask(ctx context.Context, d Dispatch, workerID int) error {
	logger := r.logger.With(
		"task_id", d.TaskID,
		"task_type", d.Type,
		"worker_id", workerID,
	)

	job, err := r.factory.NewJob(d.Type, d.Params)
	if err != nil {
		logger.Error("failed to build job", "error", err)
		if rejectErr := r.executor.Reject(ctx, d.TaskID, d.Type, err); rejectErr != nil {
			logger.Error("failed to record rejected task", "error", rejectErr)
		}
		return fmt.Errorf("failed to build job: %w", err)
	}

	logger.Info("processing task")
	return r.executor.Execute(ctx, d.TaskID, job)
}
