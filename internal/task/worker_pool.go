package task

import (
	"context"
	"log/slog"
	"sync"
)

// DispatchHandler processes one dispatch taken from the queue
type DispatchHandler func(ctx context.Context, d Dispatch, workerID int) error

// WorkerPool manages a pool of worker goroutines that process dispatches
// from a task queue. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// taskQueue provides read access to the dispatches to be processed
	taskQueue TaskQueueReader

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is used for cancellation and shutdown signaling
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelFunc

	// logger for structured logging
	logger *slog.Logger

	// errorHandler is called when a dispatch fails
	// If nil, errors are only logged
	errorHandler func(d Dispatch, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(taskQueue TaskQueueReader, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		taskQueue:   taskQueue,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// SetErrorHandler allows setting a custom error handler for dispatch failures
func (p *WorkerPool) SetErrorHandler(handler func(d Dispatch, err error)) {
	p.errorHandler = handler
}

// Context returns the pool's context, cancelled by Stop
func (p *WorkerPool) Context() context.Context {
	return p.ctx
}

// Start launches the workers. Each dispatch is handled by exactly one worker.
func (p *WorkerPool) Start(handler DispatchHandler) {
	p.logger.Info("starting worker pool", "worker_count", p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, handler)
	}
}

// Stop cancels the workers and waits for in-flight dispatches to return
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(id int, handler DispatchHandler) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)
	ch := p.taskQueue.GetChannel()

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case d, ok := <-ch:
			if !ok {
				p.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			if err := handler(p.ctx, d, id); err != nil {
				if p.errorHandler != nil {
					p.errorHandler(d, err)
				} else {
					p.logger.Error("dispatch failed",
						"task_id", d.TaskID,
						"task_type", d.Type,
						"worker_id", id,
						"error", err)
				}
			}
		}
	}
}
