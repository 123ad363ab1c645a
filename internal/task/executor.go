package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/mediatask/internal/store"
)

// Executor drives one Job through the task lifecycle and keeps the task
// record current. It is the only writer of a record once the task leaves
// PENDING.
type Executor struct {
	tasks      TaskStore
	logger     *slog.Logger
	now        func() time.Time
	workDir    string
	retryDelay time.Duration
}

// loadAttempts bounds how often an unreadable record is re-read before the
// executor gives up on the task
const loadAttempts = 3

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithClock overrides the time source used for start and end times
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.now = now
	}
}

// WithWorkDir sets the parent directory for Progress.TempDir.
// An empty dir uses the system temp directory.
func WithWorkDir(dir string) ExecutorOption {
	return func(e *Executor) {
		e.workDir = dir
	}
}

// NewExecutor creates an Executor that writes records to tasks
func NewExecutor(tasks TaskStore, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		tasks:  tasks,
		logger:     logger.With("component", "task_executor"),
		now:        time.Now,
		retryDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// execution is the mutable state of one Execute call
type execution struct {
	id       string
	tasks    TaskStore
	logger   *slog.Logger
	workDir  string

	// writeMu orders record writes: the next record is built, validated
	// and saved under it, so the store sees writes in validation order.
	writeMu sync.Mutex
	current *Record

	mu       sync.Mutex
	cleanups []func() error
}

// Execute runs job as task id. It writes STARTED, one PROGRESS record per
// step, then SUCCESS with the job's result or FAILURE with a description of
// the error. Scoped resources registered through Progress are released on
// every path. The job error is returned for the caller's logs; it is already
// captured in the record.
func (e *Executor) Execute(ctx context.Context, id string, job Job) error {
	if id == "" {
		return ErrInvalidTaskID
	}
	logger := e.logger.With("task_id", id, "task_type", job.Type())

	base, err := e.loadBase(ctx, id, logger)
	if err != nil {
		return err
	}

	run := &execution{
		id:      id,
		tasks:   e.tasks,
		logger:  logger,
		workDir: e.workDir,
		current: base,
	}
	defer run.release()

	total := job.TotalSteps()
	if total < 0 {
		total = 0
	}
	start := e.now()

	started := base.Clone()
	started.Status = StatusStarted
	started.Type = job.Type()
	started.CurrentStep = 0
	started.TotalSteps = total
	started.Progress = 0
	started.Message = "Task started"
	started.StartTime = &start
	run.writeMu.Lock()
	run.write(ctx, started)
	run.writeMu.Unlock()

	logger.Info("task started", "total_steps", total)

	result, jobErr := runJob(ctx, job, &Progress{run: run})

	end := e.now()
	duration := end.Sub(start).Seconds()

	// Held until the terminal write lands; a step racing past the end of
	// Run then sees the terminal record and is dropped.
	run.writeMu.Lock()
	defer run.writeMu.Unlock()

	final := run.current.Clone()
	final.EndTime = &end
	final.DurationSeconds = &duration

	if jobErr == nil {
		final.Status = StatusSuccess
		final.CurrentStep = total
		final.Progress = 100
		final.Message = "Task completed"
		final.Result = result
		final.Error = nil
		logger.Info("task completed", "duration_seconds", duration)
	} else {
		final.Status = StatusFailure
		final.Message = fmt.Sprintf("Task failed at step %d of %d", final.CurrentStep, total)
		final.Result = nil
		final.Error = describeError(jobErr, job.Type())

		var panicErr *PanicError
		if errors.As(jobErr, &panicErr) {
			logger.Error("task panicked",
				"panic", fmt.Sprint(panicErr.Value),
				"stack", string(panicErr.Stack))
		} else {
			logger.Error("task failed",
				"error", jobErr,
				"error_type", final.Error.Type,
				"error_module", final.Error.Module)
		}
	}

	// The terminal state must be recorded even if shutdown cancelled ctx.
	run.write(context.WithoutCancel(ctx), final)

	if jobErr != nil {
		return fmt.Errorf("task %s failed: %w", id, jobErr)
	}
	return nil
}

// Reject records FAILURE for a task that could not be turned into a Job,
// so it does not sit in PENDING forever.
func (e *Executor) Reject(ctx context.Context, id, taskType string, cause error) error {
	if id == "" {
		return ErrInvalidTaskID
	}
	logger := e.logger.With("task_id", id, "task_type", taskType)

	base, err := e.loadBase(ctx, id, logger)
	if err != nil {
		return err
	}

	now := e.now()
	zero := 0.0
	final := base.Clone()
	final.Status = StatusFailure
	final.Type = taskType
	final.Message = "Task could not be started"
	final.StartTime = &now
	final.EndTime = &now
	final.DurationSeconds = &zero
	final.Error = describeError(cause, taskType)

	logger.Error("task rejected", "error", cause)

	if err := base.CheckTransition(final); err != nil {
		return err
	}
	if err := e.tasks.SaveRecord(context.WithoutCancel(ctx), final); err != nil {
		logger.Error("failed to write rejected task record", "error", err)
		return err
	}
	return nil
}

// loadBase returns the record the execution starts from. A task that is
// already past PENDING belongs to another executor and is refused, and so
// is a task whose record stays unreadable: it may be terminal.
func (e *Executor) loadBase(ctx context.Context, id string, logger *slog.Logger) (*Record, error) {
	var err error
	for attempt := 1; attempt <= loadAttempts; attempt++ {
		var rec *Record
		rec, err = e.tasks.GetRecord(ctx, id)
		switch {
		case err == nil:
			if rec.IsTerminal() {
				logger.Warn("refusing to execute terminal task", "status", rec.Status)
				return nil, fmt.Errorf("%w: %s", ErrTerminalRecord, rec.Status)
			}
			if rec.Status != StatusPending {
				logger.Warn("refusing to execute task owned by another executor", "status", rec.Status)
				return nil, fmt.Errorf("%w: %s", ErrAlreadyStarted, rec.Status)
			}
			return rec, nil
		case store.IsNotFoundError(err):
			return NewPendingRecord(id, ""), nil
		}

		logger.Warn("failed to load task record", "attempt", attempt, "error", err)
		if attempt == loadAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.retryDelay * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrRecordUnreadable, err)
}

// runJob calls job.Run, converting a panic into a PanicError
func runJob(ctx context.Context, job Job, p *Progress) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return job.Run(ctx, p)
}

// step records the next step boundary
func (r *execution) step(ctx context.Context, message string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	next := r.current.Clone()

	step := next.CurrentStep + 1
	if next.TotalSteps > 0 && step > next.TotalSteps {
		step = next.TotalSteps
	}
	next.Status = StatusProgress
	next.CurrentStep = step
	next.Progress = percent(step, next.TotalSteps)
	next.Message = message

	r.write(ctx, next)
}

// write validates next against the current record and persists it. The
// caller holds writeMu. The in-memory record advances even when the store
// write fails so that later writes stay consistent; failures are logged,
// never returned.
func (r *execution) write(ctx context.Context, next *Record) {
	if err := r.current.CheckTransition(next); err != nil {
		r.logger.Error("dropping invalid record write",
			"from_status", r.current.Status,
			"to_status", next.Status,
			"error", err)
		return
	}
	r.current = next

	if err := r.tasks.SaveRecord(ctx, next); err != nil {
		level := slog.LevelWarn
		if next.IsTerminal() {
			level = slog.LevelError
		}
		r.logger.Log(ctx, level, "failed to write task record",
			"status", next.Status,
			"current_step", next.CurrentStep,
			"error", err)
	}
}

// release runs registered cleanups in reverse order
func (r *execution) release() {
	r.mu.Lock()
	cleanups := r.cleanups
	r.cleanups = nil
	r.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := runCleanup(cleanups[i]); err != nil {
			r.logger.Warn("task cleanup failed", "error", err)
		}
	}
}

func runCleanup(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panicked: %v", r)
		}
	}()
	return fn()
}

func percent(step, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(step) / float64(total) * 100
}
