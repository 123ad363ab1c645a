package task

import (
	"context"
	"fmt"
	"os"
)

// Job is a unit of media work driven by the Executor. Run reports each step
// boundary through p and returns the result payload stored on SUCCESS.
type Job interface {
	// Type returns the job type identifier
	Type() string

	// TotalSteps returns the number of steps Run will report
	TotalSteps() int

	// Run executes the job
	Run(ctx context.Context, p *Progress) (map[string]any, error)
}

// JobFunc adapts a plain function into a Job
type JobFunc struct {
	TaskType string
	Steps    int
	Fn       func(ctx context.Context, p *Progress) (map[string]any, error)
}

// NewJob returns a Job that runs fn
func NewJob(taskType string, steps int, fn func(ctx context.Context, p *Progress) (map[string]any, error)) *JobFunc {
	return &JobFunc{TaskType: taskType, Steps: steps, Fn: fn}
}

// Type implements Job
func (j *JobFunc) Type() string { return j.TaskType }

// TotalSteps implements Job
func (j *JobFunc) TotalSteps() int { return j.Steps }

// Run implements Job
func (j *JobFunc) Run(ctx context.Context, p *Progress) (map[string]any, error) {
	return j.Fn(ctx, p)
}

// Progress is handed to a running Job. It records step boundaries on the
// task record and tracks scoped resources that the executor releases when
// the job returns, whatever the outcome.
type Progress struct {
	run *execution
}

// TaskID returns the id of the task being executed
func (p *Progress) TaskID() string {
	return p.run.id
}

// Step advances the task to its next step and writes a PROGRESS record
// with message. Steps past TotalSteps are clamped. A failed store write is
// logged and does not stop the job; only a cancelled ctx returns an error.
func (p *Progress) Step(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.run.step(ctx, message)
	return nil
}

// TempDir creates a temporary directory that is removed when the job
// finishes
func (p *Progress) TempDir(pattern string) (string, error) {
	dir, err := os.MkdirTemp(p.run.workDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	p.OnCleanup(func() error {
		return os.RemoveAll(dir)
	})
	return dir, nil
}

// OnCleanup registers fn to run when the job finishes. Cleanups run in
// reverse registration order.
func (p *Progress) OnCleanup(fn func() error) {
	if fn == nil {
		return
	}
	p.run.mu.Lock()
	defer p.run.mu.Unlock()
	p.run.cleanups = append(p.run.cleanups, fn)
}
