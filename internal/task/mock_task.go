package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockJob is a configurable Job for testing. By default it reports each of
// its steps and succeeds with an empty result.
type MockJob struct {
	JobType string
	Steps   int
	RunFn   func(ctx context.Context, p *Progress) (map[string]any, error)
}

// NewMockJob creates a MockJob that walks through steps and succeeds
func NewMockJob(jobType string, steps int) *MockJob {
	j := &MockJob{JobType: jobType, Steps: steps}
	j.RunFn = func(ctx context.Context, p *Progress) (map[string]any, error) {
		for i := 1; i <= j.Steps; i++ {
			if err := p.Step(ctx, fmt.Sprintf("step %d", i)); err != nil {
				return nil, err
			}
		}
		return map[string]any{}, nil
	}
	return j
}

// Type implements Job
func (j *MockJob) Type() string { return j.JobType }

// TotalSteps implements Job
func (j *MockJob) TotalSteps() int { return j.Steps }

// Run implements Job
func (j *MockJob) Run(ctx context.Context, p *Progress) (map[string]any, error) {
	return j.RunFn(ctx, p)
}

// MockJobFactory implements JobFactory for testing
type MockJobFactory struct {
	mu       sync.Mutex
	requests []Dispatch
	NewJobFn func(taskType string, params json.RawMessage) (Job, error)
}

// NewMockJobFactory returns a factory producing a one-step MockJob per request
func NewMockJobFactory() *MockJobFactory {
	return &MockJobFactory{
		NewJobFn: func(taskType string, params json.RawMessage) (Job, error) {
			return NewMockJob(taskType, 1), nil
		},
	}
}

// NewJob implements JobFactory
func (f *MockJobFactory) NewJob(taskType string, params json.RawMessage) (Job, error) {
	f.mu.Lock()
	f.requests = append(f.requests, Dispatch{Type: taskType, Params: params})
	f.mu.Unlock()
	return f.NewJobFn(taskType, params)
}

// Requests returns the type/params pairs NewJob was called with
func (f *MockJobFactory) Requests() []Dispatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Dispatch(nil), f.requests...)
}

var (
	_ Job        = (*MockJob)(nil)
	_ JobFactory = (*MockJobFactory)(nil)
)
