package task

import (
	"context"
	"encoding/json"
	"time"
)

// Task type constants
const (
	// TaskTypeProcessVideo fetches a source video, transcodes it and publishes the artifact
	TaskTypeProcessVideo = "process_video"

	// TaskTypeAnalyzeVideo fetches a source video and asks an LLM for an analysis
	TaskTypeAnalyzeVideo = "analyze_video"

	// TaskTypeSimulate runs a configurable number of sleep steps
	TaskTypeSimulate = "simulate"
)

// Dispatch is the broker message that hands a submitted task to a worker.
// It carries everything a worker needs to build the Job.
type Dispatch struct {
	TaskID      string          `json:"task_id"`
	Type        string          `json:"type"`
	Params      json.RawMessage `json:"params,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// TaskQueueReader provides read-only access to the dispatch channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming dispatches
	GetChannel() <-chan Dispatch
}

// TaskQueueWriter provides write access to the broker
// allowing services to enqueue tasks for processing
type TaskQueueWriter interface {
	// Enqueue adds a dispatch to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(ctx context.Context, dispatch Dispatch) error

	// Close closes the queue, preventing further submission
	Close()
}

// TaskStore persists task records and their dispatch envelopes
type TaskStore interface {
	// SaveRecord writes the full record for rec.ID, replacing any previous value
	SaveRecord(ctx context.Context, rec *Record) error

	// GetRecord reads the record for id. Returns store.ErrNotFound when none exists
	GetRecord(ctx context.Context, id string) (*Record, error)

	// SaveDispatch keeps the dispatch envelope so PENDING tasks can be re-dispatched
	SaveDispatch(ctx context.Context, dispatch Dispatch) error

	// GetDispatch reads the dispatch envelope for id
	GetDispatch(ctx context.Context, id string) (*Dispatch, error)
}

// JobFactory builds a runnable Job from a dispatch's type and params
type JobFactory interface {
	NewJob(taskType string, params json.RawMessage) (Job, error)
}
