package task

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a task record
type Status string

// Possible status values, in lifecycle order
const (
	StatusPending  Status = "PENDING"
	StatusStarted  Status = "STARTED"
	StatusProgress Status = "PROGRESS"
	StatusSuccess  Status = "SUCCESS"
	StatusFailure  Status = "FAILURE"
)

// Transition errors returned by Record.CheckTransition
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalRecord    = errors.New("task record is terminal")
	ErrProgressRegressed = errors.New("task progress regressed")
)

// IsTerminal reports whether s is SUCCESS or FAILURE
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// IsValid reports whether s is one of the known status values
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusStarted, StatusProgress, StatusSuccess, StatusFailure:
		return true
	}
	return false
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusStarted:
		return 1
	case StatusProgress:
		return 2
	case StatusSuccess, StatusFailure:
		return 3
	}
	return -1
}

// ErrorInfo describes why a task failed
type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Module  string `json:"module"`
}

// Record is the durable state of one task. It is stored as a single JSON
// document and every write replaces the whole value.
type Record struct {
	ID              string         `json:"task_id"`
	Status          Status         `json:"status"`
	Type            string         `json:"type,omitempty"`
	CurrentStep     int            `json:"current_step"`
	TotalSteps      int            `json:"total_steps"`
	Progress        float64        `json:"progress"`
	Message         string         `json:"message"`
	StartTime       *time.Time     `json:"start_time,omitempty"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	Error           *ErrorInfo     `json:"error,omitempty"`
}

// NewPendingRecord returns the record written at submission time
func NewPendingRecord(id, taskType string) *Record {
	return &Record{
		ID:      id,
		Status:  StatusPending,
		Type:    taskType,
		Message: "Task queued",
	}
}

// IsTerminal reports whether the record is SUCCESS or FAILURE
func (r *Record) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// Clone returns a copy that shares no mutable state with r
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.StartTime != nil {
		t := *r.StartTime
		c.StartTime = &t
	}
	if r.EndTime != nil {
		t := *r.EndTime
		c.EndTime = &t
	}
	if r.DurationSeconds != nil {
		d := *r.DurationSeconds
		c.DurationSeconds = &d
	}
	if r.Result != nil {
		c.Result = make(map[string]any, len(r.Result))
		for k, v := range r.Result {
			c.Result[k] = v
		}
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return &c
}

// CheckTransition validates that next may replace r. Status moves forward
// only (PROGRESS may repeat), progress never decreases before a terminal
// state, and terminal records never change.
func (r *Record) CheckTransition(next *Record) error {
	if next == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidTransition)
	}
	if !next.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next.Status)
	}
	if r == nil {
		return nil
	}
	if r.ID != next.ID {
		return fmt.Errorf("%w: record id changed from %q to %q", ErrInvalidTransition, r.ID, next.ID)
	}
	if r.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalRecord, r.Status)
	}

	from, to := r.Status.rank(), next.Status.rank()
	if to < from || (to == from && next.Status != StatusProgress) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next.Status)
	}

	if !next.IsTerminal() && next.Progress < r.Progress {
		return fmt.Errorf("%w: %.2f -> %.2f", ErrProgressRegressed, r.Progress, next.Progress)
	}
	return nil
}
