package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phrazzld/mediatask/internal/task"
)

// View is the normalized, client-facing state of one task. Its JSON form
// has a fixed set of keys per phase: absent values are null, never omitted.
type View struct {
	TaskID          string
	Status          task.Status
	CurrentStep     *int
	TotalSteps      *int
	Progress        *float64
	Message         *string
	StartTime       *time.Time
	EndTime         *time.Time
	DurationSeconds *float64
	Result          map[string]any
	Error           *task.ErrorInfo
}

// IsTerminal reports whether the view is SUCCESS or FAILURE
func (v View) IsTerminal() bool {
	return v.Status.IsTerminal()
}

// Project builds the view of rec for id. It never fails: a nil record
// (unknown or not yet written) projects to PENDING with every optional
// field null.
func Project(id string, rec *task.Record) View {
	v := View{TaskID: id, Status: task.StatusPending}
	if rec == nil {
		return v
	}

	if rec.Status.IsValid() {
		v.Status = rec.Status
	}

	step, total, progress := rec.CurrentStep, rec.TotalSteps, rec.Progress
	v.CurrentStep = &step
	v.TotalSteps = &total
	v.Progress = &progress
	if rec.Message != "" {
		msg := rec.Message
		v.Message = &msg
	}
	v.StartTime = copyTime(rec.StartTime)

	if !v.IsTerminal() {
		return v
	}

	v.EndTime = copyTime(rec.EndTime)
	if rec.DurationSeconds != nil {
		d := *rec.DurationSeconds
		v.DurationSeconds = &d
	}

	switch v.Status {
	case task.StatusSuccess:
		full := 100.0
		v.Progress = &full
		if rec.Result != nil {
			v.Result = make(map[string]any, len(rec.Result))
			for k, val := range rec.Result {
				v.Result[k] = val
			}
		}
	case task.StatusFailure:
		if rec.Error != nil {
			e := *rec.Error
			v.Error = &e
		}
	}
	return v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

type progressView struct {
	TaskID      string      `json:"task_id"`
	Status      task.Status `json:"status"`
	CurrentStep *int        `json:"current_step"`
	TotalSteps  *int        `json:"total_steps"`
	Progress    *float64    `json:"progress"`
	Message     *string     `json:"message"`
	StartTime   *time.Time  `json:"start_time"`
}

type terminalView struct {
	progressView
	EndTime         *time.Time      `json:"end_time"`
	DurationSeconds *float64        `json:"duration_seconds"`
	Result          map[string]any  `json:"result"`
	Error           *task.ErrorInfo `json:"error"`
}

var envelopeKeys = map[string]struct{}{
	"task_id": {}, "status": {}, "current_step": {}, "total_steps": {},
	"progress": {}, "message": {}, "start_time": {}, "end_time": {},
	"duration_seconds": {}, "result": {}, "error": {},
}

// MarshalJSON encodes the view with a stable key set. A SUCCESS view also
// carries each result field at the top level; envelope keys win on
// collision. The encoding is deterministic, so equal views encode to equal
// bytes.
func (v View) MarshalJSON() ([]byte, error) {
	pv := progressView{
		TaskID:      v.TaskID,
		Status:      v.Status,
		CurrentStep: v.CurrentStep,
		TotalSteps:  v.TotalSteps,
		Progress:    v.Progress,
		Message:     v.Message,
		StartTime:   v.StartTime,
	}
	if !v.IsTerminal() {
		return json.Marshal(pv)
	}

	envelope, err := json.Marshal(terminalView{
		progressView:    pv,
		EndTime:         v.EndTime,
		DurationSeconds: v.DurationSeconds,
		Result:          v.Result,
		Error:           v.Error,
	})
	if err != nil {
		return nil, err
	}
	if v.Status != task.StatusSuccess || len(v.Result) == 0 {
		return envelope, nil
	}

	extra := make(map[string]any, len(v.Result))
	for k, val := range v.Result {
		if _, reserved := envelopeKeys[k]; !reserved {
			extra[k] = val
		}
	}
	if len(extra) == 0 {
		return envelope, nil
	}
	flat, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result fields: %w", err)
	}

	// splice {envelope...} and {extra...} into one object
	var buf bytes.Buffer
	buf.Grow(len(envelope) + len(flat))
	buf.Write(envelope[:len(envelope)-1])
	buf.WriteByte(',')
	buf.Write(flat[1:])
	return buf.Bytes(), nil
}
