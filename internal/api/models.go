package api

import (
	"encoding/json"
	"strings"

	"github.com/phrazzld/mediatask/internal/service"
	"github.com/phrazzld/mediatask/internal/task"
)

// SubmitTaskRequest is the body of POST /api/tasks. Either Type (with
// optional Params) or the legacy VideoID form may be used.
type SubmitTaskRequest struct {
	// Type names the job to run, e.g. "process_video"
	Type string `json:"type" validate:"max=64"`

	// Params are the job parameters, validated against the job type
	Params json.RawMessage `json:"params,omitempty"`

	// VideoID is the legacy submission form. Without Type it submits a
	// process_video task for this id.
	VideoID string `json:"video_id,omitempty" validate:"max=128"`
}

// toSubmitRequest resolves the legacy form into a typed submission
func (r SubmitTaskRequest) toSubmitRequest() (service.SubmitRequest, error) {
	req := service.SubmitRequest{
		Type:   strings.TrimSpace(r.Type),
		Params: r.Params,
	}

	if r.VideoID == "" {
		return req, nil
	}
	if req.Type == "" {
		req.Type = task.TaskTypeProcessVideo
	}
	if len(r.Params) == 0 || string(r.Params) == "null" {
		params, err := json.Marshal(map[string]string{"video_id": r.VideoID})
		if err != nil {
			return req, err
		}
		req.Params = params
	}
	return req, nil
}

// SubmitTaskResponse is returned with 202 Accepted
type SubmitTaskResponse = service.SubmitResult

// HealthResponse is the body of the liveness and readiness endpoints
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}
