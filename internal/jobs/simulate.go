package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/mediatask/internal/task"
)

// SimulateParams are the params of a simulate task. Steps defaults to 10.
// FailAtStep, when set, makes the job fail right after reporting that step.
type SimulateParams struct {
	Steps      int    `json:"steps" validate:"gte=1,lte=1000"`
	DelayMS    int    `json:"delay_ms" validate:"gte=0,lte=60000"`
	FailAtStep int    `json:"fail_at_step" validate:"gte=0,ltefield=Steps"`
	VideoID    string `json:"video_id" validate:"max=128"`
}

const defaultSimulateSteps = 10

func (p *SimulateParams) applyDefaults() {
	if p.Steps == 0 {
		p.Steps = defaultSimulateSteps
	}
}

// SimulatedError is the failure a simulate task was asked to produce
type SimulatedError struct {
	Step int
}

// Error implements the error interface
func (e *SimulatedError) Error() string {
	return fmt.Sprintf("simulated failure at step %d", e.Step)
}

func newSimulateJob(params *SimulateParams) task.Job {
	delay := time.Duration(params.DelayMS) * time.Millisecond

	return task.NewJob(task.TaskTypeSimulate, params.Steps,
		func(ctx context.Context, p *task.Progress) (map[string]any, error) {
			for step := 1; step <= params.Steps; step++ {
				if err := p.Step(ctx, fmt.Sprintf("Processing step %d of %d", step, params.Steps)); err != nil {
					return nil, err
				}
				if step == params.FailAtStep {
					return nil, &SimulatedError{Step: step}
				}
				if err := sleep(ctx, delay); err != nil {
					return nil, err
				}
			}

			result := map[string]any{
				"status": "Completed",
				"steps":  params.Steps,
			}
			if params.VideoID != "" {
				result["video_id"] = params.VideoID
			}
			return result, nil
		})
}
