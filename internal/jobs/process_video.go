package jobs

import (
	"context"
	"path/filepath"

	"github.com/phrazzld/mediatask/internal/task"
)

// ProcessVideoParams are the params of a process_video task. Without a
// source_url the source is <upload_dir>/<video_id>.mp4.
type ProcessVideoParams struct {
	VideoID   string `json:"video_id" validate:"required,max=128,startsnotwith=.,excludesall=/\\"`
	SourceURL string `json:"source_url" validate:"omitempty,url"`
}

const processVideoSteps = 3

func newProcessVideoJob(deps Deps, params *ProcessVideoParams) task.Job {
	return task.NewJob(task.TaskTypeProcessVideo, processVideoSteps,
		func(ctx context.Context, p *task.Progress) (map[string]any, error) {
			dir, err := p.TempDir("process-video-*")
			if err != nil {
				return nil, task.NewExecutionError(ModuleWorkDir, err)
			}

			if err := p.Step(ctx, "Fetching source media"); err != nil {
				return nil, err
			}
			source, err := resolveSource(deps.UploadDir, params.VideoID, params.SourceURL)
			if err != nil {
				return nil, task.NewExecutionError(ModuleFetch, err)
			}
			local, err := deps.Fetcher.Fetch(ctx, source, dir)
			if err != nil {
				return nil, task.NewExecutionError(ModuleFetch, err)
			}

			if err := p.Step(ctx, "Transcoding video"); err != nil {
				return nil, err
			}
			output := filepath.Join(dir, "output.mp4")
			if err := deps.Transcoder.Transcode(ctx, local, output); err != nil {
				return nil, task.NewExecutionError(ModuleTranscode, err)
			}

			if err := p.Step(ctx, "Publishing result"); err != nil {
				return nil, err
			}
			url, err := deps.Publisher.Publish(ctx, output, params.VideoID+".mp4")
			if err != nil {
				return nil, task.NewExecutionError(ModulePublish, err)
			}

			return map[string]any{
				"status":     "Completed",
				"video_id":   params.VideoID,
				"result_url": url,
			}, nil
		})
}
