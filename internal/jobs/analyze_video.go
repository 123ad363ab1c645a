package jobs

import (
	"context"

	"github.com/phrazzld/mediatask/internal/task"
)

// AnalyzeVideoParams are the params of an analyze_video task. Either field
// identifies the source, as for process_video.
type AnalyzeVideoParams struct {
	VideoID   string `json:"video_id" validate:"required_without=SourceURL,omitempty,max=128,startsnotwith=.,excludesall=/\\"`
	SourceURL string `json:"source_url" validate:"omitempty,url"`
}

const analyzeVideoSteps = 4

func newAnalyzeVideoJob(deps Deps, params *AnalyzeVideoParams) task.Job {
	return task.NewJob(task.TaskTypeAnalyzeVideo, analyzeVideoSteps,
		func(ctx context.Context, p *task.Progress) (map[string]any, error) {
			dir, err := p.TempDir("analyze-video-*")
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

			if err := p.Step(ctx, "Analyzing video"); err != nil {
				return nil, err
			}
			analysis, err := deps.Analyzer.Analyze(ctx, local, "")
			if err != nil {
				return nil, task.NewExecutionError(ModuleAnalyzer, err)
			}

			if err := p.Step(ctx, "Processing analysis"); err != nil {
				return nil, err
			}
			query := analysis.SearchQuery()

			if err := p.Step(ctx, "Complete!"); err != nil {
				return nil, err
			}

			result := map[string]any{
				"status":         "Completed",
				"video_analysis": analysis,
				"search_query":   query,
			}
			if params.VideoID != "" {
				result["video_id"] = params.VideoID
			}
			return result, nil
		})
}
