package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/phrazzld/mediatask/internal/media"
	"github.com/phrazzld/mediatask/internal/platform/gemini"
	"github.com/phrazzld/mediatask/internal/task"
)

// Modules named in FAILURE records for collaborator errors
const (
	ModuleFetch     = "media.fetch"
	ModuleTranscode = "media.transcode"
	ModulePublish   = "media.publish"
	ModuleWorkDir   = "media.workdir"
	ModuleAnalyzer  = "gemini"
)

// VideoAnalyzer describes a local video file
type VideoAnalyzer interface {
	Analyze(ctx context.Context, videoPath, mimeType string) (*gemini.Analysis, error)
}

// Deps are the collaborators the built-in jobs use. A job type whose
// collaborators are missing is not registered.
type Deps struct {
	Fetcher    media.Fetcher
	Transcoder media.Transcoder
	Publisher  media.Publisher
	Analyzer   VideoAnalyzer

	// UploadDir resolves sources submitted by video id alone
	UploadDir string
}

// NewDefaultCatalog registers simulate plus every media job deps can serve
func NewDefaultCatalog(deps Deps) *Catalog {
	c := NewCatalog()
	Register(c, task.TaskTypeSimulate, newSimulateJob)

	if deps.Fetcher != nil && deps.Transcoder != nil && deps.Publisher != nil {
		Register(c, task.TaskTypeProcessVideo, func(params *ProcessVideoParams) task.Job {
			return newProcessVideoJob(deps, params)
		})
	}
	if deps.Fetcher != nil && deps.Analyzer != nil {
		Register(c, task.TaskTypeAnalyzeVideo, func(params *AnalyzeVideoParams) task.Job {
			return newAnalyzeVideoJob(deps, params)
		})
	}
	return c
}

// resolveSource returns sourceURL, or the upload path for videoID
func resolveSource(uploadDir, videoID, sourceURL string) (string, error) {
	if sourceURL != "" {
		return sourceURL, nil
	}
	path, err := filepath.Abs(filepath.Join(uploadDir, videoID+".mp4"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve upload path: %w", err)
	}
	return path, nil
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
