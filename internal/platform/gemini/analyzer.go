package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/mediatask/internal/config"
	"google.golang.org/genai"
)

// defaultVideoMIMEType is used when the file extension says nothing useful
const defaultVideoMIMEType = "video/mp4"

// contentGenerator is the part of genai.Models the analyzer uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// fileService is the part of genai.Files the analyzer uses
type fileService interface {
	UploadFromPath(ctx context.Context, path string, config *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, config *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, config *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

// Analyzer describes videos using the Gemini API
type Analyzer struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	models contentGenerator
	files  fileService

	// retryBase is the first backoff delay; it doubles on every attempt
	retryBase time.Duration
}

// NewAnalyzer creates an Analyzer backed by a Gemini API client.
// It returns ErrInvalidConfig when the key or model name is missing.
func NewAnalyzer(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Analyzer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := validateConfig(ctx, logger, cfg); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return newAnalyzer(client.Models, client.Files, logger, cfg), nil
}

func newAnalyzer(models contentGenerator, files fileService, logger *slog.Logger, cfg config.LLMConfig) *Analyzer {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		logger.Warn("Invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	cfg.MaxRetries = maxRetries

	retryBase := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if cfg.RetryDelaySeconds < 0 {
		logger.Warn("Invalid retry delay value, using default", "base_delay_seconds", 2)
		retryBase = 2 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 5 * time.Minute
	}
	if cfg.FilePollInterval <= 0 {
		cfg.FilePollInterval = 2 * time.Second
	}

	return &Analyzer{
		logger:    logger.With("component", "gemini_analyzer", "model", cfg.ModelName),
		config:    cfg,
		models:    models,
		files:     files,
		retryBase: retryBase,
	}
}

// validateConfig checks the settings the analyzer cannot run without
func validateConfig(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) error {
	if cfg.GeminiAPIKey == "" {
		logger.ErrorContext(ctx, "Missing Gemini API key")
		return fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		logger.ErrorContext(ctx, "Missing Gemini model name")
		return fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	return nil
}

// Analyze uploads the video at videoPath, waits for Gemini to process it and
// returns the parsed analysis. An empty mimeType is derived from the file
// extension. The upload is deleted before Analyze returns.
func (a *Analyzer) Analyze(ctx context.Context, videoPath, mimeType string) (*Analysis, error) {
	if videoPath == "" {
		return nil, ErrEmptyVideoPath
	}
	if mimeType == "" {
		mimeType = videoMIMEType(videoPath)
	}

	a.logger.InfoContext(ctx, "Uploading video for analysis",
		"path", videoPath,
		"mime_type", mimeType)

	file, err := a.files.UploadFromPath(ctx, videoPath, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: filepath.Base(videoPath),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}
	defer a.deleteFile(ctx, file.Name)

	active, err := a.waitForActive(ctx, file)
	if err != nil {
		return nil, err
	}

	text, err := a.generateWithRetry(ctx, active)
	if err != nil {
		return nil, err
	}

	analysis := parseAnalysis(text)
	a.logger.InfoContext(ctx, "Video analysis completed",
		"file_name", file.Name,
		"keyword_count", len(analysis.Keywords))
	return analysis, nil
}

// waitForActive polls the uploaded file until Gemini reports it ACTIVE
func (a *Analyzer) waitForActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	if file.State == genai.FileStateActive {
		return file, nil
	}

	deadline := time.Now().Add(a.config.UploadTimeout)
	ticker := time.NewTicker(a.config.FilePollInterval)
	defer ticker.Stop()

	for {
		current, err := a.files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get file status: %w", err)
		}

		a.logger.DebugContext(ctx, "Polled file state",
			"file_name", file.Name,
			"state", current.State)

		switch current.State {
		case genai.FileStateActive:
			return current, nil
		case genai.FileStateFailed:
			return nil, fmt.Errorf("%w: %s", ErrFileProcessing, file.Name)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w after %s", ErrFileTimeout, a.config.UploadTimeout)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// deleteFile removes an upload. Failures are logged only.
func (a *Analyzer) deleteFile(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if _, err := a.files.Delete(context.WithoutCancel(ctx), name, nil); err != nil {
		a.logger.WarnContext(ctx, "Failed to delete uploaded file",
			"file_name", name,
			"error", err)
		return
	}
	a.logger.DebugContext(ctx, "Deleted uploaded file", "file_name", name)
}

// generateWithRetry asks the model for the analysis of file, retrying API
// errors with exponential backoff and jitter. Blocked or empty answers are
// not retried.
func (a *Analyzer) generateWithRetry(ctx context.Context, file *genai.File) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(analysisPrompt),
		}, genai.RoleUser),
	}

	maxRetries := a.config.MaxRetries
	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		a.logger.InfoContext(ctx, "Making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		resp, err := a.models.GenerateContent(ctx, a.config.ModelName, contents, nil)
		if err == nil {
			text, checkErr := responseText(resp)
			if checkErr != nil {
				a.logger.WarnContext(ctx, "Permanent error occurred, not retrying",
					"attempt", attemptNum,
					"error", checkErr)
				return "", checkErr
			}
			a.logger.InfoContext(ctx, "Gemini API call successful", "attempt", attemptNum)
			return text, nil
		}

		a.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
		if attempt >= maxRetries {
			a.logger.WarnContext(ctx, "Maximum retry attempts reached", "max_retries", maxRetries)
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				ErrTransientFailure, maxRetries, err)
		}

		delay := a.backoff(attempt)
		a.logger.InfoContext(ctx, "Retrying after delay",
			"attempt", attemptNum,
			"delay_seconds", delay.Seconds())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			a.logger.WarnContext(ctx, "API call cancelled during retry delay",
				"attempt", attemptNum,
				"ctx_err", ctx.Err())
			return "", fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
	}
}

// backoff returns retryBase * 2^attempt scaled by a jitter factor in [0.5, 1.0)
func (a *Analyzer) backoff(attempt int) time.Duration {
	backoff := float64(a.retryBase) * math.Pow(2, float64(attempt))
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(backoff * jitter)
}

// responseText extracts the answer text, mapping blocked and empty answers
// to permanent errors
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" &&
		resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("%w: %s", ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", ErrContentBlocked)
	}
	if resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty text in response", ErrInvalidResponse)
	}
	return text, nil
}

func videoMIMEType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(t, "video/") {
		return t
	}
	return defaultVideoMIMEType
}
