package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Store  StoreConfig  `mapstructure:"store" validate:"required"`
	Worker WorkerConfig `mapstructure:"worker" validate:"required"`
	Stream StreamConfig `mapstructure:"stream" validate:"required"`
	Media  MediaConfig  `mapstructure:"media" validate:"required"`
	LLM    LLMConfig    `mapstructure:"llm"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// StoreConfig selects and configures the result store backend.
type StoreConfig struct {
	Backend        string `mapstructure:"backend" validate:"required,oneof=memory redis postgres"`
	RedisURL       string `mapstructure:"redis_url" validate:"required_if=Backend redis,omitempty,url"`
	PostgresURL    string `mapstructure:"postgres_url" validate:"required_if=Backend postgres,omitempty,url"`
	KeyPrefix      string `mapstructure:"key_prefix" validate:"required"`
	DispatchPrefix string `mapstructure:"dispatch_prefix" validate:"required,nefield=KeyPrefix"`
	RegistryKey    string `mapstructure:"registry_key" validate:"required"`
}

// WorkerConfig contains the broker and worker pool settings.
type WorkerConfig struct {
	// Embedded runs workers inside the API process
	Embedded       bool   `mapstructure:"embedded"`
	Count          int    `mapstructure:"count" validate:"gt=0"`
	QueueSize      int    `mapstructure:"queue_size" validate:"gt=0"`
	Broker         string `mapstructure:"broker" validate:"required,oneof=memory redis"`
	QueueName      string `mapstructure:"queue_name" validate:"required"`
	WorkDir        string `mapstructure:"work_dir"`
	RecoverPending bool   `mapstructure:"recover_pending"`
}

// StreamConfig contains the event stream timings.
type StreamConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval" validate:"gte=0"`
}

// MediaConfig contains settings for the media jobs.
type MediaConfig struct {
	// UploadDir holds sources submitted by video id alone
	UploadDir     string `mapstructure:"upload_dir" validate:"required"`
	OutputDir     string `mapstructure:"output_dir" validate:"required"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required"`

	// FFmpegPath selects the transcoder; empty copies the source unchanged
	FFmpegPath       string        `mapstructure:"ffmpeg_path"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
	MaxDownloadBytes int64         `mapstructure:"max_download_bytes" validate:"gt=0"`
}

// LLMConfig contains all LLM integration related settings.
// An empty GeminiAPIKey disables the analyze_video job.
type LLMConfig struct {
	GeminiAPIKey      string        `mapstructure:"gemini_api_key"`
	ModelName         string        `mapstructure:"model_name" validate:"required"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"gte=0"`
	UploadTimeout     time.Duration `mapstructure:"upload_timeout" validate:"gt=0"`
	FilePollInterval  time.Duration `mapstructure:"file_poll_interval" validate:"gt=0"`
}

// AnalysisEnabled reports whether a Gemini key is configured
func (c LLMConfig) AnalysisEnabled() bool {
	return c.GeminiAPIKey != ""
}
