package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every configuration environment variable
const EnvPrefix = "MEDIATASK"

// ConfigFileEnv names the variable holding an explicit config file path
const ConfigFileEnv = EnvPrefix + "_CONFIG"

// ErrInvalidConfig is returned when the loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Config file: explicit path, or mediatask.{yaml,json,toml} in the working dir
	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("mediatask")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// MEDIATASK_SERVER_PORT -> server.port
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the rules that span groups
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Worker.Broker == "redis" && cfg.Store.RedisURL == "" {
		return fmt.Errorf("%w: worker.broker redis requires store.redis_url", ErrInvalidConfig)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can find it during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("store.key_prefix", "task-meta-")
	v.SetDefault("store.dispatch_prefix", "task-dispatch-")
	v.SetDefault("store.registry_key", "task_list")

	v.SetDefault("worker.embedded", true)
	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.broker", "memory")
	v.SetDefault("worker.queue_name", "media")
	v.SetDefault("worker.work_dir", "")
	v.SetDefault("worker.recover_pending", true)

	v.SetDefault("stream.poll_interval", time.Second)
	v.SetDefault("stream.keepalive_interval", 15*time.Second)

	v.SetDefault("media.upload_dir", "uploads")
	v.SetDefault("media.output_dir", "static/processed")
	v.SetDefault("media.public_base_url", "/static/processed")
	v.SetDefault("media.ffmpeg_path", "")
	v.SetDefault("media.fetch_timeout", 5*time.Minute)
	v.SetDefault("media.max_download_bytes", int64(512<<20))

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.upload_timeout", 5*time.Minute)
	v.SetDefault("llm.file_poll_interval", 2*time.Second)
}
