// Package config provides the configuration structure for the variation-service.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied by Normalize.
const (
	DefaultFFmpegPath          = "ffmpeg"
	DefaultWorkDir             = "uploaded_audio"
	DefaultStageTimeoutSeconds = 300
	DefaultHTTPAddr            = ":8080"
	DefaultBaseLogsDir         = "logs"
)

var (
	// ErrEmbeddingsPathEmpty indicates that no embedding table was configured.
	ErrEmbeddingsPathEmpty = errors.New("prompt.embeddings_path cannot be empty")
	// ErrNATSSubjectEmpty indicates a NATS URL without a request subject.
	ErrNATSSubjectEmpty = errors.New("nats.variation_requested_subject cannot be empty when nats.url is set")
	// ErrNegativeStageTimeout indicates a negative stage timeout.
	ErrNegativeStageTimeout = errors.New("engine.stage_timeout_seconds must be non-negative")
)

// NATSConfig holds the configuration for NATS. An empty URL disables the worker.
type NATSConfig struct {
	URL                        string `toml:"url"`
	VariationRequestedSubject  string `toml:"variation_requested_subject"`
	VariationObjectStoreBucket string `toml:"variation_object_store_bucket"`
}

// EngineConfig holds the audio engine configuration.
type EngineConfig struct {
	FFmpegPath          string `toml:"ffmpeg_path"`
	WorkDir             string `toml:"work_dir"`
	TracksDir           string `toml:"tracks_dir"`
	StageTimeoutSeconds int    `toml:"stage_timeout_seconds"`
}

// StageTimeout returns the per-stage timeout. Normalize replaces an unset or zero value
// with DefaultStageTimeoutSeconds, so a loaded configuration is always bounded.
func (e EngineConfig) StageTimeout() time.Duration {
	return time.Duration(e.StageTimeoutSeconds) * time.Second
}

// PromptConfig locates the embedding table and an optional alternate taxonomy.
type PromptConfig struct {
	EmbeddingsPath string `toml:"embeddings_path"`
	TaxonomyPath   string `toml:"taxonomy_path"`
}

// HTTPConfig holds the HTTP listener configuration.
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS   NATSConfig   `toml:"nats"`
	Engine EngineConfig `toml:"engine"`
	Prompt PromptConfig `toml:"prompt"`
	HTTP   HTTPConfig   `toml:"http"`
	Paths  PathsConfig  `toml:"paths"`
}

// Load loads, normalizes and validates the configuration for the variation-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.Normalize()

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Normalize fills in defaults for unset optional fields.
func (c *Config) Normalize() {
	if c.Engine.FFmpegPath == "" {
		c.Engine.FFmpegPath = DefaultFFmpegPath
	}

	if c.Engine.WorkDir == "" {
		c.Engine.WorkDir = DefaultWorkDir
	}

	if c.Engine.TracksDir == "" {
		c.Engine.TracksDir = c.Engine.WorkDir
	}

	if c.Engine.StageTimeoutSeconds == 0 {
		c.Engine.StageTimeoutSeconds = DefaultStageTimeoutSeconds
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = DefaultBaseLogsDir
	}
}

// Validate checks the fields that have no sensible default.
func (c *Config) Validate() error {
	if c.Prompt.EmbeddingsPath == "" {
		return ErrEmbeddingsPathEmpty
	}

	if c.NATS.URL != "" && c.NATS.VariationRequestedSubject == "" {
		return ErrNATSSubjectEmpty
	}

	if c.Engine.StageTimeoutSeconds < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeStageTimeout, c.Engine.StageTimeoutSeconds)
	}

	return nil
}
