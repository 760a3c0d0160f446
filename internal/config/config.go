// Package config loads the service configuration from a YAML file, applying
// defaults for anything unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "500ms"
// or "2s".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML accepts either a duration string or an integer nanosecond
// count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// Config is the full service configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// QueueConfig tunes delivery and retry behavior.
type QueueConfig struct {
	Workers        int           `yaml:"workers"`
	PollInterval   Duration `yaml:"poll_interval"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  Duration `yaml:"retry_max_delay"`
	StaleAfter     Duration `yaml:"stale_after"`
}

// PipelineConfig tunes the analysis stages.
type PipelineConfig struct {
	ChunkWindow      int           `yaml:"chunk_window"`
	MarkerTTL        Duration `yaml:"marker_ttl"`
	OCRTimeout       Duration `yaml:"ocr_timeout"`
	ReasoningTimeout Duration `yaml:"reasoning_timeout"`
}

// EmbeddingConfig selects and tunes the embedding provider. The API key is
// never read from the file, only from OPENAI_API_KEY.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "stub"
	CacheSize int    `yaml:"cache_size"`
}

// ReasoningConfig selects the analysis backend. An empty URL selects the
// built-in local analyzer.
type ReasoningConfig struct {
	URL string `yaml:"url"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "contractintel.db",
		},
		Queue: QueueConfig{
			Workers:        5,
			PollInterval:   Duration(500 * time.Millisecond),
			MaxAttempts:    3,
			RetryBaseDelay: Duration(2000 * time.Millisecond),
			RetryMaxDelay:  Duration(30 * time.Second),
			StaleAfter:     Duration(15 * time.Minute),
		},
		Pipeline: PipelineConfig{
			ChunkWindow:      500,
			MarkerTTL:        Duration(7 * 24 * time.Hour),
			OCRTimeout:       Duration(5 * time.Minute),
			ReasoningTimeout: Duration(3 * time.Minute),
		},
		Embedding: EmbeddingConfig{
			Provider:  "stub",
			CacheSize: 10000,
		},
	}
}

// Load reads path and overlays it on the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue.workers must be positive, got %d", c.Queue.Workers)
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive, got %d", c.Queue.MaxAttempts)
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue.poll_interval must be positive, got %s", c.Queue.PollInterval)
	}
	if c.Queue.StaleAfter <= 0 {
		return fmt.Errorf("queue.stale_after must be positive, got %s", c.Queue.StaleAfter)
	}
	if c.Pipeline.ChunkWindow <= 0 {
		return fmt.Errorf("pipeline.chunk_window must be positive, got %d", c.Pipeline.ChunkWindow)
	}
	switch c.Embedding.Provider {
	case "openai", "stub":
	default:
		return fmt.Errorf("embedding.provider must be openai or stub, got %q", c.Embedding.Provider)
	}
	return nil
}
