package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:""`
	PrimaryModel  string `envconfig:"CVMODEL_PRIMARY_MODEL" default:"gpt-4o-mini"`
	FallbackModel string `envconfig:"CVMODEL_FALLBACK_MODEL" default:"gpt-3.5-turbo"`

	MaxChunkLen     int `envconfig:"CVMODEL_MAX_CHUNK_LEN" default:"3000"`
	Workers         int `envconfig:"CVMODEL_WORKERS" default:"4"`
	MaxAttempts     int `envconfig:"CVMODEL_MAX_ATTEMPTS" default:"4"`
	FallbackAttempt int `envconfig:"CVMODEL_FALLBACK_ATTEMPT" default:"3"`
	BackoffSeedMS   int `envconfig:"CVMODEL_BACKOFF_SEED_MS" default:"400"`
	StreamPauseMS   int `envconfig:"CVMODEL_STREAM_PAUSE_MS" default:"150"`

	CacheTTLHours          int    `envconfig:"CVMODEL_CACHE_TTL_HOURS" default:"168"`
	CacheFlushSeconds      int    `envconfig:"CVMODEL_CACHE_FLUSH_SECONDS" default:"300"`
	DatabaseURL            string `envconfig:"DATABASE_URL" default:""`
	DBMaxConns             int    `envconfig:"CVMODEL_DB_MAX_CONNS" default:"4"`
	UpstreamTimeoutSeconds int    `envconfig:"CVMODEL_UPSTREAM_TIMEOUT_SECONDS" default:"120"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.PrimaryModel) == "" {
		return fmt.Errorf("CVMODEL_PRIMARY_MODEL is required")
	}
	if strings.TrimSpace(c.FallbackModel) == "" {
		return fmt.Errorf("CVMODEL_FALLBACK_MODEL is required")
	}
	if c.MaxChunkLen < 1 {
		return fmt.Errorf("CVMODEL_MAX_CHUNK_LEN must be >= 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("CVMODEL_WORKERS must be >= 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("CVMODEL_MAX_ATTEMPTS must be >= 1")
	}
	if c.FallbackAttempt < 1 || c.FallbackAttempt > c.MaxAttempts {
		return fmt.Errorf("CVMODEL_FALLBACK_ATTEMPT (%d) must be between 1 and CVMODEL_MAX_ATTEMPTS (%d)",
			c.FallbackAttempt, c.MaxAttempts)
	}
	if c.BackoffSeedMS < 1 {
		return fmt.Errorf("CVMODEL_BACKOFF_SEED_MS must be >= 1")
	}
	if c.StreamPauseMS < 0 {
		return fmt.Errorf("CVMODEL_STREAM_PAUSE_MS must be >= 0")
	}
	if c.CacheTTLHours < 1 {
		return fmt.Errorf("CVMODEL_CACHE_TTL_HOURS must be >= 1")
	}
	if c.CacheFlushSeconds < 1 {
		return fmt.Errorf("CVMODEL_CACHE_FLUSH_SECONDS must be >= 1")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("CVMODEL_DB_MAX_CONNS must be >= 1")
	}
	if c.UpstreamTimeoutSeconds < 1 {
		return fmt.Errorf("CVMODEL_UPSTREAM_TIMEOUT_SECONDS must be >= 1")
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

func (c *Config) CacheFlushInterval() time.Duration {
	return time.Duration(c.CacheFlushSeconds) * time.Second
}

func (c *Config) BackoffSeed() time.Duration {
	return time.Duration(c.BackoffSeedMS) * time.Millisecond
}

func (c *Config) StreamPause() time.Duration {
	return time.Duration(c.StreamPauseMS) * time.Millisecond
}

func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// HasDurableCache reports whether a Postgres-backed cache store is configured.
func (c *Config) HasDurableCache() bool {
	return c != nil && strings.TrimSpace(c.DatabaseURL) != ""
}
