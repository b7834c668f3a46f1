// Package config loads runtime settings for graph execution from a YAML
// file, with environment-variable overrides. It configures the ambient
// knobs — step limits, checkpoint retention, retry defaults, log level —
// not the graph topology itself.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avi3tal/agentflow/pkg/retry"
)

// EnvPrefix is prepended to field names for environment overrides, e.g.
// AGENTFLOW_MAX_STEPS.
const EnvPrefix = "AGENTFLOW_"

// Duration wraps time.Duration for YAML values like "30s" or "1h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RetryConfig holds retry policy defaults.
type RetryConfig struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	InitialInterval   Duration `yaml:"initial_interval"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
	MaxInterval       Duration `yaml:"max_interval"`
}

// Config is the runtime configuration for graph execution.
type Config struct {
	// MaxSteps bounds node visits per run. Zero disables the bound.
	MaxSteps int `yaml:"max_steps"`

	// CheckpointTTL is the retention window for in-memory checkpoints.
	CheckpointTTL Duration `yaml:"checkpoint_ttl"`

	// Retry provides the default retry policy for nodes that want one.
	Retry RetryConfig `yaml:"retry"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxSteps:      50,
		CheckpointTTL: Duration(time.Hour),
		Retry: RetryConfig{
			MaxAttempts:       retry.DefaultMaxAttempts,
			InitialInterval:   Duration(retry.DefaultInitialInterval),
			BackoffMultiplier: retry.DefaultBackoffMultiplier,
			MaxInterval:       Duration(retry.DefaultMaxInterval),
		},
		LogLevel: "info",
	}
}

// Load reads cfg from path, starting from defaults and finishing with
// environment overrides. A missing file is not an error; the defaults and
// environment still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPrefix + "MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxSteps = n
		}
	}
	if v := os.Getenv(EnvPrefix + "CHECKPOINT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CheckpointTTL = Duration(d)
		}
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be >= 0, got %d", c.MaxSteps)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be >= 1, got %g", c.Retry.BackoffMultiplier)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// RetryPolicy builds the configured default retry policy.
func (c *Config) RetryPolicy() *retry.Policy {
	return retry.NewPolicy(
		retry.WithMaxAttempts(c.Retry.MaxAttempts),
		retry.WithInitialInterval(c.Retry.InitialInterval.Std()),
		retry.WithBackoffMultiplier(c.Retry.BackoffMultiplier),
		retry.WithMaxInterval(c.Retry.MaxInterval.Std()),
	)
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
