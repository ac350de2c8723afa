package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CHUNISYNC_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CHUNISYNC_CONFIG is set
//  3. env (prefix CHUNISYNC_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// CHUNISYNC_QUEUE_SIZE -> queue_size. Underscores are kept to match the
	// flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("queue_size must be positive: %w", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("worker_count must be positive: %w", ErrInvalidConfig)
	case c.MaxBestLimit <= 0:
		return fmt.Errorf("max_best_limit must be positive: %w", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("log_format %q: %w", c.LogFormat, ErrInvalidConfig)
	case !c.DryRun && c.SubmitBaseURL == "":
		return fmt.Errorf("submit_base_url is required unless dry_run: %w", ErrInvalidConfig)
	}
	switch c.PayloadRegion {
	case "jp", "intl", "paralost":
	default:
		return fmt.Errorf("payload_region %q: %w", c.PayloadRegion, ErrInvalidConfig)
	}
	switch c.MissingLevelPolicy {
	case "fail", "skip", "estimate":
	default:
		return fmt.Errorf("missing_level_policy %q: %w", c.MissingLevelPolicy, ErrInvalidConfig)
	}
	return nil
}
