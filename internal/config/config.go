// Package config defines service configuration and its loader.
package config

import (
	"runtime"
)

// DefaultSubmitBaseURL is the score tracker import API.
const DefaultSubmitBaseURL = "https://api.chunirec.net/2.0/pttgr"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory sync job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of sync workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the job id and payload fingerprint caches.
	DedupeSize int `koanf:"dedupe_size"`

	// ChartsFile is an optional YAML chart catalog.
	ChartsFile string `koanf:"charts_file"`

	// MaxBestLimit caps GET /v1/players/{name}/best?limit.
	MaxBestLimit int `koanf:"max_best_limit"`

	// MissingLevelPolicy handles records on charts without a known constant:
	// fail, skip or estimate.
	MissingLevelPolicy string `koanf:"missing_level_policy"`

	// PayloadRegion is written into the payload header: jp, intl or paralost.
	PayloadRegion string `koanf:"payload_region"`

	SubmitBaseURL       string `koanf:"submit_base_url"`
	SubmitRegion        string `koanf:"submit_region"`
	SubmitTimeoutMS     int    `koanf:"submit_timeout_ms"`
	SubmitRatePerMinute int    `koanf:"submit_rate_per_minute"`

	// DryRun assembles payloads without sending them.
	DryRun bool `koanf:"dry_run"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           1024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		MaxBestLimit:        100,
		MissingLevelPolicy:  "estimate",
		PayloadRegion:       "jp",
		SubmitBaseURL:       DefaultSubmitBaseURL,
		SubmitRegion:        "jp2",
		SubmitTimeoutMS:     10_000,
		SubmitRatePerMinute: 6,
	}
}
