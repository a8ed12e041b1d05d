// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Configuration is loaded once at startup and never mutated afterwards.
// - New returns defaults; Load layers file and environment on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/riskwatch/internal/domain/scoring"
	"github.com/okian/riskwatch/internal/domain/series"
)

// Source kinds.
const (
	SourceDynamo  = "dynamo"
	SourcePush    = "push"
	SourceFixture = "fixture"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`
	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// AllowedOrigins lists CORS origins for the JSON API.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// EventQueueSize bounds the subscription event queue.
	EventQueueSize int `koanf:"queue_size"`
	// DedupeSize bounds the pushed batch id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// Source selects the document store adapter: dynamo, push or fixture.
	Source string `koanf:"source"`
	// Collection names the table holding sensor documents.
	Collection string `koanf:"collection"`
	// AWSRegion and DynamoEndpoint configure the DynamoDB client.
	AWSRegion      string `koanf:"aws_region"`
	DynamoEndpoint string `koanf:"dynamo_endpoint"`
	// PollIntervalMS is the DynamoDB scan period.
	PollIntervalMS int `koanf:"poll_interval_ms"`
	// FixturePath and FixtureIntervalMS drive the fixture replay source.
	FixturePath       string `koanf:"fixture_path"`
	FixtureIntervalMS int    `koanf:"fixture_interval_ms"`

	// ScoredChannel is the document field normalized into the risk score.
	ScoredChannel string `koanf:"scored_channel"`
	// ScoreMin and ScoreMax bound the raw readings mapped onto [0,1].
	ScoreMin float64 `koanf:"score_min"`
	ScoreMax float64 `koanf:"score_max"`
	// IntervalMS is the time between samples inside one document.
	IntervalMS int `koanf:"interval_ms"`
	// FetchLimit caps documents per batch.
	FetchLimit int `koanf:"fetch_limit"`
	// MaxPoints caps the published series.
	MaxPoints int `koanf:"max_points"`
	// RecentEvents caps the newest-first event listing.
	RecentEvents int `koanf:"recent_events"`
	// RawFields lists the raw channels shown in the diagnostic panel.
	RawFields []string `koanf:"raw_fields"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		AllowedOrigins:    []string{"*"},
		EventQueueSize:    64,
		DedupeSize:        10_000,
		Source:            SourceDynamo,
		Collection:        "SensorData",
		AWSRegion:         "eu-west-1",
		PollIntervalMS:    1000,
		FixtureIntervalMS: 1600,
		ScoredChannel:     "IR",
		ScoreMin:          2600,
		ScoreMax:          3200,
		IntervalMS:        200,
		FetchLimit:        8,
		MaxPoints:         600,
		RecentEvents:      10,
		RawFields:         []string{"AcX", "AcY", "AcZ", "HR", "SPO2", "Temp", "VHR", "VSPO2"},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ScoredChannel) == "":
		return fmt.Errorf("%w: scored_channel must not be empty", ErrInvalidConfig)
	case c.IntervalMS <= 0:
		return fmt.Errorf("%w: interval_ms must be positive", ErrInvalidConfig)
	case c.FetchLimit <= 0:
		return fmt.Errorf("%w: fetch_limit must be positive", ErrInvalidConfig)
	case c.MaxPoints <= 0:
		return fmt.Errorf("%w: max_points must be positive", ErrInvalidConfig)
	case c.EventQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}

	switch c.Source {
	case SourceDynamo:
		if strings.TrimSpace(c.Collection) == "" {
			return fmt.Errorf("%w: collection must not be empty", ErrInvalidConfig)
		}
		if c.PollIntervalMS <= 0 {
			return fmt.Errorf("%w: poll_interval_ms must be positive", ErrInvalidConfig)
		}
	case SourceFixture:
		if strings.TrimSpace(c.FixturePath) == "" {
			return fmt.Errorf("%w: fixture_path must be set for the fixture source", ErrInvalidConfig)
		}
		if c.FixtureIntervalMS <= 0 {
			return fmt.Errorf("%w: fixture_interval_ms must be positive", ErrInvalidConfig)
		}
	case SourcePush:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}
	return nil
}

// Series returns the flattener configuration.
func (c *Config) Series() series.Config {
	return series.Config{
		ScoredChannel: c.ScoredChannel,
		Interval:      time.Duration(c.IntervalMS) * time.Millisecond,
		MaxPoints:     c.MaxPoints,
		Range:         scoring.Range{Min: c.ScoreMin, Max: c.ScoreMax},
	}
}

// PollInterval returns the DynamoDB scan period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// FixtureInterval returns the fixture replay period.
func (c *Config) FixtureInterval() time.Duration {
	return time.Duration(c.FixtureIntervalMS) * time.Millisecond
}
