// Package replay generates synthetic sensor batches and publishes them to a
// running service or writes them out as a fixture file.
package replay

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the settings of one replay run.
type Config struct {
	BaseURL      string        // base URL of the service
	Batches      int           // number of batches to generate
	DocsPerBatch int           // documents per batch
	Samples      int           // scored samples per document
	Interval     time.Duration // delay between submitted batches
	Timeout      time.Duration // HTTP request timeout
	Seed         uint64        // generator seed; 0 picks one from the clock
	OutputFile   string        // fixture file written after generation
	Verbose      bool
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.Batches <= 0:
		return fmt.Errorf("%w: batches must be positive", ErrInvalidConfig)
	case c.DocsPerBatch <= 0:
		return fmt.Errorf("%w: docs per batch must be positive", ErrInvalidConfig)
	case c.Samples <= 0:
		return fmt.Errorf("%w: samples must be positive", ErrInvalidConfig)
	case c.Interval < 0:
		return fmt.Errorf("%w: interval must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// Batch is one generated batch. The JSON shape is the push API body and the
// YAML shape is the fixture file entry.
type Batch struct {
	ID        string           `json:"batch_id" yaml:"id"`
	Documents []map[string]any `json:"documents" yaml:"documents"`
}

// Fixture is the on-disk fixture layout.
type Fixture struct {
	Batches []Batch `yaml:"batches"`
}

// Outcome classifies one submission.
type Outcome string

// Submission outcomes.
const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeThrottled Outcome = "throttled"
	OutcomeFailed    Outcome = "failed"
)

// Stats holds run statistics.
type Stats struct {
	BatchesGenerated int
	Accepted         int
	Duplicate        int
	Throttled        int
	Failed           int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

func (s *Stats) record(o Outcome) {
	switch o {
	case OutcomeAccepted:
		s.Accepted++
	case OutcomeDuplicate:
		s.Duplicate++
	case OutcomeThrottled:
		s.Throttled++
	default:
		s.Failed++
	}
}

// Submitted returns the number of batches sent.
func (s *Stats) Submitted() int {
	return s.Accepted + s.Duplicate + s.Throttled + s.Failed
}
