package replay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/riskwatch/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

const (
	statusPoll    = 100 * time.Millisecond
	settleTimeout = 10 * time.Second
)

// Generate builds the configured number of batches.
func Generate(cfg *Config) []Batch {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // non-negative clock value
	}
	gen := NewGenerator(seed, cfg.Samples)
	out := make([]Batch, cfg.Batches)
	for i := range out {
		out[i] = gen.Batch(cfg.DocsPerBatch)
	}
	return out
}

// Run pushes generated batches to the service and checks the last one
// was applied.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Named("replay")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting replay",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("batches", cfg.Batches),
		logger.Int("docsPerBatch", cfg.DocsPerBatch),
		logger.Int("samples", cfg.Samples),
		logger.Duration("interval", cfg.Interval))

	client := NewClient(cfg)
	if err := client.Health(ctx); err != nil {
		return stats, err
	}

	batches := Generate(cfg)
	stats.BatchesGenerated = len(batches)

	if cfg.OutputFile != "" {
		if err := WriteFixture(cfg.OutputFile, batches); err != nil {
			log.Warn(ctx, "failed to save fixture", logger.Error(err))
		}
	}

	var lastAccepted string
	for i, b := range batches {
		if i > 0 && cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return finish(stats), ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}

		outcome, err := client.Submit(ctx, b)
		stats.record(outcome)
		if outcome == OutcomeAccepted {
			lastAccepted = b.ID
		}
		if err != nil {
			log.Warn(ctx, "batch submission failed", logger.String("batchId", b.ID), logger.Error(err))
		}
		if cfg.Verbose {
			log.Info(ctx, "batch submitted",
				logger.Int("index", i),
				logger.String("batchId", b.ID),
				logger.String("outcome", string(outcome)))
		}
	}

	if lastAccepted == "" {
		return finish(stats), fmt.Errorf("%w: no batch accepted", ErrNotApplied)
	}

	waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	st, err := client.WaitForBatch(waitCtx, lastAccepted, statusPoll)
	if err != nil {
		return finish(stats), err
	}

	finish(stats)
	log.Info(ctx, "replay completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed),
		logger.Bool("connected", st.Connected),
		logger.Any("appliedBatches", st.Batches),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

func finish(stats *Stats) *Stats {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	return stats
}

// WriteFixture writes batches as a fixture file loadable by the fixture source.
func WriteFixture(path string, batches []Batch) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(Fixture{Batches: batches})
	if err != nil {
		return fmt.Errorf("failed to marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}
	return nil
}
