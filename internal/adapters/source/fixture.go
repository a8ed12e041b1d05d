package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/logger"
)

// fixtureFile is the on-disk layout. JSON fixtures decode too since JSON
// is valid YAML.
type fixtureFile struct {
	Batches []fixtureBatch `yaml:"batches"`
}

type fixtureBatch struct {
	ID        string           `yaml:"id"`
	Documents []map[string]any `yaml:"documents"`
}

// FixtureSource replays recorded batches on an interval.
type FixtureSource struct {
	batches []fixtureBatch
	cfg     settings
}

// LoadFixture reads a fixture file from path.
func LoadFixture(path string, opts ...Option) (*FixtureSource, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from static config
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return NewFixtureSource(data, opts...)
}

// NewFixtureSource decodes a fixture from data. At least one batch is required.
func NewFixtureSource(data []byte, opts ...Option) (*FixtureSource, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	if len(f.Batches) == 0 {
		return nil, fmt.Errorf("%w: no batches", ErrInvalidFixture)
	}
	return &FixtureSource{
		batches: f.Batches,
		cfg:     newSettings("source.fixture", opts),
	}, nil
}

// Len returns the number of batches in the fixture.
func (s *FixtureSource) Len() int { return len(s.batches) }

// Subscribe reports connected and starts the replay with the first batch.
func (s *FixtureSource) Subscribe(ctx context.Context, sink Sink) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go s.run(ctx, sink, done)
	return newSubscription(cancel, done), nil
}

func (s *FixtureSource) run(ctx context.Context, sink Sink, done chan<- struct{}) {
	defer close(done)

	announced := sink.OnConnectionState(ctx, true)

	ticker := time.NewTicker(s.cfg.interval)
	defer ticker.Stop()

	for cycle := 0; ; cycle++ {
		for i := range s.batches {
			if ctx.Err() != nil {
				return
			}
			if !announced {
				announced = sink.OnConnectionState(ctx, true)
			}
			if !sink.OnBatch(ctx, s.batch(i, cycle)) {
				s.cfg.logger.Debug(ctx, "fixture batch skipped", logger.Int("index", i))
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
		if !s.cfg.loop {
			s.cfg.logger.Info(ctx, "fixture replay finished", logger.Int("batches", len(s.batches)))
			<-ctx.Done()
			return
		}
	}
}

// batch builds the i-th batch, keeping the newest fetch-limit documents.
func (s *FixtureSource) batch(i, cycle int) model.Batch {
	fb := s.batches[i]
	raw := fb.Documents
	if len(raw) > s.cfg.limit {
		raw = raw[len(raw)-s.cfg.limit:]
	}
	docs := make([]model.Document, len(raw))
	for j, d := range raw {
		docs[j] = d
	}

	id := fb.ID
	if id == "" {
		id = uuid.NewString()
	} else if cycle > 0 {
		id = fmt.Sprintf("%s.%d", id, cycle)
	}
	return model.Batch{ID: id, Documents: docs, ReceivedAt: s.cfg.now()}
}
