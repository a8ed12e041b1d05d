package source

import (
	"time"

	"github.com/okian/riskwatch/internal/domain/dedupe"
	"github.com/okian/riskwatch/pkg/logger"
)

const (
	defaultPollInterval = time.Second
	defaultFetchLimit   = 8
)

// settings are shared by every source implementation; each reads the
// fields it needs.
type settings struct {
	interval time.Duration
	limit    int
	loop     bool
	now      func() time.Time
	deduper  dedupe.Deduper
	logger   logger.Logger
}

func newSettings(name string, opts []Option) settings {
	s := settings{
		interval: defaultPollInterval,
		limit:    defaultFetchLimit,
		loop:     true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named(name)
	}
	return s
}

// Option configures a source.
type Option func(*settings)

// WithInterval sets the poll interval of DynamoSource or the replay
// interval of FixtureSource.
func WithInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithFetchLimit caps the number of documents per batch.
func WithFetchLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLoop controls whether FixtureSource restarts after the last batch.
func WithLoop(loop bool) Option {
	return func(s *settings) {
		s.loop = loop
	}
}

// WithClock overrides the clock used to stamp batches.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDeduper sets the batch id deduper used by PushSource.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *settings) {
		s.deduper = d
	}
}

// WithLogger sets a custom logger for the source.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
