package worker

import (
	"time"

	"github.com/okian/riskwatch/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRawFields sets the raw channels reported from the newest document.
func WithRawFields(fields []string) Option {
	return func(w *InMemoryWorker) {
		w.rawFields = append([]string(nil), fields...)
	}
}

// WithRecentEvents sets how many rows the event table holds.
func WithRecentEvents(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.recent = n
		}
	}
}

// WithClock sets the clock that anchors each batch's timeline.
func WithClock(now func() time.Time) Option {
	return func(w *InMemoryWorker) {
		if now != nil {
			w.now = now
		}
	}
}
