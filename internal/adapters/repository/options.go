package repository

import "time"

// Option applies a configuration option to the ViewStore.
type Option func(*ViewStore)

// WithClock sets the clock used to stamp published views.
func WithClock(now func() time.Time) Option {
	return func(s *ViewStore) {
		if now != nil {
			s.now = now
		}
	}
}
