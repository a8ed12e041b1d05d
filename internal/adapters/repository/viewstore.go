package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/metrics"
)

// ViewStore keeps the latest view in memory. One writer (the worker)
// replaces it; any number of HTTP readers copy it out.
type ViewStore struct {
	mu   sync.RWMutex
	view model.View
	seen bool // a connectivity state has been recorded
	now  func() time.Time
}

// NewViewStore returns an empty, disconnected store.
func NewViewStore(opts ...Option) *ViewStore {
	s := &ViewStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish implements Store.
func (s *ViewStore) Publish(_ context.Context, v model.View) { //nolint:gocritic // hugeParam: the view is replaced wholesale
	s.mu.Lock()
	defer s.mu.Unlock()

	v.Batches = s.view.Batches + 1
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = s.now()
	}
	v.Connected = s.view.Connected
	s.view = v
	s.setConnected(true)
}

// Touch implements Store.
func (s *ViewStore) Touch(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.LastError = ""
	s.view.Batches++
	s.setConnected(true)
}

// SetConnected implements Store.
func (s *ViewStore) SetConnected(_ context.Context, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if connected {
		s.view.LastError = ""
	}
	s.setConnected(connected)
}

// Fail implements Store.
func (s *ViewStore) Fail(_ context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.view.LastError = err.Error()
	}
	s.setConnected(false)
}

// setConnected records a connectivity transition. Callers hold mu.
func (s *ViewStore) setConnected(connected bool) {
	if s.seen && s.view.Connected == connected {
		return
	}
	s.seen = true
	s.view.Connected = connected
	metrics.UpdateConnected(connected)
}

// Current implements Store. Slices and the raw map are shared with the
// stored view; they are never mutated after Publish.
func (s *ViewStore) Current(_ context.Context) model.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}
