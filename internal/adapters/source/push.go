package source

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/riskwatch/internal/domain/dedupe"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/metrics"
)

// PushSource accepts batches from external publishers. It serves a single
// sink at a time and is connected for as long as that sink is subscribed.
type PushSource struct {
	cfg settings

	mu        sync.Mutex
	sink      Sink
	ctx       context.Context //nolint:containedctx // lifetime of the active subscription
	announced bool            // the sink took connected=true
}

// NewPushSource returns an idle push source.
func NewPushSource(opts ...Option) *PushSource {
	s := &PushSource{cfg: newSettings("source.push", opts)}
	if s.cfg.deduper == nil {
		s.cfg.deduper = dedupe.NewInMemoryDeduper()
	}
	return s
}

// Subscribe attaches sink. The subscription also ends when ctx is done.
func (s *PushSource) Subscribe(ctx context.Context, sink Sink) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink != nil {
		return nil, ErrAlreadySubscribed
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.sink, s.ctx = sink, subCtx

	done := make(chan struct{})
	context.AfterFunc(subCtx, func() {
		s.mu.Lock()
		s.sink, s.ctx, s.announced = nil, nil, false
		s.mu.Unlock()
		close(done)
	})

	s.announced = sink.OnConnectionState(subCtx, true)
	return newSubscription(cancel, done), nil
}

// Push hands b to the subscribed sink. A missing id is generated; the
// returned batch carries the id that was used.
func (s *PushSource) Push(ctx context.Context, b model.Batch) (model.Batch, error) { //nolint:gocritic // hugeParam: Batch is passed by value into the sink
	if b.Len() > s.cfg.limit {
		return b, ErrBatchTooLarge
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.ReceivedAt.IsZero() {
		b.ReceivedAt = s.cfg.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		return b, ErrNotSubscribed
	}
	if s.cfg.deduper.SeenAndRecord(ctx, b.ID) {
		metrics.RecordDuplicateBatch()
		return b, ErrDuplicateBatch
	}

	if !s.announced {
		s.announced = s.sink.OnConnectionState(s.ctx, true)
	}
	if !s.sink.OnBatch(s.ctx, b) {
		s.cfg.deduper.Unrecord(ctx, b.ID)
		return b, ErrBackpressure
	}
	return b, nil
}

// Subscribed reports whether a sink is attached.
func (s *PushSource) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink != nil
}
