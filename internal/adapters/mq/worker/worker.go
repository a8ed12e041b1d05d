// Package worker drains subscription events and applies them to the
// published view. Exactly one worker runs per stream so batches are
// flattened one at a time, in arrival order.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/riskwatch/internal/domain/coerce"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/series"
	"github.com/okian/riskwatch/pkg/logger"
	"github.com/okian/riskwatch/pkg/metrics"
)

const defaultRecentEvents = 10

// Event abstracts what the worker reads off the queue.
type Event = model.Event

// Queue defines how the worker receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Publisher receives the results of applied events.
type Publisher interface {
	Publish(ctx context.Context, v model.View)
	Touch(ctx context.Context)
	SetConnected(ctx context.Context, connected bool)
	Fail(ctx context.Context, err error)
}

// Worker processes events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing events.
type InMemoryWorker struct {
	queue     Queue
	flattener *series.Flattener
	publisher Publisher
	name      string

	rawFields []string
	recent    int
	now       func() time.Time

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, flattener *series.Flattener, publisher Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		flattener: flattener,
		publisher: publisher,
		name:      "worker",
		recent:    defaultRecentEvents,
		now:       time.Now,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			metrics.UpdateQueueSize(len(events))

			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing event", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// processEvent handles a single event.
func (w *InMemoryWorker) processEvent(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	switch event.Kind {
	case model.EventBatch:
		w.applyBatch(ctx, event.Batch)
	case model.EventConnection:
		w.logger.Info(ctx, "connectivity changed", logger.Bool("connected", event.Connected))
		w.publisher.SetConnected(ctx, event.Connected)
	case model.EventFatal:
		metrics.RecordFatalError()
		w.logger.Error(ctx, "subscription failed", logger.Error(event.Err))
		w.publisher.Fail(ctx, event.Err)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownEvent, event.Kind)
	}
	return nil
}

// applyBatch flattens b and publishes the result. A batch without points
// keeps the previous view content.
func (w *InMemoryWorker) applyBatch(ctx context.Context, b model.Batch) { //nolint:gocritic // hugeParam: Batch is passed by value through the queue
	metrics.RecordBatch(b.Len())
	w.logger.Debug(ctx, "snapshot received",
		logger.String("batch_id", b.ID),
		logger.Int("documents", b.Len()),
	)

	if b.Len() == 0 {
		metrics.RecordEmptyBatch()
		w.logger.Debug(ctx, "no documents in batch")
		w.publisher.Touch(ctx)
		return
	}

	now := w.now()
	start := time.Now()
	s := w.flattener.Flatten(b.Documents, now)
	metrics.RecordFlattenLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordDocumentsSkipped(w.countSkipped(b.Documents))

	last, ok := series.Latest(s)
	if !ok {
		metrics.RecordEmptyBatch()
		w.logger.Debug(ctx, "nothing to show yet", logger.String("batch_id", b.ID))
		w.publisher.Touch(ctx)
		return
	}

	metrics.RecordSeries(len(s), last.Score)
	metrics.RecordPointRisk(last.Risk.String())
	w.logger.Debug(ctx, "last point",
		logger.Time("timestamp", last.Timestamp),
		logger.Float64("score", last.Score),
		logger.String("risk", last.Risk.String()),
	)

	w.publisher.Publish(ctx, model.View{
		Headline:  &last,
		Series:    s,
		Recent:    series.Recent(s, w.recent),
		Raw:       series.Raw(b, w.rawFields),
		RawFields: w.rawFields,
		Documents: b.Len(),
		BatchID:   b.ID,
		UpdatedAt: now,
	})
}

func (w *InMemoryWorker) countSkipped(docs []model.Document) int {
	channel := w.flattener.Config().ScoredChannel
	n := 0
	for _, d := range docs {
		if len(coerce.Numbers(d[channel])) == 0 {
			n++
		}
	}
	return n
}
