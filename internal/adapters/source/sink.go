package source

import (
	"context"

	"github.com/okian/riskwatch/internal/adapters/mq/queue"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/logger"
)

// QueueSink turns subscription callbacks into events on a queue. The core
// consumes the queue from a single goroutine.
type QueueSink struct {
	queue  queue.Queue
	logger logger.Logger
}

// NewQueueSink returns a Sink that enqueues onto q.
func NewQueueSink(q queue.Queue, l logger.Logger) *QueueSink {
	if l == nil {
		l = logger.Get().Named("sink")
	}
	return &QueueSink{queue: q, logger: l}
}

// OnBatch enqueues a batch event and reports whether it was accepted.
func (s *QueueSink) OnBatch(ctx context.Context, b model.Batch) bool { //nolint:gocritic // hugeParam: Batch is passed by value into the queue
	if s.queue.Enqueue(ctx, model.BatchEvent(b)) {
		return true
	}
	s.logger.Warn(ctx, "batch dropped",
		logger.String("batch_id", b.ID),
		logger.Int("documents", b.Len()),
	)
	return false
}

// OnConnectionState enqueues a connectivity change.
func (s *QueueSink) OnConnectionState(ctx context.Context, connected bool) bool {
	if s.queue.Enqueue(ctx, model.ConnectionEvent(connected)) {
		return true
	}
	s.logger.Warn(ctx, "connection event deferred", logger.Bool("connected", connected))
	return false
}

// OnFatalError enqueues a fatal subscription error.
func (s *QueueSink) OnFatalError(ctx context.Context, err error) bool {
	if s.queue.Enqueue(ctx, model.FatalEvent(err)) {
		return true
	}
	s.logger.Warn(ctx, "fatal event deferred", logger.Error(err))
	return false
}
