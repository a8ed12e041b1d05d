// Package service wires the subscription, the worker and the view store
// together and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	eventqueue "github.com/okian/riskwatch/internal/adapters/mq/queue"
	"github.com/okian/riskwatch/internal/adapters/mq/worker"
	"github.com/okian/riskwatch/internal/adapters/repository"
	"github.com/okian/riskwatch/internal/adapters/source"
	"github.com/okian/riskwatch/internal/config"
	"github.com/okian/riskwatch/internal/domain/dedupe"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/series"
	"github.com/okian/riskwatch/pkg/logger"
)

// Service owns the stream from the document store to the published view.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	src     source.Source
	push    *source.PushSource
	dynamo  dynamodbiface.DynamoDBAPI
	store   *repository.ViewStore
	queue   *eventqueue.InMemoryQueue
	worker  *worker.InMemoryWorker
	sub     *source.Subscription
	deduper dedupe.Deduper

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc
	now       func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSource replaces the source selected by configuration.
func WithSource(src source.Source) Option {
	return func(s *Service) {
		s.src = src
	}
}

// WithDynamoClient sets the client used by the dynamo source.
func WithDynamoClient(client dynamodbiface.DynamoDBAPI) Option {
	return func(s *Service) {
		s.dynamo = client
	}
}

// WithClock sets the clock that anchors batch timelines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service for cfg. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start builds the pipeline and subscribes to the source.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting risk score service...",
		logger.String("source", s.cfg.Source),
		logger.String("collection", s.cfg.Collection),
	)

	src, err := s.buildSource()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.store = repository.NewViewStore(repository.WithClock(s.now))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.EventQueueSize))
	s.worker = worker.NewInMemoryWorker(
		s.queue,
		series.New(s.cfg.Series()),
		s.store,
		worker.WithLogger(s.logger.Named("worker")),
		worker.WithRawFields(s.cfg.RawFields),
		worker.WithRecentEvents(s.cfg.RecentEvents),
		worker.WithClock(s.now),
	)
	go s.worker.Run(runCtx)

	sub, err := src.Subscribe(runCtx, source.NewQueueSink(s.queue, s.logger.Named("sink")))
	if err != nil {
		cancel()
		_ = s.queue.Close()
		return fmt.Errorf("%w: subscribe: %w", ErrStart, err)
	}

	s.sub = sub
	s.cancel = cancel
	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "risk score service started",
		logger.Int("queueSize", s.cfg.EventQueueSize),
		logger.Int("fetchLimit", s.cfg.FetchLimit),
		logger.Int("maxPoints", s.cfg.MaxPoints),
	)
	return nil
}

// buildSource returns the injected source or the one selected by config.
func (s *Service) buildSource() (source.Source, error) {
	if s.src != nil {
		if p, ok := s.src.(*source.PushSource); ok {
			s.push = p
		}
		return s.src, nil
	}

	switch s.cfg.Source {
	case config.SourcePush:
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
		s.push = source.NewPushSource(
			source.WithFetchLimit(s.cfg.FetchLimit),
			source.WithDeduper(s.deduper),
			source.WithLogger(s.logger.Named("push")),
		)
		s.src = s.push
	case config.SourceFixture:
		fx, err := source.LoadFixture(s.cfg.FixturePath,
			source.WithInterval(s.cfg.FixtureInterval()),
			source.WithFetchLimit(s.cfg.FetchLimit),
			source.WithLogger(s.logger.Named("fixture")),
		)
		if err != nil {
			return nil, err
		}
		s.logger.Info(context.Background(), "fixture loaded",
			logger.String("path", s.cfg.FixturePath),
			logger.Int("batches", fx.Len()),
		)
		s.src = fx
	case config.SourceDynamo:
		client := s.dynamo
		if client == nil {
			c, err := source.NewDynamoClient(s.cfg.AWSRegion, s.cfg.DynamoEndpoint)
			if err != nil {
				return nil, err
			}
			client = c
		}
		s.src = source.NewDynamoSource(client, s.cfg.Collection,
			source.WithInterval(s.cfg.PollInterval()),
			source.WithFetchLimit(s.cfg.FetchLimit),
			source.WithLogger(s.logger.Named("dynamo")),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, s.cfg.Source)
	}
	return s.src, nil
}

// Stop unsubscribes, lets the worker drain the queue and waits for it
// until ctx is done. Readers are not blocked while the worker drains.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}

	s.logger.Info(ctx, "stopping risk score service...")

	s.sub.Stop()
	_ = s.queue.Close()
	w, cancel := s.worker, s.cancel
	s.started = false
	s.mu.Unlock()

	var err error
	select {
	case <-w.Done():
	case <-ctx.Done():
		err = fmt.Errorf("worker drain: %w", ctx.Err())
		s.logger.Warn(ctx, "worker drain timed out")
	}
	cancel()

	s.logger.Info(ctx, "risk score service stopped")
	return err
}

// Current returns the published view.
func (s *Service) Current(ctx context.Context) model.View {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()

	if store == nil {
		return model.View{}
	}
	return store.Current(ctx)
}

// Push forwards a batch to the push source.
func (s *Service) Push(ctx context.Context, b model.Batch) (model.Batch, error) { //nolint:gocritic // hugeParam: Batch is passed by value into the source
	s.mu.RLock()
	push := s.push
	s.mu.RUnlock()

	if push == nil {
		return b, ErrPushDisabled
	}
	return push.Push(ctx, b)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":       s.started,
		"source":        s.cfg.Source,
		"collection":    s.cfg.Collection,
		"queueCapacity": s.cfg.EventQueueSize,
		"fetchLimit":    s.cfg.FetchLimit,
		"maxPoints":     s.cfg.MaxPoints,
	}

	if s.started {
		v := s.store.Current(ctx)
		stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
		stats["queueLength"] = s.queue.Len(ctx)
		stats["connected"] = v.Connected
		stats["batches"] = v.Batches
		stats["seriesLength"] = len(v.Series)
		stats["lastBatchId"] = v.BatchID
		if s.push != nil {
			stats["ingestEnabled"] = s.push.Subscribed()
		}
		if s.deduper != nil {
			stats["dedupeSize"] = s.deduper.Size()
		}
	}
	return stats
}
