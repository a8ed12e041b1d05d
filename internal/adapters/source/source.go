// Package source subscribes to the document store and hands batches,
// connectivity changes and fatal errors to a Sink.
package source

import (
	"context"
	"sync"

	"github.com/okian/riskwatch/internal/domain/model"
)

// Sink receives subscription callbacks. Implementations must not block;
// the source calls them from its own goroutine. Each callback reports
// whether the sink took the event. A source treats a rejected event as not
// delivered and offers the current state again later.
type Sink interface {
	OnBatch(ctx context.Context, b model.Batch) bool
	OnConnectionState(ctx context.Context, connected bool) bool
	OnFatalError(ctx context.Context, err error) bool
}

// Source delivers document batches to a Sink until the returned
// Subscription is stopped.
type Source interface {
	Subscribe(ctx context.Context, sink Sink) (*Subscription, error)
}

// Subscription is the owned handle of an active subscription.
type Subscription struct {
	once   sync.Once
	cancel func()
	done   <-chan struct{}
}

func newSubscription(cancel func(), done <-chan struct{}) *Subscription {
	return &Subscription{cancel: cancel, done: done}
}

// Stop detaches the sink and waits for an in-flight callback to return.
// Once Stop returns no further callbacks are made. Safe to call repeatedly.
func (s *Subscription) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.cancel()
		if s.done != nil {
			<-s.done
		}
	})
}

// Done is closed when the subscription has ended, either through Stop or
// after a fatal error.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
