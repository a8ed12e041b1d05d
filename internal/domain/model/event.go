package model

import "time"

// EventKind discriminates subscription events.
type EventKind int

// Subscription event kinds.
const (
	EventBatch EventKind = iota + 1
	EventConnection
	EventFatal
)

func (k EventKind) String() string {
	switch k {
	case EventBatch:
		return "batch"
	case EventConnection:
		return "connection"
	case EventFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Event is one message from the subscription adapter to the core.
// Exactly one of Batch, Connected or Err is meaningful, selected by Kind.
type Event struct {
	Kind      EventKind
	Batch     Batch
	Connected bool
	Err       error
	At        time.Time
}

// BatchEvent wraps a batch update.
func BatchEvent(b Batch) Event { //nolint:gocritic // hugeParam: Batch is passed by value into the queue
	at := b.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	return Event{Kind: EventBatch, Batch: b, At: at}
}

// ConnectionEvent wraps a connectivity change.
func ConnectionEvent(connected bool) Event {
	return Event{Kind: EventConnection, Connected: connected, At: time.Now()}
}

// FatalEvent wraps a subscription failure.
func FatalEvent(err error) Event {
	return Event{Kind: EventFatal, Err: err, At: time.Now()}
}
