package source

import "errors"

var (
	// ErrAlreadySubscribed is returned when an exclusive source already has a sink.
	ErrAlreadySubscribed = errors.New("source already subscribed")
	// ErrNotSubscribed is returned when a batch is pushed with no active subscription.
	ErrNotSubscribed = errors.New("source not subscribed")
	// ErrDuplicateBatch is returned when a pushed batch id was already accepted.
	ErrDuplicateBatch = errors.New("duplicate batch")
	// ErrBatchTooLarge is returned when a pushed batch exceeds the fetch limit.
	ErrBatchTooLarge = errors.New("batch exceeds fetch limit")
	// ErrBackpressure is returned when the sink cannot take the batch right now.
	ErrBackpressure = errors.New("sink is full")
	// ErrCollectionNotFound is fatal: the configured collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrInvalidFixture is returned when a fixture file cannot be decoded.
	ErrInvalidFixture = errors.New("invalid fixture")
)
