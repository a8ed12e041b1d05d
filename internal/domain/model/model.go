// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/riskwatch/internal/domain/scoring"
)

// Document is an opaque record from the document store. Channels are
// numeric arrays keyed by field name; no field is guaranteed present.
type Document map[string]any

// Batch is one realtime update's worth of documents.
// Document order is treated as recency ascending (last = newest).
type Batch struct {
	ID         string     // batch id; set by the source, used for push dedupe
	Documents  []Document // at most the configured fetch limit
	ReceivedAt time.Time  // when the source delivered the batch
}

// Len returns the number of documents in the batch.
func (b Batch) Len() int { return len(b.Documents) }

// Latest returns the last document of the batch, or nil when it is empty.
func (b Batch) Latest() Document {
	if len(b.Documents) == 0 {
		return nil
	}
	return b.Documents[len(b.Documents)-1]
}

// ScoredPoint is one scored sample on the reconstructed timeline.
type ScoredPoint struct {
	Timestamp time.Time
	Score     float64 // always within [0, 1]
	Risk      scoring.Risk
}

// Series is a chronologically ascending, capped run of scored points.
type Series []ScoredPoint

// RawValue is the last reading of a raw channel. Present distinguishes a
// real zero from a missing field.
type RawValue struct {
	Value   float64
	Present bool
}

// RawSnapshot maps raw channel names to their last reading.
type RawSnapshot map[string]RawValue
