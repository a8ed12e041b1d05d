package model

import "time"

// View is the presentation state built from the most recent non-empty
// batch plus the current connectivity.
type View struct {
	Connected bool
	Headline  *ScoredPoint  // newest point; nil until a batch produced one
	Series    Series        // chart data, ascending
	Recent    []ScoredPoint // table rows, newest first
	Raw       RawSnapshot   // last document's raw channels
	RawFields []string      // display order of Raw
	Documents int           // documents in the batch the view was built from
	BatchID   string
	Batches   int64 // batches applied since start, empty ones included
	UpdatedAt time.Time
	LastError string // set by a fatal subscription error
}

// Empty reports whether no batch has produced points yet.
func (v *View) Empty() bool { return v.Headline == nil }
