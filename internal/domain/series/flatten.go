// Package series reconstructs an ordered, scored timeline from a batch of
// multi-sample documents.
//
// The store gives no ordering and no per-sample timestamps. Batch order is
// taken as recency ascending (the last document is the newest) and every
// document in a batch is assumed to hold the same number of samples as the
// one being placed. Both are approximations of the true arrival order.
package series

import (
	"time"

	"github.com/okian/riskwatch/internal/domain/coerce"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/scoring"
)

// Config holds the immutable tunables of a Flattener.
type Config struct {
	ScoredChannel string        // document field holding the scored samples
	Interval      time.Duration // spacing between samples inside a document
	MaxPoints     int           // cap on the returned series; <= 0 means uncapped
	Range         scoring.Range // raw reading range mapped onto [0, 1]
}

// Flattener turns document batches into scored series. It holds no state
// between calls and is safe for concurrent use.
type Flattener struct {
	cfg Config
}

// New returns a Flattener for cfg.
func New(cfg Config) *Flattener {
	return &Flattener{cfg: cfg}
}

// Config returns the flattener configuration.
func (f *Flattener) Config() Config { return f.cfg }

// Flatten returns the scored series for docs, newest point last, with
// timestamps counted back from now. now should be captured once per batch.
func (f *Flattener) Flatten(docs []model.Document, now time.Time) model.Series {
	if len(docs) == 0 {
		return model.Series{}
	}

	docsCount := len(docs)
	out := make(model.Series, 0, docsCount)
	for dIdx, doc := range docs {
		samples := coerce.Numbers(doc[f.cfg.ScoredChannel])
		n := len(samples)
		if n == 0 {
			continue
		}
		for i, raw := range samples {
			fromEnd := (docsCount-1-dIdx)*n + (n - 1 - i)
			score := scoring.Normalize(raw, f.cfg.Range)
			out = append(out, model.ScoredPoint{
				Timestamp: now.Add(-time.Duration(fromEnd) * f.cfg.Interval),
				Score:     score,
				Risk:      scoring.Classify(score),
			})
		}
	}

	if f.cfg.MaxPoints > 0 && len(out) > f.cfg.MaxPoints {
		out = out[len(out)-f.cfg.MaxPoints:]
	}
	return out
}

// Latest returns the newest point of s.
func Latest(s model.Series) (model.ScoredPoint, bool) {
	if len(s) == 0 {
		return model.ScoredPoint{}, false
	}
	return s[len(s)-1], true
}

// Recent returns up to n of the newest points of s, newest first.
func Recent(s model.Series, n int) []model.ScoredPoint {
	if n <= 0 || len(s) == 0 {
		return []model.ScoredPoint{}
	}
	if n > len(s) {
		n = len(s)
	}
	out := make([]model.ScoredPoint, n)
	for i := 0; i < n; i++ {
		out[i] = s[len(s)-1-i]
	}
	return out
}

// Raw returns the last reading of each field in the newest document of b.
// Every field is reported; missing ones are marked absent.
func Raw(b model.Batch, fields []string) model.RawSnapshot {
	snap := make(model.RawSnapshot, len(fields))
	latest := b.Latest()
	for _, name := range fields {
		v, ok := coerce.Last(latest[name])
		snap[name] = model.RawValue{Value: v, Present: ok}
	}
	return snap
}
