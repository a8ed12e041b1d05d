// Package types defines the JSON shapes served by the HTTP API.
package types

import (
	"time"

	"github.com/okian/riskwatch/internal/domain/model"
)

// TimeLayout is ISO-8601 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in TimeLayout; the zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// Point is one scored sample.
type Point struct {
	Timestamp string  `json:"timestamp"`
	Score     float64 `json:"score"`
	Risk      string  `json:"risk"`
}

// NewPoint converts a scored point.
func NewPoint(p model.ScoredPoint) Point { //nolint:gocritic // hugeParam: value type by design of model
	return Point{
		Timestamp: FormatTime(p.Timestamp),
		Score:     p.Score,
		Risk:      p.Risk.String(),
	}
}

// Points converts a run of scored points; nil input yields an empty list.
func Points(ps []model.ScoredPoint) []Point {
	out := make([]Point, len(ps))
	for i, p := range ps {
		out[i] = NewPoint(p)
	}
	return out
}

// Status is the connectivity and freshness of the view.
type Status struct {
	Connected bool   `json:"connected"`
	BatchID   string `json:"batch_id,omitempty"`
	Batches   int64  `json:"batches"`
	Documents int    `json:"documents"`
	UpdatedAt string `json:"updated_at,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Headline is the current score badge. Point is null until data arrives.
type Headline struct {
	Connected bool   `json:"connected"`
	Point     *Point `json:"point"`
}

// Raw is the raw readings panel. Absent readings are null.
type Raw struct {
	Fields []string            `json:"fields"`
	Values map[string]*float64 `json:"values"`
}

// View is the full dashboard payload.
type View struct {
	Status
	Headline *Point  `json:"headline"`
	Series   []Point `json:"series"`
	Events   []Point `json:"events"`
	Raw      Raw     `json:"raw"`
}

// NewStatus converts the status part of a view.
func NewStatus(v *model.View) Status {
	return Status{
		Connected: v.Connected,
		BatchID:   v.BatchID,
		Batches:   v.Batches,
		Documents: v.Documents,
		UpdatedAt: FormatTime(v.UpdatedAt),
		LastError: v.LastError,
	}
}

// NewHeadline converts the headline part of a view.
func NewHeadline(v *model.View) Headline {
	h := Headline{Connected: v.Connected}
	if v.Headline != nil {
		p := NewPoint(*v.Headline)
		h.Point = &p
	}
	return h
}

// NewRaw converts the raw snapshot, keeping the configured field order.
// Fields missing from the snapshot are reported as null.
func NewRaw(v *model.View) Raw {
	r := Raw{
		Fields: append([]string{}, v.RawFields...),
		Values: make(map[string]*float64, len(v.RawFields)),
	}
	for _, name := range v.RawFields {
		rv, ok := v.Raw[name]
		if !ok || !rv.Present {
			r.Values[name] = nil
			continue
		}
		val := rv.Value
		r.Values[name] = &val
	}
	return r
}

// NewView converts a published view.
func NewView(v *model.View) View {
	return View{
		Status:   NewStatus(v),
		Headline: NewHeadline(v).Point,
		Series:   Points(v.Series),
		Events:   Points(v.Recent),
		Raw:      NewRaw(v),
	}
}

// BatchRequest is the body of POST /api/batches.
type BatchRequest struct {
	BatchID   string           `json:"batch_id"`
	Documents []map[string]any `json:"documents"`
}

// Batch converts the request into a domain batch.
func (r *BatchRequest) Batch() model.Batch {
	docs := make([]model.Document, len(r.Documents))
	for i, d := range r.Documents {
		docs[i] = d
	}
	return model.Batch{ID: r.BatchID, Documents: docs}
}

// BatchAck acknowledges a pushed batch.
type BatchAck struct {
	Status    string `json:"status"`
	BatchID   string `json:"batch_id"`
	Duplicate bool   `json:"duplicate"`
	Documents int    `json:"documents"`
}
