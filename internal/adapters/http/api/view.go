package api

import (
	"net/http"
	"strconv"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/scoring"
	"github.com/okian/riskwatch/internal/domain/types"
)

// ViewHandler serves read-only projections of the published view.
type ViewHandler struct {
	deps ViewReader
}

// NewViewHandler creates a new view handler.
func NewViewHandler(deps ViewReader) *ViewHandler {
	return &ViewHandler{deps: deps}
}

// HandleView handles GET /api/view requests.
func (h *ViewHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "api.get_view", http.MethodGet) {
		return
	}
	v := h.deps.Current(r.Context())
	writeJSON(w, http.StatusOK, types.NewView(&v))
}

// HandleScore handles GET /api/score requests.
func (h *ViewHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "api.get_score", http.MethodGet) {
		return
	}
	v := h.deps.Current(r.Context())
	writeJSON(w, http.StatusOK, types.NewHeadline(&v))
}

// HandleSeries handles GET /api/series?limit=N requests. Without a limit
// the whole series is returned; with one, its newest N points.
func (h *ViewHandler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_series"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	v := h.deps.Current(r.Context())
	s := v.Series
	if limit > 0 && len(s) > limit {
		s = s[len(s)-limit:]
	}
	writeJSON(w, http.StatusOK, types.Points(s))
}

// HandleEvents handles GET /api/events?min_risk=R requests; newest first.
// With min_risk only events at or above that level are returned.
func (h *ViewHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_events"
	if !allowMethod(w, r, op, http.MethodGet) {
		return
	}
	var floor scoring.Risk
	if s := r.URL.Query().Get("min_risk"); s != "" {
		risk, err := scoring.ParseRisk(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		floor = risk
	}

	v := h.deps.Current(r.Context())
	events := v.Recent
	if floor != "" {
		events = atLeast(events, floor)
	}
	writeJSON(w, http.StatusOK, types.Points(events))
}

func atLeast(points []model.ScoredPoint, floor scoring.Risk) []model.ScoredPoint {
	out := make([]model.ScoredPoint, 0, len(points))
	for _, p := range points {
		if p.Risk.Level() >= floor.Level() {
			out = append(out, p)
		}
	}
	return out
}

// HandleRaw handles GET /api/raw requests.
func (h *ViewHandler) HandleRaw(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "api.get_raw", http.MethodGet) {
		return
	}
	v := h.deps.Current(r.Context())
	writeJSON(w, http.StatusOK, types.NewRaw(&v))
}

// HandleStatus handles GET /api/status requests.
func (h *ViewHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "api.get_status", http.MethodGet) {
		return
	}
	v := h.deps.Current(r.Context())
	writeJSON(w, http.StatusOK, types.NewStatus(&v))
}
