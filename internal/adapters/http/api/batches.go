package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/riskwatch/internal/adapters/source"
	"github.com/okian/riskwatch/internal/domain/types"
)

const maxBatchBodyBytes = 1 << 20

// BatchesHandler handles pushed document batches.
type BatchesHandler struct {
	deps BatchPusher
}

// NewBatchesHandler creates a new batches handler.
func NewBatchesHandler(deps BatchPusher) *BatchesHandler {
	return &BatchesHandler{deps: deps}
}

// HandlePostBatch handles POST /api/batches requests.
func (h *BatchesHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"
	if !allowMethod(w, r, op, http.MethodPost) {
		return
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes))
	dec.UseNumber()
	var req types.BatchRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", WrapKind(op, ErrPayloadTooLarge, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Documents == nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing documents")))
		return
	}

	b, err := h.deps.Push(r.Context(), req.Batch())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, types.BatchAck{Status: "accepted", BatchID: b.ID, Documents: b.Len()})
	case errors.Is(err, source.ErrDuplicateBatch):
		writeJSON(w, http.StatusOK, types.BatchAck{Status: "duplicate", BatchID: b.ID, Duplicate: true, Documents: b.Len()})
	case errors.Is(err, source.ErrBatchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large", WrapKind(op, ErrPayloadTooLarge, err))
	case errors.Is(err, source.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case errors.Is(err, source.ErrNotSubscribed):
		writeError(w, http.StatusServiceUnavailable, "ingest_disabled", WrapKind(op, ErrIngestDisabled, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
