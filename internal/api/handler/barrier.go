package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
	"github.com/accessroute/accessroute/internal/barrier"
	"github.com/accessroute/accessroute/internal/featureflags"
)

// BarrierHandler handles temporary barrier reports.
type BarrierHandler struct {
	store  *barrier.Store
	flags  *featureflags.Service
	logger zerolog.Logger
}

// NewBarrierHandler creates a new BarrierHandler. flags may be nil.
func NewBarrierHandler(store *barrier.Store, flags *featureflags.Service, logger zerolog.Logger) *BarrierHandler {
	return &BarrierHandler{store: store, flags: flags, logger: logger}
}

// ListBarriers handles GET /v1/barriers.
func (h *BarrierHandler) ListBarriers(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Snapshot()

	resp := models.BarrierList{Barriers: make([]models.Barrier, len(snapshot)), Count: len(snapshot)}
	for i, b := range snapshot {
		resp.Barriers[i] = models.BarrierFrom(b)
	}

	w.Header().Set("Cache-Control", "no-store")
	response.JSON(w, r, http.StatusOK, resp)
}

// GetBarrier handles GET /v1/barriers/{barrierId}.
func (h *BarrierHandler) GetBarrier(w http.ResponseWriter, r *http.Request) {
	b, ok := h.store.Get(chi.URLParam(r, "barrierId"))
	if !ok {
		response.NotFound(w, r, "barrier not found")
		return
	}
	response.JSON(w, r, http.StatusOK, models.BarrierFrom(b))
}

// ReportBarrier handles POST /v1/barriers.
func (h *BarrierHandler) ReportBarrier(w http.ResponseWriter, r *http.Request) {
	if h.flags.AreBarrierReportsDisabled(r.Context()) {
		response.Forbidden(w, r, "barrier reporting is currently disabled")
		return
	}

	var input models.ReportBarrierRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	b, err := h.store.Report(r.Context(), input.Location.Geo(), input.Description)
	switch {
	case errors.Is(err, barrier.ErrInvalidLocation):
		response.BadRequest(w, r, "invalid barrier location", []models.FieldError{{
			Field: "location", Message: err.Error(), Code: "OUT_OF_RANGE",
		}})
		return
	case errors.Is(err, barrier.ErrStoreFull):
		h.logger.Warn().Int("count", h.store.Count()).Msg("barrier store full, rejecting report")
		response.ServiceUnavailable(w, r, "too many open barrier reports")
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("reporting barrier failed")
		response.InternalError(w, r, "failed to record barrier")
		return
	}

	response.Created(w, r, "/v1/barriers/"+b.ID, models.BarrierFrom(b))
}

// ClearBarriers handles DELETE /v1/barriers.
func (h *BarrierHandler) ClearBarriers(w http.ResponseWriter, r *http.Request) {
	cleared := h.store.Clear()

	h.logger.Info().
		Str("operator", operator(r)).
		Int("cleared", cleared).
		Msg("barriers cleared by operator")

	response.JSON(w, r, http.StatusOK, models.ClearBarriersResponse{Cleared: cleared})
}
