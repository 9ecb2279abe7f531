package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
	"github.com/accessroute/accessroute/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, logger: logger}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	current := h.service.GetAllFlags(r.Context())

	resp := models.FeatureFlagList{Flags: make([]models.FeatureFlag, 0, len(featureflags.Definitions))}
	for _, def := range featureflags.Definitions {
		resp.Flags = append(resp.Flags, flagFrom(def, current[def.Key]))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags. The update is
// all-or-nothing.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		response.ServiceUnavailable(w, r, "feature flag storage is not configured")
		return
	}

	var input models.UpdateFeatureFlagsRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	updates := make([]featureflags.FlagUpdate, len(input.Flags))
	for i, f := range input.Flags {
		updates[i] = featureflags.FlagUpdate{Key: f.Key, Value: f.Value}
	}

	updated, err := h.service.Update(r.Context(), updates)
	if err != nil {
		if errors.Is(err, featureflags.ErrUnknownFlag) || errors.Is(err, featureflags.ErrInvalidFlagValue) {
			response.BadRequest(w, r, "invalid feature flag update", []models.FieldError{{
				Field: "flags", Message: err.Error(), Code: "INVALID",
			}})
			return
		}
		h.logger.Error().Err(err).Msg("updating feature flags failed")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	h.logger.Info().
		Str("operator", operator(r)).
		Int("count", len(updated)).
		Msg("feature flags updated by operator")

	resp := models.FeatureFlagList{Flags: make([]models.FeatureFlag, 0, len(updated))}
	for _, f := range updated {
		def, _ := featureflags.Lookup(f.Key)
		resp.Flags = append(resp.Flags, flagFrom(def, f))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// ResetFeatureFlag handles DELETE /v1/admin/feature-flags/{key}.
func (h *FeatureFlagsHandler) ResetFeatureFlag(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		response.ServiceUnavailable(w, r, "feature flag storage is not configured")
		return
	}

	key := chi.URLParam(r, "key")
	if err := h.service.Reset(r.Context(), key); err != nil {
		if errors.Is(err, featureflags.ErrUnknownFlag) {
			response.NotFound(w, r, "unknown feature flag: "+key)
			return
		}
		h.logger.Error().Err(err).Str("flag", key).Msg("resetting feature flag failed")
		response.InternalError(w, r, "failed to reset feature flag")
		return
	}

	h.logger.Info().Str("operator", operator(r)).Str("flag", key).Msg("feature flag reset by operator")
	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.service != nil {
		h.service.InvalidateCache()
	}
	h.logger.Info().Str("operator", operator(r)).Msg("feature flag cache invalidated")
	response.NoContent(w, r)
}

func flagFrom(def featureflags.Definition, f *featureflags.Flag) models.FeatureFlag {
	out := models.FeatureFlag{
		Key:         def.Key,
		Kind:        string(def.Kind),
		Value:       def.Default,
		Default:     def.Default,
		Description: def.Description,
	}
	if f != nil {
		out.Value = f.Value
		out.UpdatedAt = models.Timestamp(f.UpdatedAt)
	}
	return out
}
