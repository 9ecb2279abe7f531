package handler

import (
	"net/http"

	"github.com/accessroute/accessroute/internal/accessibility"
	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
	"github.com/accessroute/accessroute/internal/scoring"
)

// AccessibilityHandler serves the loaded profiles and hazard catalogue.
type AccessibilityHandler struct {
	scoring *scoring.Service
}

// NewAccessibilityHandler creates a new AccessibilityHandler.
func NewAccessibilityHandler(scoring *scoring.Service) *AccessibilityHandler {
	return &AccessibilityHandler{scoring: scoring}
}

// ListProfiles handles GET /v1/profiles.
func (h *AccessibilityHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.scoring.Catalogue().Profiles()

	resp := models.ProfileList{Profiles: make([]models.Profile, len(profiles))}
	for i, p := range profiles {
		resp.Profiles[i] = models.ProfileFrom(p)
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, resp)
}

// ListHazards handles GET /v1/hazards. The optional type and severity query
// parameters filter the catalogue.
func (h *AccessibilityHandler) ListHazards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hazardType := accessibility.HazardType(q.Get("type"))
	severity := accessibility.Severity(q.Get("severity"))

	var errs []models.FieldError
	if hazardType != "" && !hazardType.Valid() {
		errs = append(errs, models.FieldError{Field: "type", Message: "unknown hazard type", Code: "INVALID"})
	}
	if severity != "" && !severity.Valid() {
		errs = append(errs, models.FieldError{Field: "severity", Message: "unknown severity", Code: "INVALID"})
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid hazard filter", errs)
		return
	}

	resp := models.HazardList{Hazards: []models.Hazard{}}
	for _, hz := range h.scoring.Catalogue().Hazards() {
		if hazardType != "" && hz.Type != hazardType {
			continue
		}
		if severity != "" && hz.Severity != severity {
			continue
		}
		resp.Hazards = append(resp.Hazards, models.HazardFrom(hz))
	}
	resp.Count = len(resp.Hazards)

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, resp)
}
