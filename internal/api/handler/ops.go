// Package handler provides HTTP handlers for the AccessRoute API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
	"github.com/accessroute/accessroute/internal/barrier"
	"github.com/accessroute/accessroute/internal/featureflags"
	"github.com/accessroute/accessroute/internal/provider/resilience"
	"github.com/accessroute/accessroute/internal/scoring"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one dependency. *pgxpool.Pool's Ping fits Check.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds the dependencies reported on by the ops endpoints.
type OpsConfig struct {
	Version         string
	BuildTime       string
	CatalogueSource string
	Scoring         *scoring.Service
	Barriers        *barrier.Store
	Flags           *featureflags.Service
	Registry        *resilience.Registry
	Checks          []ReadinessCheck
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails with 503 while any
// dependency check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{Status: models.HealthStatusOK, Time: models.Timestamp(time.Now())}

	failures := make(map[string]any)
	for _, sub := range h.subsystems(r.Context()) {
		if sub.Status != models.HealthStatusOK {
			failures[sub.Name] = sub.Detail
		}
	}

	status := http.StatusOK
	if len(failures) > 0 {
		health.Status = models.HealthStatusFail
		health.Details = failures
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - catalogue, subsystem and
// provider status for operators.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now()

	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(now),
		Subsystems: h.subsystems(ctx),
		Providers:  h.providers(),
	}

	if h.cfg.Scoring != nil {
		c := h.cfg.Scoring.Catalogue()
		status.Catalogue = models.CatalogueStatus{
			Source:   h.cfg.CatalogueSource,
			Hazards:  c.HazardCount(),
			Profiles: len(c.Profiles()),
		}
	}
	if h.cfg.Barriers != nil {
		status.Barriers = h.cfg.Barriers.Count()
	}
	status.ActiveFlags = activeFlags(ctx, h.cfg.Flags)

	for _, sub := range status.Subsystems {
		if sub.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
	}
	if status.Status == models.HealthStatusOK {
		for _, p := range status.Providers {
			if p.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems(ctx context.Context) []models.SubsystemStatus {
	subs := make([]models.SubsystemStatus, 0, len(h.cfg.Checks)+1)

	catalogue := models.SubsystemStatus{Name: "catalogue", Status: models.HealthStatusOK}
	if h.cfg.Scoring == nil {
		catalogue.Status = models.HealthStatusFail
		catalogue.Detail = "catalogue not loaded"
	}
	subs = append(subs, catalogue)

	for _, c := range h.cfg.Checks {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := c.Check(checkCtx)
		cancel()

		sub := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			sub.Status = models.HealthStatusFail
			sub.Detail = err.Error()
		}
		subs = append(subs, sub)
	}
	return subs
}

func (h *OpsHandler) providers() []models.ProviderStatus {
	if h.cfg.Registry == nil {
		return []models.ProviderStatus{}
	}

	snapshot := h.cfg.Registry.Snapshot()
	out := make([]models.ProviderStatus, len(snapshot))
	for i, p := range snapshot {
		out[i] = models.ProviderStatus{
			Provider:      p.Name,
			Status:        providerStatus(p.Status()),
			CircuitState:  p.CircuitState.String(),
			LastSuccessAt: timestampPtr(p.LastSuccessAt),
			LastFailureAt: timestampPtr(p.LastFailureAt),
			Message:       p.LastError,
		}
	}
	return out
}

func providerStatus(s string) models.HealthStatus {
	switch s {
	case resilience.StatusUnhealthy:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

// activeFlags lists the boolean flags that are switched on.
func activeFlags(ctx context.Context, flags *featureflags.Service) []string {
	var active []string
	for _, def := range featureflags.Definitions {
		if def.Kind == featureflags.KindBool && flags.IsEnabled(ctx, def.Key) {
			active = append(active, def.Key)
		}
	}
	return active
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
