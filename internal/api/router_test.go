package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessroute/accessroute/internal/accessibility"
	"github.com/accessroute/accessroute/internal/api"
	"github.com/accessroute/accessroute/internal/api/handler"
	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/auth"
	"github.com/accessroute/accessroute/internal/barrier"
	"github.com/accessroute/accessroute/internal/featureflags"
	"github.com/accessroute/accessroute/internal/provider/resilience"
	"github.com/accessroute/accessroute/internal/routing"
	"github.com/accessroute/accessroute/internal/scoring"
	"github.com/accessroute/accessroute/pkg/geo"
	"github.com/accessroute/accessroute/pkg/polyline"
)

var (
	// stepsAt is a high-severity flight of steps on the Dam.
	stepsAt = geo.Point{Lon: 4.8932, Lat: 52.3731}
	// clearStart is ~200 m west of stepsAt, away from every hazard.
	clearStart = geo.Point{Lon: 4.8903, Lat: 52.3731}
)

type fakeDirections struct {
	resp *routing.DirectionsResponse
	err  error
}

func (f *fakeDirections) GetDirections(context.Context, routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	return f.resp, f.err
}

type openBreaker struct{}

func (openBreaker) BreakerState() gobreaker.State   { return gobreaker.StateOpen }
func (openBreaker) BreakerCounts() gobreaker.Counts { return gobreaker.Counts{ConsecutiveFailures: 5} }

type testAPI struct {
	t          *testing.T
	handler    http.Handler
	jwt        *auth.JWTService
	barriers   *barrier.Store
	directions *fakeDirections
	registry   *resilience.Registry
}

type apiOption func(*api.RouterConfig)

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()
	logger := zerolog.New(io.Discard)

	catalogue, err := accessibility.NewCatalogue([]accessibility.Hazard{{
		ID:       "steps-dam",
		Type:     accessibility.HazardSteps,
		Label:    "Steps to the monument",
		Center:   stepsAt,
		Radius:   15,
		Severity: accessibility.SeverityHigh,
		Affects:  []string{accessibility.ProfileStepFree},
	}}, accessibility.DefaultProfiles())
	require.NoError(t, err)

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     logger,
	})
	barriers := barrier.NewStore(barrier.StoreConfig{Logger: logger})
	directions := &fakeDirections{}

	scorer, err := scoring.NewService(scoring.ServiceConfig{
		Engine:   accessibility.NewEngine(catalogue),
		Barriers: barriers,
		Flags:    flags,
		Routing:  directions,
		Logger:   logger,
	})
	require.NoError(t, err)

	jwt, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.accessroute.example",
		Audience:   "accessroute-admin",
	})
	require.NoError(t, err)

	registry := resilience.NewRegistry()

	cfg := api.RouterConfig{
		Version:            "test",
		BuildTime:          "2026-01-01T00:00:00Z",
		Logger:             logger,
		CatalogueSource:    "test",
		Scoring:            scorer,
		Barriers:           barriers,
		FeatureFlagService: flags,
		JWTService:         jwt,
		Registry:           registry,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testAPI{
		t:          t,
		handler:    api.NewRouter(cfg),
		jwt:        jwt,
		barriers:   barriers,
		directions: directions,
		registry:   registry,
	}
}

func (a *testAPI) token(role auth.Role) string {
	a.t.Helper()
	token, _, err := a.jwt.Issue("ops@example.org", role)
	require.NoError(a.t, err)
	return token
}

// do sends a request; body is JSON-encoded unless it is already a string.
func (a *testAPI) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// pairs returns [lon, lat] pairs for points.
func pairs(points ...geo.Point) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		out[i] = []float64{p.Lon, p.Lat}
	}
	return out
}

func TestRouter_HealthCheck(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/v1/ops/health", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	health := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		a := newTestAPI(t, func(cfg *api.RouterConfig) {
			cfg.ReadinessChecks = []handler.ReadinessCheck{{Name: "database", Check: func(context.Context) error { return nil }}}
		})

		rec := a.do(http.MethodGet, "/v1/ops/ready", nil, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.HealthStatusOK, decode[models.Health](t, rec).Status)
	})

	t.Run("database down", func(t *testing.T) {
		a := newTestAPI(t, func(cfg *api.RouterConfig) {
			cfg.ReadinessChecks = []handler.ReadinessCheck{{
				Name:  "database",
				Check: func(context.Context) error { return errors.New("connection refused") },
			}}
		})

		rec := a.do(http.MethodGet, "/v1/ops/ready", nil, "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		health := decode[models.Health](t, rec)
		assert.Equal(t, models.HealthStatusFail, health.Status)
		assert.Equal(t, "connection refused", health.Details["database"])
	})
}

func TestRouter_SystemStatus(t *testing.T) {
	a := newTestAPI(t)
	a.registry.Register("openrouteservice", openBreaker{})
	a.registry.RecordFailure("openrouteservice", errors.New("upstream 503"))
	_, err := a.barriers.Report(context.Background(), stepsAt, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/ops/status", nil, "").Code)

	rec := a.do(http.MethodGet, "/v1/ops/status", nil, a.token(auth.RoleModerator))
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[models.SystemStatus](t, rec)
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	assert.Equal(t, models.CatalogueStatus{Source: "test", Hazards: 1, Profiles: 3}, status.Catalogue)
	assert.Equal(t, 1, status.Barriers)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "openrouteservice", status.Providers[0].Provider)
	assert.Equal(t, models.HealthStatusFail, status.Providers[0].Status)
	assert.Equal(t, "open", status.Providers[0].CircuitState)
	assert.NotNil(t, status.Providers[0].LastFailureAt)
	assert.Empty(t, status.ActiveFlags)
}

func TestRouter_ListProfiles(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/v1/profiles", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.ProfileList](t, rec)
	require.Len(t, list.Profiles, 3)

	byID := make(map[string]models.Profile)
	for _, p := range list.Profiles {
		byID[p.ID] = p
	}
	assert.Equal(t, 50, byID["step-free"].Penalties["steps"]["high"])
	assert.Equal(t, 0, byID["gentle-gradient"].Penalties["surface"]["low"])
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age")
}

func TestRouter_ListHazards(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		query  string
		status int
		count  int
	}{
		{"", http.StatusOK, 1},
		{"?type=steps&severity=high", http.StatusOK, 1},
		{"?type=kerb", http.StatusOK, 0},
		{"?type=lava", http.StatusBadRequest, 0},
		{"?severity=extreme", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := a.do(http.MethodGet, "/v1/hazards"+tt.query, nil, "")

			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}
			list := decode[models.HazardList](t, rec)
			assert.Equal(t, tt.count, list.Count)
			assert.Len(t, list.Hazards, tt.count)
		})
	}

	hazard := decode[models.HazardList](t, a.do(http.MethodGet, "/v1/hazards", nil, "")).Hazards[0]
	assert.Equal(t, "steps-dam", hazard.ID)
	assert.Equal(t, models.PointFrom(stepsAt), hazard.Location)
	assert.Equal(t, []string{"step-free"}, hazard.Affects)
}

func TestRouter_ScoreRoute(t *testing.T) {
	a := newTestAPI(t)
	throughSteps := []geo.Point{clearStart, stepsAt}

	tests := []struct {
		name     string
		body     models.ScoreRouteRequest
		score    int
		level    string
		warnings int
	}{
		{
			name:     "coordinates through steps",
			body:     models.ScoreRouteRequest{ProfileID: "step-free", Coordinates: pairs(throughSteps...)},
			score:    50,
			level:    "medium",
			warnings: 1,
		},
		{
			name:     "polyline through steps",
			body:     models.ScoreRouteRequest{ProfileID: "step-free", Polyline: polyline.Encode(throughSteps)},
			score:    50,
			level:    "medium",
			warnings: 1,
		},
		{
			name:  "clear route",
			body:  models.ScoreRouteRequest{ProfileID: "step-free", Coordinates: pairs(clearStart)},
			score: 100,
			level: "high",
		},
		{
			name:  "unknown profile",
			body:  models.ScoreRouteRequest{ProfileID: "jetpack", Coordinates: pairs(throughSteps...)},
			score: -1,
			level: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/v1/routes:score", tt.body, "")

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			resp := decode[models.ScoreRouteResponse](t, rec)
			assert.Equal(t, tt.body.ProfileID, resp.ProfileID)
			assert.Equal(t, tt.score, resp.Score.Score)
			assert.Equal(t, tt.level, resp.Level)
			assert.Len(t, resp.Warnings, tt.warnings)
		})
	}
}

func TestRouter_ScoreRoute_BadRequests(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{"malformed json", `{"profileId":`, http.StatusBadRequest, ""},
		{"empty body", ``, http.StatusBadRequest, ""},
		{"unknown field", `{"profileId":"step-free","coordinates":[[4.9,52.3]],"mode":"car"}`, http.StatusBadRequest, ""},
		{"wrong type", `{"profileId":7,"coordinates":[[4.9,52.3]]}`, http.StatusBadRequest, "profileId"},
		{"no route", models.ScoreRouteRequest{ProfileID: "step-free"}, http.StatusBadRequest, "coordinates"},
		{"latitude out of range", models.ScoreRouteRequest{ProfileID: "step-free", Coordinates: [][]float64{{4.9, 95}}}, http.StatusBadRequest, "coordinates"},
		{"malformed polyline", models.ScoreRouteRequest{ProfileID: "step-free", Polyline: "_p~iF~ps|"}, http.StatusBadRequest, "polyline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/v1/routes:score", tt.body, "")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			if tt.field == "" {
				return
			}
			problem := decode[models.Problem](t, rec)
			require.NotEmpty(t, problem.Errors)
			assert.Equal(t, tt.field, problem.Errors[0].Field)
		})
	}
}

func TestRouter_ScoreRoute_RequiresJSON(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:score", strings.NewReader("profileId=step-free"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_BarrierLifecycle(t *testing.T) {
	a := newTestAPI(t)
	barrierAt := geo.Point{Lon: clearStart.Lon, Lat: clearStart.Lat + 0.001}
	route := models.ScoreRouteRequest{ProfileID: "low-energy", Coordinates: pairs(clearStart, barrierAt)}

	// report
	rec := a.do(http.MethodPost, "/v1/barriers", models.ReportBarrierRequest{
		Location:    &models.Point{Lat: barrierAt.Lat, Lon: barrierAt.Lon},
		Description: "Scaffolding across the pavement",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reported := decode[models.Barrier](t, rec)
	assert.Equal(t, "/v1/barriers/"+reported.ID, rec.Header().Get("Location"))

	// read back
	assert.Equal(t, 1, decode[models.BarrierList](t, a.do(http.MethodGet, "/v1/barriers", nil, "")).Count)
	rec = a.do(http.MethodGet, "/v1/barriers/"+reported.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Scaffolding across the pavement", decode[models.Barrier](t, rec).Description)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/barriers/nope", nil, "").Code)

	// scoring sees it
	score := decode[models.ScoreRouteResponse](t, a.do(http.MethodPost, "/v1/routes:score", route, ""))
	assert.Equal(t, 85, score.Score.Score)
	require.Len(t, score.Warnings, 1)
	assert.Equal(t, "barrier", score.Warnings[0].Type)
	assert.Equal(t, "Scaffolding across the pavement", score.Warnings[0].Note)

	// clearing needs a moderator
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodDelete, "/v1/barriers", nil, "").Code)
	rec = a.do(http.MethodDelete, "/v1/barriers", nil, a.token(auth.RoleModerator))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.ClearBarriersResponse](t, rec).Cleared)

	score = decode[models.ScoreRouteResponse](t, a.do(http.MethodPost, "/v1/routes:score", route, ""))
	assert.Equal(t, 100, score.Score.Score)
}

func TestRouter_ReportBarrier_Validation(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/v1/barriers", models.ReportBarrierRequest{Description: "no location"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "location", decode[models.Problem](t, rec).Errors[0].Field)

	rec = a.do(http.MethodPost, "/v1/barriers", models.ReportBarrierRequest{
		Location: &models.Point{Lat: 120, Lon: 4.9},
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "location.lat", decode[models.Problem](t, rec).Errors[0].Field)
}

func TestRouter_FeatureFlags(t *testing.T) {
	a := newTestAPI(t)
	admin := a.token(auth.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/admin/feature-flags", nil, "").Code)
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodGet, "/v1/admin/feature-flags", nil, a.token(auth.RoleModerator)).Code)

	rec := a.do(http.MethodGet, "/v1/admin/feature-flags", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.FeatureFlagList](t, rec)
	require.Len(t, list.Flags, len(featureflags.Definitions))
	assert.Equal(t, featureflags.FlagSegmentSampling, list.Flags[0].Key)
	assert.Equal(t, false, list.Flags[0].Value)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown flag", `{"flags":[{"key":"turbo","value":true}]}`, http.StatusBadRequest},
		{"wrong kind", `{"flags":[{"key":"segment_sample_interval_m","value":"ten"}]}`, http.StatusBadRequest},
		{"below minimum", `{"flags":[{"key":"segment_sample_interval_m","value":0}]}`, http.StatusBadRequest},
		{"empty list", `{"flags":[]}`, http.StatusBadRequest},
		{"disable reports", `{"flags":[{"key":"barrier_reports_disabled","value":true}]}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, a.do(http.MethodPut, "/v1/admin/feature-flags", tt.body, admin).Code)
		})
	}

	rec = a.do(http.MethodPost, "/v1/barriers", models.ReportBarrierRequest{
		Location: &models.Point{Lat: stepsAt.Lat, Lon: stepsAt.Lon},
	}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	status := decode[models.SystemStatus](t, a.do(http.MethodGet, "/v1/ops/status", nil, admin))
	assert.Equal(t, []string{featureflags.FlagBarrierReportsDisabled}, status.ActiveFlags)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/v1/admin/feature-flags/invalidate", nil, admin).Code)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/v1/admin/feature-flags/turbo", nil, admin).Code)
	assert.Equal(t, http.StatusNoContent,
		a.do(http.MethodDelete, "/v1/admin/feature-flags/"+featureflags.FlagBarrierReportsDisabled, nil, admin).Code)
	rec = a.do(http.MethodPost, "/v1/barriers", models.ReportBarrierRequest{
		Location: &models.Point{Lat: stepsAt.Lat, Lon: stepsAt.Lon},
	}, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRouter_FeatureFlags_SegmentSampling(t *testing.T) {
	a := newTestAPI(t)
	// two vertices 120 m apart straddling the steps; neither is within 15 m
	route := models.ScoreRouteRequest{
		ProfileID:   "step-free",
		Coordinates: pairs(geo.Point{Lon: stepsAt.Lon, Lat: stepsAt.Lat - 0.00054}, geo.Point{Lon: stepsAt.Lon, Lat: stepsAt.Lat + 0.00054}),
	}

	before := decode[models.ScoreRouteResponse](t, a.do(http.MethodPost, "/v1/routes:score", route, ""))
	assert.Equal(t, 100, before.Score.Score)

	rec := a.do(http.MethodPut, "/v1/admin/feature-flags",
		`{"flags":[{"key":"segment_sampling_enabled","value":true},{"key":"segment_sample_interval_m","value":5}]}`,
		a.token(auth.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[models.FeatureFlagList](t, rec).Flags, 2)

	after := decode[models.ScoreRouteResponse](t, a.do(http.MethodPost, "/v1/routes:score", route, ""))
	assert.Equal(t, 50, after.Score.Score)
}

func TestRouter_ComputeRoutes(t *testing.T) {
	a := newTestAPI(t)
	viaSteps := []geo.Point{clearStart, stepsAt}
	around := []geo.Point{clearStart, {Lon: 4.8915, Lat: 52.3745}, {Lon: 4.8950, Lat: 52.3745}}

	a.directions.resp = &routing.DirectionsResponse{
		Provider: "openrouteservice",
		Routes: []routing.Route{
			{Points: viaSteps, GeometryPolyline: polyline.Encode(viaSteps), DistanceMeters: 200, DurationSeconds: 150, Summary: "via Dam"},
			{Points: around, DistanceMeters: 420, DurationSeconds: 320, Summary: "via Raadhuisstraat"},
		},
	}

	rec := a.do(http.MethodPost, "/v1/routes:compute", models.ComputeRoutesRequest{
		ProfileID:       "step-free",
		Origin:          &models.Point{Lat: clearStart.Lat, Lon: clearStart.Lon},
		Destination:     &models.Point{Lat: 52.3745, Lon: 4.8950},
		MaxAlternatives: 2,
	}, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "private, max-age=60", rec.Header().Get("Cache-Control"))

	resp := decode[models.ComputeRoutesResponse](t, rec)
	assert.Equal(t, "openrouteservice", resp.Provider)
	require.Len(t, resp.Options, 2)

	assert.Equal(t, 1, resp.Options[0].Rank)
	assert.Equal(t, "via Raadhuisstraat", resp.Options[0].Summary)
	assert.Equal(t, 100, resp.Options[0].Accessibility.Score)
	assert.Equal(t, polyline.Encode(around), resp.Options[0].Polyline)

	assert.Equal(t, 2, resp.Options[1].Rank)
	assert.Equal(t, 50, resp.Options[1].Accessibility.Score)
	assert.Equal(t, []string{"steps-dam"}, resp.Options[1].Accessibility.HazardsHit)
}

func TestRouter_ComputeRoutes_Errors(t *testing.T) {
	valid := models.ComputeRoutesRequest{
		ProfileID:   "step-free",
		Origin:      &models.Point{Lat: 52.37, Lon: 4.89},
		Destination: &models.Point{Lat: 52.38, Lon: 4.90},
	}
	providerErr := func(sentinel error) error {
		return fmt.Errorf("fetching directions: %w", &routing.Error{Provider: "openrouteservice", Message: "failed", Err: sentinel})
	}

	tests := []struct {
		name       string
		body       models.ComputeRoutesRequest
		err        error
		status     int
		retryAfter string
	}{
		{"unknown profile", models.ComputeRoutesRequest{ProfileID: "jetpack", Origin: valid.Origin, Destination: valid.Destination}, nil, http.StatusBadRequest, ""},
		{"missing destination", models.ComputeRoutesRequest{ProfileID: "step-free", Origin: valid.Origin}, nil, http.StatusBadRequest, ""},
		{"invalid coordinates", valid, providerErr(routing.ErrInvalidCoordinates), http.StatusBadRequest, ""},
		{"no route", valid, providerErr(routing.ErrNoRouteFound), http.StatusUnprocessableEntity, ""},
		{"rate limited", valid, providerErr(routing.ErrRateLimitExceeded), http.StatusServiceUnavailable, "30"},
		{"circuit open", valid, providerErr(fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, resilience.ErrCircuitOpen)), http.StatusServiceUnavailable, "30"},
		{"provider down", valid, providerErr(routing.ErrProviderUnavailable), http.StatusBadGateway, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t)
			a.directions.err = tt.err

			rec := a.do(http.MethodPost, "/v1/routes:compute", tt.body, "")

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
		})
	}
}

func TestRouter_ComputeRoutes_NotConfigured(t *testing.T) {
	a := newTestAPI(t)
	scorer, err := scoring.NewService(scoring.ServiceConfig{
		Engine: accessibility.NewEngine(mustCatalogue(t)),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	a.handler = api.NewRouter(api.RouterConfig{Logger: zerolog.Nop(), Scoring: scorer, Barriers: a.barriers})

	rec := a.do(http.MethodPost, "/v1/routes:compute", models.ComputeRoutesRequest{
		ProfileID:   "step-free",
		Origin:      &models.Point{Lat: 52.37, Lon: 4.89},
		Destination: &models.Point{Lat: 52.38, Lon: 4.90},
	}, "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	// no token service: admin routes always reject
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/admin/feature-flags", nil, "anything").Code)
}

func mustCatalogue(t *testing.T) *accessibility.Catalogue {
	t.Helper()
	c, err := accessibility.NewCatalogue(nil, accessibility.DefaultProfiles())
	require.NoError(t, err)
	return c
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "req_client_supplied")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req_client_supplied", rec.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	a := newTestAPI(t)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/nonexistent", nil, "").Code)
}
