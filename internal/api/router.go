// Package api provides the HTTP API for AccessRoute.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/accessroute/accessroute/internal/api/handler"
	"github.com/accessroute/accessroute/internal/api/middleware"
	"github.com/accessroute/accessroute/internal/auth"
	"github.com/accessroute/accessroute/internal/barrier"
	"github.com/accessroute/accessroute/internal/featureflags"
	"github.com/accessroute/accessroute/internal/provider/resilience"
	"github.com/accessroute/accessroute/internal/scoring"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version         string
	BuildTime       string
	Logger          zerolog.Logger
	TracerProvider  trace.TracerProvider
	Metrics         *middleware.Metrics
	RequireTLS      bool
	MaxBodyBytes    int64
	CatalogueSource string

	Scoring            *scoring.Service
	Barriers           *barrier.Store
	FeatureFlagService *featureflags.Service
	JWTService         *auth.JWTService
	Registry           *resilience.Registry
	ReadinessChecks    []handler.ReadinessCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(cfg.TracerProvider))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.RequireJSON(cfg.MaxBodyBytes))

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:         cfg.Version,
		BuildTime:       cfg.BuildTime,
		CatalogueSource: cfg.CatalogueSource,
		Scoring:         cfg.Scoring,
		Barriers:        cfg.Barriers,
		Flags:           cfg.FeatureFlagService,
		Registry:        cfg.Registry,
		Checks:          cfg.ReadinessChecks,
	})
	accessibilityHandler := handler.NewAccessibilityHandler(cfg.Scoring)
	routeHandler := handler.NewRouteHandler(cfg.Scoring, cfg.Logger)
	barrierHandler := handler.NewBarrierHandler(cfg.Barriers, cfg.FeatureFlagService, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)

	// Without a token service every authenticated route answers 401.
	var validator middleware.TokenValidator = rejectAll{}
	if cfg.JWTService != nil {
		validator = cfg.JWTService
	}
	authMiddleware := middleware.Auth(validator)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public except status)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Catalogue (public, cacheable)
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/profiles", accessibilityHandler.ListProfiles)
			r.Get("/hazards", accessibilityHandler.ListHazards)
		})

		// Scoring
		r.With(middleware.RateLimitByIP(middleware.ScoreRateLimit)).Post("/routes:score", routeHandler.ScoreRoute)
		r.With(middleware.RateLimitByIP(middleware.ComputeRateLimit)).Post("/routes:compute", routeHandler.ComputeRoutes)

		// Barriers: anyone may report, moderators clear
		r.Route("/barriers", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", barrierHandler.ListBarriers)
			r.With(standardRateLimit).Get("/{barrierId}", barrierHandler.GetBarrier)
			r.With(middleware.RateLimitByIP(middleware.ReportRateLimit)).Post("/", barrierHandler.ReportBarrier)
			r.With(
				authMiddleware,
				middleware.RequireRole(auth.RoleModerator),
				middleware.RateLimitByOperator(middleware.StandardRateLimit),
			).Delete("/", barrierHandler.ClearBarriers)
		})

		// Admin endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireRole(auth.RoleAdmin))
			r.Use(middleware.RateLimitByOperator(middleware.StandardRateLimit))

			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
				r.Delete("/{key}", featureFlagsHandler.ResetFeatureFlag)
			})
		})
	})

	return r
}

type rejectAll struct{}

func (rejectAll) Validate(string) (*auth.Claims, error) {
	return nil, auth.ErrInvalidToken
}
