// Package main provides the entrypoint for the AccessRoute API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/accessibility"
	"github.com/accessroute/accessroute/internal/api"
	"github.com/accessroute/accessroute/internal/api/handler"
	"github.com/accessroute/accessroute/internal/api/middleware"
	"github.com/accessroute/accessroute/internal/auth"
	"github.com/accessroute/accessroute/internal/barrier"
	"github.com/accessroute/accessroute/internal/catalogue"
	"github.com/accessroute/accessroute/internal/config"
	"github.com/accessroute/accessroute/internal/database"
	"github.com/accessroute/accessroute/internal/featureflags"
	"github.com/accessroute/accessroute/internal/provider/resilience"
	"github.com/accessroute/accessroute/internal/routing"
	"github.com/accessroute/accessroute/internal/routing/openrouteservice"
	"github.com/accessroute/accessroute/internal/scoring"
	"github.com/accessroute/accessroute/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "accessroute-api"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = log.Level(cfg.LogLevel())

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting AccessRoute API")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:     serviceName,
		ServiceVersion:  Version,
		Environment:     cfg.App.Env,
		TelemetryConfig: cfg.Telemetry,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		return err
	}
	providerMetrics, err := middleware.NewProviderMetrics(tp.Meter)
	if err != nil {
		return err
	}

	var (
		pool   *pgxpool.Pool
		checks []handler.ReadinessCheck
	)
	if cfg.Database.Enabled {
		pool, err = database.Connect(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		checks = append(checks, handler.ReadinessCheck{Name: "database", Check: database.ReadinessCheck(pool)})
	}

	source := catalogueSource(cfg.Catalogue, pool)
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	cat, err := source.Load(loadCtx)
	cancel()
	if err != nil {
		return err
	}
	log.Info().
		Str("source", source.Name()).
		Int("hazards", cat.HazardCount()).
		Int("profiles", len(cat.Profiles())).
		Msg("catalogue loaded")
	if cat.HazardCount() == 0 {
		log.Warn().Str("source", source.Name()).Msg("catalogue has no hazards, every route will score 100")
	}

	var ffRepo featureflags.Repository = featureflags.NewInMemoryRepository()
	if pool != nil {
		ffRepo = featureflags.NewPostgresRepository(pool)
	}
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: ffRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	barriers := barrier.NewStore(barrier.StoreConfig{Logger: log})
	registry := resilience.NewRegistry()

	scoringCfg := scoring.ServiceConfig{
		Engine:   accessibility.NewEngine(cat),
		Barriers: barriers,
		Flags:    ffService,
		Logger:   log,
	}
	if cfg.Routing.ORSAPIKey != "" {
		scoringCfg.Routing = routing.NewService(routing.ServiceConfig{
			Provider: openrouteservice.NewClient(openrouteservice.ClientConfig{
				APIKey:   cfg.Routing.ORSAPIKey,
				BaseURL:  cfg.Routing.ORSBaseURL,
				Registry: registry,
				Logger:   log,
			}),
			Logger:   log,
			Metrics:  providerMetrics,
			CacheTTL: cfg.Routing.CacheTTL,
		})
		log.Info().Msg("routing provider configured")
	} else {
		log.Warn().Msg("ORS_API_KEY not set - routes:compute is disabled")
	}
	scoringService, err := scoring.NewService(scoringCfg)
	if err != nil {
		return err
	}

	jwtService, err := tokenService(cfg, log)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		TracerProvider:     tp.Tracing(),
		Metrics:            metrics,
		RequireTLS:         cfg.App.RequireTLS,
		CatalogueSource:    source.Name(),
		Scoring:            scoringService,
		Barriers:           barriers,
		FeatureFlagService: ffService,
		JWTService:         jwtService,
		Registry:           registry,
		ReadinessChecks:    checks,
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}

func catalogueSource(cfg config.CatalogueConfig, pool *pgxpool.Pool) catalogue.Source {
	switch {
	case cfg.Source == config.CatalogueSourcePostgres:
		return catalogue.NewPostgresSource(pool)
	case cfg.Path != "":
		return catalogue.NewFileSource(cfg.Path)
	default:
		return catalogue.EmbeddedSource{}
	}
}

// tokenService returns nil when no signing key is configured outside
// development, which leaves every authenticated route answering 401.
func tokenService(cfg config.Config, log zerolog.Logger) (*auth.JWTService, error) {
	key := cfg.Auth.SigningKey
	if key == "" {
		if !cfg.IsDevelopment() {
			log.Warn().Msg("JWT_SIGNING_KEY not set - operator endpoints are disabled")
			return nil, nil
		}
		key = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})
}
