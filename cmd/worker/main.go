// Package main provides the entrypoint for the AccessRoute batch scoring worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/accessibility"
	"github.com/accessroute/accessroute/internal/catalogue"
	"github.com/accessroute/accessroute/internal/config"
	"github.com/accessroute/accessroute/internal/database"
	"github.com/accessroute/accessroute/internal/featureflags"
	"github.com/accessroute/accessroute/internal/scoring"
	"github.com/accessroute/accessroute/internal/telemetry"
	"github.com/accessroute/accessroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "accessroute-worker"

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

	log.Info().Str("build_time", BuildTime).Msg("starting AccessRoute worker")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("worker stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("worker stopped")
}

func run(cfg config.Config, log zerolog.Logger) error {
	if cfg.Worker.ProjectID == "" {
		return errors.New("PUBSUB_PROJECT_ID is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	var pool *pgxpool.Pool
	if cfg.Database.Enabled {
		pool, err = database.Connect(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var source catalogue.Source = catalogue.EmbeddedSource{}
	switch {
	case cfg.Catalogue.Source == config.CatalogueSourcePostgres:
		source = catalogue.NewPostgresSource(pool)
	case cfg.Catalogue.Path != "":
		source = catalogue.NewFileSource(cfg.Catalogue.Path)
	}
	cat, err := source.Load(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("source", source.Name()).Int("hazards", cat.HazardCount()).Msg("catalogue loaded")
	if cat.HazardCount() == 0 {
		log.Warn().Str("source", source.Name()).Msg("catalogue has no hazards, every route will score 100")
	}

	var ffRepo featureflags.Repository = featureflags.NewInMemoryRepository()
	if pool != nil {
		ffRepo = featureflags.NewPostgresRepository(pool)
	}

	// Barrier reports live in the API process, so batches score against the catalogue alone.
	scorer, err := scoring.NewService(scoring.ServiceConfig{
		Engine: accessibility.NewEngine(cat),
		Flags:  featureflags.NewService(featureflags.ServiceConfig{Repository: ffRepo, Logger: log}),
		Logger: log,
		Meter:  tp.Meter,
	})
	if err != nil {
		return err
	}

	job, err := worker.NewBatchJob(worker.BatchJobConfig{
		Config: worker.BatchConfig{Concurrency: cfg.Worker.Concurrency},
		Scorer: scorer,
		Logger: log,
		Meter:  tp.Meter,
	})
	if err != nil {
		return err
	}

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.Worker.ProjectID,
		SubscriptionName: cfg.Worker.Subscription,
		Dispatcher:       worker.NewDispatcher(job, log),
		Logger:           log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := handler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	// The worker exposes health endpoints for the container platform.
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           healthRouter(job),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	receiveErr := handler.Start(ctx)

	log.Info().Msg("shutting down worker")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	if receiveErr != nil && !errors.Is(receiveErr, context.Canceled) {
		return receiveErr
	}
	return nil
}

func healthRouter(job *worker.BatchJob) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": Version})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := job.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, job.Metrics())
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // headers already sent
}
