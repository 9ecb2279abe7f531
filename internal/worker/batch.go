package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/accessroute/accessroute/internal/accessibility"
	"github.com/accessroute/accessroute/internal/scoring"
	"github.com/accessroute/accessroute/pkg/geo"
	"github.com/accessroute/accessroute/pkg/polyline"
)

const instrumentationName = "github.com/accessroute/accessroute/internal/worker"

var (
	// ErrInvalidJob marks a job that can never succeed and should not be redelivered.
	ErrInvalidJob = errors.New("invalid job")
	// ErrBatchInterrupted marks a batch cut short by cancellation.
	ErrBatchInterrupted = errors.New("batch interrupted")
	// ErrHealthCheckFailed is returned when the probe route cannot be scored.
	ErrHealthCheckFailed = errors.New("health check failed")
)

// Route outcomes recorded on the worker.routes counter.
const (
	outcomeScored         = "scored"
	outcomeFailed         = "failed"
	outcomeUnknownProfile = "unknown_profile"
)

// healthProbe is a single point on the Dam square in Amsterdam.
var healthProbe = []geo.Point{{Lon: 4.8932, Lat: 52.3731}}

// JobMessage is the Pub/Sub payload.
type JobMessage struct {
	JobType   string       `json:"job_type" validate:"required"`
	BatchID   string       `json:"batch_id,omitempty" validate:"max=128"`
	ProfileID string       `json:"profile_id,omitempty" validate:"required_if=JobType score_batch,max=64"`
	Routes    []RouteInput `json:"routes,omitempty" validate:"required_if=JobType score_batch,omitempty,min=1,dive"`
}

// RouteInput is one route to score. Exactly one of Polyline or Coordinates
// ([lon, lat] pairs) is expected.
type RouteInput struct {
	ID          string      `json:"id" validate:"required,max=128"`
	Polyline    string      `json:"polyline,omitempty" validate:"required_without=Coordinates"`
	Coordinates [][]float64 `json:"coordinates,omitempty" validate:"required_without=Polyline,excluded_with=Polyline"`
}

// Scorer scores a single route.
type Scorer interface {
	ScoreRoute(ctx context.Context, req scoring.ScoreRequest) (accessibility.ScoreResult, error)
}

// RouteOutcome is the result for one route of a batch.
type RouteOutcome struct {
	ID     string
	Result accessibility.ScoreResult
	Err    error
}

// BatchResult summarises a batch run.
type BatchResult struct {
	BatchID        string
	ProfileID      string
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	Total          int
	Scored         int
	Failed         int
	UnknownProfile bool
	Levels         map[accessibility.Level]int
	Outcomes       []RouteOutcome
}

// BatchMetrics tracks batch statistics for the lifetime of the process.
type BatchMetrics struct {
	Batches       atomic.Int64
	RoutesScored  atomic.Int64
	RoutesFailed  atomic.Int64
	UnknownBatch  atomic.Int64
	HealthChecks  atomic.Int64
	HealthFailure atomic.Int64

	mu            sync.RWMutex
	lastBatchAt   time.Time
	lastBatchTook time.Duration
}

// MetricsSnapshot is a point-in-time copy of BatchMetrics.
type MetricsSnapshot struct {
	Batches             int64     `json:"batches"`
	RoutesScored        int64     `json:"routesScored"`
	RoutesFailed        int64     `json:"routesFailed"`
	UnknownProfileBatch int64     `json:"unknownProfileBatches"`
	HealthChecks        int64     `json:"healthChecks"`
	HealthCheckFailures int64     `json:"healthCheckFailures"`
	LastBatchAt         time.Time `json:"lastBatchAt,omitzero"`
	LastBatchDurationMs int64     `json:"lastBatchDurationMs"`
}

// BatchJobConfig holds configuration for creating a BatchJob.
type BatchJobConfig struct {
	Config BatchConfig
	Scorer Scorer
	Logger zerolog.Logger

	// Meter defaults to the global OpenTelemetry meter.
	Meter metric.Meter
}

// BatchJob scores batches of routes with a bounded worker pool.
type BatchJob struct {
	config  BatchConfig
	scorer  Scorer
	logger  zerolog.Logger
	metrics *BatchMetrics

	routes   metric.Int64Counter
	duration metric.Float64Histogram
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewBatchJob creates a batch job processor.
func NewBatchJob(cfg BatchJobConfig) (*BatchJob, error) {
	if cfg.Scorer == nil {
		return nil, errors.New("worker: scorer is required")
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	routes, err := meter.Int64Counter(
		"worker.routes.total",
		metric.WithDescription("Routes processed by batch jobs"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating routes counter: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"worker.batch.duration",
		metric.WithDescription("Duration of batch scoring jobs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch duration histogram: %w", err)
	}

	return &BatchJob{
		config:   cfg.Config.withDefaults(),
		scorer:   cfg.Scorer,
		logger:   cfg.Logger,
		metrics:  &BatchMetrics{},
		routes:   routes,
		duration: duration,
	}, nil
}

// Validate checks a score_batch message before any route is scored.
func (j *BatchJob) Validate(msg JobMessage) error {
	if err := validate.Struct(msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if len(msg.Routes) > j.config.MaxRoutes {
		return fmt.Errorf("%w: %d routes exceeds the limit of %d", ErrInvalidJob, len(msg.Routes), j.config.MaxRoutes)
	}
	return nil
}

// Run scores every route in msg. Per-route failures are reported in the
// outcomes; the returned error is ErrInvalidJob or ErrBatchInterrupted.
func (j *BatchJob) Run(ctx context.Context, msg JobMessage) (*BatchResult, error) {
	if err := j.Validate(msg); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &BatchResult{
		BatchID:   msg.BatchID,
		ProfileID: msg.ProfileID,
		StartTime: start,
		Total:     len(msg.Routes),
		Levels:    make(map[accessibility.Level]int),
		Outcomes:  make([]RouteOutcome, len(msg.Routes)),
	}

	workers := min(j.config.Concurrency, len(msg.Routes))
	j.logger.Info().
		Str("batch_id", msg.BatchID).
		Str("profile_id", msg.ProfileID).
		Int("routes", len(msg.Routes)).
		Int("concurrency", workers).
		Msg("starting batch")

	indexes := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				result.Outcomes[i] = j.scoreOne(ctx, msg.ProfileID, msg.Routes[i])
			}
		}()
	}

feed:
	for i := range msg.Routes {
		select {
		case indexes <- i:
		case <-ctx.Done():
			for k := i; k < len(msg.Routes); k++ {
				result.Outcomes[k] = RouteOutcome{ID: msg.Routes[k].ID, Err: ctx.Err()}
			}
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	for _, o := range result.Outcomes {
		switch {
		case o.Err != nil:
			result.Failed++
		case o.Result.IsUnknownProfile():
			result.UnknownProfile = true
			result.Failed++
		default:
			result.Scored++
			result.Levels[o.Result.Level]++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	j.record(ctx, result)

	j.logger.Info().
		Str("batch_id", result.BatchID).
		Str("profile_id", result.ProfileID).
		Dur("duration", result.Duration).
		Int("scored", result.Scored).
		Int("failed", result.Failed).
		Int("high", result.Levels[accessibility.LevelHigh]).
		Int("medium", result.Levels[accessibility.LevelMedium]).
		Int("low", result.Levels[accessibility.LevelLow]).
		Bool("unknown_profile", result.UnknownProfile).
		Msg("batch completed")

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: %w", ErrBatchInterrupted, err)
	}
	return result, nil
}

func (j *BatchJob) scoreOne(ctx context.Context, profileID string, in RouteInput) RouteOutcome {
	out := RouteOutcome{ID: in.ID}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	points, err := decodeRoute(in)
	if err != nil {
		out.Err = err
		j.logger.Debug().Err(err).Str("route_id", in.ID).Msg("skipping undecodable route")
		return out
	}

	routeCtx, cancel := context.WithTimeout(ctx, j.config.RouteTimeout)
	defer cancel()

	out.Result, out.Err = j.scorer.ScoreRoute(routeCtx, scoring.ScoreRequest{Route: points, ProfileID: profileID})
	if out.Err != nil {
		j.logger.Warn().Err(out.Err).Str("route_id", in.ID).Msg("route scoring failed")
	}
	return out
}

func decodeRoute(in RouteInput) ([]geo.Point, error) {
	var (
		points []geo.Point
		err    error
	)
	if in.Polyline != "" {
		points, err = polyline.Decode(in.Polyline)
	} else {
		points, err = geo.FromPairs(in.Coordinates)
	}
	if err != nil {
		return nil, fmt.Errorf("decode route %s: %w", in.ID, err)
	}
	for _, p := range points {
		if err := geo.Validate(p); err != nil {
			return nil, fmt.Errorf("route %s: %w", in.ID, err)
		}
	}
	return points, nil
}

func (j *BatchJob) record(ctx context.Context, result *BatchResult) {
	// recording must survive a cancelled batch
	ctx = context.WithoutCancel(ctx)
	profile := attribute.String("profile", result.ProfileID)

	failed := outcomeFailed
	if result.UnknownProfile {
		failed = outcomeUnknownProfile
	}
	j.routes.Add(ctx, int64(result.Scored), metric.WithAttributes(profile, attribute.String("outcome", outcomeScored)))
	j.routes.Add(ctx, int64(result.Failed), metric.WithAttributes(profile, attribute.String("outcome", failed)))
	j.duration.Record(ctx, result.Duration.Seconds(), metric.WithAttributes(profile))

	j.metrics.Batches.Add(1)
	j.metrics.RoutesScored.Add(int64(result.Scored))
	j.metrics.RoutesFailed.Add(int64(result.Failed))
	if result.UnknownProfile {
		j.metrics.UnknownBatch.Add(1)
	}

	j.metrics.mu.Lock()
	j.metrics.lastBatchAt = result.EndTime
	j.metrics.lastBatchTook = result.Duration
	j.metrics.mu.Unlock()
}

// HealthCheck scores a fixed probe route with the health profile.
func (j *BatchJob) HealthCheck(ctx context.Context) error {
	j.metrics.HealthChecks.Add(1)

	ctx, cancel := context.WithTimeout(ctx, j.config.RouteTimeout)
	defer cancel()

	result, err := j.scorer.ScoreRoute(ctx, scoring.ScoreRequest{Route: healthProbe, ProfileID: j.config.HealthProfileID})
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %w", ErrHealthCheckFailed, err)
	case result.IsUnknownProfile():
		err = fmt.Errorf("%w: profile %q is not in the catalogue", ErrHealthCheckFailed, j.config.HealthProfileID)
	}
	if err != nil {
		j.metrics.HealthFailure.Add(1)
		return err
	}
	return nil
}

// Metrics returns a snapshot of the batch counters.
func (j *BatchJob) Metrics() MetricsSnapshot {
	j.metrics.mu.RLock()
	lastAt, lastTook := j.metrics.lastBatchAt, j.metrics.lastBatchTook
	j.metrics.mu.RUnlock()

	return MetricsSnapshot{
		Batches:             j.metrics.Batches.Load(),
		RoutesScored:        j.metrics.RoutesScored.Load(),
		RoutesFailed:        j.metrics.RoutesFailed.Load(),
		UnknownProfileBatch: j.metrics.UnknownBatch.Load(),
		HealthChecks:        j.metrics.HealthChecks.Load(),
		HealthCheckFailures: j.metrics.HealthFailure.Load(),
		LastBatchAt:         lastAt,
		LastBatchDurationMs: lastTook.Milliseconds(),
	}
}
