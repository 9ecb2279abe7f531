// Package scoring combines the accessibility engine with live barrier reports,
// feature flags and the routing provider.
package scoring

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/accessroute/accessroute/internal/accessibility"
	"github.com/accessroute/accessroute/internal/routing"
	"github.com/accessroute/accessroute/pkg/geo"
	"github.com/accessroute/accessroute/pkg/polyline"
)

const instrumentationName = "github.com/accessroute/accessroute/internal/scoring"

// ErrUnknownProfile is returned by ScoreDirections for profiles missing from the catalogue.
// ScoreRoute reports unknown profiles through the sentinel result instead.
var ErrUnknownProfile = errors.New("unknown accessibility profile")

// ErrRoutingUnavailable is returned by ScoreDirections when no routing provider is configured.
var ErrRoutingUnavailable = errors.New("routing is not configured")

// BarrierSource supplies the current barrier reports.
type BarrierSource interface {
	Snapshot() []accessibility.Barrier
}

// FlagSource reports whether routes are densified before matching.
type FlagSource interface {
	SegmentSampling(ctx context.Context) (bool, float64)
}

// DirectionsProvider computes candidate routes.
type DirectionsProvider interface {
	GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error)
}

// ServiceConfig holds configuration for the scoring service.
type ServiceConfig struct {
	// Engine scores routes against the loaded catalogue (required).
	Engine *accessibility.Engine

	// Barriers supplies live barrier reports (optional).
	Barriers BarrierSource

	// Flags toggles segment sampling (optional, sampling off when nil).
	Flags FlagSource

	// Routing computes candidate routes for ScoreDirections (optional).
	Routing DirectionsProvider

	// Logger for service operations.
	Logger zerolog.Logger

	// MaxSampledPoints caps a densified route (default: DefaultMaxSampledPoints).
	// Longer routes are matched on their vertices only.
	MaxSampledPoints int

	// Tracer and Meter default to the global OpenTelemetry providers.
	Tracer trace.Tracer
	Meter  metric.Meter
}

// DefaultMaxSampledPoints bounds segment sampling per route.
const DefaultMaxSampledPoints = 100_000

// Service scores routes.
type Service struct {
	engine   *accessibility.Engine
	barriers BarrierSource
	flags    FlagSource
	routing  DirectionsProvider
	logger   zerolog.Logger
	tracer   trace.Tracer

	maxSampledPoints int

	scoreTotal metric.Int64Counter
	scoreValue metric.Int64Histogram
}

// NewService creates a scoring service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Engine == nil {
		return nil, errors.New("scoring: engine is required")
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	scoreTotal, err := meter.Int64Counter(
		"accessibility.score.total",
		metric.WithDescription("Number of routes scored"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating score counter: %w", err)
	}

	scoreValue, err := meter.Int64Histogram(
		"accessibility.score.value",
		metric.WithDescription("Distribution of accessibility scores"),
		metric.WithUnit("{score}"),
		metric.WithExplicitBucketBoundaries(0, 25, 50, 65, 80, 90, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("creating score histogram: %w", err)
	}

	maxSampled := cfg.MaxSampledPoints
	if maxSampled <= 0 {
		maxSampled = DefaultMaxSampledPoints
	}

	return &Service{
		engine:           cfg.Engine,
		barriers:         cfg.Barriers,
		flags:            cfg.Flags,
		routing:          cfg.Routing,
		logger:           cfg.Logger,
		tracer:           tracer,
		maxSampledPoints: maxSampled,
		scoreTotal:       scoreTotal,
		scoreValue:       scoreValue,
	}, nil
}

// ScoreRequest asks for a single route to be scored.
type ScoreRequest struct {
	Route     []geo.Point
	ProfileID string
}

// ScoreRoute scores one caller-supplied route.
func (s *Service) ScoreRoute(ctx context.Context, req ScoreRequest) (accessibility.ScoreResult, error) {
	return s.score(ctx, req.Route, req.ProfileID, s.snapshotBarriers())
}

// DirectionsScoreRequest asks for provider routes between two points to be scored.
type DirectionsScoreRequest struct {
	Origin          geo.Point
	Destination     geo.Point
	ProfileID       string
	MaxAlternatives int
}

// ScoredRoute pairs a provider route with its accessibility score.
type ScoredRoute struct {
	Route  routing.Route
	Result accessibility.ScoreResult
}

// DirectionsScoreResult holds scored alternatives, best first.
type DirectionsScoreResult struct {
	ProfileID string
	Provider  string
	Routes    []ScoredRoute
}

// ScoreDirections fetches route alternatives for the profile and scores each one.
// Alternatives are ordered by score descending; ties keep the provider's order.
func (s *Service) ScoreDirections(ctx context.Context, req DirectionsScoreRequest) (*DirectionsScoreResult, error) {
	if s.routing == nil {
		return nil, ErrRoutingUnavailable
	}
	profile, ok := s.engine.Catalogue().Profile(req.ProfileID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, req.ProfileID)
	}

	dirReq := DirectionsRequestFor(profile)
	dirReq.Origin = req.Origin
	dirReq.Destination = req.Destination
	dirReq.MaxAlternatives = req.MaxAlternatives

	resp, err := s.routing.GetDirections(ctx, dirReq)
	if err != nil {
		return nil, fmt.Errorf("fetching directions: %w", err)
	}

	// one snapshot so every alternative sees the same barriers
	barriers := s.snapshotBarriers()

	scored := make([]ScoredRoute, 0, len(resp.Routes))
	for i, route := range resp.Routes {
		if len(route.Points) == 0 {
			s.logger.Warn().
				Int("alternative", i).
				Str("provider", resp.Provider).
				Msg("skipping route without geometry")
			continue
		}
		result, err := s.score(ctx, route.Points, req.ProfileID, barriers)
		if err != nil {
			return nil, fmt.Errorf("scoring alternative %d: %w", i, err)
		}
		scored = append(scored, ScoredRoute{Route: route, Result: result})
	}

	slices.SortStableFunc(scored, func(a, b ScoredRoute) int {
		return cmp.Compare(b.Result.Score, a.Result.Score)
	})

	return &DirectionsScoreResult{
		ProfileID: req.ProfileID,
		Provider:  resp.Provider,
		Routes:    scored,
	}, nil
}

// Catalogue returns the catalogue the service scores against.
func (s *Service) Catalogue() *accessibility.Catalogue {
	return s.engine.Catalogue()
}

// stepFreeRestrictions bound the wheelchair graph for step-free routing.
var stepFreeRestrictions = routing.WheelchairRestrictions{
	MaxInclinePercent:   6,
	MaxSlopedKerbMeters: 0.03,
	MinWidthMeters:      0.9,
}

// DirectionsRequestFor picks the provider profile for an accessibility profile.
// Step-free routes use the wheelchair graph; everyone else walks, avoiding steps
// when the profile penalises high-severity steps at least as much as a barrier.
func DirectionsRequestFor(p accessibility.Profile) routing.DirectionsRequest {
	if p.ID == accessibility.ProfileStepFree {
		return routing.DirectionsRequest{
			Profile:    routing.ProfileWheelchair,
			AvoidSteps: true,
			Wheelchair: &stepFreeRestrictions,
		}
	}
	steps := accessibility.PenaltyFor(p, accessibility.HazardSteps, accessibility.SeverityHigh)
	return routing.DirectionsRequest{
		Profile:    routing.ProfileWalk,
		AvoidSteps: steps >= accessibility.BarrierPenalty,
	}
}

func (s *Service) score(
	ctx context.Context,
	route []geo.Point,
	profileID string,
	barriers []accessibility.Barrier,
) (accessibility.ScoreResult, error) {
	ctx, span := s.tracer.Start(ctx, "accessibility.score",
		trace.WithAttributes(
			attribute.String("accessibility.profile", profileID),
			attribute.Int("route.points", len(route)),
			attribute.Int("barriers.count", len(barriers)),
		),
	)
	defer span.End()

	start := time.Now()

	if s.flags != nil {
		if enabled, spacing := s.flags.SegmentSampling(ctx); enabled {
			dense, err := polyline.DensifyLimit(route, spacing, s.maxSampledPoints)
			if err != nil {
				s.logger.Warn().
					Err(err).
					Int("route_points", len(route)).
					Float64("spacing_m", spacing).
					Msg("route too long to sample, matching vertices only")
				span.SetAttributes(attribute.Bool("sampling.skipped", true))
			} else {
				route = dense
				span.SetAttributes(
					attribute.Float64("sampling.spacing_m", spacing),
					attribute.Int("route.sampled_points", len(route)),
				)
			}
		}
	}

	result, err := s.engine.Score(route, profileID, barriers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return accessibility.ScoreResult{}, err
	}

	span.SetAttributes(
		attribute.Int("accessibility.score", result.Score),
		attribute.String("accessibility.level", string(result.Level)),
		attribute.Int("accessibility.warnings", len(result.Warnings)),
	)

	attrs := metric.WithAttributes(
		attribute.String("profile", profileID),
		attribute.String("level", string(result.Level)),
	)
	// background context so a cancelled request still records
	s.scoreTotal.Add(context.Background(), 1, attrs)
	if !result.IsUnknownProfile() {
		s.scoreValue.Record(context.Background(), int64(result.Score), attrs)
	}

	s.logger.Debug().
		Str("profile", profileID).
		Int("score", result.Score).
		Str("level", string(result.Level)).
		Int("warnings", len(result.Warnings)).
		Int("points", len(route)).
		Dur("duration", time.Since(start)).
		Msg("route scored")

	return result, nil
}

func (s *Service) snapshotBarriers() []accessibility.Barrier {
	if s.barriers == nil {
		return nil
	}
	return s.barriers.Snapshot()
}
