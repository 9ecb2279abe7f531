package routing

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/accessroute/accessroute/pkg/geo"
)

const operationDirections = "directions"

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the routing data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics records provider latency and cache hit/miss counts (optional).
	Metrics MetricsRecorder

	// CacheTTL is how long to cache routing data (default: 5 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.0005 ~ 55m).
	// Origins and destinations within the same cell share cached routes. Walking
	// routes are short, so cells stay small.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often to clean up expired entries (default: 5 minutes).
	CleanupInterval time.Duration

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service provides routing data with caching.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	metrics         MetricsRecorder
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration

	now     func() time.Time
	flights singleflight.Group

	mu          sync.RWMutex
	cache       map[string]*cachedDirections
	lastCleanup time.Time
}

type cachedDirections struct {
	response  *DirectionsResponse
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.0005 // ~55m at the equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 15 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		now:             now,
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		cleanupInterval: cleanupInterval,
		cache:           make(map[string]*cachedDirections),
	}
}

// GetDirections returns route alternatives between two points.
// Uses cached data if available and not expired.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	if req.Profile == "" {
		req.Profile = ProfileWalk
	}
	if !slices.Contains(s.provider.SupportedProfiles(), req.Profile) {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "UNSUPPORTED_PROFILE",
			Message:  fmt.Sprintf("profile %q is not supported", req.Profile),
			Err:      ErrUnsupportedProfile,
		}
	}
	if err := geo.Validate(req.Origin); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}
	if err := geo.Validate(req.Destination); err != nil {
		return nil, &Error{
			Provider: s.provider.Name(),
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      ErrInvalidCoordinates,
		}
	}

	key := s.cacheKey(req)
	if cached, ok := s.lookup(key); ok && s.now().Before(cached.expiresAt) {
		s.logger.Debug().Str("cache_key", key).Msg("cache hit for directions")
		s.recordCacheHit()
		return cached.response, nil
	}
	s.recordCacheMiss()

	// Concurrent misses for one key share a single provider call. The call
	// outlives a cancelled caller so the others still get the result.
	flight := s.flights.DoChan(key, func() (any, error) {
		return s.fetchDirections(context.WithoutCancel(ctx), req, key)
	})
	select {
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DirectionsResponse), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) lookup(key string) (*cachedDirections, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.cache[key]
	return cached, ok
}

// fetchDirections calls the provider and stores the result. On provider
// failure an entry younger than the stale window is served instead.
func (s *Service) fetchDirections(ctx context.Context, req DirectionsRequest, key string) (*DirectionsResponse, error) {
	// another flight may have filled the entry since the caller's lookup
	if cached, ok := s.lookup(key); ok && s.now().Before(cached.expiresAt) {
		return cached.response, nil
	}

	logger := s.logger.With().
		Str("provider", s.provider.Name()).
		Str("profile", string(req.Profile)).
		Bool("avoid_steps", req.AvoidSteps).
		Str("cache_key", key).
		Logger()
	logger.Debug().Msg("fetching directions from provider")

	start := time.Now()
	resp, err := s.provider.GetDirections(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordRequest(s.provider.Name(), operationDirections, time.Since(start), err)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch directions")
		if cached, ok := s.lookup(key); ok && s.now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Msg("serving stale directions data due to provider error")
			return cached.response, nil
		}
		return nil, err
	}

	now := s.now()
	s.mu.Lock()
	s.cache[key] = &cachedDirections{
		response:  resp,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}
	s.cleanupIfNeeded(now)
	s.mu.Unlock()

	logger.Debug().Int("route_count", len(resp.Routes)).Msg("cached directions response")
	return resp, nil
}

// cacheKey generates a cache key for a routing request.
// Uses grid-based quantization for both origin and destination.
// Format: {profile}:{avoidSteps}:{gridOriginLat},{gridOriginLon}:{gridDestLat},{gridDestLon}:{alternatives}
// with a :w{incline}/{kerb}/{width} suffix when wheelchair restrictions are set.
func (s *Service) cacheKey(req DirectionsRequest) string {
	gridOriginLat := math.Floor(req.Origin.Lat/s.cacheGridSize) * s.cacheGridSize
	gridOriginLon := math.Floor(req.Origin.Lon/s.cacheGridSize) * s.cacheGridSize
	gridDestLat := math.Floor(req.Destination.Lat/s.cacheGridSize) * s.cacheGridSize
	gridDestLon := math.Floor(req.Destination.Lon/s.cacheGridSize) * s.cacheGridSize

	key := fmt.Sprintf("%s:%t:%.4f,%.4f:%.4f,%.4f:%d",
		req.Profile,
		req.AvoidSteps,
		gridOriginLat, gridOriginLon,
		gridDestLat, gridDestLon,
		req.MaxAlternatives,
	)
	if r := req.Wheelchair; r != nil {
		key += fmt.Sprintf(":w%d/%.2f/%.2f", r.MaxInclinePercent, r.MaxSlopedKerbMeters, r.MinWidthMeters)
	}
	return key
}

// cleanupIfNeeded drops entries past the stale window once per cleanup
// interval. Callers hold s.mu.
func (s *Service) cleanupIfNeeded(now time.Time) {
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.cache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired routing cache entries")
	}
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedDirections)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	fresh := 0
	stale := 0

	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		} else if now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)) {
			stale++
		}
	}

	return CacheStats{
		TotalEntries: len(s.cache),
		FreshEntries: fresh,
		StaleEntries: stale,
		Provider:     s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Provider     string
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func (s *Service) recordCacheHit() {
	if s.metrics != nil {
		s.metrics.RecordCacheHit(s.provider.Name(), operationDirections)
	}
}

func (s *Service) recordCacheMiss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(s.provider.Name(), operationDirections)
	}
}
