package routing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/accessroute/accessroute/pkg/geo"
)

// mockProvider is a mock routing provider for testing.
type mockProvider struct {
	name      string
	profiles  []RouteProfile
	response  *DirectionsResponse
	err       error
	callCount atomic.Int32
	delay     time.Duration
	lastReq   DirectionsRequest
	mu        sync.Mutex
}

func (m *mockProvider) GetDirections(_ context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) SupportedProfiles() []RouteProfile {
	return m.profiles
}

type recordingMetrics struct {
	mu       sync.Mutex
	hits     int
	misses   int
	requests int
	errors   int
}

func (r *recordingMetrics) RecordRequest(_, _ string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests++
	if err != nil {
		r.errors++
	}
}

func (r *recordingMetrics) RecordCacheHit(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits++
}

func (r *recordingMetrics) RecordCacheMiss(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses++
}

var (
	centraal = geo.Point{Lon: 4.9003, Lat: 52.3791}
	dam      = geo.Point{Lon: 4.8932, Lat: 52.3731}
)

func newMockProvider() *mockProvider {
	return &mockProvider{
		name:     "test-provider",
		profiles: []RouteProfile{ProfileWalk, ProfileWheelchair},
		response: &DirectionsResponse{
			Routes: []Route{
				{
					GeometryPolyline: "_p~iF~ps|U_ulLnnqC",
					Points:           []geo.Point{centraal, dam},
					DistanceMeters:   850,
					DurationSeconds:  610,
				},
			},
			Provider:  "test-provider",
			FetchedAt: time.Now(),
		},
	}
}

func TestService_GetDirections_CacheMissThenHit(t *testing.T) {
	provider := newMockProvider()
	metrics := &recordingMetrics{}

	service := NewService(ServiceConfig{
		Provider: provider,
		Metrics:  metrics,
		CacheTTL: 5 * time.Minute,
	})

	req := DirectionsRequest{Origin: centraal, Destination: dam, Profile: ProfileWheelchair}

	resp, err := service.GetDirections(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Routes) != 1 || resp.Routes[0].DistanceMeters != 850 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if _, err := service.GetDirections(context.Background(), req); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call (cache hit), got %d", provider.callCount.Load())
	}
	if metrics.misses != 1 || metrics.hits != 1 || metrics.requests != 1 {
		t.Errorf("expected 1 miss, 1 hit, 1 request; got %+v", metrics)
	}
}

func TestService_GetDirections_DefaultsToWalking(t *testing.T) {
	provider := newMockProvider()
	service := NewService(ServiceConfig{Provider: provider})

	if _, err := service.GetDirections(context.Background(), DirectionsRequest{Origin: centraal, Destination: dam}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.lastReq.Profile != ProfileWalk {
		t.Errorf("expected profile %q, got %q", ProfileWalk, provider.lastReq.Profile)
	}
}

func TestService_GetDirections_UnsupportedProfile(t *testing.T) {
	provider := newMockProvider()
	provider.profiles = []RouteProfile{ProfileWalk}
	service := NewService(ServiceConfig{Provider: provider})

	_, err := service.GetDirections(context.Background(), DirectionsRequest{
		Origin: centraal, Destination: dam, Profile: ProfileWheelchair,
	})
	if !errors.Is(err, ErrUnsupportedProfile) {
		t.Fatalf("expected ErrUnsupportedProfile, got %v", err)
	}
	if provider.callCount.Load() != 0 {
		t.Error("provider must not be called for unsupported profiles")
	}
}

func TestService_GetDirections_GridCaching(t *testing.T) {
	provider := newMockProvider()
	service := NewService(ServiceConfig{
		Provider:      provider,
		CacheTTL:      5 * time.Minute,
		CacheGridSize: 0.001,
	})

	_, _ = service.GetDirections(context.Background(), DirectionsRequest{
		Origin:      geo.Point{Lon: 4.9003, Lat: 52.3791},
		Destination: geo.Point{Lon: 4.8932, Lat: 52.3731},
		Profile:     ProfileWalk,
	})
	// same grid cells, a few meters away
	_, _ = service.GetDirections(context.Background(), DirectionsRequest{
		Origin:      geo.Point{Lon: 4.9004, Lat: 52.3792},
		Destination: geo.Point{Lon: 4.8933, Lat: 52.3732},
		Profile:     ProfileWalk,
	})

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call (grid cache hit), got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_KeyIncludesOptions(t *testing.T) {
	provider := newMockProvider()
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	base := DirectionsRequest{Origin: centraal, Destination: dam, Profile: ProfileWalk}
	variants := []DirectionsRequest{base, base, base}
	variants[1].Profile = ProfileWheelchair
	variants[2].AvoidSteps = true

	for _, req := range variants {
		if _, err := service.GetDirections(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if provider.callCount.Load() != 3 {
		t.Errorf("expected 3 provider calls (distinct options), got %d", provider.callCount.Load())
	}
}

func TestService_GetDirections_StaleIfError(t *testing.T) {
	provider := newMockProvider()
	metrics := &recordingMetrics{}
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	service := NewService(ServiceConfig{
		Provider:        provider,
		Metrics:         metrics,
		CacheTTL:        time.Minute,
		StaleIfErrorTTL: 10 * time.Minute,
		Now:             clock.Now,
	})

	req := DirectionsRequest{Origin: centraal, Destination: dam, Profile: ProfileWalk}

	if _, err := service.GetDirections(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// expire the fresh entry but stay inside the stale window
	clock.Advance(5 * time.Minute)
	provider.err = errors.New("provider error")

	resp, err := service.GetDirections(context.Background(), req)
	if err != nil {
		t.Fatalf("expected stale data to be served, got error: %v", err)
	}
	if resp.Routes[0].DistanceMeters != 850 {
		t.Errorf("expected stale distance 850, got %d", resp.Routes[0].DistanceMeters)
	}
	if metrics.errors != 1 {
		t.Errorf("expected provider error to be recorded, got %d", metrics.errors)
	}

	// past the stale window the error surfaces
	clock.Advance(10 * time.Minute)
	if _, err := service.GetDirections(context.Background(), req); err == nil {
		t.Error("expected provider error once the stale window has passed")
	}
}

func TestService_GetDirections_ErrorWithoutCache(t *testing.T) {
	provider := newMockProvider()
	provider.err = &Error{Provider: "test-provider", Code: "NO_ROUTE", Message: "no route", Err: ErrNoRouteFound}
	service := NewService(ServiceConfig{Provider: provider})

	_, err := service.GetDirections(context.Background(), DirectionsRequest{Origin: centraal, Destination: dam})
	if !errors.Is(err, ErrNoRouteFound) {
		t.Fatalf("expected ErrNoRouteFound, got %v", err)
	}
}

func TestService_GetDirections_InvalidCoordinates(t *testing.T) {
	service := NewService(ServiceConfig{Provider: newMockProvider()})

	tests := []struct {
		name string
		req  DirectionsRequest
	}{
		{
			name: "invalid origin latitude",
			req:  DirectionsRequest{Origin: geo.Point{Lat: 91}, Destination: dam},
		},
		{
			name: "invalid destination longitude",
			req:  DirectionsRequest{Origin: centraal, Destination: geo.Point{Lon: 181}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.GetDirections(context.Background(), tt.req)

			var routingErr *Error
			if !errors.As(err, &routingErr) {
				t.Fatalf("expected Error, got %T", err)
			}
			if !errors.Is(routingErr.Err, ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", routingErr.Err)
			}
			if routingErr.IsRetryable() {
				t.Error("invalid coordinates must not be retryable")
			}
		})
	}
}

func TestService_GetDirections_ConcurrentRequests(t *testing.T) {
	provider := newMockProvider()
	provider.delay = 50 * time.Millisecond

	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})
	req := DirectionsRequest{Origin: centraal, Destination: dam, Profile: ProfileWalk}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.GetDirections(context.Background(), req); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// concurrent misses share one flight
	if calls := provider.callCount.Load(); calls != 1 {
		t.Errorf("expected 1 provider call, got %d", calls)
	}
}

func TestService_CacheStatsAndInvalidate(t *testing.T) {
	provider := newMockProvider()
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})

	stats := service.CacheStats()
	if stats.TotalEntries != 0 || stats.Provider != "test-provider" {
		t.Errorf("unexpected initial stats: %+v", stats)
	}

	req := DirectionsRequest{Origin: centraal, Destination: dam}
	_, _ = service.GetDirections(context.Background(), req)

	stats = service.CacheStats()
	if stats.TotalEntries != 1 || stats.FreshEntries != 1 {
		t.Errorf("expected 1 fresh entry, got %+v", stats)
	}

	service.InvalidateCache()
	if service.CacheStats().TotalEntries != 0 {
		t.Error("expected empty cache after invalidation")
	}

	_, _ = service.GetDirections(context.Background(), req)
	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls after invalidation, got %d", provider.callCount.Load())
	}
}

func TestService_CacheKeyFormat(t *testing.T) {
	service := &Service{cacheGridSize: 0.0005}

	key := service.cacheKey(DirectionsRequest{
		Origin:          centraal,
		Destination:     dam,
		Profile:         ProfileWheelchair,
		AvoidSteps:      true,
		MaxAlternatives: 2,
	})

	if !strings.HasPrefix(key, "wheelchair:true:") {
		t.Errorf("cache key should start with profile and options, got %q", key)
	}
	if !strings.HasSuffix(key, ":2") {
		t.Errorf("cache key should end with alternatives count, got %q", key)
	}

	restricted := service.cacheKey(DirectionsRequest{
		Origin:          centraal,
		Destination:     dam,
		Profile:         ProfileWheelchair,
		AvoidSteps:      true,
		MaxAlternatives: 2,
		Wheelchair:      &WheelchairRestrictions{MaxInclinePercent: 6, MaxSlopedKerbMeters: 0.03, MinWidthMeters: 0.9},
	})
	if want := key + ":w6/0.03/0.90"; restricted != want {
		t.Errorf("expected %q, got %q", want, restricted)
	}
}

func TestService_ProviderName(t *testing.T) {
	service := NewService(ServiceConfig{Provider: &mockProvider{name: "my-routing-provider"}})

	if service.ProviderName() != "my-routing-provider" {
		t.Errorf("expected 'my-routing-provider', got '%s'", service.ProviderName())
	}
}

func TestService_CleanupDropsEntriesPastStaleWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	service := NewService(ServiceConfig{
		Provider:        newMockProvider(),
		CacheTTL:        time.Minute,
		StaleIfErrorTTL: 10 * time.Minute,
		CleanupInterval: time.Minute,
		Now:             clock.Now,
	})

	if _, err := service.GetDirections(context.Background(), DirectionsRequest{Origin: centraal, Destination: dam}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(11 * time.Minute)
	elsewhere := dam
	elsewhere.Lat += 0.01
	if _, err := service.GetDirections(context.Background(), DirectionsRequest{Origin: centraal, Destination: elsewhere}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := service.CacheStats()
	if stats.TotalEntries != 1 || stats.FreshEntries != 1 {
		t.Errorf("expected only the new entry to remain, got %+v", stats)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gatedProvider blocks every call until release is closed.
type gatedProvider struct {
	*mockProvider
	started chan struct{}
	release chan struct{}
}

func (g *gatedProvider) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	g.started <- struct{}{}
	<-g.release
	return g.mockProvider.GetDirections(ctx, req)
}

func TestService_GetDirections_DistinctKeysFetchInParallel(t *testing.T) {
	provider := &gatedProvider{
		mockProvider: newMockProvider(),
		started:      make(chan struct{}, 2),
		release:      make(chan struct{}),
	}
	service := NewService(ServiceConfig{Provider: provider})

	var wg sync.WaitGroup
	for _, dest := range []geo.Point{dam, {Lon: 4.8830, Lat: 52.3600}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.GetDirections(context.Background(), DirectionsRequest{Origin: centraal, Destination: dest}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	// both calls reach the provider before either is released
	for range 2 {
		select {
		case <-provider.started:
		case <-time.After(time.Second):
			t.Fatal("provider calls for distinct keys were serialised")
		}
	}
	close(provider.release)
	wg.Wait()
}

func TestService_GetDirections_CancelledCallerLeavesFlightRunning(t *testing.T) {
	provider := &gatedProvider{
		mockProvider: newMockProvider(),
		started:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
	service := NewService(ServiceConfig{Provider: provider, CacheTTL: 5 * time.Minute})
	req := DirectionsRequest{Origin: centraal, Destination: dam}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := service.GetDirections(ctx, req)
		errs <- err
	}()

	<-provider.started
	cancel()
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(provider.release)
	// the abandoned flight still fills the cache
	deadline := time.Now().Add(time.Second)
	for service.CacheStats().FreshEntries == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected the flight to populate the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := service.GetDirections(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := provider.callCount.Load(); calls != 1 {
		t.Errorf("expected 1 provider call, got %d", calls)
	}
}
