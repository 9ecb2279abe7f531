// Package routing fetches pedestrian routes from an external directions provider.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/accessroute/accessroute/pkg/geo"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrUnsupportedProfile indicates the provider does not offer the requested profile.
	ErrUnsupportedProfile = errors.New("unsupported route profile")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// GetDirections retrieves route alternatives between two points.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
	// SupportedProfiles returns the route profiles this provider supports.
	SupportedProfiles() []RouteProfile
}

// MetricsRecorder receives provider call and cache metrics.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// RouteProfile is the provider's travel profile.
type RouteProfile string

const (
	// ProfileWalk is the standard pedestrian profile.
	ProfileWalk RouteProfile = "foot-walking"
	// ProfileWheelchair prefers kerb cuts, smooth surfaces and gentle inclines.
	ProfileWheelchair RouteProfile = "wheelchair"
)

// DirectionsRequest is the request for computing routes.
type DirectionsRequest struct {
	Origin          geo.Point
	Destination     geo.Point
	Profile         RouteProfile
	MaxAlternatives int  // Maximum number of alternative routes to return (default: 2)
	AvoidSteps      bool // Ask the provider to route around steps where it can

	// Wheelchair limits the wheelchair graph; ignored for other profiles.
	Wheelchair *WheelchairRestrictions
}

// WheelchairRestrictions bound what the wheelchair profile may route over.
type WheelchairRestrictions struct {
	MaxInclinePercent   int     // ORS accepts 3, 6, 10 or 15
	MaxSlopedKerbMeters float64 // highest kerb the route may cross
	MinWidthMeters      float64 // narrowest footway the route may use
}

// DirectionsResponse is the response containing route alternatives.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is a single route option.
type Route struct {
	GeometryPolyline string      // Encoded polyline (precision 5)
	Points           []geo.Point // Decoded geometry
	DistanceMeters   int
	DurationSeconds  int
	Summary          string
	BoundingBox      *BoundingBox
	Instructions     []Instruction
}

// BoundingBox represents a geographic bounding box.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Instruction represents a turn-by-turn instruction.
type Instruction struct {
	Text           string
	DistanceMeters int
	DurationSecs   int
	Type           int // ORS instruction type code
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
