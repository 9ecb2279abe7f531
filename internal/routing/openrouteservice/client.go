// Package openrouteservice provides a client for the OpenRouteService directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/provider/resilience"
	"github.com/accessroute/accessroute/internal/routing"
	"github.com/accessroute/accessroute/pkg/geo"
	"github.com/accessroute/accessroute/pkg/polyline"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Logger = cfg.Logger
		if cfg.Registry != nil {
			clientCfg.Registry = cfg.Registry
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedProfiles returns the supported routing profiles.
func (c *Client) SupportedProfiles() []routing.RouteProfile {
	return []routing.RouteProfile{
		routing.ProfileWalk,
		routing.ProfileWheelchair,
	}
}

// GetDirections retrieves route alternatives between two points.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if err := geo.Validate(req.Origin); err != nil {
		return nil, providerError("INVALID_ORIGIN", "invalid origin coordinates", routing.ErrInvalidCoordinates)
	}
	if err := geo.Validate(req.Destination); err != nil {
		return nil, providerError("INVALID_DESTINATION", "invalid destination coordinates", routing.ErrInvalidCoordinates)
	}

	profile := req.Profile
	if profile == "" {
		profile = routing.ProfileWalk
	}

	maxAlts := req.MaxAlternatives
	if maxAlts <= 0 {
		maxAlts = 2
	}

	orsReq := orsRequest{
		// ORS uses [lon, lat] order (GeoJSON)
		Coordinates: [][]float64{
			{req.Origin.Lon, req.Origin.Lat},
			{req.Destination.Lon, req.Destination.Lat},
		},
		AlternativeRoutes: &alternativeRoutesOpts{
			TargetCount: maxAlts + 1, // the primary route is not counted as an alternative
		},
		Instructions: true,
		Geometry:     true,
		Units:        "m",
		Language:     "en",
	}
	orsReq.Options = requestOptions(profile, req)

	body, err := json.Marshal(orsReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug().
		Str("profile", string(profile)).
		Bool("avoid_steps", req.AvoidSteps).
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Msg("requesting directions from ORS")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, providerError("REQUEST_FAILED", "failed to reach routing provider", fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result, err := c.toDirectionsResponse(&orsResp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Msg("received directions from ORS")

	return result, nil
}

func providerError(code, message string, err error) *routing.Error {
	return &routing.Error{Provider: ProviderName, Code: code, Message: message, Err: err}
}

// requestOptions narrows the routing graph for the request, or returns nil.
func requestOptions(profile routing.RouteProfile, req routing.DirectionsRequest) *routeOptions {
	var opts routeOptions
	// the wheelchair graph already excludes steps
	if req.AvoidSteps && profile == routing.ProfileWalk {
		opts.AvoidFeatures = []string{"steps"}
	}
	if r := req.Wheelchair; r != nil && profile == routing.ProfileWheelchair {
		opts.ProfileParams = &profileParams{Restrictions: &restrictions{
			MaximumIncline:    r.MaxInclinePercent,
			MaximumSlopedKerb: r.MaxSlopedKerbMeters,
			MinimumWidth:      r.MinWidthMeters,
		}}
	}
	if opts.AvoidFeatures == nil && opts.ProfileParams == nil {
		return nil
	}
	return &opts
}

// handleErrorResponse maps ORS error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var orsErr orsErrorResponse
	if err := json.Unmarshal(body, &orsErr); err != nil {
		return providerError(fmt.Sprintf("HTTP_%d", statusCode), fmt.Sprintf("routing provider returned status %d", statusCode), routing.ErrProviderUnavailable)
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return providerError("RATE_LIMIT", "API rate limit exceeded, please try again later", routing.ErrRateLimitExceeded)
	case http.StatusForbidden, http.StatusUnauthorized:
		return providerError("FORBIDDEN", "API access denied - check API key configuration", routing.ErrProviderUnavailable)
	case http.StatusNotFound:
		return providerError("NO_ROUTE", "no route found between the given points", routing.ErrNoRouteFound)
	case http.StatusBadRequest:
		switch orsErr.Error.Code {
		case orsErrorCodeNotFound, orsErrorCodePointNotFound:
			return providerError("NO_ROUTE", orsErr.Error.Message, routing.ErrNoRouteFound)
		}
		return providerError("BAD_REQUEST", orsErr.Error.Message, routing.ErrInvalidCoordinates)
	default:
		if statusCode >= 500 {
			return providerError(fmt.Sprintf("SERVER_%d", statusCode), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable)
		}
		return providerError(fmt.Sprintf("HTTP_%d", statusCode), orsErr.Error.Message, routing.ErrProviderUnavailable)
	}
}

// toDirectionsResponse converts the ORS response to the domain model,
// decoding each route's geometry.
func (c *Client) toDirectionsResponse(resp *orsResponse) (*routing.DirectionsResponse, error) {
	routes := make([]routing.Route, 0, len(resp.Routes))

	for i := range resp.Routes {
		orsRoute := &resp.Routes[i]

		points, err := polyline.Decode(orsRoute.Geometry)
		if err != nil {
			return nil, providerError("BAD_GEOMETRY", fmt.Sprintf("route %d has undecodable geometry", i), err)
		}

		route := routing.Route{
			GeometryPolyline: orsRoute.Geometry,
			Points:           points,
			DistanceMeters:   int(orsRoute.Summary.Distance),
			DurationSeconds:  int(orsRoute.Summary.Duration),
		}

		if len(orsRoute.BBox) >= 4 {
			route.BoundingBox = &routing.BoundingBox{
				MinLon: orsRoute.BBox[0],
				MinLat: orsRoute.BBox[1],
				MaxLon: orsRoute.BBox[2],
				MaxLat: orsRoute.BBox[3],
			}
		}

		for j := range orsRoute.Segments {
			segment := &orsRoute.Segments[j]
			for k := range segment.Steps {
				step := &segment.Steps[k]
				route.Instructions = append(route.Instructions, routing.Instruction{
					Text:           step.Instruction,
					DistanceMeters: int(step.Distance),
					DurationSecs:   int(step.Duration),
					Type:           step.Type,
				})
			}
			if route.Summary == "" {
				route.Summary = summarise(segment.Steps)
			}
		}

		routes = append(routes, route)
	}

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}, nil
}

// summarise names the street of the longest named step, e.g. "via Damrak".
func summarise(steps []routeStep) string {
	var (
		best     string
		bestDist float64
	)
	for _, s := range steps {
		if s.Name == "" || s.Name == "-" {
			continue
		}
		if s.Distance > bestDist {
			best = s.Name
			bestDist = s.Distance
		}
	}
	if best == "" {
		return ""
	}
	return "via " + best
}
