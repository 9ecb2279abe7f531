package openrouteservice

import "encoding/json"

// orsRequest represents the ORS directions API request body.
type orsRequest struct {
	Coordinates       [][]float64            `json:"coordinates"`
	AlternativeRoutes *alternativeRoutesOpts `json:"alternative_routes,omitempty"`
	Instructions      bool                   `json:"instructions"`
	Geometry          bool                   `json:"geometry"`
	Units             string                 `json:"units"`
	Language          string                 `json:"language"`
	Options           *routeOptions          `json:"options,omitempty"`
}

// routeOptions restricts the routing graph.
type routeOptions struct {
	AvoidFeatures []string       `json:"avoid_features,omitempty"`
	ProfileParams *profileParams `json:"profile_params,omitempty"`
}

type profileParams struct {
	Restrictions *restrictions `json:"restrictions,omitempty"`
}

// restrictions are the wheelchair profile limits.
type restrictions struct {
	MaximumIncline    int     `json:"maximum_incline,omitempty"`
	MaximumSlopedKerb float64 `json:"maximum_sloped_kerb,omitempty"`
	MinimumWidth      float64 `json:"minimum_width,omitempty"`
}

// alternativeRoutesOpts configures alternative route generation.
type alternativeRoutesOpts struct {
	TargetCount int `json:"target_count"`
}

// orsResponse represents the ORS directions API response.
type orsResponse struct {
	Routes   []orsRoute `json:"routes"`
	BBox     []float64  `json:"bbox,omitempty"`
	Metadata *metadata  `json:"metadata,omitempty"`
}

// metadata contains response metadata.
type metadata struct {
	Attribution string `json:"attribution,omitempty"`
	Service     string `json:"service,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// orsRoute represents a single route in the ORS response.
type orsRoute struct {
	Summary   routeSummary   `json:"summary"`
	Segments  []routeSegment `json:"segments,omitempty"`
	BBox      []float64      `json:"bbox,omitempty"`
	Geometry  string         `json:"geometry"`
	WayPoints []int          `json:"way_points,omitempty"`
	Warnings  []routeWarning `json:"warnings,omitempty"`
}

// routeSummary contains summary information for a route.
type routeSummary struct {
	Distance float64 `json:"distance"` // Distance in meters
	Duration float64 `json:"duration"` // Duration in seconds
}

// routeSegment represents a segment of the route.
type routeSegment struct {
	Distance float64          `json:"distance"`
	Duration float64          `json:"duration"`
	Steps    []routeStep      `json:"steps,omitempty"`
	Warnings []segmentWarning `json:"warnings,omitempty"`
}

// routeStep represents a single step (instruction) in a segment.
type routeStep struct {
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Type        int     `json:"type"`
	Instruction string  `json:"instruction"`
	Name        string  `json:"name"`
	WayPoints   []int   `json:"way_points,omitempty"`
}

// routeWarning represents a warning for the entire route.
type routeWarning struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// segmentWarning represents a warning for a specific segment.
type segmentWarning struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// orsErrorResponse represents an error response from ORS.
type orsErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Info json.RawMessage `json:"info,omitempty"`
}

// ORS error codes for error mapping.
const (
	orsErrorCodeNotFound      = 2009 // Route not found
	orsErrorCodePointNotFound = 2010 // Point not routable, e.g. no wheelchair-accessible way nearby
)
