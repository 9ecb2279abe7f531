package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/accessibility"
	"github.com/accessroute/accessroute/internal/api/models"
	"github.com/accessroute/accessroute/internal/api/response"
	"github.com/accessroute/accessroute/internal/provider/resilience"
	"github.com/accessroute/accessroute/internal/routing"
	"github.com/accessroute/accessroute/internal/scoring"
	"github.com/accessroute/accessroute/pkg/geo"
	"github.com/accessroute/accessroute/pkg/polyline"
)

// providerRetryAfter is suggested to clients when the routing provider is
// rate limited or its circuit is open.
const providerRetryAfter = 30

// RouteHandler handles route scoring endpoints.
type RouteHandler struct {
	scoring *scoring.Service
	logger  zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(scoring *scoring.Service, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{scoring: scoring, logger: logger}
}

// ScoreRoute handles POST /v1/routes:score. The route arrives either as
// [lon, lat] pairs or as an encoded polyline. An unknown profile yields the
// grey "unknown" result with score -1 rather than an error.
func (h *RouteHandler) ScoreRoute(w http.ResponseWriter, r *http.Request) {
	var input models.ScoreRouteRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	route, fieldErr := routeFrom(input)
	if fieldErr != nil {
		response.BadRequest(w, r, "invalid route geometry", []models.FieldError{*fieldErr})
		return
	}

	result, err := h.scoring.ScoreRoute(r.Context(), scoring.ScoreRequest{
		Route:     route,
		ProfileID: input.ProfileID,
	})
	if err != nil {
		if errors.Is(err, accessibility.ErrEmptyRoute) {
			response.Unprocessable(w, r, "route must contain at least one coordinate")
			return
		}
		h.logger.Error().Err(err).Str("profile", input.ProfileID).Msg("scoring route failed")
		response.InternalError(w, r, "failed to score route")
		return
	}

	response.JSON(w, r, http.StatusOK, models.ScoreRouteResponse{
		ProfileID: input.ProfileID,
		Score:     models.ScoreFrom(result),
	})
}

// routeFrom decodes and range-checks the route in a score request.
func routeFrom(input models.ScoreRouteRequest) ([]geo.Point, *models.FieldError) {
	field := "coordinates"
	var (
		points []geo.Point
		err    error
	)
	if input.Polyline != "" {
		field = "polyline"
		points, err = polyline.Decode(input.Polyline)
	} else {
		points, err = geo.FromPairs(input.Coordinates)
	}
	if err != nil {
		return nil, &models.FieldError{Field: field, Message: err.Error(), Code: "INVALID"}
	}

	for _, p := range points {
		if err := geo.Validate(p); err != nil {
			return nil, &models.FieldError{Field: field, Message: err.Error(), Code: "OUT_OF_RANGE"}
		}
	}
	return points, nil
}

// ComputeRoutes handles POST /v1/routes:compute. It asks the routing provider
// for alternatives suited to the profile and returns them best first.
func (h *RouteHandler) ComputeRoutes(w http.ResponseWriter, r *http.Request) {
	var input models.ComputeRoutesRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	result, err := h.scoring.ScoreDirections(r.Context(), scoring.DirectionsScoreRequest{
		Origin:          input.Origin.Geo(),
		Destination:     input.Destination.Geo(),
		ProfileID:       input.ProfileID,
		MaxAlternatives: input.MaxAlternatives,
	})
	if err != nil {
		h.writeDirectionsError(w, r, input.ProfileID, err)
		return
	}

	resp := models.ComputeRoutesResponse{
		ProfileID:   result.ProfileID,
		Provider:    result.Provider,
		GeneratedAt: models.Timestamp(time.Now()),
		Options:     make([]models.RouteOption, len(result.Routes)),
	}
	for i, sr := range result.Routes {
		encoded := sr.Route.GeometryPolyline
		if encoded == "" {
			encoded = polyline.Encode(sr.Route.Points)
		}
		resp.Options[i] = models.RouteOption{
			Rank:            i + 1,
			Summary:         sr.Route.Summary,
			DistanceMeters:  sr.Route.DistanceMeters,
			DurationSeconds: sr.Route.DurationSeconds,
			Polyline:        encoded,
			Accessibility:   models.ScoreFrom(sr.Result),
		}
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, resp)
}

func (h *RouteHandler) writeDirectionsError(w http.ResponseWriter, r *http.Request, profileID string, err error) {
	switch {
	case errors.Is(err, scoring.ErrUnknownProfile):
		response.BadRequest(w, r, "unknown accessibility profile", []models.FieldError{{
			Field:   "profileId",
			Message: "no profile with id " + profileID,
			Code:    "UNKNOWN_PROFILE",
		}})
	case errors.Is(err, routing.ErrInvalidCoordinates):
		response.BadRequest(w, r, "the routing provider rejected the coordinates", nil)
	case errors.Is(err, routing.ErrNoRouteFound):
		response.Unprocessable(w, r, "no walking route found between origin and destination")
	case errors.Is(err, scoring.ErrRoutingUnavailable):
		response.ServiceUnavailable(w, r, "route computation is not configured")
	case errors.Is(err, routing.ErrRateLimitExceeded), errors.Is(err, resilience.ErrCircuitOpen):
		w.Header().Set("Retry-After", strconv.Itoa(providerRetryAfter))
		response.ServiceUnavailable(w, r, "the routing provider is temporarily unavailable")
	default:
		h.logger.Error().Err(err).Str("profile", profileID).Msg("computing routes failed")
		response.BadGateway(w, r, "the routing provider failed to return routes")
	}
}
