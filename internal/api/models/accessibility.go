package models

import (
	"github.com/accessroute/accessroute/internal/accessibility"
)

// Profile is an accessibility profile with its penalty table.
type Profile struct {
	ID          string                    `json:"id"`
	Label       string                    `json:"label"`
	Description string                    `json:"description,omitempty"`
	Penalties   map[string]map[string]int `json:"penalties"`
}

// ProfileList is the response for GET /v1/profiles.
type ProfileList struct {
	Profiles []Profile `json:"profiles"`
}

// Hazard is a catalogued hazard.
type Hazard struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Note     string   `json:"note,omitempty"`
	Location Point    `json:"location"`
	Radius   float64  `json:"radiusMeters"`
	Severity string   `json:"severity"`
	Affects  []string `json:"affects"`
}

// HazardList is the response for GET /v1/hazards.
type HazardList struct {
	Hazards []Hazard `json:"hazards"`
	Count   int      `json:"count"`
}

// ScoreRouteRequest is the body of POST /v1/routes:score.
// Exactly one of Coordinates ([lon, lat] pairs) or Polyline is required.
type ScoreRouteRequest struct {
	ProfileID   string      `json:"profileId" validate:"required,max=64"`
	Coordinates [][]float64 `json:"coordinates" validate:"required_without=Polyline,excluded_with=Polyline,omitempty,min=1,max=10000,dive,len=2"`
	Polyline    string      `json:"polyline" validate:"required_without=Coordinates,omitempty,max=100000"`
}

// Warning is one accessibility warning.
type Warning struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Note     string `json:"note,omitempty"`
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Distance int    `json:"distanceMeters"`
}

// Score is the accessibility verdict for one route.
type Score struct {
	Score      int       `json:"score"`
	Level      string    `json:"level"`
	Color      string    `json:"color"`
	Warnings   []Warning `json:"warnings"`
	HazardsHit []string  `json:"hazardsHit"`
}

// ScoreRouteResponse is the response for POST /v1/routes:score.
type ScoreRouteResponse struct {
	ProfileID string `json:"profileId"`
	Score
}

// ComputeRoutesRequest is the body of POST /v1/routes:compute.
type ComputeRoutesRequest struct {
	ProfileID       string `json:"profileId" validate:"required,max=64"`
	Origin          *Point `json:"origin" validate:"required"`
	Destination     *Point `json:"destination" validate:"required"`
	MaxAlternatives int    `json:"maxAlternatives" validate:"gte=0,lte=3"`
}

// RouteOption is one scored alternative.
type RouteOption struct {
	Rank            int    `json:"rank"`
	Summary         string `json:"summary,omitempty"`
	DistanceMeters  int    `json:"distanceMeters"`
	DurationSeconds int    `json:"durationSeconds"`
	Polyline        string `json:"polyline"`
	Accessibility   Score  `json:"accessibility"`
}

// ComputeRoutesResponse is the response for POST /v1/routes:compute.
type ComputeRoutesResponse struct {
	ProfileID   string        `json:"profileId"`
	Provider    string        `json:"provider"`
	GeneratedAt Timestamp     `json:"generatedAt"`
	Options     []RouteOption `json:"options"`
}

// ReportBarrierRequest is the body of POST /v1/barriers.
type ReportBarrierRequest struct {
	Location    *Point `json:"location" validate:"required"`
	Description string `json:"description" validate:"max=2000"`
}

// Barrier is a reported temporary barrier.
type Barrier struct {
	ID          string    `json:"id"`
	Location    Point     `json:"location"`
	ReportedAt  Timestamp `json:"reportedAt"`
	Description string    `json:"description,omitempty"`
}

// BarrierList is the response for GET /v1/barriers.
type BarrierList struct {
	Barriers []Barrier `json:"barriers"`
	Count    int       `json:"count"`
}

// ClearBarriersResponse is the response for DELETE /v1/barriers.
type ClearBarriersResponse struct {
	Cleared int `json:"cleared"`
}

// ProfileFrom converts a domain profile.
func ProfileFrom(p accessibility.Profile) Profile {
	penalties := make(map[string]map[string]int, len(p.Penalties))
	for t, bySeverity := range p.Penalties {
		row := make(map[string]int, len(bySeverity))
		for s, v := range bySeverity {
			row[string(s)] = v
		}
		penalties[string(t)] = row
	}
	return Profile{
		ID:          p.ID,
		Label:       p.Label,
		Description: p.Description,
		Penalties:   penalties,
	}
}

// HazardFrom converts a domain hazard.
func HazardFrom(h accessibility.Hazard) Hazard {
	affects := h.Affects
	if affects == nil {
		affects = []string{}
	}
	return Hazard{
		ID:       h.ID,
		Type:     string(h.Type),
		Label:    h.Label,
		Note:     h.Note,
		Location: PointFrom(h.Center),
		Radius:   h.Radius,
		Severity: string(h.Severity),
		Affects:  affects,
	}
}

// ScoreFrom converts a domain score result.
func ScoreFrom(r accessibility.ScoreResult) Score {
	warnings := make([]Warning, len(r.Warnings))
	for i, w := range r.Warnings {
		warnings[i] = Warning{
			ID:       w.ID,
			Text:     w.Text,
			Note:     w.Note,
			Type:     w.Type,
			Severity: string(w.Severity),
			Distance: w.Distance,
		}
	}
	hit := make([]string, len(r.HazardsHit))
	for i, h := range r.HazardsHit {
		hit[i] = h.ID
	}
	return Score{
		Score:      r.Score,
		Level:      string(r.Level),
		Color:      r.Color,
		Warnings:   warnings,
		HazardsHit: hit,
	}
}

// BarrierFrom converts a domain barrier.
func BarrierFrom(b accessibility.Barrier) Barrier {
	return Barrier{
		ID:          b.ID,
		Location:    PointFrom(b.Center),
		ReportedAt:  Timestamp(b.ReportedAt),
		Description: b.Description,
	}
}
