// Package accessibility scores pedestrian routes against a catalogue of physical
// hazards and user-reported barriers for a given mobility profile.
package accessibility

import (
	"errors"
	"slices"
	"time"

	"github.com/accessroute/accessroute/pkg/geo"
)

// Sentinel errors for scoring operations.
var (
	// ErrEmptyRoute indicates a route with no vertices was supplied.
	ErrEmptyRoute = errors.New("route must contain at least one coordinate")
	// ErrInvalidCatalogue indicates hazard or profile data failed validation.
	ErrInvalidCatalogue = errors.New("invalid catalogue")
)

// HazardType is the physical category of a hazard.
type HazardType string

const (
	HazardSteps   HazardType = "steps"
	HazardSteep   HazardType = "steep"
	HazardSurface HazardType = "surface"
	HazardNarrow  HazardType = "narrow"
	HazardKerb    HazardType = "kerb"
)

// HazardTypes lists every known hazard type in display order.
var HazardTypes = []HazardType{HazardSteps, HazardSteep, HazardSurface, HazardNarrow, HazardKerb}

// Valid reports whether t is a known hazard type.
func (t HazardType) Valid() bool {
	return slices.Contains(HazardTypes, t)
}

// Warning types that are not hazard types.
const (
	WarningTypeBarrier = "barrier"
	WarningTypeProfile = "profile"
)

// Severity is how much a hazard impedes passage.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Severities lists every known severity from most to least severe.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return slices.Contains(Severities, s)
}

// Rank is the sort key for warnings: high=0, medium=1, anything else=2.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// Level is the qualitative classification of a score.
type Level string

const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelUnknown Level = "unknown"
)

// Display colours, one per level.
const (
	ColorGreen  = "#2e7d32"
	ColorOrange = "#ef6c00"
	ColorRed    = "#c62828"
	ColorGrey   = "#9e9e9e"
)

// Hazard is a catalogued, fixed-location accessibility obstacle.
type Hazard struct {
	ID       string     `json:"id"`
	Type     HazardType `json:"type"`
	Label    string     `json:"label"`
	Note     string     `json:"note"`
	Center   geo.Point  `json:"center"`
	Radius   float64    `json:"radius"` // meters
	Severity Severity   `json:"severity"`
	// Affects lists the profiles this hazard is relevant to. Display only;
	// scoring is gated by the profile penalty table.
	Affects []string `json:"affects"`
}

func (h Hazard) clone() Hazard {
	h.Affects = slices.Clone(h.Affects)
	return h
}

// Barrier is an ad-hoc obstruction reported by a user.
type Barrier struct {
	ID          string    `json:"id"`
	Center      geo.Point `json:"center"`
	ReportedAt  time.Time `json:"reportedAt"`
	Description string    `json:"description,omitempty"`
}

// Penalties maps hazard type then severity to a point deduction.
type Penalties map[HazardType]map[Severity]int

func (p Penalties) clone() Penalties {
	if p == nil {
		return nil
	}
	out := make(Penalties, len(p))
	for t, bySeverity := range p {
		inner := make(map[Severity]int, len(bySeverity))
		for s, v := range bySeverity {
			inner[s] = v
		}
		out[t] = inner
	}
	return out
}

// Profile is a named accessibility persona.
type Profile struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Penalties   Penalties `json:"penalties"`
}

func (p Profile) clone() Profile {
	p.Penalties = p.Penalties.clone()
	return p
}

// Warning is a human-readable notice for one triggered hazard or barrier.
type Warning struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Note     string   `json:"note"`
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Distance int      `json:"distance"` // meters, rounded
}

// ScoreResult is the outcome of scoring one route.
// A negative Score means the profile was not recognised.
type ScoreResult struct {
	Score      int       `json:"score"`
	Level      Level     `json:"level"`
	Color      string    `json:"color"`
	Warnings   []Warning `json:"warnings"`
	HazardsHit []Hazard  `json:"hazardsHit"`
}

// IsUnknownProfile reports whether r is the unknown-profile sentinel.
func (r ScoreResult) IsUnknownProfile() bool {
	return r.Score < 0
}
