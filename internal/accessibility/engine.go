package accessibility

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/accessroute/accessroute/pkg/geo"
)

const barrierFallbackNote = "No details provided"

// ScoreRoute scores route for profileID against hazards and barriers.
//
// An unknown profile yields the sentinel result (score -1, level unknown) with a nil
// error. An empty route for a known profile yields ErrEmptyRoute. Inputs are only read.
func ScoreRoute(
	route []geo.Point,
	profileID string,
	hazards []Hazard,
	barriers []Barrier,
	profiles map[string]Profile,
) (ScoreResult, error) {
	profile, ok := profiles[profileID]
	if !ok {
		return unknownProfileResult(profileID), nil
	}
	if len(route) == 0 {
		return ScoreResult{}, ErrEmptyRoute
	}

	score := 100
	warnings := make([]Warning, 0)
	hit := make([]Hazard, 0)

	for _, h := range hazards {
		prox, err := PassesNear(route, h.Center, h.Radius)
		if err != nil {
			return ScoreResult{}, err
		}
		if !prox.Hit {
			continue
		}

		penalty := PenaltyFor(profile, h.Type, h.Severity)
		if penalty <= 0 {
			continue
		}

		score -= penalty
		hit = append(hit, h.clone())
		warnings = append(warnings, Warning{
			ID:       h.ID,
			Text:     h.Label,
			Note:     h.Note,
			Type:     string(h.Type),
			Severity: h.Severity,
			Distance: roundMeters(prox.Distance),
		})
	}

	for _, b := range barriers {
		prox, err := PassesNear(route, b.Center, BarrierRadiusMeters)
		if err != nil {
			return ScoreResult{}, err
		}
		if !prox.Hit {
			continue
		}

		score -= BarrierPenalty
		note := b.Description
		if note == "" {
			note = barrierFallbackNote
		}
		warnings = append(warnings, Warning{
			ID:       "barrier-" + strconv.FormatInt(b.ReportedAt.UnixMilli(), 10),
			Text:     "Reported barrier",
			Note:     note,
			Type:     WarningTypeBarrier,
			Severity: SeverityMedium,
			Distance: roundMeters(prox.Distance),
		})
	}

	score = min(max(score, 0), 100)
	level, color := Classify(score)

	slices.SortStableFunc(warnings, func(a, b Warning) int {
		return cmp.Compare(a.Severity.Rank(), b.Severity.Rank())
	})

	return ScoreResult{
		Score:      score,
		Level:      level,
		Color:      color,
		Warnings:   warnings,
		HazardsHit: hit,
	}, nil
}

// Classify maps a clamped score to its level and display colour.
func Classify(score int) (Level, string) {
	switch {
	case score >= 80:
		return LevelHigh, ColorGreen
	case score >= 50:
		return LevelMedium, ColorOrange
	default:
		return LevelLow, ColorRed
	}
}

func unknownProfileResult(profileID string) ScoreResult {
	return ScoreResult{
		Score: -1,
		Level: LevelUnknown,
		Color: ColorGrey,
		Warnings: []Warning{{
			ID:       "unknown-profile",
			Text:     fmt.Sprintf("Unknown profile %q", profileID),
			Note:     "Choose one of the configured accessibility profiles.",
			Type:     WarningTypeProfile,
			Severity: SeverityLow,
		}},
		HazardsHit: []Hazard{},
	}
}

func roundMeters(d float64) int {
	return int(math.Round(d))
}

// Engine scores routes against a fixed catalogue.
// It is safe for concurrent use.
type Engine struct {
	catalogue *Catalogue
}

// NewEngine creates an engine bound to c.
func NewEngine(c *Catalogue) *Engine {
	return &Engine{catalogue: c}
}

// Score scores route for profileID against the engine's catalogue and the given barriers.
func (e *Engine) Score(route []geo.Point, profileID string, barriers []Barrier) (ScoreResult, error) {
	return ScoreRoute(route, profileID, e.catalogue.hazards, barriers, e.catalogue.profiles)
}

// Catalogue returns the catalogue the engine scores against.
func (e *Engine) Catalogue() *Catalogue {
	return e.catalogue
}
