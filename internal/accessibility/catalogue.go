package accessibility

import (
	"fmt"

	"github.com/accessroute/accessroute/pkg/geo"
)

// Catalogue is an immutable set of hazards and profiles.
// Build it once at startup with NewCatalogue and share it freely.
type Catalogue struct {
	hazards      []Hazard
	profiles     map[string]Profile
	profileOrder []string
}

// NewCatalogue validates hazards and profiles and returns a catalogue holding copies of them.
// Hazard order is preserved and is the order in which hazards are scored.
func NewCatalogue(hazards []Hazard, profiles []Profile) (*Catalogue, error) {
	c := &Catalogue{
		hazards:      make([]Hazard, 0, len(hazards)),
		profiles:     make(map[string]Profile, len(profiles)),
		profileOrder: make([]string, 0, len(profiles)),
	}

	seen := make(map[string]struct{}, len(hazards))
	for i, h := range hazards {
		if err := validateHazard(h); err != nil {
			return nil, fmt.Errorf("%w: hazard %d: %w", ErrInvalidCatalogue, i, err)
		}
		if _, dup := seen[h.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate hazard id %q", ErrInvalidCatalogue, h.ID)
		}
		seen[h.ID] = struct{}{}
		c.hazards = append(c.hazards, h.clone())
	}

	for _, p := range profiles {
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("%w: profile %q: %w", ErrInvalidCatalogue, p.ID, err)
		}
		if _, dup := c.profiles[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate profile id %q", ErrInvalidCatalogue, p.ID)
		}
		c.profiles[p.ID] = p.clone()
		c.profileOrder = append(c.profileOrder, p.ID)
	}

	return c, nil
}

func validateHazard(h Hazard) error {
	if h.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !h.Type.Valid() {
		return fmt.Errorf("%s: unknown type %q", h.ID, h.Type)
	}
	if !h.Severity.Valid() {
		return fmt.Errorf("%s: unknown severity %q", h.ID, h.Severity)
	}
	if !(h.Radius > 0) {
		return fmt.Errorf("%s: radius must be positive", h.ID)
	}
	if err := geo.Validate(h.Center); err != nil {
		return fmt.Errorf("%s: center: %w", h.ID, err)
	}
	return nil
}

func validateProfile(p Profile) error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	for t, bySeverity := range p.Penalties {
		if !t.Valid() {
			return fmt.Errorf("unknown hazard type %q", t)
		}
		for s, v := range bySeverity {
			if !s.Valid() {
				return fmt.Errorf("%s: unknown severity %q", t, s)
			}
			if v < 0 {
				return fmt.Errorf("%s/%s: penalty must not be negative", t, s)
			}
		}
	}
	return nil
}

// Hazards returns a copy of the hazards in catalogue order.
func (c *Catalogue) Hazards() []Hazard {
	out := make([]Hazard, len(c.hazards))
	for i, h := range c.hazards {
		out[i] = h.clone()
	}
	return out
}

// Profiles returns a copy of the profiles in the order they were supplied.
func (c *Catalogue) Profiles() []Profile {
	out := make([]Profile, 0, len(c.profileOrder))
	for _, id := range c.profileOrder {
		out = append(out, c.profiles[id].clone())
	}
	return out
}

// Profile looks up a profile by id.
func (c *Catalogue) Profile(id string) (Profile, bool) {
	p, ok := c.profiles[id]
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

// ProfileTable returns a copy of the profiles keyed by id, the shape ScoreRoute takes.
func (c *Catalogue) ProfileTable() map[string]Profile {
	out := make(map[string]Profile, len(c.profiles))
	for id, p := range c.profiles {
		out[id] = p.clone()
	}
	return out
}

// HazardCount returns the number of hazards in the catalogue.
func (c *Catalogue) HazardCount() int {
	return len(c.hazards)
}
