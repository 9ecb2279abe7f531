package accessibility

// Barriers are scored uniformly regardless of the active profile.
const (
	BarrierPenalty      = 15
	BarrierRadiusMeters = 20.0
)

// PenaltyFor returns the points profile p deducts for a hazard of type t and severity s.
// A missing entry means the profile does not penalise that hazard and yields 0.
func PenaltyFor(p Profile, t HazardType, s Severity) int {
	return p.Penalties[t][s]
}
