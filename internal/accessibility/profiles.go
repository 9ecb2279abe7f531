package accessibility

// Built-in profile ids.
const (
	ProfileStepFree       = "step-free"
	ProfileGentleGradient = "gentle-gradient"
	ProfileLowEnergy      = "low-energy"
)

// DefaultProfiles returns the built-in profiles. Each call returns fresh values.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			ID:          ProfileStepFree,
			Label:       "Step-free",
			Description: "Wheelchair users and anyone who cannot use steps or high kerbs.",
			Penalties: Penalties{
				HazardSteps:   tiers(50, 35, 20),
				HazardKerb:    tiers(30, 20, 10),
				HazardNarrow:  tiers(25, 15, 5),
				HazardSteep:   tiers(20, 10, 5),
				HazardSurface: tiers(15, 10, 5),
			},
		},
		{
			ID:          ProfileGentleGradient,
			Label:       "Gentle gradient",
			Description: "Avoids steep slopes. Suits walking aids and pushchairs.",
			Penalties: Penalties{
				HazardSteep:   tiers(40, 25, 10),
				HazardSteps:   tiers(20, 10, 5),
				HazardSurface: tiers(10, 5, 0),
			},
		},
		{
			ID:          ProfileLowEnergy,
			Label:       "Low energy",
			Description: "Limits effort for people with fatigue or breathing conditions.",
			Penalties: Penalties{
				HazardSteps:   tiers(25, 15, 5),
				HazardSteep:   tiers(25, 15, 5),
				HazardSurface: tiers(15, 10, 5),
				HazardNarrow:  tiers(5, 0, 0),
			},
		},
	}
}

func tiers(high, medium, low int) map[Severity]int {
	return map[Severity]int{
		SeverityHigh:   high,
		SeverityMedium: medium,
		SeverityLow:    low,
	}
}
