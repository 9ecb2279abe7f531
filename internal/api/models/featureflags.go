package models

// FeatureFlag is a flag with its definition.
type FeatureFlag struct {
	Key         string    `json:"key"`
	Kind        string    `json:"kind"`
	Value       any       `json:"value"`
	Default     any       `json:"default"`
	Description string    `json:"description"`
	UpdatedAt   Timestamp `json:"updatedAt"`
}

// FeatureFlagList is the response for GET /v1/admin/feature-flags.
type FeatureFlagList struct {
	Flags []FeatureFlag `json:"flags"`
}

// FeatureFlagUpdate sets one flag.
type FeatureFlagUpdate struct {
	Key   string `json:"key" validate:"required,max=64"`
	Value any    `json:"value"`
}

// UpdateFeatureFlagsRequest is the body of PUT /v1/admin/feature-flags.
type UpdateFeatureFlagsRequest struct {
	Flags []FeatureFlagUpdate `json:"flags" validate:"required,min=1,max=20,dive"`
}
