// Package featureflags provides runtime switches for scoring behaviour.
package featureflags

import (
	"errors"
	"fmt"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagSegmentSampling densifies routes before proximity matching so that
	// hazards between distant vertices are detected.
	FlagSegmentSampling = "segment_sampling_enabled"

	// FlagSegmentSampleInterval is the maximum spacing in meters between sampled points.
	FlagSegmentSampleInterval = "segment_sample_interval_m"

	// FlagBarrierReportsDisabled rejects new barrier reports.
	FlagBarrierReportsDisabled = "barrier_reports_disabled"
)

// Errors returned when validating flag updates.
var (
	ErrUnknownFlag      = errors.New("unknown feature flag")
	ErrInvalidFlagValue = errors.New("invalid feature flag value")
)

// Kind is the value type a flag accepts.
type Kind string

const (
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
)

// Definition describes a known flag.
type Definition struct {
	Key         string
	Kind        Kind
	Default     interface{}
	Description string
	// Min applies to number flags only.
	Min float64
}

// Definitions lists every flag the service understands.
var Definitions = []Definition{
	{
		Key:         FlagSegmentSampling,
		Kind:        KindBool,
		Default:     false,
		Description: "Match hazards against interpolated points along each segment, not only route vertices.",
	},
	{
		Key:         FlagSegmentSampleInterval,
		Kind:        KindNumber,
		Default:     10.0,
		Description: "Maximum spacing in meters between sampled points when segment sampling is on.",
		Min:         1,
	},
	{
		Key:         FlagBarrierReportsDisabled,
		Kind:        KindBool,
		Default:     false,
		Description: "Reject new barrier reports.",
	},
}

// Lookup returns the definition for key.
func Lookup(key string) (Definition, bool) {
	for _, d := range Definitions {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// Validate checks that value is acceptable for the flag key.
func Validate(key string, value interface{}) error {
	def, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlag, key)
	}

	switch def.Kind {
	case KindBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: %s expects a boolean", ErrInvalidFlagValue, key)
		}
	case KindNumber:
		n, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%w: %s expects a number", ErrInvalidFlagValue, key)
		}
		if n < def.Min {
			return fmt.Errorf("%w: %s must be at least %g", ErrInvalidFlagValue, key, def.Min)
		}
	}
	return nil
}

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (f *Flag) clone() *Flag {
	c := *f
	return &c
}

// FlagUpdate is a single flag change.
type FlagUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	default:
		return defaultValue
	}
}

// StringValue returns the flag value as a string.
func (f *Flag) StringValue(defaultValue string) string {
	if f == nil {
		return defaultValue
	}
	if v, ok := f.Value.(string); ok {
		return v
	}
	return defaultValue
}

// IntValue returns the flag value as an integer.
func (f *Flag) IntValue(defaultValue int) int {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// Float64Value returns the flag value as a float64.
func (f *Flag) Float64Value(defaultValue float64) float64 {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return defaultValue
	}
}

// DefaultFlags returns a flag per definition set to its default value.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	flags := make(map[string]*Flag, len(Definitions))
	for _, d := range Definitions {
		flags[d.Key] = &Flag{Key: d.Key, Value: d.Default, UpdatedAt: now}
	}
	return flags
}
