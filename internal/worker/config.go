// Package worker processes batch scoring jobs delivered over Pub/Sub.
package worker

import (
	"time"
)

// Job types carried in the job_type field.
const (
	JobScoreBatch  = "score_batch"
	JobHealthCheck = "health_check"
)

// BatchConfig holds configuration for batch scoring.
type BatchConfig struct {
	// Concurrency is the number of routes scored in parallel.
	// Default: 4
	Concurrency int

	// RouteTimeout bounds the scoring of a single route.
	// Default: 5 seconds
	RouteTimeout time.Duration

	// MaxRoutes caps the routes accepted in one batch.
	// Default: 1000
	MaxRoutes int

	// HealthProfileID is the profile scored by health checks.
	// Default: "step-free"
	HealthProfileID string
}

// DefaultBatchConfig returns the default batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Concurrency:     4,
		RouteTimeout:    5 * time.Second,
		MaxRoutes:       1000,
		HealthProfileID: "step-free",
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	d := DefaultBatchConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.RouteTimeout <= 0 {
		c.RouteTimeout = d.RouteTimeout
	}
	if c.MaxRoutes <= 0 {
		c.MaxRoutes = d.MaxRoutes
	}
	if c.HealthProfileID == "" {
		c.HealthProfileID = d.HealthProfileID
	}
	return c
}
