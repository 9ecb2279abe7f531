// Package barrier keeps the process-wide list of user-reported barriers.
// Reports live in memory until cleared and are not persisted.
package barrier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/accessroute/accessroute/internal/accessibility"
	"github.com/accessroute/accessroute/pkg/geo"
)

// MaxDescriptionLength is the maximum description length in runes.
const MaxDescriptionLength = 280

// Sentinel errors for barrier operations.
var (
	// ErrInvalidLocation indicates the reported point is out of range.
	ErrInvalidLocation = errors.New("invalid barrier location")
	// ErrStoreFull indicates the store has reached its capacity.
	ErrStoreFull = errors.New("barrier store is full")
)

// StoreConfig holds configuration for the barrier store.
type StoreConfig struct {
	Logger zerolog.Logger

	// MaxBarriers caps the number of stored reports (default: 10000).
	MaxBarriers int

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Store is an append-until-cleared list of barriers, safe for concurrent use.
type Store struct {
	logger      zerolog.Logger
	maxBarriers int
	now         func() time.Time

	mu       sync.RWMutex
	barriers []accessibility.Barrier
	lastAt   time.Time
}

// NewStore creates an empty barrier store.
func NewStore(cfg StoreConfig) *Store {
	maxBarriers := cfg.MaxBarriers
	if maxBarriers == 0 {
		maxBarriers = 10000
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		logger:      cfg.Logger,
		maxBarriers: maxBarriers,
		now:         now,
	}
}

// Report records a barrier at point with an optional description.
// Descriptions are trimmed and truncated to MaxDescriptionLength runes.
// Reports landing in the same millisecond are spaced 1ms apart so that
// warning ids derived from ReportedAt stay unique.
func (s *Store) Report(_ context.Context, point geo.Point, description string) (accessibility.Barrier, error) {
	if err := geo.Validate(point); err != nil {
		return accessibility.Barrier{}, fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}

	description = truncate(strings.TrimSpace(description), MaxDescriptionLength)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.barriers) >= s.maxBarriers {
		return accessibility.Barrier{}, ErrStoreFull
	}

	reportedAt := s.now().UTC().Truncate(time.Millisecond)
	if !reportedAt.After(s.lastAt) {
		reportedAt = s.lastAt.Add(time.Millisecond)
	}
	s.lastAt = reportedAt

	b := accessibility.Barrier{
		ID:          uuid.NewString(),
		Center:      point,
		ReportedAt:  reportedAt,
		Description: description,
	}
	s.barriers = append(s.barriers, b)

	s.logger.Info().
		Str("barrier_id", b.ID).
		Float64("lat", point.Lat).
		Float64("lon", point.Lon).
		Int("total", len(s.barriers)).
		Msg("barrier reported")

	return b, nil
}

// Snapshot returns a copy of the current barriers in report order.
func (s *Store) Snapshot() []accessibility.Barrier {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]accessibility.Barrier, len(s.barriers))
	copy(out, s.barriers)
	return out
}

// Get returns the barrier with the given id.
func (s *Store) Get(id string) (accessibility.Barrier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.barriers {
		if b.ID == id {
			return b, true
		}
	}
	return accessibility.Barrier{}, false
}

// Clear removes every barrier and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.barriers)
	s.barriers = nil

	s.logger.Info().Int("cleared", n).Msg("barriers cleared")
	return n
}

// Count returns the number of stored barriers.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.barriers)
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxRunes]))
}
