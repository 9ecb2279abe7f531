package catalogue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accessroute/accessroute/internal/accessibility"
)

// PostgresSource reads the catalogue from the hazards, profiles and
// profile_penalties tables.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a PostgreSQL-backed source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Name returns the source identifier.
func (s *PostgresSource) Name() string {
	return "postgres"
}

type penaltyRow struct {
	profileID  string
	hazardType string
	severity   string
	penalty    int
}

// Load reads hazards in position order and assembles profiles from their penalty rows.
func (s *PostgresSource) Load(ctx context.Context) (*accessibility.Catalogue, error) {
	hazards, err := s.loadHazards(ctx)
	if err != nil {
		return nil, fmt.Errorf("load hazards: %w", err)
	}

	profiles, err := s.loadProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	penalties, err := s.loadPenalties(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile penalties: %w", err)
	}

	return assemble(hazards, profiles, penalties)
}

func (s *PostgresSource) loadHazards(ctx context.Context) ([]accessibility.Hazard, error) {
	query := `
		SELECT id, type, label, COALESCE(note, ''), lon, lat, radius_m, severity, COALESCE(affects, '{}')
		FROM hazards
		ORDER BY position, id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hazards []accessibility.Hazard
	for rows.Next() {
		var (
			h        accessibility.Hazard
			hType    string
			severity string
		)
		err := rows.Scan(
			&h.ID,
			&hType,
			&h.Label,
			&h.Note,
			&h.Center.Lon,
			&h.Center.Lat,
			&h.Radius,
			&severity,
			&h.Affects,
		)
		if err != nil {
			return nil, err
		}
		h.Type = accessibility.HazardType(hType)
		h.Severity = accessibility.Severity(severity)
		hazards = append(hazards, h)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return hazards, nil
}

func (s *PostgresSource) loadProfiles(ctx context.Context) ([]accessibility.Profile, error) {
	query := `
		SELECT id, label, COALESCE(description, '')
		FROM profiles
		ORDER BY position, id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []accessibility.Profile
	for rows.Next() {
		var p accessibility.Profile
		if err := rows.Scan(&p.ID, &p.Label, &p.Description); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

func (s *PostgresSource) loadPenalties(ctx context.Context) ([]penaltyRow, error) {
	query := `
		SELECT profile_id, hazard_type, severity, penalty
		FROM profile_penalties
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []penaltyRow
	for rows.Next() {
		var r penaltyRow
		if err := rows.Scan(&r.profileID, &r.hazardType, &r.severity, &r.penalty); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// assemble attaches penalty rows to their profiles and builds the catalogue.
// With no profile rows the built-in profiles are used.
func assemble(hazards []accessibility.Hazard, profiles []accessibility.Profile, penalties []penaltyRow) (*accessibility.Catalogue, error) {
	if len(profiles) == 0 {
		return accessibility.NewCatalogue(hazards, accessibility.DefaultProfiles())
	}

	index := make(map[string]int, len(profiles))
	for i := range profiles {
		index[profiles[i].ID] = i
		profiles[i].Penalties = make(accessibility.Penalties)
	}

	for _, r := range penalties {
		i, ok := index[r.profileID]
		if !ok {
			return nil, fmt.Errorf("%w: penalty for unknown profile %q", accessibility.ErrInvalidCatalogue, r.profileID)
		}
		t := accessibility.HazardType(r.hazardType)
		if profiles[i].Penalties[t] == nil {
			profiles[i].Penalties[t] = make(map[accessibility.Severity]int)
		}
		profiles[i].Penalties[t][accessibility.Severity(r.severity)] = r.penalty
	}

	return accessibility.NewCatalogue(hazards, profiles)
}
