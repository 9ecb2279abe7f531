// Package catalogue loads the hazard catalogue and profile table at startup.
package catalogue

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/accessroute/accessroute/internal/accessibility"
	"github.com/accessroute/accessroute/pkg/geo"
)

// Source loads a catalogue.
type Source interface {
	Load(ctx context.Context) (*accessibility.Catalogue, error)
	// Name identifies the source in logs.
	Name() string
}

//go:embed default.yaml
var defaultDocument []byte

// document is the YAML layout of a catalogue file.
type document struct {
	Hazards  []hazardDoc  `yaml:"hazards"`
	Profiles []profileDoc `yaml:"profiles"`
}

type hazardDoc struct {
	ID       string   `yaml:"id"`
	Type     string   `yaml:"type"`
	Label    string   `yaml:"label"`
	Note     string   `yaml:"note"`
	Center   pointDoc `yaml:"center"`
	Radius   float64  `yaml:"radius"`
	Severity string   `yaml:"severity"`
	Affects  []string `yaml:"affects"`
}

type pointDoc struct {
	Lon float64 `yaml:"lon"`
	Lat float64 `yaml:"lat"`
}

type profileDoc struct {
	ID          string                    `yaml:"id"`
	Label       string                    `yaml:"label"`
	Description string                    `yaml:"description"`
	Penalties   map[string]map[string]int `yaml:"penalties"`
}

// Parse decodes a YAML catalogue document.
// When the document lists no profiles the built-in profiles are used.
// A document without hazards is valid; every route then scores 100.
func Parse(data []byte) (*accessibility.Catalogue, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}
	hazards := make([]accessibility.Hazard, 0, len(doc.Hazards))
	for _, h := range doc.Hazards {
		hazards = append(hazards, accessibility.Hazard{
			ID:       h.ID,
			Type:     accessibility.HazardType(h.Type),
			Label:    h.Label,
			Note:     h.Note,
			Center:   geo.Point{Lon: h.Center.Lon, Lat: h.Center.Lat},
			Radius:   h.Radius,
			Severity: accessibility.Severity(h.Severity),
			Affects:  h.Affects,
		})
	}

	profiles := accessibility.DefaultProfiles()
	if len(doc.Profiles) > 0 {
		profiles = make([]accessibility.Profile, 0, len(doc.Profiles))
		for _, p := range doc.Profiles {
			penalties := make(accessibility.Penalties, len(p.Penalties))
			for t, bySeverity := range p.Penalties {
				inner := make(map[accessibility.Severity]int, len(bySeverity))
				for s, v := range bySeverity {
					inner[accessibility.Severity(s)] = v
				}
				penalties[accessibility.HazardType(t)] = inner
			}
			profiles = append(profiles, accessibility.Profile{
				ID:          p.ID,
				Label:       p.Label,
				Description: p.Description,
				Penalties:   penalties,
			})
		}
	}

	return accessibility.NewCatalogue(hazards, profiles)
}

// FileSource reads a YAML catalogue from disk.
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads and parses the catalogue file.
func (s *FileSource) Load(_ context.Context) (*accessibility.Catalogue, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", s.Path, err)
	}
	return Parse(data)
}

// Name returns the source identifier.
func (s *FileSource) Name() string {
	return "file:" + s.Path
}

// EmbeddedSource serves the catalogue compiled into the binary.
type EmbeddedSource struct{}

// Load parses the embedded catalogue.
func (EmbeddedSource) Load(_ context.Context) (*accessibility.Catalogue, error) {
	return Parse(defaultDocument)
}

// Name returns the source identifier.
func (EmbeddedSource) Name() string {
	return "embedded"
}

// Ensure sources implement the Source interface.
var (
	_ Source = (*FileSource)(nil)
	_ Source = EmbeddedSource{}
	_ Source = (*PostgresSource)(nil)
)
