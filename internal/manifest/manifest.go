// Package manifest loads unit descriptors from YAML or JSON files.
package manifest

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

// Manifest is the document form of a unit list
type Manifest struct {
	Units []models.MigrationUnit `yaml:"units" json:"units"`
}

// Load reads units from path. Both a top-level "units" key and a bare list
// are accepted. JSON manifests are read by the same decoder.
func Load(path string) ([]models.MigrationUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	units, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	slog.Debug("Loaded manifest", "path", path, "units", len(units))
	return units, nil
}

// Parse decodes a manifest document
func Parse(data []byte) ([]models.MigrationUnit, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var units []models.MigrationUnit
		if err := root.Decode(&units); err != nil {
			return nil, err
		}
		return units, nil
	case yaml.MappingNode:
		var m Manifest
		if err := root.Decode(&m); err != nil {
			return nil, err
		}
		return m.Units, nil
	default:
		return nil, fmt.Errorf("expected a list of units or a \"units\" key")
	}
}

// Filter restricts which units take part in a run. Empty fields match
// everything.
type Filter struct {
	Tiers        []string
	Complexities []string
}

// Apply returns the units matching f in their original order. References
// to units that were filtered out become unresolvable and are ignored by
// dependency resolution.
func (f Filter) Apply(units []models.MigrationUnit) []models.MigrationUnit {
	if len(f.Tiers) == 0 && len(f.Complexities) == 0 {
		return units
	}

	tiers := toSet(f.Tiers)
	complexities := toSet(f.Complexities)

	var out []models.MigrationUnit
	for _, u := range units {
		if len(tiers) > 0 && !tiers[u.Tier] {
			continue
		}
		if len(complexities) > 0 && !complexities[string(u.Complexity)] {
			continue
		}
		out = append(out, u)
	}

	if dropped := len(units) - len(out); dropped > 0 {
		slog.Info("Filtered units", "kept", len(out), "dropped", dropped)
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
