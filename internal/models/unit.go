package models

// DependencyKind classifies how a unit refers to another piece of code
type DependencyKind string

const (
	DependencyInternal  DependencyKind = "internal"
	DependencyComponent DependencyKind = "component"
	DependencyExternal  DependencyKind = "external"
)

// Valid reports whether k is one of the known dependency kinds
func (k DependencyKind) Valid() bool {
	switch k {
	case DependencyInternal, DependencyComponent, DependencyExternal:
		return true
	}
	return false
}

// CreatesEdge reports whether a dependency of this kind orders units.
// External references never take part in the graph.
func (k DependencyKind) CreatesEdge() bool {
	return k == DependencyInternal || k == DependencyComponent
}

// Complexity represents the complexity classification of a unit
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Known reports whether c is one of the standard complexity classes
func (c Complexity) Known() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// Dependency is a reference declared by a unit
type Dependency struct {
	Name       string         `json:"name" yaml:"name"`
	Kind       DependencyKind `json:"kind" yaml:"kind"`
	ImportPath string         `json:"import_path,omitempty" yaml:"import_path,omitempty"`
}

// MigrationUnit is one independently trackable item of work.
// Units are produced by discovery and treated as immutable afterwards.
type MigrationUnit struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Complexity   Complexity   `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	Tier         string       `json:"tier,omitempty" yaml:"tier,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// DisplayName returns the unit name, falling back to its ID
func (u MigrationUnit) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// UnitIDs returns the identifiers of units in order
func UnitIDs(units []MigrationUnit) []string {
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return ids
}
