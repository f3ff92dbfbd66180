package validator

import (
	"fmt"
	"regexp"

	"github.com/akrishnanDG/unit-orchestrator/internal/graph"
	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

var unitIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Issue is a single finding about a unit
type Issue struct {
	UnitID  string
	Message string
}

func (i Issue) String() string {
	if i.UnitID == "" {
		return i.Message
	}
	return i.UnitID + ": " + i.Message
}

// ValidationResult contains the results of validation
type ValidationResult struct {
	Errors   []Issue
	Warnings []Issue
}

// HasErrors returns true if there are validation errors
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are validation warnings
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err summarizes the errors, or returns nil when there are none
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return fmt.Errorf("unit validation failed with %d errors", len(r.Errors))
}

// Validator checks unit descriptors before they are resolved
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// ValidateAll validates all units. Errors block a run, warnings do not.
func (v *Validator) ValidateAll(units []models.MigrationUnit) *ValidationResult {
	result := &ValidationResult{}

	ids := make(map[string]int, len(units))
	for _, unit := range units {
		if unit.ID != "" {
			ids[unit.ID]++
		}
	}

	reported := make(map[string]bool)
	for _, unit := range units {
		if ids[unit.ID] > 1 && !reported[unit.ID] {
			reported[unit.ID] = true
			result.Errors = append(result.Errors, Issue{
				UnitID:  unit.ID,
				Message: fmt.Sprintf("duplicate unit id (%d occurrences)", ids[unit.ID]),
			})
		}

		errs, warns := v.ValidateUnit(unit, ids)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}

	return result
}

// ValidateUnit validates a single unit against the set of known ids
func (v *Validator) ValidateUnit(unit models.MigrationUnit, known map[string]int) ([]Issue, []Issue) {
	var errors []Issue
	var warnings []Issue

	if err := validateUnitID(unit.ID); err != nil {
		errors = append(errors, Issue{UnitID: unit.ID, Message: err.Error()})
	}

	if unit.Name == "" {
		warnings = append(warnings, Issue{UnitID: unit.ID, Message: "unit has no name, id will be displayed"})
	}

	if unit.Complexity != "" && !unit.Complexity.Known() {
		warnings = append(warnings, Issue{
			UnitID:  unit.ID,
			Message: fmt.Sprintf("unknown complexity %q (expected low, medium or high)", unit.Complexity),
		})
	}

	seen := make(map[string]bool)
	for i, dep := range unit.Dependencies {
		if !dep.Kind.Valid() {
			errors = append(errors, Issue{
				UnitID:  unit.ID,
				Message: fmt.Sprintf("dependency %d has unknown kind %q", i, dep.Kind),
			})
			continue
		}
		if dep.Name == "" && dep.ImportPath == "" {
			errors = append(errors, Issue{
				UnitID:  unit.ID,
				Message: fmt.Sprintf("dependency %d has neither name nor import path", i),
			})
			continue
		}
		if !dep.Kind.CreatesEdge() {
			continue
		}

		target := graph.ReferenceTarget(dep)
		switch {
		case target == unit.ID:
			warnings = append(warnings, Issue{UnitID: unit.ID, Message: "unit depends on itself"})
		case known[target] == 0:
			warnings = append(warnings, Issue{
				UnitID:  unit.ID,
				Message: fmt.Sprintf("dependency %q does not match any unit and will be ignored", target),
			})
		case seen[target]:
			warnings = append(warnings, Issue{
				UnitID:  unit.ID,
				Message: fmt.Sprintf("dependency %q is declared more than once", target),
			})
		}
		seen[target] = true
	}

	return errors, warnings
}

func validateUnitID(id string) error {
	if id == "" {
		return &ValidationError{Message: "unit id cannot be empty"}
	}

	if len(id) > 255 {
		return &ValidationError{Message: "unit id exceeds maximum length of 255 characters"}
	}

	// Ids are matched against the last segment of import paths, so a
	// separator would make the unit unreachable
	if !unitIDPattern.MatchString(id) {
		return &ValidationError{Message: "unit id contains invalid characters (only alphanumeric, dots, underscores, and hyphens allowed)"}
	}

	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
