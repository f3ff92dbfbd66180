// Package processor defines the boundary to the per-unit transformation
// logic. The orchestrator never inspects how a unit is processed; it only
// consumes the Result.
package processor

import (
	"context"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

// Result is what a processor reports for one unit
type Result struct {
	Success  bool
	Errors   []string
	Warnings []string
	Metadata *models.RecordMetadata
	Payload  *models.Payload
}

// UnitProcessor transforms a single unit. Implementations enforce
// cfg.UnitTimeout themselves. A returned error and a Result with
// Success=false are treated the same way by the engine.
type UnitProcessor interface {
	Process(ctx context.Context, unit models.MigrationUnit, cfg models.RunConfig) (Result, error)
}

// Func adapts an ordinary function to UnitProcessor
type Func func(ctx context.Context, unit models.MigrationUnit, cfg models.RunConfig) (Result, error)

// Process calls f
func (f Func) Process(ctx context.Context, unit models.MigrationUnit, cfg models.RunConfig) (Result, error) {
	return f(ctx, unit, cfg)
}
