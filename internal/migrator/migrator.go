package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/akrishnanDG/unit-orchestrator/internal/graph"
	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"github.com/akrishnanDG/unit-orchestrator/internal/report"
	"github.com/akrishnanDG/unit-orchestrator/internal/session"
)

// Result represents the result of a full run
type Result struct {
	SessionID  string
	Resolution *graph.Resolution
	Batch      *models.BatchResult
	Summary    models.SessionSummary
	Reports    []report.Result
}

// Succeeded reports whether every unit completed and no run was aborted
func (r *Result) Succeeded() bool {
	return r != nil && r.Batch != nil && r.Batch.Succeeded()
}

// Migrator ties resolution, execution, tracking and reporting together
type Migrator struct {
	tracker *session.Tracker
	engine  *Engine
}

// New creates a new Migrator
func New(tracker *session.Tracker, engine *Engine) *Migrator {
	return &Migrator{
		tracker: tracker,
		engine:  engine,
	}
}

// Run resolves units, executes them inside a new session and closes the
// session. A cycle stops the run before a session is opened. An abort
// still closes the session so reports cover the partial run.
func (m *Migrator) Run(ctx context.Context, units []models.MigrationUnit, cfg models.RunConfig) (*Result, error) {
	resolution := graph.Resolve(units)
	result := &Result{Resolution: resolution}
	if !resolution.Success {
		for _, msg := range resolution.Errors {
			slog.Error("Dependency resolution failed", "detail", msg)
		}
		return result, resolution.Err()
	}
	for _, msg := range resolution.Errors {
		slog.Warn("Dependency resolution warning", "detail", msg)
	}
	slog.Info("Resolved processing order", "units", len(resolution.Ordered), "levels", len(resolution.Levels()))

	sessionID, err := m.tracker.StartSession(cfg)
	if err != nil {
		return result, fmt.Errorf("failed to start session: %w", err)
	}
	result.SessionID = sessionID

	batch, runErr := m.engine.Migrate(ctx, resolution.Ordered, OptionsFrom(cfg, m.tracker.For(sessionID)))
	result.Batch = batch

	// Reports are written even when the caller's context was cancelled
	reports, err := m.tracker.EndSession(context.WithoutCancel(ctx), sessionID)
	if err != nil {
		return result, errors.Join(runErr, fmt.Errorf("failed to end session: %w", err))
	}
	result.Reports = reports

	if summary, err := m.tracker.Summary(sessionID); err == nil {
		result.Summary = summary
	}

	return result, runErr
}
