package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/akrishnanDG/unit-orchestrator/internal/graph"
	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"github.com/akrishnanDG/unit-orchestrator/internal/processor"
	"github.com/akrishnanDG/unit-orchestrator/internal/worker"
)

// DryRunNote is attached to every unit recorded during a dry run
const DryRunNote = "dry run: processing skipped"

// Recorder receives every state transition of a run. *session.Handle
// implements it.
type Recorder interface {
	StartMigration(unit models.MigrationUnit) (string, error)
	UpdateStatus(unitID string, status models.Status) error
	RecordError(unitID string, err error) error
	RecordWarning(unitID, warning string) error
	SetMetadata(unitID string, md models.RecordMetadata) error
	SetPayload(unitID string, p models.Payload) error
}

// Observer is notified as batches run. Implementations must be safe for
// concurrent use.
type Observer interface {
	BatchStarted(batch, size int)
	UnitSettled(unit models.MigrationUnit, status models.Status, elapsed time.Duration)
	UnitSkipped(unit models.MigrationUnit)
}

// ProgressFunc is called once per unit outcome, including skipped units
type ProgressFunc func(outcome models.UnitOutcome)

// Options controls a single Migrate call
type Options struct {
	ConcurrencyLimit int
	ContinueOnError  bool
	DryRun           bool
	Scheduling       models.Scheduling

	// Config is handed to the processor for every unit
	Config models.RunConfig

	// Recorder may be nil, in which case no tracking happens
	Recorder Recorder
}

// OptionsFrom derives engine options from a session configuration
func OptionsFrom(cfg models.RunConfig, rec Recorder) Options {
	return Options{
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		ContinueOnError:  cfg.ContinueOnError,
		DryRun:           cfg.DryRun,
		Scheduling:       cfg.Scheduling,
		Config:           cfg,
		Recorder:         rec,
	}
}

// Engine drives units through a processor in barrier-separated batches
type Engine struct {
	processor     processor.UnitProcessor
	observer      Observer
	progress      ProgressFunc
	limiter       *worker.Limiter
	retryAttempts int
	retryDelay    time.Duration
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithObserver registers an observer for batch and unit events
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithProgress registers a per-outcome callback
func WithProgress(fn ProgressFunc) EngineOption {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithLimiter throttles processor invocations
func WithLimiter(l *worker.Limiter) EngineOption {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithRetry retries a failing processor call before the unit is failed
func WithRetry(attempts int, delay time.Duration) EngineOption {
	return func(e *Engine) {
		e.retryAttempts = attempts
		e.retryDelay = delay
	}
}

// NewEngine creates an engine around p
func NewEngine(p processor.UnitProcessor, opts ...EngineOption) *Engine {
	e := &Engine{processor: p}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Migrate processes units in order. With fixed scheduling the units are cut
// into consecutive chunks of the concurrency limit; with wavefront
// scheduling a unit only starts once its dependencies have completed.
//
// When a unit fails and ContinueOnError is false, the current batch is
// still awaited, no further batch is started, and the partial result is
// returned together with an *AbortError.
func (e *Engine) Migrate(ctx context.Context, units []models.MigrationUnit, opts Options) (*models.BatchResult, error) {
	if opts.ConcurrencyLimit < 1 {
		opts.ConcurrencyLimit = 1
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	pool := worker.NewPool(opts.ConcurrencyLimit,
		worker.WithRetry(e.retryAttempts, e.retryDelay),
		worker.WithLimiter(e.limiter),
	)

	slog.Info("Starting migration",
		"units", len(units),
		"concurrency", opts.ConcurrencyLimit,
		"scheduling", opts.Scheduling,
		"continue_on_error", opts.ContinueOnError,
		"dry_run", opts.DryRun,
	)

	if opts.Scheduling == models.SchedulingWavefront {
		return e.migrateWavefront(ctx, pool, units, opts)
	}
	return e.migrateFixed(ctx, pool, units, opts)
}

func (e *Engine) migrateFixed(ctx context.Context, pool *worker.Pool, units []models.MigrationUnit, opts Options) (*models.BatchResult, error) {
	result := &models.BatchResult{}
	limit := opts.ConcurrencyLimit

	for start, batch := 0, 1; start < len(units); start, batch = start+limit, batch+1 {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("migration interrupted before batch %d: %w", batch, err)
		}

		end := start + limit
		if end > len(units) {
			end = len(units)
		}

		if abort := e.runBatch(ctx, pool, batch, units[start:end], opts, result); abort != nil {
			return result, abort
		}
	}

	return result, nil
}

func (e *Engine) migrateWavefront(ctx context.Context, pool *worker.Pool, units []models.MigrationUnit, opts Options) (*models.BatchResult, error) {
	result := &models.BatchResult{}
	edges := graph.Edges(units)
	status := make(map[string]models.Status, len(units))
	pending := units

	for batch := 1; len(pending) > 0; batch++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("migration interrupted before batch %d: %w", batch, err)
		}

		var ready, waiting []models.MigrationUnit
		for _, unit := range pending {
			switch dependencyState(edges[unit.ID], status) {
			case depsBlocked:
				status[unit.ID] = models.StatusSkipped
				e.skip(unit, batch, result)
			case depsReady:
				if len(ready) < opts.ConcurrencyLimit {
					ready = append(ready, unit)
					continue
				}
				waiting = append(waiting, unit)
			default:
				waiting = append(waiting, unit)
			}
		}

		if len(ready) == 0 {
			if len(waiting) == 0 {
				break
			}
			// Only possible when the input was not topologically resolvable
			for _, unit := range waiting {
				e.skip(unit, batch, result)
			}
			return result, fmt.Errorf("%d units have dependencies that can never complete", len(waiting))
		}

		abort := e.runBatch(ctx, pool, batch, ready, opts, result)
		for _, o := range result.Outcomes[len(result.Outcomes)-len(ready):] {
			status[o.UnitID] = o.Status
		}
		if abort != nil {
			return result, abort
		}
		pending = waiting
	}

	return result, nil
}

type depState int

const (
	depsReady depState = iota
	depsWaiting
	depsBlocked
)

func dependencyState(deps []string, status map[string]models.Status) depState {
	state := depsReady
	for _, dep := range deps {
		switch status[dep] {
		case models.StatusCompleted:
		case models.StatusFailed, models.StatusSkipped:
			return depsBlocked
		default:
			state = depsWaiting
		}
	}
	return state
}

func (e *Engine) skip(unit models.MigrationUnit, batch int, result *models.BatchResult) {
	o := models.UnitOutcome{
		UnitID:   unit.ID,
		UnitName: unit.DisplayName(),
		Status:   models.StatusSkipped,
		Error:    "dependency did not complete",
		Batch:    batch,
	}
	result.Add(o)
	slog.Warn("Skipping unit", "unit", unit.ID, "reason", o.Error)
	if e.observer != nil {
		e.observer.UnitSkipped(unit)
	}
	if e.progress != nil {
		e.progress(o)
	}
}

// runBatch dispatches one batch, waits for every unit to settle and
// appends the outcomes in batch order. It returns an *AbortError when the
// batch had a failure and the run must stop.
func (e *Engine) runBatch(ctx context.Context, pool *worker.Pool, batch int, units []models.MigrationUnit, opts Options, result *models.BatchResult) error {
	result.Batches = batch
	slog.Debug("Dispatching batch", "batch", batch, "size", len(units))
	if e.observer != nil {
		e.observer.BatchStarted(batch, len(units))
	}

	var mu sync.Mutex
	started := make(map[string]time.Time, len(units))
	results := make(map[string]processor.Result, len(units))
	startErrs := make(map[string]error)

	var dispatch []models.MigrationUnit
	for _, unit := range units {
		if _, err := opts.Recorder.StartMigration(unit); err != nil {
			startErrs[unit.ID] = err
			continue
		}
		started[unit.ID] = time.Now()
		dispatch = append(dispatch, unit)
	}

	work := func(ctx context.Context, unit models.MigrationUnit) error {
		res, err := e.processor.Process(ctx, unit, opts.Config)
		mu.Lock()
		results[unit.ID] = res
		mu.Unlock()
		if err != nil {
			return err
		}
		if !res.Success {
			return &UnitError{UnitID: unit.ID, Messages: res.Errors}
		}
		return nil
	}

	settled := make(map[string]error, len(units))
	progress := func(unit models.MigrationUnit, err error) {
		// The pool serializes progress callbacks.
		mu.Lock()
		res := results[unit.ID]
		mu.Unlock()

		status := e.record(opts, unit, res, err)
		settled[unit.ID] = err

		elapsed := time.Since(started[unit.ID])
		if e.observer != nil {
			e.observer.UnitSettled(unit, status, elapsed)
		}
		if e.progress != nil {
			e.progress(outcome(unit, status, err, batch))
		}
	}

	if opts.DryRun {
		// Nothing is processed, so the limiter, retries and context do not apply
		for _, unit := range dispatch {
			progress(unit, nil)
		}
	} else {
		pool.RunBatch(ctx, dispatch, work, progress)
	}

	var abort *AbortError
	for _, unit := range units {
		err, ok := startErrs[unit.ID]
		if ok {
			slog.Error("Failed to start unit", "unit", unit.ID, "batch", batch, "error", err)
			o := outcome(unit, models.StatusFailed, err, batch)
			result.Add(o)
			if e.progress != nil {
				e.progress(o)
			}
		} else {
			err = settled[unit.ID]
			status := models.StatusCompleted
			if err != nil {
				status = models.StatusFailed
			}
			result.Add(outcome(unit, status, err, batch))
		}

		if err != nil && abort == nil && !opts.ContinueOnError {
			abort = &AbortError{UnitID: unit.ID, Batch: batch, Err: err}
		}
	}

	if abort != nil {
		result.Aborted = true
		slog.Error("Aborting migration", "batch", batch, "unit", abort.UnitID, "error", abort.Err)
		return abort
	}
	return nil
}

// record writes the settled state of one unit into the recorder and
// returns the final status.
func (e *Engine) record(opts Options, unit models.MigrationUnit, res processor.Result, err error) models.Status {
	rec := opts.Recorder
	id := unit.ID

	if opts.DryRun && err == nil {
		logRecordErr(id, rec.RecordWarning(id, DryRunNote))
		logRecordErr(id, rec.UpdateStatus(id, models.StatusCompleted))
		return models.StatusCompleted
	}

	for _, w := range res.Warnings {
		logRecordErr(id, rec.RecordWarning(id, w))
	}
	if res.Metadata != nil {
		logRecordErr(id, rec.SetMetadata(id, *res.Metadata))
	}
	if res.Payload != nil {
		logRecordErr(id, rec.SetPayload(id, *res.Payload))
	}

	if err == nil {
		logRecordErr(id, rec.UpdateStatus(id, models.StatusCompleted))
		slog.Debug("Unit completed", "unit", id)
		return models.StatusCompleted
	}

	var unitErr *UnitError
	if errors.As(err, &unitErr) && len(unitErr.Messages) > 0 {
		for _, msg := range unitErr.Messages {
			logRecordErr(id, rec.RecordError(id, errors.New(msg)))
		}
	} else {
		logRecordErr(id, rec.RecordError(id, err))
	}
	logRecordErr(id, rec.UpdateStatus(id, models.StatusFailed))
	slog.Warn("Unit failed", "unit", id, "error", err)
	return models.StatusFailed
}

func outcome(unit models.MigrationUnit, status models.Status, err error, batch int) models.UnitOutcome {
	o := models.UnitOutcome{
		UnitID:   unit.ID,
		UnitName: unit.DisplayName(),
		Status:   status,
		Batch:    batch,
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

func logRecordErr(unitID string, err error) {
	if err != nil {
		slog.Error("Failed to record unit state", "unit", unitID, "error", err)
	}
}

type nopRecorder struct{}

func (nopRecorder) StartMigration(unit models.MigrationUnit) (string, error) { return unit.ID, nil }
func (nopRecorder) UpdateStatus(string, models.Status) error { return nil }
func (nopRecorder) RecordError(string, error) error { return nil }
func (nopRecorder) RecordWarning(string, string) error { return nil }
func (nopRecorder) SetMetadata(string, models.RecordMetadata) error { return nil }
func (nopRecorder) SetPayload(string, models.Payload) error { return nil }
