// Package session tracks migration sessions and the per-unit records
// mutated while a run is in flight.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"github.com/akrishnanDG/unit-orchestrator/internal/report"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnitNotFound      = errors.New("unit not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSessionClosed     = errors.New("session closed")
	ErrDuplicateUnit     = errors.New("unit already started")
)

// Reporter renders a finished session
type Reporter interface {
	GenerateReports(ctx context.Context, snap models.SessionSnapshot) []report.Result
}

type state struct {
	id         string
	start      time.Time
	end        *time.Time
	total      int
	completed  int
	failed     int
	inProgress int
	records    map[string]*models.MigrationRecord
	order      []string
	config     models.RunConfig
}

// Tracker is a registry of sessions. It is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	clock    clock.Clock
	reporter Reporter
	newID    func() string
	sessions map[string]*state
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock sets the time source
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithReporter sets the reporter invoked by EndSession
func WithReporter(r Reporter) Option {
	return func(t *Tracker) {
		t.reporter = r
	}
}

// WithIDGenerator overrides session id allocation
func WithIDGenerator(fn func() string) Option {
	return func(t *Tracker) {
		t.newID = fn
	}
}

// NewTracker creates an empty tracker using the wall clock and no reporter
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		clock:    clock.WallClock,
		newID:    uuid.NewString,
		sessions: make(map[string]*state),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSession allocates a new session and returns its id
func (t *Tracker) StartSession(cfg models.RunConfig) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.newID()
	if _, exists := t.sessions[id]; exists {
		return "", fmt.Errorf("session id %q already allocated", id)
	}

	t.sessions[id] = &state{
		id:      id,
		start:   t.clock.Now(),
		records: make(map[string]*models.MigrationRecord),
		config:  cfg.Clone(),
	}
	slog.Debug("Session started", "session", id, "concurrency", cfg.ConcurrencyLimit, "dry_run", cfg.DryRun)
	return id, nil
}

// StartMigration inserts an in-progress record for unit and returns its id
func (t *Tracker) StartMigration(sessionID string, unit models.MigrationUnit) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.open(sessionID)
	if err != nil {
		return "", err
	}
	if _, exists := s.records[unit.ID]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateUnit, unit.ID)
	}

	s.records[unit.ID] = &models.MigrationRecord{
		UnitID:    unit.ID,
		UnitName:  unit.DisplayName(),
		Status:    models.StatusInProgress,
		StartTime: t.clock.Now(),
		Metadata: models.RecordMetadata{
			Complexity: unit.Complexity,
			Tier:       unit.Tier,
		},
	}
	s.order = append(s.order, unit.ID)
	s.total++
	s.inProgress++
	return unit.ID, nil
}

// UpdateStatus moves a record along its lifecycle. Illegal transitions are
// rejected with ErrInvalidTransition and leave the session untouched.
func (t *Tracker) UpdateStatus(sessionID, unitID string, status models.Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.open(sessionID)
	if err != nil {
		return err
	}
	rec, ok := s.records[unitID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
	}

	if !models.CanTransition(rec.Status, status) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, unitID, rec.Status, status)
	}

	if rec.Status == models.StatusInProgress {
		s.inProgress--
	}
	switch status {
	case models.StatusInProgress:
		s.inProgress++
	case models.StatusCompleted:
		s.completed++
	case models.StatusFailed:
		s.failed++
	}

	rec.Status = status
	if status.IsTerminal() {
		now := t.clock.Now()
		d := now.Sub(rec.StartTime)
		rec.EndTime = &now
		rec.Duration = &d
	}
	return nil
}

// RecordError appends an error message to a record
func (t *Tracker) RecordError(sessionID, unitID string, err error) error {
	if err == nil {
		return nil
	}
	return t.mutate(sessionID, unitID, func(rec *models.MigrationRecord) {
		rec.Errors = append(rec.Errors, err.Error())
	})
}

// RecordWarning appends a warning to a record
func (t *Tracker) RecordWarning(sessionID, unitID, warning string) error {
	return t.mutate(sessionID, unitID, func(rec *models.MigrationRecord) {
		rec.Warnings = append(rec.Warnings, warning)
	})
}

// SetMetadata merges md into the record's metadata
func (t *Tracker) SetMetadata(sessionID, unitID string, md models.RecordMetadata) error {
	return t.mutate(sessionID, unitID, func(rec *models.MigrationRecord) {
		rec.Metadata = rec.Metadata.Merge(md)
	})
}

// SetPayload attaches bulky content to the record
func (t *Tracker) SetPayload(sessionID, unitID string, p models.Payload) error {
	return t.mutate(sessionID, unitID, func(rec *models.MigrationRecord) {
		rec.Payload = &p
	})
}

// Record returns a copy of a single record
func (t *Tracker) Record(sessionID, unitID string) (models.MigrationRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, rec, err := t.record(sessionID, unitID)
	if err != nil {
		return models.MigrationRecord{}, err
	}
	return rec.Clone(), nil
}

// Summary aggregates the counters of a session
func (t *Tracker) Summary(sessionID string) (models.SessionSummary, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return models.SessionSummary{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return t.summarize(s), nil
}

// Session returns a deep copy of a session and its summary
func (t *Tracker) Session(sessionID string) (models.SessionSnapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return models.SessionSnapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return t.snapshot(s), nil
}

// EndSession stamps the end time and renders reports for every configured
// format. The session stays queryable but rejects further mutation; ending
// it again fails with ErrSessionNotFound.
func (t *Tracker) EndSession(ctx context.Context, sessionID string) ([]report.Result, error) {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if !ok || s.end != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: no active session %s", ErrSessionNotFound, sessionID)
	}
	now := t.clock.Now()
	s.end = &now
	snap := t.snapshot(s)
	t.mu.Unlock()

	summary := snap.Summary
	slog.Info("Session ended",
		"session", sessionID,
		"total", summary.TotalComponents,
		"completed", summary.CompletedComponents,
		"failed", summary.FailedComponents,
		"duration", summary.Duration,
	)

	if t.reporter == nil {
		return nil, nil
	}
	return t.reporter.GenerateReports(ctx, snap), nil
}

// Sessions returns the ids of every known session
func (t *Tracker) Sessions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (t *Tracker) open(sessionID string) (*state, error) {
	s, ok := t.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.end != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}
	return s, nil
}

func (t *Tracker) record(sessionID, unitID string) (*state, *models.MigrationRecord, error) {
	s, ok := t.sessions[sessionID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	rec, ok := s.records[unitID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
	}
	return s, rec, nil
}

func (t *Tracker) mutate(sessionID, unitID string, fn func(*models.MigrationRecord)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.open(sessionID)
	if err != nil {
		return err
	}
	rec, ok := s.records[unitID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
	}
	fn(rec)
	return nil
}

func (t *Tracker) summarize(s *state) models.SessionSummary {
	end := t.clock.Now()
	if s.end != nil {
		end = *s.end
	}

	summary := models.SessionSummary{
		Duration:             end.Sub(s.start),
		TotalComponents:      s.total,
		CompletedComponents:  s.completed,
		FailedComponents:     s.failed,
		InProgressComponents: s.inProgress,
		SuccessRate:          models.SuccessRate(s.completed, s.total),
	}

	var finished int
	var elapsed time.Duration
	for _, rec := range s.records {
		summary.TotalErrors += len(rec.Errors)
		summary.TotalWarnings += len(rec.Warnings)
		if rec.Duration != nil {
			finished++
			elapsed += *rec.Duration
		}
	}
	if finished > 0 {
		summary.AverageDuration = elapsed / time.Duration(finished)
	}
	return summary
}

func (t *Tracker) snapshot(s *state) models.SessionSnapshot {
	records := make(map[string]models.MigrationRecord, len(s.records))
	for id, rec := range s.records {
		records[id] = rec.Clone()
	}

	var end *time.Time
	if s.end != nil {
		e := *s.end
		end = &e
	}

	return models.SessionSnapshot{
		Session: models.Session{
			ID:         s.id,
			StartTime:  s.start,
			EndTime:    end,
			Total:      s.total,
			Completed:  s.completed,
			Failed:     s.failed,
			InProgress: s.inProgress,
			Records:    records,
			Order:      append([]string(nil), s.order...),
			Config:     s.config.Clone(),
		},
		Summary: t.summarize(s),
	}
}
