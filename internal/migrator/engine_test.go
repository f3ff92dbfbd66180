package migrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"github.com/akrishnanDG/unit-orchestrator/internal/processor"
	"github.com/akrishnanDG/unit-orchestrator/internal/session"
	"github.com/akrishnanDG/unit-orchestrator/internal/worker"
)

// fakeProcessor fails configured units and logs start/end events
type fakeProcessor struct {
	mu       sync.Mutex
	events   []string
	calls    map[string]int
	fail     map[string]error
	reject   map[string][]string
	delay    map[string]time.Duration
	warnings []string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		calls:  make(map[string]int),
		fail:   make(map[string]error),
		reject: make(map[string][]string),
		delay:  make(map[string]time.Duration),
	}
}

func (p *fakeProcessor) Process(ctx context.Context, unit models.MigrationUnit, cfg models.RunConfig) (processor.Result, error) {
	p.mu.Lock()
	p.events = append(p.events, "start:"+unit.ID)
	p.calls[unit.ID]++
	d := p.delay[unit.ID]
	p.mu.Unlock()

	if d > 0 {
		time.Sleep(d)
	}

	p.mu.Lock()
	p.events = append(p.events, "end:"+unit.ID)
	p.mu.Unlock()

	if err := p.fail[unit.ID]; err != nil {
		return processor.Result{}, err
	}
	if msgs, ok := p.reject[unit.ID]; ok {
		return processor.Result{Success: false, Errors: msgs}, nil
	}
	size := int64(len(unit.ID))
	return processor.Result{
		Success:  true,
		Warnings: p.warnings,
		Metadata: &models.RecordMetadata{SourceBytes: &size},
		Payload:  &models.Payload{Source: unit.ID},
	}, nil
}

func (p *fakeProcessor) callCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func numbered(n int) []models.MigrationUnit {
	units := make([]models.MigrationUnit, n)
	for i := range units {
		units[i] = models.MigrationUnit{ID: fmt.Sprintf("u%d", i+1)}
	}
	return units
}

func newSession(t *testing.T, cfg models.RunConfig) (*session.Tracker, string) {
	t.Helper()
	tr := session.NewTracker()
	id, err := tr.StartSession(cfg)
	require.NoError(t, err)
	return tr, id
}

func outcomeIDs(r *models.BatchResult) []string {
	ids := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		ids = append(ids, o.UnitID)
	}
	return ids
}

func TestMigrate_BatchAccounting(t *testing.T) {
	proc := newFakeProcessor()
	proc.fail["u4"] = errors.New("boom")

	cfg := models.RunConfig{ConcurrencyLimit: 2, ContinueOnError: true}
	tr, id := newSession(t, cfg)

	result, err := NewEngine(proc).Migrate(context.Background(), numbered(6), OptionsFrom(cfg, tr.For(id)))
	require.NoError(t, err)

	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 5, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 3, result.Batches)
	assert.False(t, result.Aborted)
	assert.False(t, result.Succeeded())

	for _, o := range result.Outcomes {
		if o.UnitID == "u4" {
			assert.Equal(t, models.StatusFailed, o.Status)
			assert.Equal(t, "boom", o.Error)
			assert.Equal(t, 2, o.Batch)
		}
	}

	summary, err := tr.Summary(id)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.TotalComponents)
	assert.Equal(t, 5, summary.CompletedComponents)
	assert.Equal(t, 1, summary.FailedComponents)
	assert.Equal(t, 0, summary.InProgressComponents)

	rec, err := tr.Record(id, "u4")
	require.NoError(t, err)
	assert.Equal(t, []string{"boom"}, rec.Errors)
}

func TestMigrate_AbortSemantics(t *testing.T) {
	proc := newFakeProcessor()
	proc.fail["u2"] = errors.New("broken unit")

	cfg := models.RunConfig{ConcurrencyLimit: 2, ContinueOnError: false}
	tr, id := newSession(t, cfg)

	result, err := NewEngine(proc).Migrate(context.Background(), numbered(6), OptionsFrom(cfg, tr.For(id)))
	require.Error(t, err)

	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "u2", abort.UnitID)
	assert.Equal(t, 1, abort.Batch)
	assert.EqualError(t, errors.Unwrap(err), "broken unit")

	assert.True(t, result.Aborted)
	assert.Equal(t, []string{"u1", "u2"}, outcomeIDs(result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Batches)

	for _, later := range []string{"u3", "u4", "u5", "u6"} {
		assert.Zero(t, proc.callCount(later), "%s must never be processed", later)
		_, err := tr.Record(id, later)
		assert.ErrorIs(t, err, session.ErrUnitNotFound)
	}
}

func TestMigrate_AbortAwaitsCurrentBatch(t *testing.T) {
	proc := newFakeProcessor()
	proc.delay["u1"] = 30 * time.Millisecond
	proc.fail["u2"] = errors.New("fast failure")

	cfg := models.RunConfig{ConcurrencyLimit: 2}
	tr, id := newSession(t, cfg)

	result, err := NewEngine(proc).Migrate(context.Background(), numbered(4), OptionsFrom(cfg, tr.For(id)))
	require.Error(t, err)

	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, models.StatusCompleted, result.Outcomes[0].Status)

	rec, err := tr.Record(id, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rec.Status)
}

func TestMigrate_BarrierBetweenBatches(t *testing.T) {
	proc := newFakeProcessor()
	proc.delay["u1"] = 20 * time.Millisecond
	proc.delay["u4"] = 10 * time.Millisecond

	cfg := models.RunConfig{ConcurrencyLimit: 3, ContinueOnError: true}
	_, err := NewEngine(proc).Migrate(context.Background(), numbered(7), OptionsFrom(cfg, nil))
	require.NoError(t, err)

	batchOf := func(id string) int {
		var n int
		fmt.Sscanf(id, "u%d", &n)
		return (n-1)/3 + 1
	}

	// Every start of batch N+1 must come after every end of batch N
	lastEnd := make(map[int]int)
	firstStart := make(map[int]int)
	for i, ev := range proc.events {
		if id, ok := strings.CutPrefix(ev, "start:"); ok {
			b := batchOf(id)
			if _, seen := firstStart[b]; !seen {
				firstStart[b] = i
			}
			continue
		}
		id := strings.TrimPrefix(ev, "end:")
		lastEnd[batchOf(id)] = i
	}

	for b := 1; b < 3; b++ {
		assert.Less(t, lastEnd[b], firstStart[b+1], "batch %d started before batch %d settled", b+1, b)
	}
}

func TestMigrate_ErrorAndFailedResultAreEquivalent(t *testing.T) {
	proc := newFakeProcessor()
	proc.fail["u1"] = errors.New("raised")
	proc.reject["u2"] = []string{"first problem", "second problem"}

	cfg := models.RunConfig{ConcurrencyLimit: 2, ContinueOnError: true}
	tr, id := newSession(t, cfg)

	result, err := NewEngine(proc).Migrate(context.Background(), numbered(2), OptionsFrom(cfg, tr.For(id)))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)

	r1, _ := tr.Record(id, "u1")
	r2, _ := tr.Record(id, "u2")
	assert.Equal(t, models.StatusFailed, r1.Status)
	assert.Equal(t, models.StatusFailed, r2.Status)
	assert.Equal(t, []string{"raised"}, r1.Errors)
	assert.Equal(t, []string{"first problem", "second problem"}, r2.Errors)
	assert.Contains(t, result.Outcomes[1].Error, "first problem; second problem")
}

func TestMigrate_RecordsProcessorOutput(t *testing.T) {
	proc := newFakeProcessor()
	proc.warnings = []string{"manual review"}

	cfg := models.RunConfig{ConcurrencyLimit: 1}
	tr, id := newSession(t, cfg)

	_, err := NewEngine(proc).Migrate(context.Background(), numbered(1), OptionsFrom(cfg, tr.For(id)))
	require.NoError(t, err)

	rec, err := tr.Record(id, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.Equal(t, []string{"manual review"}, rec.Warnings)
	require.NotNil(t, rec.Metadata.SourceBytes)
	assert.Equal(t, int64(2), *rec.Metadata.SourceBytes)
	require.NotNil(t, rec.Payload)
	assert.Equal(t, "u1", rec.Payload.Source)
	assert.NotNil(t, rec.Duration)
}

func TestMigrate_DryRun(t *testing.T) {
	proc := newFakeProcessor()
	proc.fail["u1"] = errors.New("should not be called")

	cfg := models.RunConfig{ConcurrencyLimit: 2, DryRun: true}
	tr, id := newSession(t, cfg)

	result, err := NewEngine(proc).Migrate(context.Background(), numbered(3), OptionsFrom(cfg, tr.For(id)))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Successful)
	assert.Zero(t, proc.callCount("u1"))

	rec, err := tr.Record(id, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.Equal(t, []string{DryRunNote}, rec.Warnings)
}

// cancellingObserver cancels the run as soon as the first batch starts
type cancellingObserver struct {
	countingObserver
	cancel context.CancelFunc
}

func (o *cancellingObserver) BatchStarted(batch, size int) {
	o.countingObserver.BatchStarted(batch, size)
	o.cancel()
}

func TestMigrate_DryRunCancelledDuringBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := models.RunConfig{ConcurrencyLimit: 2, DryRun: true}
	tr, id := newSession(t, cfg)

	engine := NewEngine(newFakeProcessor(), WithObserver(&cancellingObserver{cancel: cancel}))
	result, err := engine.Migrate(ctx, numbered(4), OptionsFrom(cfg, tr.For(id)))
	require.ErrorIs(t, err, context.Canceled)

	// The running batch settles as completed; the next one never starts
	assert.Equal(t, []string{"u1", "u2"}, outcomeIDs(result))
	assert.Equal(t, 2, result.Successful)
	assert.Zero(t, result.Failed)

	for _, o := range result.Outcomes {
		rec, err := tr.Record(id, o.UnitID)
		require.NoError(t, err)
		assert.Equal(t, o.Status, rec.Status, o.UnitID)
		assert.Empty(t, rec.Errors, o.UnitID)
	}

	summary, err := tr.Summary(id)
	require.NoError(t, err)
	assert.Equal(t, result.Successful, summary.CompletedComponents)
	assert.Equal(t, result.Failed, summary.FailedComponents)
}

func TestMigrate_DryRunIgnoresRateLimit(t *testing.T) {
	cfg := models.RunConfig{ConcurrencyLimit: 2, DryRun: true}
	tr, id := newSession(t, cfg)

	// One call per second would take several seconds for six units
	engine := NewEngine(newFakeProcessor(), WithLimiter(worker.NewLimiter(1)))

	start := time.Now()
	result, err := engine.Migrate(context.Background(), numbered(6), OptionsFrom(cfg, tr.For(id)))
	require.NoError(t, err)
	assert.Equal(t, 6, result.Successful)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestMigrate_Retry(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	proc := processor.Func(func(ctx context.Context, unit models.MigrationUnit, cfg models.RunConfig) (processor.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return processor.Result{}, errors.New("flaky")
		}
		return processor.Result{Success: true}, nil
	})

	cfg := models.RunConfig{ConcurrencyLimit: 1}
	tr, id := newSession(t, cfg)

	result, err := NewEngine(proc, WithRetry(2, time.Millisecond)).Migrate(context.Background(), numbered(1), OptionsFrom(cfg, tr.For(id)))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 2, attempts)

	rec, _ := tr.Record(id, "u1")
	assert.Empty(t, rec.Errors)
}

func TestMigrate_StartFailureCountsAsFailure(t *testing.T) {
	proc := newFakeProcessor()
	cfg := models.RunConfig{ConcurrencyLimit: 2, ContinueOnError: true}
	tr, id := newSession(t, cfg)

	// u1 already has a record, so starting it again is rejected
	_, err := tr.StartMigration(id, models.MigrationUnit{ID: "u1"})
	require.NoError(t, err)

	result, err := NewEngine(proc).Migrate(context.Background(), numbered(2), OptionsFrom(cfg, tr.For(id)))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Successful)
	assert.Zero(t, proc.callCount("u1"))
	assert.Contains(t, result.Outcomes[0].Error, "already started")
}

func TestMigrate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := newFakeProcessor()
	result, err := NewEngine(proc).Migrate(ctx, numbered(3), Options{ConcurrencyLimit: 2})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Outcomes)
	assert.Zero(t, proc.callCount("u1"))
}

func TestMigrate_ClampsConcurrency(t *testing.T) {
	result, err := NewEngine(newFakeProcessor()).Migrate(context.Background(), numbered(3), Options{ConcurrencyLimit: 0})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Batches)
}

func TestMigrate_Empty(t *testing.T) {
	result, err := NewEngine(newFakeProcessor()).Migrate(context.Background(), nil, Options{ConcurrencyLimit: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.Equal(t, 0, result.Batches)
	assert.True(t, result.Succeeded())
}

func dep(id string) models.Dependency {
	return models.Dependency{Name: id, Kind: models.DependencyInternal}
}

func TestMigrate_WavefrontWaitsForDependencies(t *testing.T) {
	units := []models.MigrationUnit{
		{ID: "a"},
		{ID: "b", Dependencies: []models.Dependency{dep("a")}},
		{ID: "c"},
	}

	proc := newFakeProcessor()
	opts := Options{ConcurrencyLimit: 2, ContinueOnError: true, Scheduling: models.SchedulingWavefront}
	result, err := NewEngine(proc).Migrate(context.Background(), units, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "b"}, outcomeIDs(result))
	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, 1, result.Outcomes[0].Batch)
	assert.Equal(t, 1, result.Outcomes[1].Batch)
	assert.Equal(t, 2, result.Outcomes[2].Batch)
}

func TestMigrate_WavefrontSkipsDependentsOfFailures(t *testing.T) {
	units := []models.MigrationUnit{
		{ID: "a"},
		{ID: "b", Dependencies: []models.Dependency{dep("a")}},
		{ID: "c", Dependencies: []models.Dependency{dep("b")}},
		{ID: "d"},
	}

	proc := newFakeProcessor()
	proc.fail["a"] = errors.New("nope")

	cfg := models.RunConfig{ConcurrencyLimit: 4, ContinueOnError: true, Scheduling: models.SchedulingWavefront}
	tr, id := newSession(t, cfg)
	obs := &countingObserver{}

	result, err := NewEngine(proc, WithObserver(obs)).Migrate(context.Background(), units, OptionsFrom(cfg, tr.For(id)))
	require.NoError(t, err)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Skipped)
	assert.Zero(t, proc.callCount("b"))
	assert.Zero(t, proc.callCount("c"))
	assert.Equal(t, 2, obs.skipped)

	_, err = tr.Record(id, "b")
	assert.ErrorIs(t, err, session.ErrUnitNotFound, "skipped units never get a record")
}

func TestMigrate_WavefrontAbort(t *testing.T) {
	units := []models.MigrationUnit{
		{ID: "a"},
		{ID: "b", Dependencies: []models.Dependency{dep("a")}},
	}
	proc := newFakeProcessor()
	proc.fail["a"] = errors.New("nope")

	opts := Options{ConcurrencyLimit: 2, Scheduling: models.SchedulingWavefront}
	result, err := NewEngine(proc).Migrate(context.Background(), units, opts)

	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "a", abort.UnitID)
	assert.Equal(t, []string{"a"}, outcomeIDs(result))
}

type countingObserver struct {
	mu      sync.Mutex
	batches int
	settled map[models.Status]int
	skipped int
}

func (o *countingObserver) BatchStarted(batch, size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches++
}

func (o *countingObserver) UnitSettled(unit models.MigrationUnit, status models.Status, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.settled == nil {
		o.settled = make(map[models.Status]int)
	}
	o.settled[status]++
}

func (o *countingObserver) UnitSkipped(unit models.MigrationUnit) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped++
}

func TestMigrate_ObserverAndProgress(t *testing.T) {
	proc := newFakeProcessor()
	proc.fail["u3"] = errors.New("bad")

	obs := &countingObserver{}
	var mu sync.Mutex
	var progressed []models.UnitOutcome
	engine := NewEngine(proc, WithObserver(obs), WithProgress(func(o models.UnitOutcome) {
		mu.Lock()
		progressed = append(progressed, o)
		mu.Unlock()
	}))

	_, err := engine.Migrate(context.Background(), numbered(5), Options{ConcurrencyLimit: 2, ContinueOnError: true})
	require.NoError(t, err)

	assert.Equal(t, 3, obs.batches)
	assert.Equal(t, 4, obs.settled[models.StatusCompleted])
	assert.Equal(t, 1, obs.settled[models.StatusFailed])
	assert.Len(t, progressed, 5)
}
