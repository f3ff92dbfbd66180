package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector()

	c.BatchStarted(1, 3)
	c.BatchStarted(2, 1)
	c.UnitSettled(models.MigrationUnit{ID: "a", Complexity: models.ComplexityHigh}, models.StatusCompleted, time.Second)
	c.UnitSettled(models.MigrationUnit{ID: "b", Complexity: models.ComplexityHigh}, models.StatusCompleted, 2*time.Second)
	c.UnitSettled(models.MigrationUnit{ID: "c"}, models.StatusFailed, time.Millisecond)
	c.UnitSkipped(models.MigrationUnit{ID: "d"})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.batches))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.skipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.units.WithLabelValues("completed", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.units.WithLabelValues("failed", "unknown")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.unitDuration))
}

func TestCollector_Lint(t *testing.T) {
	c := NewCollector()
	c.BatchStarted(1, 1)
	c.UnitSettled(models.MigrationUnit{ID: "a"}, models.StatusCompleted, time.Second)

	problems, err := testutil.CollectAndLint(c)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector()
	c.BatchStarted(1, 2)
	c.UnitSettled(models.MigrationUnit{ID: "a", Complexity: models.ComplexityLow}, models.StatusCompleted, time.Second)

	path := filepath.Join(t.TempDir(), "migration.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "unit_orchestrator_batches_total 1")
	assert.Contains(t, text, `unit_orchestrator_units_total{complexity="low",status="completed"} 1`)
	assert.False(t, strings.Contains(text, "go_goroutines"), "default registry metrics leaked into textfile")
}

func TestCollector_WriteTextfileBadPath(t *testing.T) {
	err := NewCollector().WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "m.prom"))
	assert.Error(t, err)
}
