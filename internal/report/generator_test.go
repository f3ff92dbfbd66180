package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

func sampleSnapshot(outputDir string, formats ...models.ReportFormat) models.SessionSnapshot {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)
	d1 := 1200 * time.Millisecond
	d2 := 800 * time.Millisecond
	e1 := start.Add(d1)
	e2 := start.Add(d2)
	src := int64(2048)
	dst := int64(4096)

	records := map[string]models.MigrationRecord{
		"auth": {
			UnitID:    "auth",
			UnitName:  "Auth Service",
			Status:    models.StatusCompleted,
			StartTime: start,
			EndTime:   &e1,
			Duration:  &d1,
			Warnings:  []string{"deprecated | api"},
			Metadata: models.RecordMetadata{
				Complexity:  models.ComplexityHigh,
				Tier:        "core",
				SourceBytes: &src,
				TargetBytes: &dst,
			},
			Payload: &models.Payload{Source: "SECRET-SOURCE", Target: "SECRET-TARGET"},
		},
		"billing": {
			UnitID:    "billing",
			UnitName:  "<script>alert(1)</script>",
			Status:    models.StatusFailed,
			StartTime: start,
			EndTime:   &e2,
			Duration:  &d2,
			Errors:    []string{"processor exploded"},
		},
	}

	return models.SessionSnapshot{
		Session: models.Session{
			ID:        "sess-1",
			StartTime: start,
			EndTime:   &end,
			Total:     2,
			Completed: 1,
			Failed:    1,
			Records:   records,
			Order:     []string{"auth", "billing"},
			Config: models.RunConfig{
				ConcurrencyLimit: 2,
				OutputDirectory:  outputDir,
				ReportFormats:    formats,
			},
		},
		Summary: models.SessionSummary{
			Duration:            3 * time.Second,
			TotalComponents:     2,
			CompletedComponents: 1,
			FailedComponents:    1,
			SuccessRate:         50,
			AverageDuration:     time.Second,
			TotalErrors:         1,
			TotalWarnings:       1,
		},
	}
}

func TestGenerateReports_AllFormats(t *testing.T) {
	dir := t.TempDir()
	snap := sampleSnapshot(dir, models.AllReportFormats...)

	results := NewGenerator().GenerateReports(context.Background(), snap)
	require.Len(t, results, 4)

	for _, res := range results {
		require.NoError(t, res.Err, "format %s", res.Format)
		assert.True(t, res.OK())
		assert.Equal(t, filepath.Join(dir, "reports", FileName("sess-1", res.Format)), res.Path)
		assert.FileExists(t, res.Path)

		data, err := os.ReadFile(res.Path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "SECRET-SOURCE", "payload leaked into %s report", res.Format)
		assert.NotContains(t, string(data), "SECRET-TARGET", "payload leaked into %s report", res.Format)
	}

	assert.Equal(t, "migration-report-sess-1.md", filepath.Base(results[1].Path))
}

func TestGenerateReports_JSONContent(t *testing.T) {
	dir := t.TempDir()
	results := NewGenerator().GenerateReports(context.Background(), sampleSnapshot(dir, models.ReportJSON))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)

	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "sess-1", doc.SessionID)
	assert.Equal(t, 50.0, doc.Summary.SuccessRate)
	require.Len(t, doc.Records, 2)
	assert.Equal(t, "auth", doc.Records[0].UnitID)
	assert.Equal(t, models.StatusFailed, doc.Records[1].Status)
	assert.Nil(t, doc.Records[0].Payload)
}

func TestGenerateReports_CSVContent(t *testing.T) {
	dir := t.TempDir()
	results := NewGenerator().GenerateReports(context.Background(), sampleSnapshot(dir, models.ReportCSV))
	require.NoError(t, results[0].Err)

	f, err := os.Open(results[0].Path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "auth", rows[1][0])
	assert.Equal(t, "1200", rows[1][5])
	assert.Equal(t, "2048", rows[1][8])
	assert.Equal(t, "processor exploded", rows[2][10])
}

func TestGenerateReports_MarkdownContent(t *testing.T) {
	dir := t.TempDir()
	results := NewGenerator().GenerateReports(context.Background(), sampleSnapshot(dir, models.ReportMarkdown))
	require.NoError(t, results[0].Err)

	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	md := string(data)

	assert.Contains(t, md, "# Migration Report")
	assert.Contains(t, md, "| Success rate | 50.0% |")
	assert.Contains(t, md, "| auth | Auth Service | completed |")
	assert.Contains(t, md, "2.0 kB")
	assert.Contains(t, md, `deprecated \| api`)
	assert.Contains(t, md, "- **billing** (error): processor exploded")
}

func TestGenerateReports_HTMLEscapes(t *testing.T) {
	dir := t.TempDir()
	results := NewGenerator().GenerateReports(context.Background(), sampleSnapshot(dir, models.ReportHTML))
	require.NoError(t, results[0].Err)

	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	page := string(data)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, "&lt;script&gt;")
	assert.Contains(t, page, "50.0%")
}

func TestGenerateReports_FailuresAreIndependent(t *testing.T) {
	dir := t.TempDir()
	snap := sampleSnapshot(dir, models.ReportJSON, models.ReportFormat("pdf"), models.ReportCSV)

	results := NewGenerator().GenerateReports(context.Background(), snap)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Empty(t, results[1].Path)
	assert.NoError(t, results[2].Err)
	assert.FileExists(t, results[2].Path)
}

func TestGenerateReports_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the output directory should be
	blocker := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	results := NewGenerator().GenerateReports(context.Background(), sampleSnapshot(blocker, models.ReportJSON, models.ReportHTML))
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Error(t, res.Err)
		assert.False(t, res.OK())
	}
}

func TestGenerateReports_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewGenerator().GenerateReports(ctx, sampleSnapshot(t.TempDir(), models.ReportJSON))
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestGenerateReports_NoFormats(t *testing.T) {
	results := NewGenerator().GenerateReports(context.Background(), sampleSnapshot(t.TempDir()))
	assert.Empty(t, results)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		format   models.ReportFormat
		expected string
	}{
		{models.ReportJSON, "migration-report-abc.json"},
		{models.ReportMarkdown, "migration-report-abc.md"},
		{models.ReportCSV, "migration-report-abc.csv"},
		{models.ReportHTML, "migration-report-abc.html"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.Equal(t, tt.expected, FileName("abc", tt.format))
		})
	}
}
