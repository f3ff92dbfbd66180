package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

// DirName is the subdirectory of the output directory that holds reports
const DirName = "reports"

// Result is the outcome of rendering one report format
type Result struct {
	Format models.ReportFormat
	Path   string
	Err    error
}

// OK reports whether the format was written successfully
func (r Result) OK() bool {
	return r.Err == nil
}

type renderFunc func(w io.Writer, snap models.SessionSnapshot) error

// Generator renders session snapshots into report files
type Generator struct {
	renderers map[models.ReportFormat]renderFunc
}

// NewGenerator creates a generator supporting every report format
func NewGenerator() *Generator {
	return &Generator{
		renderers: map[models.ReportFormat]renderFunc{
			models.ReportJSON:     renderJSON,
			models.ReportMarkdown: renderMarkdown,
			models.ReportCSV:      renderCSV,
			models.ReportHTML:     renderHTML,
		},
	}
}

// Dir returns the report directory below outputDir
func Dir(outputDir string) string {
	return filepath.Join(outputDir, DirName)
}

// FileName returns the report file name for a session and format
func FileName(sessionID string, format models.ReportFormat) string {
	return fmt.Sprintf("migration-report-%s.%s", sessionID, format.Extension())
}

// GenerateReports writes one file per format configured on the session.
// Every format is attempted; failures are logged and returned per format.
func (g *Generator) GenerateReports(ctx context.Context, snap models.SessionSnapshot) []Result {
	cfg := snap.Session.Config
	dir := Dir(cfg.OutputDirectory)

	results := make([]Result, 0, len(cfg.ReportFormats))
	for _, format := range cfg.ReportFormats {
		res := Result{Format: format}
		res.Path, res.Err = g.generate(ctx, dir, format, snap)
		if res.Err != nil {
			slog.Error("Failed to generate report", "session", snap.Session.ID, "format", format, "error", res.Err)
		} else {
			slog.Info("Report written", "session", snap.Session.ID, "format", format, "path", res.Path)
		}
		results = append(results, res)
	}
	return results
}

func (g *Generator) generate(ctx context.Context, dir string, format models.ReportFormat, snap models.SessionSnapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	render, ok := g.renderers[format]
	if !ok {
		return "", fmt.Errorf("unsupported report format: %q", format)
	}

	var buf bytes.Buffer
	if err := render(&buf, snap); err != nil {
		return "", fmt.Errorf("failed to render %s report: %w", format, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, FileName(snap.Session.ID, format))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return path, nil
}
