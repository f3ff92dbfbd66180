package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"github.com/dustin/go-humanize"
)

// document is the structured form shared by the JSON and HTML reports
type document struct {
	SessionID   string                   `json:"session_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	StartTime   time.Time                `json:"start_time"`
	EndTime     *time.Time               `json:"end_time,omitempty"`
	Config      models.RunConfig         `json:"config"`
	Summary     models.SessionSummary    `json:"summary"`
	Records     []models.MigrationRecord `json:"records"`
}

func newDocument(snap models.SessionSnapshot) document {
	generated := snap.Session.StartTime
	if snap.Session.EndTime != nil {
		generated = *snap.Session.EndTime
	}
	return document{
		SessionID:   snap.Session.ID,
		GeneratedAt: generated,
		StartTime:   snap.Session.StartTime,
		EndTime:     snap.Session.EndTime,
		Config:      snap.Session.Config,
		Summary:     snap.Summary,
		Records:     snap.Session.OrderedRecords(),
	}
}

func renderJSON(w io.Writer, snap models.SessionSnapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newDocument(snap))
}

var csvHeader = []string{
	"unit_id", "unit_name", "status", "start_time", "end_time", "duration_ms",
	"complexity", "tier", "source_bytes", "target_bytes", "errors", "warnings",
}

func renderCSV(w io.Writer, snap models.SessionSnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, rec := range snap.Session.OrderedRecords() {
		row := []string{
			rec.UnitID,
			rec.UnitName,
			string(rec.Status),
			rec.StartTime.Format(time.RFC3339),
			formatTime(rec.EndTime),
			formatMillis(rec.Duration),
			string(rec.Metadata.Complexity),
			rec.Metadata.Tier,
			formatInt(rec.Metadata.SourceBytes),
			formatInt(rec.Metadata.TargetBytes),
			strings.Join(rec.Errors, "; "),
			strings.Join(rec.Warnings, "; "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func renderMarkdown(w io.Writer, snap models.SessionSnapshot) error {
	s := snap.Summary
	var b strings.Builder

	fmt.Fprintf(&b, "# Migration Report\n\n")
	fmt.Fprintf(&b, "- **Session:** `%s`\n", snap.Session.ID)
	fmt.Fprintf(&b, "- **Started:** %s\n", snap.Session.StartTime.Format(time.RFC3339))
	if snap.Session.EndTime != nil {
		fmt.Fprintf(&b, "- **Finished:** %s\n", snap.Session.EndTime.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- **Dry run:** %t\n", snap.Session.Config.DryRun)
	fmt.Fprintf(&b, "- **Concurrency limit:** %d\n\n", snap.Session.Config.ConcurrencyLimit)

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Duration | %s |\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "| Total | %d |\n", s.TotalComponents)
	fmt.Fprintf(&b, "| Completed | %d |\n", s.CompletedComponents)
	fmt.Fprintf(&b, "| Failed | %d |\n", s.FailedComponents)
	fmt.Fprintf(&b, "| In progress | %d |\n", s.InProgressComponents)
	fmt.Fprintf(&b, "| Success rate | %.1f%% |\n", s.SuccessRate)
	fmt.Fprintf(&b, "| Average duration | %s |\n", s.AverageDuration.Round(time.Millisecond))
	fmt.Fprintf(&b, "| Errors | %d |\n", s.TotalErrors)
	fmt.Fprintf(&b, "| Warnings | %d |\n\n", s.TotalWarnings)

	records := snap.Session.OrderedRecords()
	fmt.Fprintf(&b, "## Units\n\n")
	if len(records) == 0 {
		fmt.Fprintf(&b, "No units were processed.\n")
	} else {
		fmt.Fprintf(&b, "| Unit | Name | Status | Duration | Complexity | Source | Target | Errors | Warnings |\n")
		fmt.Fprintf(&b, "|---|---|---|---|---|---|---|---|---|\n")
		for _, rec := range records {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %d | %d |\n",
				mdEscape(rec.UnitID),
				mdEscape(rec.UnitName),
				rec.Status,
				formatDuration(rec.Duration),
				mdEscape(string(rec.Metadata.Complexity)),
				formatBytes(rec.Metadata.SourceBytes),
				formatBytes(rec.Metadata.TargetBytes),
				len(rec.Errors),
				len(rec.Warnings),
			)
		}
	}

	var issues strings.Builder
	for _, rec := range records {
		for _, msg := range rec.Errors {
			fmt.Fprintf(&issues, "- **%s** (error): %s\n", mdEscape(rec.UnitID), mdEscape(msg))
		}
		for _, msg := range rec.Warnings {
			fmt.Fprintf(&issues, "- **%s** (warning): %s\n", mdEscape(rec.UnitID), mdEscape(msg))
		}
	}
	if issues.Len() > 0 {
		fmt.Fprintf(&b, "\n## Issues\n\n%s", issues.String())
	}

	_, err := io.WriteString(w, b.String())
	return err
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"duration": formatDuration,
	"bytes":    formatBytes,
	"rfc3339":  func(t time.Time) string { return t.Format(time.RFC3339) },
	"ended":    formatTime,
	"round":    func(d time.Duration) time.Duration { return d.Round(time.Millisecond) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Migration Report {{.SessionID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.completed { color: #1a7f37; }
.failed { color: #cf222e; }
.in-progress { color: #9a6700; }
</style>
</head>
<body>
<h1>Migration Report</h1>
<p>Session <code>{{.SessionID}}</code> started {{rfc3339 .StartTime}}{{if .EndTime}}, finished {{ended .EndTime}}{{end}}.</p>
<h2>Summary</h2>
<table>
<tr><th>Duration</th><td>{{round .Summary.Duration}}</td></tr>
<tr><th>Total</th><td>{{.Summary.TotalComponents}}</td></tr>
<tr><th>Completed</th><td>{{.Summary.CompletedComponents}}</td></tr>
<tr><th>Failed</th><td>{{.Summary.FailedComponents}}</td></tr>
<tr><th>In progress</th><td>{{.Summary.InProgressComponents}}</td></tr>
<tr><th>Success rate</th><td>{{printf "%.1f" .Summary.SuccessRate}}%</td></tr>
<tr><th>Average duration</th><td>{{round .Summary.AverageDuration}}</td></tr>
<tr><th>Errors</th><td>{{.Summary.TotalErrors}}</td></tr>
<tr><th>Warnings</th><td>{{.Summary.TotalWarnings}}</td></tr>
</table>
<h2>Units</h2>
<table>
<tr><th>Unit</th><th>Name</th><th>Status</th><th>Duration</th><th>Complexity</th><th>Source</th><th>Target</th><th>Errors</th><th>Warnings</th></tr>
{{- range .Records}}
<tr>
<td>{{.UnitID}}</td><td>{{.UnitName}}</td><td class="{{.Status}}">{{.Status}}</td><td>{{duration .Duration}}</td>
<td>{{.Metadata.Complexity}}</td><td>{{bytes .Metadata.SourceBytes}}</td><td>{{bytes .Metadata.TargetBytes}}</td>
<td>{{range .Errors}}<div>{{.}}</div>{{end}}</td><td>{{range .Warnings}}<div>{{.}}</div>{{end}}</td>
</tr>
{{- end}}
</table>
</body>
</html>
`))

func renderHTML(w io.Writer, snap models.SessionSnapshot) error {
	return htmlTemplate.Execute(w, newDocument(snap))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatMillis(d *time.Duration) string {
	if d == nil {
		return ""
	}
	return strconv.FormatInt(d.Milliseconds(), 10)
}

func formatDuration(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatBytes(v *int64) string {
	if v == nil || *v < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(*v))
}

var mdReplacer = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}
