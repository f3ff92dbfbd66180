package models

import (
	"time"
)

// Status represents the lifecycle state of a migration record
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"

	// StatusSkipped is only reported in outcomes for units that were never
	// attempted. Records never enter it.
	StatusSkipped Status = "skipped"
)

// IsTerminal reports whether s is a final record status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a record may move from one status to another.
// The lifecycle is pending -> in-progress -> {completed, failed}.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		return to.IsTerminal()
	}
	return false
}

// ReportFormat is an output format for session reports
type ReportFormat string

const (
	ReportJSON     ReportFormat = "json"
	ReportMarkdown ReportFormat = "markdown"
	ReportCSV      ReportFormat = "csv"
	ReportHTML     ReportFormat = "html"
)

// AllReportFormats lists every supported format in generation order
var AllReportFormats = []ReportFormat{ReportJSON, ReportMarkdown, ReportCSV, ReportHTML}

// Extension returns the file extension used for the format
func (f ReportFormat) Extension() string {
	switch f {
	case ReportMarkdown:
		return "md"
	default:
		return string(f)
	}
}

// Valid reports whether f is a supported report format
func (f ReportFormat) Valid() bool {
	for _, known := range AllReportFormats {
		if f == known {
			return true
		}
	}
	return false
}

// Scheduling selects how the engine forms batches
type Scheduling string

const (
	// SchedulingFixed partitions the ordered units into consecutive
	// chunks of the concurrency limit.
	SchedulingFixed Scheduling = "fixed"

	// SchedulingWavefront only starts a unit once all of its resolved
	// dependencies have completed.
	SchedulingWavefront Scheduling = "wavefront"
)

// RunConfig is the immutable configuration of a session
type RunConfig struct {
	ConcurrencyLimit  int            `json:"concurrency_limit"`
	ContinueOnError   bool           `json:"continue_on_error"`
	DryRun            bool           `json:"dry_run"`
	OutputDirectory   string         `json:"output_directory"`
	BaselineDirectory string         `json:"baseline_directory,omitempty"`
	ReportFormats     []ReportFormat `json:"report_formats"`
	Scheduling        Scheduling     `json:"scheduling"`
	UnitTimeout       time.Duration  `json:"unit_timeout,omitempty"`
}

// Clone returns a copy that shares no slices with c
func (c RunConfig) Clone() RunConfig {
	out := c
	if c.ReportFormats != nil {
		out.ReportFormats = append([]ReportFormat(nil), c.ReportFormats...)
	}
	return out
}

// RecordMetadata holds optional descriptive data about a processed unit
type RecordMetadata struct {
	Complexity  Complexity        `json:"complexity,omitempty"`
	Tier        string            `json:"tier,omitempty"`
	SourceBytes *int64            `json:"source_bytes,omitempty"`
	TargetBytes *int64            `json:"target_bytes,omitempty"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// Merge overlays non-empty fields of other onto m
func (m RecordMetadata) Merge(other RecordMetadata) RecordMetadata {
	if other.Complexity != "" {
		m.Complexity = other.Complexity
	}
	if other.Tier != "" {
		m.Tier = other.Tier
	}
	if other.SourceBytes != nil {
		v := *other.SourceBytes
		m.SourceBytes = &v
	}
	if other.TargetBytes != nil {
		v := *other.TargetBytes
		m.TargetBytes = &v
	}
	if len(other.Notes) > 0 {
		notes := make(map[string]string, len(m.Notes)+len(other.Notes))
		for k, v := range m.Notes {
			notes[k] = v
		}
		for k, v := range other.Notes {
			notes[k] = v
		}
		m.Notes = notes
	}
	return m
}

func (m RecordMetadata) clone() RecordMetadata {
	return RecordMetadata{}.Merge(m)
}

// Payload carries bulky unit content. It is kept for callers that need it
// but is never written into reports.
type Payload struct {
	Source string `json:"-"`
	Target string `json:"-"`
}

// MigrationRecord tracks a single unit within a session
type MigrationRecord struct {
	UnitID    string         `json:"unit_id"`
	UnitName  string         `json:"unit_name"`
	Status    Status         `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Duration  *time.Duration `json:"duration,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	Metadata  RecordMetadata `json:"metadata"`
	Payload   *Payload       `json:"-"`
}

// Clone returns a deep copy of the record
func (r *MigrationRecord) Clone() MigrationRecord {
	out := *r
	if r.EndTime != nil {
		t := *r.EndTime
		out.EndTime = &t
	}
	if r.Duration != nil {
		d := *r.Duration
		out.Duration = &d
	}
	out.Errors = append([]string(nil), r.Errors...)
	out.Warnings = append([]string(nil), r.Warnings...)
	out.Metadata = r.Metadata.clone()
	if r.Payload != nil {
		p := *r.Payload
		out.Payload = &p
	}
	return out
}

// Session is a read-only view of one orchestrator run
type Session struct {
	ID         string                     `json:"id"`
	StartTime  time.Time                  `json:"start_time"`
	EndTime    *time.Time                 `json:"end_time,omitempty"`
	Total      int                        `json:"total"`
	Completed  int                        `json:"completed"`
	Failed     int                        `json:"failed"`
	InProgress int                        `json:"in_progress"`
	Records    map[string]MigrationRecord `json:"records"`
	Order      []string                   `json:"order"`
	Config     RunConfig                  `json:"config"`
}

// OrderedRecords returns records in the order their units were started
func (s *Session) OrderedRecords() []MigrationRecord {
	out := make([]MigrationRecord, 0, len(s.Order))
	for _, id := range s.Order {
		if rec, ok := s.Records[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// SessionSummary aggregates a session's counters
type SessionSummary struct {
	Duration             time.Duration `json:"duration"`
	TotalComponents      int           `json:"total_components"`
	CompletedComponents  int           `json:"completed_components"`
	FailedComponents     int           `json:"failed_components"`
	InProgressComponents int           `json:"in_progress_components"`
	SuccessRate          float64       `json:"success_rate"`
	AverageDuration      time.Duration `json:"average_duration"`
	TotalErrors          int           `json:"total_errors"`
	TotalWarnings        int           `json:"total_warnings"`
}

// SuccessRate returns completed/total as a percentage, or 0 for an empty total
func SuccessRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// SessionSnapshot bundles everything a report needs about a session
type SessionSnapshot struct {
	Session Session        `json:"session"`
	Summary SessionSummary `json:"summary"`
}
