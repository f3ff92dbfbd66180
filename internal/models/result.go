package models

// UnitOutcome is the final state of one unit in a batch run
type UnitOutcome struct {
	UnitID   string `json:"unit_id"`
	UnitName string `json:"unit_name"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
	Batch    int    `json:"batch"`
}

// BatchResult aggregates the outcome of a batch run
type BatchResult struct {
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Batches    int           `json:"batches"`
	Aborted    bool          `json:"aborted"`
	Outcomes   []UnitOutcome `json:"outcomes"`
}

// Add records an outcome and updates the counters
func (r *BatchResult) Add(outcome UnitOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	r.Total++
	switch outcome.Status {
	case StatusCompleted:
		r.Successful++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// Succeeded reports whether every attempted unit completed
func (r *BatchResult) Succeeded() bool {
	return !r.Aborted && r.Failed == 0
}

// Progress returns the share of settled outcomes as a percentage
func (r *BatchResult) Progress(planned int) float64 {
	if planned == 0 {
		return 0
	}
	return float64(r.Successful+r.Failed+r.Skipped) / float64(planned) * 100
}
