package update

import (
	"time"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/fusion"
)

// SourceStatus is the outcome of one source within a cycle.
type SourceStatus string

// Source outcomes.
const (
	StatusSuccess SourceStatus = "success"
	StatusFailed  SourceStatus = "failed"
	StatusSkipped SourceStatus = "skipped"
)

// SourceResult describes what one source contributed to a cycle.
type SourceResult struct {
	Status SourceStatus `json:"status"`

	Records int `json:"records"`
	Hints   int `json:"hints"`

	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`

	DataPointConflicts int `json:"datapoint_conflicts"`

	// ParseErrors are recoverable extraction failures; the source still
	// succeeds with whatever was extracted.
	ParseErrors []string `json:"parse_errors,omitempty"`

	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// SourceError is one entry of Report.Errors.
type SourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// FusionSummary describes the fusion phase of a cycle.
type FusionSummary struct {
	Groups  int `json:"groups"`
	Merged  int `json:"merged"`
	Retired int `json:"retired"`

	// Errors lists groups left untouched because their merge failed.
	Errors []string `json:"errors,omitempty"`

	Results []fusion.Result `json:"results,omitempty"`
}

// Report is the outcome of one update cycle.
type Report struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Forced    bool      `json:"forced"`

	Sources map[string]SourceResult `json:"sources"`

	// TotalDevices is the number of active corpus entries after the cycle.
	TotalDevices int `json:"total_devices"`

	Errors []SourceError `json:"errors"`
	Fusion FusionSummary `json:"fusion"`

	DurationMS int64 `json:"duration_ms"`
}

func newReport(id string, at time.Time, forced bool) *Report {
	return &Report{
		ID:        id,
		Timestamp: at.UTC(),
		Forced:    forced,
		Sources:   make(map[string]SourceResult),
		Errors:    []SourceError{},
	}
}

// fail records a failed source.
func (r *Report) fail(sourceID string, res SourceResult, err error) {
	res.Status = StatusFailed
	res.Error = err.Error()
	r.Sources[sourceID] = res
	r.Errors = append(r.Errors, SourceError{Source: sourceID, Error: err.Error()})
}

// Count returns how many sources ended with the given status.
func (r *Report) Count(status SourceStatus) int {
	n := 0
	for _, s := range r.Sources {
		if s.Status == status {
			n++
		}
	}
	return n
}

// DataPointConflicts sums data point conflicts across sources.
func (r *Report) DataPointConflicts() int {
	n := 0
	for _, s := range r.Sources {
		n += s.DataPointConflicts
	}
	return n
}
