package ingest

import (
	"time"
)

// SourceReport counts what happened to one source during a run.
type SourceReport struct {
	Source            string `json:"source"`
	Table             string `json:"table"`
	Pages             int    `json:"pages"`
	Candidates        int    `json:"candidates"`
	Accepted          int    `json:"accepted"`
	SkippedDate       int    `json:"skipped_date"`
	SkippedSeen       int    `json:"skipped_seen"`
	SkippedParse      int    `json:"skipped_parse"`
	SkippedIncomplete int    `json:"skipped_incomplete"`
	Error             string `json:"error,omitempty"`
}

// Report summarizes one run.
type Report struct {
	RunID      string          `json:"run_id"`
	TargetDate string          `json:"target_date"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Sources    []*SourceReport `json:"sources"`
	Accepted   int             `json:"accepted"`
	Candidates int             `json:"candidates"`
	// Error is set when the run aborted.
	Error string `json:"error,omitempty"`
}

// Source returns the report of the named source, or nil.
func (r *Report) Source(name string) *SourceReport {
	for _, s := range r.Sources {
		if s.Source == name {
			return s
		}
	}
	return nil
}

func (r *Report) finish(now time.Time, err error) {
	r.FinishedAt = now
	r.Accepted, r.Candidates = 0, 0
	for _, s := range r.Sources {
		r.Accepted += s.Accepted
		r.Candidates += s.Candidates
	}
	if err != nil {
		r.Error = err.Error()
	}
}
