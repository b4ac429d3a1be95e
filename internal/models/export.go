package models

import "time"

// ExportRun records one bulk export invocation.
type ExportRun struct {
	ID         string     `json:"id"`
	Format     string     `json:"format"`
	OutputDir  string     `json:"output_dir"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether the run has completed.
func (r *ExportRun) Finished() bool { return r.FinishedAt != nil }
