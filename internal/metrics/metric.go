// Package metrics records section generation outcomes for a run.
//
// A Recorder is a progress.Sink: it turns section and chapter events into
// Prometheus series on a private registry and keeps the raw per-section
// records in memory for the end-of-run summary.
package metrics

import "time"

// Metric is one section generation outcome.
type Metric struct {
	RunID     string `json:"run_id,omitempty"`
	ChapterID string `json:"chapter_id"`
	SectionID string `json:"section_id"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	TotalTokens  int     `json:"total_tokens,omitempty"`
	TotalSeconds float64 `json:"total_seconds,omitempty"`

	Success    bool   `json:"success"`
	ErrorClass string `json:"error_class,omitempty"`
	Message    string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
