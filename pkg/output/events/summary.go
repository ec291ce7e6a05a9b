package events

import "time"

// SummaryEvent carries the totals of a finished run.
type SummaryEvent struct {
	BaseEvent
	Version string            `json:"version"`
	Counts  map[string]int    `json:"counts"`
	Total   int               `json:"total"`
	Files   map[string]string `json:"files,omitempty"`
	Latency LatencyInfo       `json:"latency"`
	Timing  SummaryTiming     `json:"timing"`
}

// LatencyInfo contains probe latency statistics.
type LatencyInfo struct {
	MinMs int64 `json:"min_ms"`
	MaxMs int64 `json:"max_ms"`
	AvgMs int64 `json:"avg_ms"`
}

// SummaryTiming contains timing information for the run.
type SummaryTiming struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationSec float64   `json:"duration_sec"`
}

// Count returns the number of services with the given status.
func (e *SummaryEvent) Count(status string) int {
	return e.Counts[status]
}
