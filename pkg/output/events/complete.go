package events

// CompleteEvent is emitted when a run finishes, successfully or not.
type CompleteEvent struct {
	BaseEvent
	Success    bool          `json:"success"`
	ExitCode   int           `json:"exit_code"`
	ExitReason string        `json:"exit_reason"`
	Summary    *SummaryEvent `json:"summary,omitempty"`
}
