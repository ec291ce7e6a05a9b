package events

// ProgressEvent reports how many services have been validated so far.
type ProgressEvent struct {
	BaseEvent
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	ElapsedSec float64 `json:"elapsed_sec"`
}
