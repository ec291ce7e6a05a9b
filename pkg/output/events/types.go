// Package events defines the event types emitted during a validation run.
// All events are designed for JSON serialization so that they can be
// streamed as JSON Lines or forwarded to hooks.
//
// BaseEvent is embedded in every concrete event type.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of output event.
type EventType string

const (
	// EventTypeStart indicates a validation run has started.
	EventTypeStart EventType = "start"
	// EventTypeResult indicates one service has been validated.
	EventTypeResult EventType = "result"
	// EventTypeProgress indicates progress during the run.
	EventTypeProgress EventType = "progress"
	// EventTypeError indicates an error outside a single service result.
	EventTypeError EventType = "error"
	// EventTypeSummary carries the per-status totals of a run.
	EventTypeSummary EventType = "summary"
	// EventTypeComplete indicates the run has finished.
	EventTypeComplete EventType = "complete"
)

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	RunID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Type EventType `json:"type"`
	Time time.Time `json:"timestamp"`
	Run  string    `json:"run_id"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// RunID returns the identifier of the run that produced this event.
func (e BaseEvent) RunID() string { return e.Run }

// NewBase stamps an event of type t for run with the current time.
func NewBase(t EventType, run string) BaseEvent {
	return BaseEvent{Type: t, Time: time.Now(), Run: run}
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}
