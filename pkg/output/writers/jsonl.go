// Package writers provides output writers for validation events.
//
// This package contains implementations of the dispatcher.Writer interface:
// JSONL (newline-delimited JSON) for machine consumption and an HTML index
// of service results for people.
package writers

import (
	"io"
	"sync"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/jsonutil"
	"github.com/conecheck/conecheck/pkg/output/dispatcher"
	"github.com/conecheck/conecheck/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*JSONLWriter)(nil)

// JSONLWriter writes events as newline-delimited JSON (JSONL).
// Each event is serialized as a complete JSON object on a single line,
// so tools like jq can follow a run while it is in progress.
type JSONLWriter struct {
	w       io.Writer
	mu      sync.Mutex
	opts    JSONLOptions
	encoder *jsonutil.Encoder
}

// JSONLOptions configures the JSONL writer behavior.
type JSONLOptions struct {
	// OmitDiagnostics drops the per-line diagnostics from result events.
	OmitDiagnostics bool

	// OnlyFailures writes only results whose status is not good, plus
	// every non-result event.
	OnlyFailures bool

	// SkipProgress drops progress events.
	SkipProgress bool
}

// NewJSONLWriter creates a new JSONL writer that writes to w.
// The writer is safe for concurrent use.
func NewJSONLWriter(w io.Writer, opts JSONLOptions) *JSONLWriter {
	return &JSONLWriter{
		w:       w,
		opts:    opts,
		encoder: jsonutil.NewStreamEncoder(w),
	}
}

// Write writes an event as a single JSON line.
// Returns nil if the event was filtered out by options.
func (jw *JSONLWriter) Write(event events.Event) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.opts.SkipProgress && event.EventType() == events.EventTypeProgress {
		return nil
	}

	re, ok := event.(*events.ResultEvent)
	if !ok {
		return jw.encoder.Encode(event)
	}
	if jw.opts.OnlyFailures && re.Status == defaults.StatusGood {
		return nil
	}
	if jw.opts.OmitDiagnostics {
		filtered := *re
		filtered.Diagnostics = nil
		return jw.encoder.Encode(&filtered)
	}
	return jw.encoder.Encode(re)
}

// Flush is a no-op: every event is written as soon as it arrives.
func (jw *JSONLWriter) Flush() error {
	return nil
}

// Close closes the underlying writer if it implements io.Closer.
func (jw *JSONLWriter) Close() error {
	if closer, ok := jw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for all event types.
func (jw *JSONLWriter) SupportsEvent(_ events.EventType) bool {
	return true
}
