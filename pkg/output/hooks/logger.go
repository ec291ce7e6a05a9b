package hooks

import (
	"context"
	"log/slog"
	"strings"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/output/dispatcher"
	"github.com/conecheck/conecheck/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*LoggerHook)(nil)

// orDefault returns l if non-nil, otherwise slog.Default().
func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// LoggerHook writes one structured log line per service result and a
// summary line at the end of a run. Good services log at debug level,
// failures at warn.
type LoggerHook struct {
	logger *slog.Logger
}

// NewLoggerHook creates a logging hook. A nil logger means slog.Default().
func NewLoggerHook(logger *slog.Logger) *LoggerHook {
	return &LoggerHook{logger: orDefault(logger)}
}

// OnEvent logs the event.
func (h *LoggerHook) OnEvent(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.StartEvent:
		h.logger.InfoContext(ctx, "validation started",
			slog.String("run_id", e.RunID()),
			slog.Int("services", e.Services),
			slog.Bool("parallel", e.Parallel),
			slog.String("registry", e.Registry))
		if e.Missing > 0 {
			h.logger.WarnContext(ctx, "catalogs are not found in registry",
				slog.Int("missing", e.Missing),
				slog.Int("requested", e.Services+e.Missing))
		}
	case *events.ResultEvent:
		level := slog.LevelDebug
		if e.Status != defaults.StatusGood {
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("catalog", e.Catalog),
			slog.String("status", e.Status),
			slog.Int("warnings", e.Warnings),
			slog.Int("exceptions", e.Exceptions),
			slog.Int64("duration_ms", e.DurationMs),
		}
		if len(e.WarningTypes) > 0 {
			attrs = append(attrs, slog.String("codes", strings.Join(e.WarningTypes, ",")))
		}
		if e.NetworkError != "" {
			attrs = append(attrs, slog.String("error", e.NetworkError))
		}
		h.logger.LogAttrs(ctx, level, "service validated", attrs...)
	case *events.ErrorEvent:
		level := slog.LevelWarn
		if e.Fatal {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, e.Message,
			slog.String("type", e.ErrorType),
			slog.String("target", e.Target))
	case *events.SummaryEvent:
		h.logger.InfoContext(ctx, "validation finished",
			slog.Int(defaults.StatusGood, e.Count(defaults.StatusGood)),
			slog.Int(defaults.StatusWarn, e.Count(defaults.StatusWarn)),
			slog.Int(defaults.StatusException, e.Count(defaults.StatusException)),
			slog.Int(defaults.StatusError, e.Count(defaults.StatusError)),
			slog.Int("total", e.Total),
			slog.Float64("duration_sec", e.Timing.DurationSec))
	}
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *LoggerHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStart,
		events.EventTypeResult,
		events.EventTypeError,
		events.EventTypeSummary,
	}
}
