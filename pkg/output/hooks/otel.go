package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/duration"
	"github.com/conecheck/conecheck/pkg/output/dispatcher"
	"github.com/conecheck/conecheck/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports validation runs as OpenTelemetry traces: one root span
// per run, a span event per validated service, and the final status set
// when the run completes.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu       sync.Mutex
	rootSpan trace.Span
	runID    string
	closed   bool
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP gRPC endpoint (default: "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "conecheck").
	ServiceName string

	// Insecure uses a plaintext connection.
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout bounds the final flush (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout bounds exporter setup (default: 10s).
	ConnectionTimeout time.Duration

	// Exporter replaces the OTLP exporter. Spans are then exported
	// synchronously and the global tracer provider is left alone.
	Exporter sdktrace.SpanExporter
}

// NewOTelHook creates a hook exporting to the configured endpoint.
// Connection failures surface when spans are exported, not here.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.ExporterShutdown
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.ExporterConnect
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "validator"),
	)

	var spanOpt sdktrace.TracerProviderOption
	if opts.Exporter != nil {
		spanOpt = sdktrace.WithSyncer(opts.Exporter)
	} else {
		exporter, err := newOTLPExporter(opts)
		if err != nil {
			return nil, err
		}
		spanOpt = sdktrace.WithBatcher(exporter)
	}

	tp := sdktrace.NewTracerProvider(
		spanOpt,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	if opts.Exporter == nil {
		otel.SetTracerProvider(tp)
	}

	return &OTelHook{
		opts:           opts,
		tracerProvider: tp,
		tracer:         tp.Tracer(defaults.ToolName + "/validate"),
	}, nil
}

func newOTLPExporter(opts OTelOptions) (*otlptrace.Exporter, error) {
	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("otel: create exporter: %w", err)
	}
	return exporter, nil
}

// OnEvent records the event on the run's span.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		h.handleStart(ctx, e)
	case *events.ResultEvent:
		h.handleResult(e)
	case *events.ErrorEvent:
		h.handleError(e)
	case *events.SummaryEvent:
		h.handleSummary(e)
	case *events.CompleteEvent:
		h.handleComplete(e)
	}
	return nil
}

func (h *OTelHook) handleStart(ctx context.Context, start *events.StartEvent) {
	if h.rootSpan != nil {
		h.rootSpan.End()
	}
	h.runID = start.RunID()
	_, span := h.tracer.Start(ctx, defaults.ToolName+".validate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(start.Timestamp()),
		trace.WithAttributes(
			attribute.String("run_id", h.runID),
			attribute.String("registry", start.Registry),
			attribute.Int("services", start.Services),
			attribute.Bool("parallel", start.Parallel),
			attribute.Int("concurrency", start.Config.Concurrency),
			attribute.Float64("timeout_sec", start.Config.TimeoutSec),
		),
	)
	h.rootSpan = span
}

func (h *OTelHook) handleResult(result *events.ResultEvent) {
	if h.rootSpan == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("catalog", result.Catalog),
		attribute.String("url", result.URL),
		attribute.String("status", result.Status),
		attribute.Int("warnings", result.Warnings),
		attribute.Int("exceptions", result.Exceptions),
		attribute.StringSlice("warning_types", result.WarningTypes),
		attribute.Int64("duration_ms", result.DurationMs),
	}
	if result.NetworkError != "" {
		attrs = append(attrs, attribute.String("network_error", result.NetworkError))
	}
	h.rootSpan.AddEvent("service_validated", trace.WithAttributes(attrs...))
}

func (h *OTelHook) handleError(e *events.ErrorEvent) {
	if h.rootSpan == nil {
		return
	}
	h.rootSpan.AddEvent("error", trace.WithAttributes(
		attribute.String("error_type", e.ErrorType),
		attribute.String("message", e.Message),
		attribute.Bool("fatal", e.Fatal),
	))
	if e.Fatal {
		h.rootSpan.SetStatus(codes.Error, e.Message)
	}
}

func (h *OTelHook) handleSummary(summary *events.SummaryEvent) {
	if h.rootSpan == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("totals.services", summary.Total),
		attribute.Float64("timing.duration_sec", summary.Timing.DurationSec),
	}
	for _, status := range defaults.Statuses() {
		attrs = append(attrs, attribute.Int("totals."+status, summary.Count(status)))
	}
	h.rootSpan.SetAttributes(attrs...)
}

func (h *OTelHook) handleComplete(complete *events.CompleteEvent) {
	if h.rootSpan == nil {
		return
	}
	h.rootSpan.AddEvent("validation_completed", trace.WithAttributes(
		attribute.Bool("success", complete.Success),
		attribute.Int("exit_code", complete.ExitCode),
		attribute.String("exit_reason", complete.ExitReason),
	))
	if complete.Success {
		h.rootSpan.SetStatus(codes.Ok, "")
	} else {
		h.rootSpan.SetStatus(codes.Error, complete.ExitReason)
	}
	h.rootSpan.End(trace.WithTimestamp(complete.Timestamp()))
	h.rootSpan = nil
}

// EventTypes returns the event types this hook handles.
func (h *OTelHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStart,
		events.EventTypeResult,
		events.EventTypeError,
		events.EventTypeSummary,
		events.EventTypeComplete,
	}
}

// Close ends any open span and flushes pending telemetry.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if h.rootSpan != nil {
		h.rootSpan.End()
		h.rootSpan = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
	defer cancel()
	if err := h.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel: shutdown tracer provider: %w", err)
	}
	return nil
}

// Endpoint returns the OTLP endpoint being used.
func (h *OTelHook) Endpoint() string {
	return h.opts.Endpoint
}

// ServiceName returns the service name being used.
func (h *OTelHook) ServiceName() string {
	return h.opts.ServiceName
}
