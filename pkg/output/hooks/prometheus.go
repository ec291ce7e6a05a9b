package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/duration"
	"github.com/conecheck/conecheck/pkg/output/dispatcher"
	"github.com/conecheck/conecheck/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook exposes validation metrics for Prometheus scraping:
// services per status, diagnostics per kind, probe latency and the
// per-status totals of the last finished run.
type PrometheusHook struct {
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry
	opts     PrometheusOptions

	servicesTotal    *prometheus.CounterVec
	diagnosticsTotal *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
	lastRunServices  *prometheus.GaugeVec
	lastRunDuration  prometheus.Gauge

	mu     sync.Mutex
	closed bool
}

// PrometheusOptions configures the Prometheus hook behavior.
type PrometheusOptions struct {
	// Addr to serve metrics on, e.g. ":9090". Empty disables the server;
	// Handler can still be mounted elsewhere.
	Addr string

	// Path for the metrics endpoint (default: "/metrics").
	Path string

	// ReadTimeout for the HTTP server (default: 5s).
	ReadTimeout time.Duration

	// WriteTimeout for the HTTP server (default: 10s).
	WriteTimeout time.Duration

	// Logger receives server errors. nil means slog.Default().
	Logger *slog.Logger
}

// NewPrometheusHook creates the hook and, when opts.Addr is set, starts
// serving metrics until Close is called.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Path == "" {
		opts.Path = "/metrics"
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = duration.MetricsRead
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = duration.MetricsWrite
	}
	opts.Logger = orDefault(opts.Logger)

	hook := &PrometheusHook{
		registry: prometheus.NewRegistry(),
		opts:     opts,
	}
	if err := hook.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if opts.Addr != "" {
		if err := hook.startServer(); err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
	}
	return hook, nil
}

func (h *PrometheusHook) initMetrics() error {
	ns := defaults.ToolName

	h.servicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "services_total",
			Help:      "Cone Search services validated, by resulting status",
		},
		[]string{"status"},
	)
	h.diagnosticsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "diagnostics_total",
			Help:      "VOTable diagnostics reported, by kind",
		},
		[]string{"kind"},
	)
	h.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "probe_duration_seconds",
			Help:      "Time to query and check one service",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)
	h.lastRunServices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "last_run_services",
			Help:      "Services per status in the last finished run",
		},
		[]string{"status"},
	)
	h.lastRunDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "last_run_duration_seconds",
		Help:      "Duration of the last finished run",
	})

	for _, c := range []prometheus.Collector{
		h.servicesTotal,
		h.diagnosticsTotal,
		h.probeDuration,
		h.lastRunServices,
		h.lastRunDuration,
	} {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (h *PrometheusHook) startServer() error {
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return err
	}
	h.listener = ln

	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, h.Handler())
	h.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  h.opts.ReadTimeout,
		WriteTimeout: h.opts.WriteTimeout,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.opts.Logger.Error("prometheus: metrics server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Handler serves the hook's registry in the Prometheus exposition format.
func (h *PrometheusHook) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the registry holding the hook's collectors.
func (h *PrometheusHook) Registry() *prometheus.Registry {
	return h.registry
}

// OnEvent updates the metrics.
func (h *PrometheusHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.ResultEvent:
		h.servicesTotal.WithLabelValues(e.Status).Inc()
		h.diagnosticsTotal.WithLabelValues("warning").Add(float64(e.Warnings))
		h.diagnosticsTotal.WithLabelValues("exception").Add(float64(e.Exceptions))
		h.probeDuration.WithLabelValues(e.Status).Observe(float64(e.DurationMs) / 1000)
	case *events.SummaryEvent:
		for _, status := range defaults.Statuses() {
			h.lastRunServices.WithLabelValues(status).Set(float64(e.Count(status)))
		}
		h.lastRunDuration.Set(e.Timing.DurationSec)
	}
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *PrometheusHook) EventTypes() []events.EventType {
	return []events.EventType{events.EventTypeResult, events.EventTypeSummary}
}

// Addr returns the address the metrics server listens on, or "".
func (h *PrometheusHook) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// MetricsURL returns the URL metrics are served at, or "".
func (h *PrometheusHook) MetricsURL() string {
	if h.listener == nil {
		return ""
	}
	return "http://" + h.Addr() + h.opts.Path
}

// Close shuts down the metrics server.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), duration.ExporterShutdown)
	defer cancel()
	return h.server.Shutdown(ctx)
}
