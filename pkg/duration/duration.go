// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.RegistryFetch)
//	cfg.RemoteTimeout = duration.RemoteTimeout
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// REMOTE SERVICE TIMEOUTS
// ============================================================================

const (
	// RemoteTimeout is the default per-service probe timeout (REMOTE_TIMEOUT, 3s)
	RemoteTimeout = 3 * time.Second

	// RemoteTimeoutMax caps what configuration may request (5min)
	RemoteTimeoutMax = 5 * time.Minute

	// RegistryFetch bounds the registry download (60s)
	RegistryFetch = 60 * time.Second

	// DatabaseFetch bounds loading one published database (30s)
	DatabaseFetch = 30 * time.Second
)

// ============================================================================
// RETRY INTERVALS
// ============================================================================

const (
	// RetryFast is the first backoff step for probes (500ms)
	RetryFast = 500 * time.Millisecond

	// RetryStd is the first backoff step for the registry (2s)
	RetryStd = 2 * time.Second

	// RetryMax caps a single backoff step (30s)
	RetryMax = 30 * time.Second
)

// ============================================================================
// NETWORK/TRANSPORT
// ============================================================================

const (
	// DialTimeout is for establishing TCP connections (10s)
	DialTimeout = 10 * time.Second

	// KeepAlive is for TCP keep-alive interval (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is for idle connection pool timeout (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is for TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second
)

// ============================================================================
// CACHE TTLs
// ============================================================================

const (
	// CacheMedium is how long a failing host stays skipped (5min)
	CacheMedium = 5 * time.Minute
)

// ============================================================================
// TELEMETRY
// ============================================================================

const (
	// MetricsRead is the metrics server read timeout (5s)
	MetricsRead = 5 * time.Second

	// MetricsWrite is the metrics server write timeout (10s)
	MetricsWrite = 10 * time.Second

	// ExporterConnect bounds the OTLP exporter setup (10s)
	ExporterConnect = 10 * time.Second

	// ExporterShutdown bounds flushing spans on exit (5s)
	ExporterShutdown = 5 * time.Second
)
