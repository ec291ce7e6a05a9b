// Package config holds the settings injected into every conecheck component.
// A Config is built once (defaults, then YAML file, then environment, then CLI
// flags) and passed down; nothing reads process-global switches.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/duration"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvRegistryURL   = "CONECHECK_REGISTRY_URL"
	EnvBaseURL       = "CONECHECK_BASE_URL"
	EnvRemoteTimeout = "CONECHECK_REMOTE_TIMEOUT"
	EnvConcurrency   = "CONECHECK_CONCURRENCY"
	EnvProxy         = "CONECHECK_PROXY"
	EnvLogLevel      = "CONECHECK_LOG_LEVEL"
	EnvSkipHosts     = "CONECHECK_SKIP_FAILING_HOSTS"
)

// TestQuery is the cone appended to every probed access URL.
type TestQuery struct {
	RA   float64 `yaml:"ra"`
	Dec  float64 `yaml:"dec"`
	SR   float64 `yaml:"sr"`
	Verb int     `yaml:"verb"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig enables OTLP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Config holds all conecheck settings
type Config struct {
	// Remote locations
	RegistryURL string `yaml:"registry_url"` // Cone Search registry listing
	BaseURL     string `yaml:"base_url"`     // Where published databases live (dir or URL)

	// Validation settings
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
	Noncritical   []string      `yaml:"noncritical"`  // Warning codes that do not demote a service
	DefaultURLs   []string      `yaml:"default_urls"` // Curated subset for --default-urls
	TestQuery     TestQuery     `yaml:"test_query"`

	// Execution settings
	Concurrency      int  `yaml:"concurrency"`
	RateLimit        int  `yaml:"rate_limit"` // Requests per second (0 = unlimited)
	RateLimitPerHost bool `yaml:"rate_limit_per_host"`
	Retries          int  `yaml:"retries"`
	// SkipFailingHosts stops querying a host after repeated network errors;
	// its remaining services are filed as errors without a request.
	SkipFailingHosts bool `yaml:"skip_failing_hosts"`

	// Network settings
	Proxy        string `yaml:"proxy"`
	UserAgent    string `yaml:"user_agent"`
	SkipVerify   bool   `yaml:"skip_verify"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // auto, text, json

	// Telemetry
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// Default returns a Config populated from pkg/defaults and pkg/duration.
func Default() *Config {
	return &Config{
		RegistryURL:   defaults.RegistryURL,
		BaseURL:       defaults.BaseURL,
		RemoteTimeout: duration.RemoteTimeout,
		Noncritical:   defaults.NoncriticalWarnings(),
		DefaultURLs:   defaults.DefaultURLs(),
		TestQuery: TestQuery{
			RA:   defaults.TestQueryRA,
			Dec:  defaults.TestQueryDec,
			SR:   defaults.TestQuerySR,
			Verb: defaults.TestQueryVerb,
		},
		Concurrency:  defaults.ConcurrencyMedium,
		RateLimit:    defaults.RateLimitNone,
		Retries:      defaults.RetryLow,
		UserAgent:    defaults.UserAgent("validate"),
		MaxBodyBytes: defaults.BufferMax,
		LogLevel:     "info",
		LogFormat:    "auto",
	}
}

// Load reads a YAML configuration file over the defaults.
// Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CONECHECK_* variables. lookup is usually
// os.LookupEnv; tests pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvRegistryURL); ok && v != "" {
		c.RegistryURL = v
	}
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvRemoteTimeout); ok && v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvRemoteTimeout, err)
		}
		c.RemoteTimeout = d
	}
	if v, ok := lookup(EnvConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvConcurrency, err)
		}
		c.Concurrency = n
	}
	if v, ok := lookup(EnvProxy); ok {
		c.Proxy = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvSkipHosts); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvSkipHosts, err)
		}
		c.SkipFailingHosts = b
	}
	return nil
}

// parseTimeout accepts Go durations ("3s") and bare seconds ("3", "2.5").
func parseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.RegistryURL == "" {
		errs = append(errs, fmt.Errorf("%w: registry_url", ErrMissingRequired))
	} else if !isHTTPURL(c.RegistryURL) {
		errs = append(errs, fmt.Errorf("%w: registry_url %q is not an http(s) URL", ErrInvalidConfig, c.RegistryURL))
	}
	if c.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%w: base_url", ErrMissingRequired))
	}
	if c.RemoteTimeout <= 0 || c.RemoteTimeout > duration.RemoteTimeoutMax {
		errs = append(errs, fmt.Errorf("%w: remote_timeout %s out of range (0, %s]",
			ErrInvalidConfig, c.RemoteTimeout, duration.RemoteTimeoutMax))
	}
	if c.Concurrency < defaults.ConcurrencyMinimal || c.Concurrency > defaults.ConcurrencyMax {
		errs = append(errs, fmt.Errorf("%w: concurrency %d out of range [%d, %d]",
			ErrInvalidConfig, c.Concurrency, defaults.ConcurrencyMinimal, defaults.ConcurrencyMax))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: rate_limit must not be negative", ErrInvalidConfig))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("%w: retries must not be negative", ErrInvalidConfig))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig))
	}
	if c.TestQuery.SR <= 0 {
		errs = append(errs, fmt.Errorf("%w: test_query.sr must be positive", ErrInvalidConfig))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel))
	}

	return errors.Join(errs...)
}

// IsNoncritical reports whether a warning code is in the non-critical list.
func (c *Config) IsNoncritical(code string) bool {
	for _, nc := range c.Noncritical {
		if nc == code {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can tweak settings per run.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Noncritical = append([]string(nil), c.Noncritical...)
	cp.DefaultURLs = append([]string(nil), c.DefaultURLs...)
	return &cp
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
