// Package validate runs the Cone Search validation pass: it reads the
// service registry, queries every selected service with a small test cone,
// checks each response as a VOTable and as a Cone Search result, and files
// the annotated catalogs into good, warn, exception and error databases.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/conecheck/conecheck/pkg/config"
	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/duration"
	"github.com/conecheck/conecheck/pkg/hosterrors"
	"github.com/conecheck/conecheck/pkg/httpclient"
	"github.com/conecheck/conecheck/pkg/output/dispatcher"
	"github.com/conecheck/conecheck/pkg/output/events"
	"github.com/conecheck/conecheck/pkg/output/writers"
	"github.com/conecheck/conecheck/pkg/ratelimit"
	"github.com/conecheck/conecheck/pkg/retry"
	"github.com/conecheck/conecheck/pkg/runner"
	"github.com/conecheck/conecheck/pkg/vos"
	"github.com/conecheck/conecheck/pkg/votable"
)

// Catalog annotation keys written by a validation pass.
const (
	KeyExpected     = "validate_expected"
	KeyNetworkError = "validate_network_error"
	KeyNExceptions  = "validate_nexceptions"
	KeyNWarnings    = "validate_nwarnings"
	KeyOutDBName    = "validate_out_db_name"
	KeyVersion      = "validate_version"
	KeyWarningTypes = "validate_warning_types"
	KeyWarnings     = "validate_warnings"
	KeyQueryURL     = "validate_query_url"
	KeyDurationMs   = "validate_duration_ms"
)

// Options selects what one CheckSites call validates and writes.
type Options struct {
	// DestDir receives the four databases; it is created if missing.
	DestDir string

	// Parallel probes cfg.Concurrency services at a time; otherwise one
	// service at a time, in name order.
	Parallel bool

	// URLList restricts the run to these access URLs. nil validates every
	// registry entry.
	URLList []string

	// SaveXML keeps each response under DestDir/results/<hash>/vo.xml.
	SaveXML bool

	// HTML writes DestDir/results/index.html.
	HTML bool
}

// ServiceResult is the outcome for one catalog.
type ServiceResult struct {
	Name         string
	Catalog      vos.Catalog
	Status       string
	Expected     string
	QueryURL     string
	Version      string
	NetworkError string
	Diagnostics  []votable.Diagnostic
	Duration     time.Duration
	ResultDir    string // relative to DestDir/results; "" when nothing was saved
}

// Report summarises a finished validation pass.
type Report struct {
	RunID     string
	Registry  string
	Databases map[string]*vos.Database // by status
	Files     map[string]string        // by status
	Results   []ServiceResult          // sorted by name
	Missing   []string                 // requested URLs absent from the registry
	Started   time.Time
	Finished  time.Time
}

// Count returns the number of services filed under status.
func (r *Report) Count(status string) int {
	if db := r.Databases[status]; db != nil {
		return db.Len()
	}
	return 0
}

// Total returns the number of validated services.
func (r *Report) Total() int { return len(r.Results) }

// AllGood reports whether every service landed in the good bucket.
func (r *Report) AllGood() bool { return r.Count(defaults.StatusGood) == r.Total() }

// Summary returns the summary event of the run.
func (r *Report) Summary() *events.SummaryEvent { return summaryEvent(r.RunID, r) }

// Validator runs validation passes against one configuration.
type Validator struct {
	cfg        *config.Config
	client     *http.Client
	logger     *slog.Logger
	dispatcher *dispatcher.Dispatcher
	probeRetry retry.Config
	regRetry   retry.Config

	// keep filters runner results before they are recorded; nil keeps all.
	keep func(runner.Result[probeData]) bool
}

// New creates a Validator. A nil client means httpclient.Default().
func New(cfg *config.Config, client *http.Client) *Validator {
	if cfg == nil {
		cfg = config.Default()
	}
	if client == nil {
		client = httpclient.Default()
	}

	probe := retry.ForProbes(cfg.Retries)
	probe.Retryable = httpclient.IsTransient
	reg := retry.DefaultConfig()
	reg.MaxAttempts = defaults.RetryMedium
	reg.Retryable = httpclient.IsTransient

	return &Validator{
		cfg:        cfg,
		client:     client,
		logger:     slog.Default(),
		probeRetry: probe,
		regRetry:   reg,
	}
}

// WithLogger sets the logger used for run progress.
func (v *Validator) WithLogger(l *slog.Logger) *Validator {
	if l != nil {
		v.logger = l
	}
	return v
}

// WithDispatcher routes run events to d. The caller keeps ownership and
// closes it.
func (v *Validator) WithDispatcher(d *dispatcher.Dispatcher) *Validator {
	v.dispatcher = d
	return v
}

// DefaultURLList returns the curated access URLs validated by
// --default-urls.
func DefaultURLList(cfg *config.Config) []string {
	if cfg == nil || len(cfg.DefaultURLs) == 0 {
		return defaults.DefaultURLs()
	}
	return slices.Clone(cfg.DefaultURLs)
}

type probeData struct {
	queryURL string
	body     []byte
	version  string
	diags    []votable.Diagnostic
}

// CheckSites validates the services in the registry and writes one database
// per status to opts.DestDir. Per-service failures end up in the error
// database; only registry, file system and bookkeeping failures are returned.
func (v *Validator) CheckSites(ctx context.Context, opts Options) (*Report, error) {
	runID := events.NewRunID()
	report := &Report{
		RunID:     runID,
		Registry:  v.cfg.RegistryURL,
		Databases: make(map[string]*vos.Database),
		Files:     make(map[string]string),
		Started:   time.Now(),
	}
	for _, status := range defaults.Statuses() {
		report.Databases[status] = vos.CreateEmpty()
		report.Files[status] = filepath.Join(opts.DestDir, defaults.StatusFile(status))
	}

	if err := os.MkdirAll(opts.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", opts.DestDir, err)
	}

	registry, err := v.loadRegistry(ctx)
	if err != nil {
		v.emit(ctx, &events.ErrorEvent{
			BaseEvent: events.NewBase(events.EventTypeError, runID),
			Target:    v.cfg.RegistryURL,
			ErrorType: "registry",
			Message:   err.Error(),
			Fatal:     true,
		})
		return nil, err
	}

	selected, missing := selectServices(registry, opts.URLList)
	report.Missing = missing
	if len(missing) > 0 {
		v.logger.Warn(fmt.Sprintf("%d of %d catalogs are not found in registry", len(missing), len(missing)+len(selected)),
			slog.Any("urls", missing))
	}
	if len(selected) == 0 {
		return nil, ErrNoServices
	}

	resultsDir := filepath.Join(opts.DestDir, defaults.ResultsDir)
	if opts.SaveXML || opts.HTML {
		if err := os.MkdirAll(resultsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", resultsDir, err)
		}
	}

	var index *writers.HTMLWriter
	if opts.HTML {
		f, err := os.Create(filepath.Join(resultsDir, "index.html"))
		if err != nil {
			return nil, err
		}
		if index, err = writers.NewHTMLWriter(f, writers.HTMLConfig{ShowDiagnostics: true}); err != nil {
			f.Close()
			return nil, err
		}
	}

	concurrency := defaults.ConcurrencyMinimal
	if opts.Parallel {
		concurrency = v.cfg.Concurrency
	}
	v.emit(ctx, &events.StartEvent{
		BaseEvent: events.NewBase(events.EventTypeStart, runID),
		Registry:  v.cfg.RegistryURL,
		DestDir:   opts.DestDir,
		Services:  len(selected),
		Missing:   len(missing),
		Parallel:  opts.Parallel,
		Config: events.RunConfig{
			Concurrency: concurrency,
			TimeoutSec:  v.cfg.RemoteTimeout.Seconds(),
			RateLimit:   v.cfg.RateLimit,
			Retries:     v.cfg.Retries,
			Proxy:       v.cfg.Proxy != "",
		},
	})

	targets := make([]runner.Target, len(selected))
	catalogs := make(map[string]vos.Catalog, len(selected))
	for i, e := range selected {
		targets[i] = runner.Target{Key: e.Name, URL: e.Catalog.URL()}
		catalogs[e.Name] = e.Catalog
	}

	r := &runner.Runner[probeData]{
		Concurrency: concurrency,
		Timeout:     v.probeBudget(),
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: v.cfg.RateLimit,
			PerHost:           v.cfg.RateLimitPerHost,
		}),
	}
	if v.cfg.SkipFailingHosts {
		r.HostErrors = hosterrors.NewCache(hosterrors.DefaultMaxErrors, hosterrors.DefaultExpiry)
	}
	r.OnProgress = func(completed, total int64, _ runner.Result[probeData]) {
		v.emit(ctx, &events.ProgressEvent{
			BaseEvent:  events.NewBase(events.EventTypeProgress, runID),
			Current:    int(completed),
			Total:      int(total),
			Percentage: float64(completed) / float64(total) * 100,
			ElapsedSec: time.Since(report.Started).Seconds(),
		})
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	r.RunWithCallback(ctx, targets, v.probe, func(res runner.Result[probeData]) {
		if v.keep != nil && !v.keep(res) {
			return
		}
		sr, err := v.record(res, catalogs[res.Target.Key], resultsDir, opts.SaveXML)
		if err == nil {
			err = report.Databases[sr.Status].AddCatalog(sr.Name, sr.Catalog, true)
		}

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		report.Results = append(report.Results, sr)

		ev := resultEvent(runID, sr)
		v.emit(ctx, ev)
		if index != nil {
			_ = index.Write(ev)
		}
	})

	if err := errors.Join(errs...); err != nil {
		closeIndex(index)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		closeIndex(index)
		return nil, err
	}
	if len(report.Results) != len(targets) {
		closeIndex(index)
		return nil, fmt.Errorf("%w: got %d results for %d services",
			ErrResultCountMismatch, len(report.Results), len(targets))
	}
	slices.SortFunc(report.Results, func(a, b ServiceResult) int {
		return strings.Compare(a.Name, b.Name)
	})

	for _, status := range defaults.Statuses() {
		if err := report.Databases[status].ToJSON(report.Files[status], true); err != nil {
			closeIndex(index)
			return nil, fmt.Errorf("write %s database: %w", status, err)
		}
	}
	report.Finished = time.Now()

	summary := summaryEvent(runID, report)
	v.emit(ctx, summary)
	if index != nil {
		_ = index.Write(summary)
		if err := index.Close(); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func closeIndex(index *writers.HTMLWriter) {
	if index != nil {
		_ = index.Close()
	}
}

// loadRegistry reads the registry, retrying transient download failures.
func (v *Validator) loadRegistry(ctx context.Context) (*vos.Database, error) {
	var db *vos.Database
	err := retry.Do(ctx, v.regRetry, func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, duration.RegistryFetch)
		defer cancel()
		var err error
		db, err = vos.FromRegistry(fetchCtx, v.client, v.cfg.RegistryURL, v.logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistry, err)
	}
	return db, nil
}

// selectServices keeps the registry catalogs whose access URL is in urls,
// or every catalog when urls is nil. missing lists requested URLs the
// registry does not have.
func selectServices(registry *vos.Database, urls []string) (selected []vos.Entry, missing []string) {
	all := registry.Catalogs()
	if urls == nil {
		return all, nil
	}

	want := make(map[string]bool, len(urls))
	for _, u := range urls {
		want[vos.NormalizeURL(u)] = true
	}
	found := make(map[string]bool, len(want))
	for _, e := range all {
		u := vos.NormalizeURL(e.Catalog.URL())
		if want[u] {
			selected = append(selected, e)
			found[u] = true
		}
	}
	for u := range want {
		if !found[u] {
			missing = append(missing, u)
		}
	}
	slices.Sort(missing)
	return selected, missing
}

// probeBudget bounds one service including its retries.
func (v *Validator) probeBudget() time.Duration {
	attempts := time.Duration(max(v.probeRetry.MaxAttempts, 1))
	return attempts*v.cfg.RemoteTimeout + (attempts-1)*v.probeRetry.MaxDelay
}

// probe queries one service and checks its response. Only failures to get
// a response are returned as errors; a bad VOTable is a successful probe
// with exception diagnostics.
func (v *Validator) probe(ctx context.Context, target runner.Target) (probeData, error) {
	data := probeData{queryURL: QueryURL(target.URL, v.cfg.TestQuery)}

	var resp *httpclient.Response
	err := retry.Do(ctx, v.probeRetry, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, v.cfg.RemoteTimeout)
		defer cancel()
		var err error
		resp, err = httpclient.Get(attemptCtx, v.client, data.queryURL, v.cfg.MaxBodyBytes)
		return err
	})
	if err != nil {
		return data, err
	}
	data.body = resp.Body

	doc, diags, perr := votable.ParseBytes(resp.Body)
	if doc != nil {
		data.version = doc.Version
	}
	if _, nx := votable.Count(diags); perr == nil && nx == 0 {
		diags = append(diags, coneSearchChecks(doc, target.URL)...)
	}
	data.diags = diags
	return data, nil
}

// record classifies one probe result and annotates a copy of its catalog.
func (v *Validator) record(res runner.Result[probeData], cat vos.Catalog, resultsDir string, saveXML bool) (ServiceResult, error) {
	sr := ServiceResult{
		Name:        res.Target.Key,
		QueryURL:    res.Data.queryURL,
		Version:     res.Data.version,
		Diagnostics: res.Data.diags,
		Duration:    res.Duration,
	}
	if sr.QueryURL == "" {
		sr.QueryURL = QueryURL(res.Target.URL, v.cfg.TestQuery)
	}
	if res.Error != nil {
		sr.NetworkError = res.Error.Error()
		sr.Diagnostics = nil
		sr.Version = ""
	}

	nw, nx := votable.Count(sr.Diagnostics)
	codes := votable.Codes(sr.Diagnostics)
	status, expected, err := Classify(sr.NetworkError, nx, nw, codes, v.cfg.IsNoncritical)
	if err != nil {
		return sr, fmt.Errorf("%s: %w", sr.Name, err)
	}
	sr.Status, sr.Expected = status, expected

	if saveXML && len(res.Data.body) > 0 {
		dir := resultDirName(res.Target.URL)
		path := filepath.Join(resultsDir, dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return sr, err
		}
		if err := os.WriteFile(filepath.Join(path, "vo.xml"), res.Data.body, 0o644); err != nil {
			return sr, err
		}
		sr.ResultDir = dir
	}

	lines := make([]string, len(sr.Diagnostics))
	for i, d := range sr.Diagnostics {
		lines[i] = d.String()
	}

	c := cat.Clone()
	c[KeyExpected] = expected
	c[KeyNetworkError] = nullable(sr.NetworkError)
	c[KeyNExceptions] = nx
	c[KeyNWarnings] = nw
	c[KeyOutDBName] = defaults.StatusKey(status)
	c[KeyVersion] = nullable(sr.Version)
	c[KeyWarningTypes] = codes
	c[KeyWarnings] = lines
	c[KeyQueryURL] = sr.QueryURL
	c[KeyDurationMs] = sr.Duration.Milliseconds()
	sr.Catalog = c
	return sr, nil
}

// nullable maps "" to a JSON null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// resultDirName is a stable directory name for a service's saved files.
func resultDirName(accessURL string) string {
	h1, h2 := murmur3.Sum128([]byte(accessURL))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

func resultEvent(runID string, sr ServiceResult) *events.ResultEvent {
	nw, nx := votable.Count(sr.Diagnostics)
	lines := make([]string, len(sr.Diagnostics))
	for i, d := range sr.Diagnostics {
		lines[i] = d.String()
	}
	return &events.ResultEvent{
		BaseEvent:    events.NewBase(events.EventTypeResult, runID),
		Catalog:      sr.Name,
		Title:        sr.Catalog.Title(),
		URL:          sr.Catalog.URL(),
		QueryURL:     sr.QueryURL,
		Status:       sr.Status,
		Expected:     sr.Expected,
		Version:      sr.Version,
		Warnings:     nw,
		Exceptions:   nx,
		WarningTypes: votable.Codes(sr.Diagnostics),
		Diagnostics:  lines,
		NetworkError: sr.NetworkError,
		DurationMs:   sr.Duration.Milliseconds(),
		ResultDir:    sr.ResultDir,
	}
}

func summaryEvent(runID string, r *Report) *events.SummaryEvent {
	ev := &events.SummaryEvent{
		BaseEvent: events.NewBase(events.EventTypeSummary, runID),
		Version:   defaults.Version,
		Counts:    make(map[string]int),
		Total:     r.Total(),
		Files:     r.Files,
		Timing: events.SummaryTiming{
			StartedAt:   r.Started,
			CompletedAt: r.Finished,
			DurationSec: r.Finished.Sub(r.Started).Seconds(),
		},
	}
	for _, status := range defaults.Statuses() {
		ev.Counts[status] = r.Count(status)
	}

	var sum int64
	for i, sr := range r.Results {
		ms := sr.Duration.Milliseconds()
		if i == 0 || ms < ev.Latency.MinMs {
			ev.Latency.MinMs = ms
		}
		ev.Latency.MaxMs = max(ev.Latency.MaxMs, ms)
		sum += ms
	}
	if n := len(r.Results); n > 0 {
		ev.Latency.AvgMs = sum / int64(n)
	}
	return ev
}

func (v *Validator) emit(ctx context.Context, ev events.Event) {
	_ = v.dispatcher.Dispatch(ctx, ev)
}
