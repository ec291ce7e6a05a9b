package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conecheck/conecheck/pkg/config"
	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/output/events"
	"github.com/conecheck/conecheck/pkg/validate"
)

type validateFlags struct {
	dest        string
	parallel    bool
	urls        []string
	defaultURLs bool
	registry    string
	timeout     time.Duration
	concurrency int
	rate        int
	retries     int
	skipHosts   bool
	saveXML     bool
	html        bool
	strict      bool
	output      outputFlags
}

func newValidateCmd(a *app) *cobra.Command {
	var f validateFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Probe Cone Search services and write the four status databases",
		Example: `  conecheck validate --dest out --parallel
  conecheck validate --default-urls --html --save-xml
  conecheck validate --url 'http://archive.example/cone?CAT=x&' --timeout 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runValidate(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.dest, "dest", "d", ".", "directory receiving the status databases")
	fl.BoolVarP(&f.parallel, "parallel", "p", false, "probe services concurrently")
	fl.StringArrayVar(&f.urls, "url", nil, "validate only this access URL (repeatable)")
	fl.BoolVar(&f.defaultURLs, "default-urls", false, "validate only the curated default services")
	fl.StringVar(&f.registry, "registry", "", "Cone Search registry URL")
	fl.DurationVar(&f.timeout, "timeout", 0, "per-service timeout")
	fl.IntVarP(&f.concurrency, "concurrency", "c", 0, "workers used with --parallel")
	fl.IntVar(&f.rate, "rate", 0, "maximum requests per second (0 = unlimited)")
	fl.IntVar(&f.retries, "retries", 0, "extra attempts on transient failures")
	fl.BoolVar(&f.skipHosts, "skip-failing-hosts", false, "stop querying a host after repeated network errors")
	fl.BoolVar(&f.saveXML, "save-xml", false, "keep every VOTable response under DEST/results")
	fl.BoolVar(&f.html, "html", false, "write DEST/results/index.html")
	fl.BoolVar(&f.strict, "strict", false, "exit 1 unless every service is good")
	fl.StringVar(&f.output.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fl.StringVar(&f.output.otlpEndpoint, "otlp-endpoint", "", "export traces to this OTLP gRPC endpoint")
	fl.BoolVar(&f.output.otlpInsecure, "otlp-insecure", false, "use a plaintext OTLP connection")
	fl.StringVar(&f.output.eventsFile, "events", "", "write run events as JSON Lines to FILE")
	fl.BoolVarP(&f.output.verbose, "verbose", "v", false, "show good services and every diagnostic")
	fl.BoolVarP(&f.output.quiet, "quiet", "q", false, "print only the summary")
	return cmd
}

// applyValidateFlags copies explicitly set flags over the configuration.
func applyValidateFlags(cmd *cobra.Command, cfg *config.Config, f validateFlags) error {
	fl := cmd.Flags()
	if fl.Changed("registry") {
		cfg.RegistryURL = f.registry
	}
	if fl.Changed("timeout") {
		cfg.RemoteTimeout = f.timeout
	}
	if fl.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if fl.Changed("rate") {
		cfg.RateLimit = f.rate
	}
	if fl.Changed("retries") {
		cfg.Retries = f.retries
	}
	if fl.Changed("skip-failing-hosts") {
		cfg.SkipFailingHosts = f.skipHosts
	}
	if fl.Changed("metrics-addr") {
		cfg.Metrics.Addr = f.output.metricsAddr
	}
	if fl.Changed("otlp-endpoint") {
		cfg.Tracing.Endpoint = f.output.otlpEndpoint
	}
	if fl.Changed("otlp-insecure") {
		cfg.Tracing.Insecure = f.output.otlpInsecure
	}
	return cfg.Validate()
}

func (a *app) runValidate(cmd *cobra.Command, f validateFlags) error {
	if len(f.urls) > 0 && f.defaultURLs {
		return usageError("--url and --default-urls are mutually exclusive")
	}
	if f.output.verbose && f.output.quiet {
		return usageError("--verbose and --quiet are mutually exclusive")
	}
	cfg := a.cfg.Clone()
	if err := applyValidateFlags(cmd, cfg, f); err != nil {
		return withExit(defaults.ExitUserError, err)
	}
	a.cfg = cfg
	f.output.metricsAddr = cfg.Metrics.Addr
	f.output.otlpEndpoint = cfg.Tracing.Endpoint
	f.output.otlpInsecure = cfg.Tracing.Insecure

	client, err := a.httpClient()
	if err != nil {
		return err
	}
	out, err := a.buildOutputs(f.output)
	if err != nil {
		return err
	}

	opts := validate.Options{
		DestDir:  f.dest,
		Parallel: f.parallel,
		URLList:  f.urls,
		SaveXML:  f.saveXML,
		HTML:     f.html,
	}
	if f.defaultURLs {
		opts.URLList = validate.DefaultURLList(cfg)
	}

	ctx := cmd.Context()
	report, runErr := validate.New(cfg, client).
		WithLogger(a.logger).
		WithDispatcher(out.dispatcher).
		CheckSites(ctx, opts)

	code := exitCode(runErr)
	if runErr == nil && f.strict && !report.AllGood() {
		code = defaults.ExitDegraded
		runErr = withExit(code, fmt.Errorf("%d of %d services are not good",
			report.Total()-report.Count(defaults.StatusGood), report.Total()))
	}
	emitComplete(ctx, out, report, code, runErr)

	return errors.Join(runErr, out.close())
}

func emitComplete(ctx context.Context, out *outputs, report *validate.Report, code int, runErr error) {
	runID := events.NewRunID()
	complete := &events.CompleteEvent{
		Success:    runErr == nil,
		ExitCode:   code,
		ExitReason: "completed",
	}
	if report != nil {
		runID = report.RunID
		complete.Summary = report.Summary()
	}
	if runErr != nil {
		complete.ExitReason = runErr.Error()
	}
	complete.BaseEvent = events.NewBase(events.EventTypeComplete, runID)
	_ = out.dispatcher.Dispatch(ctx, complete)
}
