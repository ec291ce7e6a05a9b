package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/logger"
	"github.com/conecheck/conecheck/pkg/output/dispatcher"
	"github.com/conecheck/conecheck/pkg/output/hooks"
	"github.com/conecheck/conecheck/pkg/output/writers"
	"github.com/conecheck/conecheck/pkg/ui"
)

// outputFlags selects where the events of a validation run go.
type outputFlags struct {
	metricsAddr  string
	otlpEndpoint string
	otlpInsecure bool
	eventsFile   string
	verbose      bool
	quiet        bool
}

// outputs owns the dispatcher of one run and the hooks that need closing.
type outputs struct {
	dispatcher *dispatcher.Dispatcher
	prometheus *hooks.PrometheusHook
	otel       *hooks.OTelHook
}

// buildOutputs wires the dispatcher for a run. JSON logs get the structured
// logger hook; anything else gets the console renderer.
func (a *app) buildOutputs(f outputFlags) (*outputs, error) {
	o := &outputs{dispatcher: dispatcher.New(dispatcher.Config{Logger: a.logger})}

	if a.cfg.LogFormat == logger.FormatJSON {
		o.dispatcher.RegisterHook(hooks.NewLoggerHook(a.logger))
	} else {
		mode := ui.DefaultOutputMode()
		if !ui.IsTerminal(a.stderr) {
			mode = ui.OutputModeStreaming
		}
		if f.quiet {
			mode = ui.OutputModeSilent
		}
		o.dispatcher.RegisterHook(ui.NewConsole(ui.ConsoleConfig{
			Writer:  a.stderr,
			Mode:    mode,
			Verbose: f.verbose,
		}))
	}

	if f.metricsAddr != "" {
		h, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{Addr: f.metricsAddr, Logger: a.logger})
		if err != nil {
			return nil, errors.Join(err, o.close())
		}
		o.prometheus = h
		o.dispatcher.RegisterHook(h)
		a.logger.Info("serving metrics", "url", h.MetricsURL())
	}

	if f.otlpEndpoint != "" {
		h, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint:    f.otlpEndpoint,
			ServiceName: defaults.ToolName,
			Insecure:    f.otlpInsecure,
		})
		if err != nil {
			return nil, errors.Join(err, o.close())
		}
		o.otel = h
		o.dispatcher.RegisterHook(h)
	}

	if f.eventsFile != "" {
		file, err := os.Create(f.eventsFile)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("events file: %w", err), o.close())
		}
		o.dispatcher.RegisterWriter(writers.NewJSONLWriter(file, writers.JSONLOptions{}))
	}
	return o, nil
}

// close flushes writers, then shuts the telemetry hooks down.
func (o *outputs) close() error {
	errs := []error{o.dispatcher.Close()}
	if o.otel != nil {
		errs = append(errs, o.otel.Close())
	}
	if o.prometheus != nil {
		errs = append(errs, o.prometheus.Close())
	}
	return errors.Join(errs...)
}
