package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/conecheck/conecheck/pkg/config"
	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/duration"
	"github.com/conecheck/conecheck/pkg/httpclient"
	"github.com/conecheck/conecheck/pkg/logger"
	"github.com/conecheck/conecheck/pkg/ui"
)

// app is the state shared by every subcommand: global flags, the loaded
// configuration and the output streams.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags
	configFile string
	logLevel   string
	logFormat  string
	noColor    bool

	cfg    *config.Config
	logger *slog.Logger

	// lookupEnv is os.LookupEnv outside tests.
	lookupEnv func(string) (string, bool)

	// started is set once a subcommand passed argument parsing.
	started bool
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, lookupEnv: os.LookupEnv}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return defaults.ExitSuccess
	}
	if !a.started {
		// unknown command, bad flag or wrong argument count
		err = withExit(defaults.ExitUserError, err)
	}
	var ee *exitError
	// --strict failures are reported by the summary, not as an error.
	if !errors.As(err, &ee) || ee.code != defaults.ExitDegraded {
		fmt.Fprintf(stderr, "%s: %v\n", defaults.ToolName, err)
	}
	return exitCode(err)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   defaults.ToolName,
		Short: "Validate VO Cone Search services and inspect the results",
		Long: `conecheck queries every Cone Search service listed in a VO registry with a
small test cone, checks the VOTable each one returns, and files the services
into four catalog databases: good, warn, exception and error.`,
		Version:       defaults.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.started = true
			return a.setup()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: auto, text, json")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newValidateCmd(a), newInspectCmd(a), newDBCmd(a), newCompareCmd(a))
	return root
}

// setup loads the configuration (defaults, file, environment, then global
// flags) and builds the logger.
func (a *app) setup() error {
	cfg := config.Default()
	if a.configFile != "" {
		loaded, err := config.Load(a.configFile)
		if err != nil {
			return withExit(defaults.ExitUserError, err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(a.lookupEnv); err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if _, ok := a.lookupEnv("NO_COLOR"); ok {
		a.noColor = true
	}
	ui.SetNoColor(a.noColor)

	l, err := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		NoColor: a.noColor,
		Writer:  a.stderr,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	a.cfg = cfg
	a.logger = l
	return nil
}

// httpClient builds the client used for registry, probe and database
// downloads from the current configuration.
func (a *app) httpClient() (*http.Client, error) {
	hc := httpclient.DefaultConfig()
	// Requests carry their own deadlines; this only bounds the longest.
	hc.Timeout = duration.RegistryFetch
	hc.Proxy = a.cfg.Proxy
	hc.UserAgent = a.cfg.UserAgent
	hc.InsecureSkipVerify = a.cfg.SkipVerify
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, withExit(defaults.ExitUserError, err)
	}
	return client, nil
}
