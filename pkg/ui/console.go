package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/output/dispatcher"
	"github.com/conecheck/conecheck/pkg/output/events"
)

// OutputMode determines how progress is displayed
type OutputMode int

const (
	// OutputModeInteractive redraws a single progress line with ANSI codes
	OutputModeInteractive OutputMode = iota
	// OutputModeStreaming writes plain lines, for CI and redirected output
	OutputModeStreaming
	// OutputModeSilent writes only the final summary
	OutputModeSilent
)

// DefaultOutputMode returns Interactive when stderr is a terminal,
// Streaming otherwise.
func DefaultOutputMode() OutputMode {
	if StderrIsTerminal() {
		return OutputModeInteractive
	}
	return OutputModeStreaming
}

// ConsoleConfig configures the console hook.
type ConsoleConfig struct {
	Writer io.Writer
	Mode   OutputMode

	// Verbose prints good services too, with their diagnostics.
	Verbose bool
}

// Console renders a validation run on a terminal. It implements
// dispatcher.Hook and is safe for concurrent use.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	mode      OutputMode
	formatter *ResultFormatter
	verbose   bool
	progress  bool // a progress line is on screen
}

var _ dispatcher.Hook = (*Console)(nil)

// NewConsole creates a console hook. A nil Writer means os.Stderr.
func NewConsole(cfg ConsoleConfig) *Console {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	return &Console{
		w:         w,
		mode:      cfg.Mode,
		formatter: NewResultFormatter(cfg.Verbose),
		verbose:   cfg.Verbose,
	}
}

// EventTypes returns nil: the console follows the whole run.
func (c *Console) EventTypes() []events.EventType {
	return nil
}

// OnEvent renders one event.
func (c *Console) OnEvent(_ context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := event.(type) {
	case *events.StartEvent:
		if c.mode == OutputModeSilent {
			return nil
		}
		c.println(fmt.Sprintf("%s %s %s",
			SectionStyle.Render("Validating"),
			StatValueStyle.Render(fmt.Sprintf("%d", e.Services)),
			StatLabelStyle.Render(fmt.Sprintf("Cone Search services (%d workers)", e.Config.Concurrency))))
	case *events.ProgressEvent:
		c.renderProgress(e)
	case *events.ResultEvent:
		if c.mode == OutputModeSilent {
			return nil
		}
		if e.Status == defaults.StatusGood && !c.verbose {
			return nil
		}
		c.println(c.formatter.FormatResult(e))
	case *events.ErrorEvent:
		if c.mode == OutputModeSilent && !e.Fatal {
			return nil
		}
		c.println(StatusStyle(defaults.StatusError).Render("error: ") + e.Message)
	case *events.SummaryEvent:
		c.clearProgress()
		fmt.Fprint(c.w, "\n"+SanitizeString(FormatSummary(e)))
	}
	return nil
}

func (c *Console) renderProgress(e *events.ProgressEvent) {
	switch c.mode {
	case OutputModeInteractive:
		fmt.Fprintf(c.w, "\r\033[2K%s %s",
			StatValueStyle.Render(fmt.Sprintf("%d/%d", e.Current, e.Total)),
			StatLabelStyle.Render(fmt.Sprintf("(%.0f%%)", e.Percentage)))
		c.progress = true
	case OutputModeStreaming:
		// every tenth of the run, so CI logs stay short
		step := max(e.Total/10, 1)
		if e.Current%step == 0 || e.Current == e.Total {
			fmt.Fprintf(c.w, "%d/%d (%.0f%%)\n", e.Current, e.Total, e.Percentage)
		}
	}
}

func (c *Console) println(s string) {
	c.clearProgress()
	fmt.Fprintln(c.w, SanitizeString(s))
}

func (c *Console) clearProgress() {
	if c.progress {
		fmt.Fprint(c.w, "\r\033[2K")
		c.progress = false
	}
}
