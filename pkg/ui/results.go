package ui

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/output/events"
)

var titleCaser = cases.Title(language.English)

// Heading returns a status name as a section heading ("warn" -> "Warn").
func Heading(status string) string {
	return titleCaser.String(status)
}

// ResultFormatter formats service results for display.
type ResultFormatter struct {
	verbose bool
}

// NewResultFormatter creates a result formatter. A verbose formatter
// lists every diagnostic under its service.
func NewResultFormatter(verbose bool) *ResultFormatter {
	return &ResultFormatter{verbose: verbose}
}

// FormatResult renders one result:
//
//	[warn] USNO-A2 1 [2 warnings, 0 exceptions] [340ms]
func (rf *ResultFormatter) FormatResult(e *events.ResultEvent) string {
	var b strings.Builder
	b.WriteString(bracket(StatusStyle(e.Status).Render(e.Status)))
	b.WriteByte(' ')
	b.WriteString(StatValueStyle.Render(e.Catalog))
	b.WriteByte(' ')
	if e.Failed() {
		b.WriteString(bracket(StatusStyle(defaults.StatusError).Render(truncate(e.NetworkError, 80))))
	} else {
		b.WriteString(bracket(StatLabelStyle.Render(fmt.Sprintf("%d %s, %d %s",
			e.Warnings, plural(e.Warnings, "warning"),
			e.Exceptions, plural(e.Exceptions, "exception")))))
	}
	b.WriteByte(' ')
	b.WriteString(bracket(StatLabelStyle.Render(formatLatency(e.DurationMs))))

	if rf.verbose {
		for _, d := range e.Diagnostics {
			b.WriteString("\n      ")
			b.WriteString(DiagnosticStyle.Render(truncate(d, 120)))
		}
	}
	return b.String()
}

// FormatSummary renders the per-status totals of a run.
func FormatSummary(s *events.SummaryEvent) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(defaults.ToolName + " " + s.Version))
	b.WriteString("\n\n")
	for _, status := range defaults.Statuses() {
		label := fmt.Sprintf("%-10s", Heading(status))
		fmt.Fprintf(&b, "  %s %s %s",
			StatusIcon(status),
			StatusStyle(status).Render(label),
			StatValueStyle.Render(fmt.Sprintf("%5d", s.Count(status))))
		if f := s.Files[status]; f != "" {
			b.WriteString("  ")
			b.WriteString(StatLabelStyle.Render(f))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  %s %s\n", StatLabelStyle.Render(fmt.Sprintf("%-14s", "Total")), StatValueStyle.Render(fmt.Sprintf("%5d", s.Total)))
	if s.Total > 0 {
		fmt.Fprintf(&b, "  %s %s / %s / %s\n",
			StatLabelStyle.Render(fmt.Sprintf("%-20s", "Latency min/avg/max")),
			formatLatency(s.Latency.MinMs), formatLatency(s.Latency.AvgMs), formatLatency(s.Latency.MaxMs))
	}
	fmt.Fprintf(&b, "  %s %s\n",
		StatLabelStyle.Render(fmt.Sprintf("%-20s", "Duration")),
		time.Duration(s.Timing.DurationSec*float64(time.Second)).Round(time.Millisecond))
	return b.String()
}

func bracket(s string) string {
	return BracketStyle.Render("[") + s + BracketStyle.Render("]")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func formatLatency(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
