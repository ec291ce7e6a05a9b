package writers

import (
	"cmp"
	"errors"
	"fmt"
	"html/template"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/output/dispatcher"
	"github.com/conecheck/conecheck/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*HTMLWriter)(nil)

// HTMLConfig configures the HTML index writer.
type HTMLConfig struct {
	// Title is the page title (default: "Cone Search validation results").
	Title string

	// ShowDiagnostics lists every diagnostic line under its service.
	ShowDiagnostics bool
}

// HTMLWriter writes an index page of service results grouped by status.
// It buffers all events in memory and renders the page on Close.
// The writer is safe for concurrent use.
type HTMLWriter struct {
	w       io.Writer
	mu      sync.Mutex
	config  HTMLConfig
	tmpl    *template.Template
	results []*events.ResultEvent
	summary *events.SummaryEvent
	closed  bool
}

// NewHTMLWriter creates a new HTML index writer.
func NewHTMLWriter(w io.Writer, config HTMLConfig) (*HTMLWriter, error) {
	if config.Title == "" {
		config.Title = "Cone Search validation results"
	}
	tmpl, err := template.New("index").Funcs(sprig.HtmlFuncMap()).Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse index template: %w", err)
	}
	return &HTMLWriter{w: w, config: config, tmpl: tmpl}, nil
}

// Write buffers an event for later HTML output.
func (hw *HTMLWriter) Write(event events.Event) error {
	hw.mu.Lock()
	defer hw.mu.Unlock()

	switch e := event.(type) {
	case *events.ResultEvent:
		hw.results = append(hw.results, e)
	case *events.SummaryEvent:
		hw.summary = e
	}
	return nil
}

// Flush is a no-op; the page is written once on Close.
func (hw *HTMLWriter) Flush() error {
	return nil
}

// Close renders the index page and closes the underlying writer, even when
// rendering fails. Later calls do nothing.
func (hw *HTMLWriter) Close() error {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	if hw.closed {
		return nil
	}
	hw.closed = true

	var errs []error
	if err := hw.tmpl.Execute(hw.w, hw.prepareTemplateData()); err != nil {
		errs = append(errs, fmt.Errorf("render index: %w", err))
	}
	if closer, ok := hw.w.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// SupportsEvent returns true for result and summary events.
func (hw *HTMLWriter) SupportsEvent(eventType events.EventType) bool {
	return eventType == events.EventTypeResult || eventType == events.EventTypeSummary
}

type htmlGroup struct {
	Status  string
	File    string
	Results []*events.ResultEvent
}

type htmlData struct {
	Title           string
	Generated       time.Time
	Version         string
	Total           int
	Duration        float64
	ShowDiagnostics bool
	Groups          []htmlGroup
}

func (hw *HTMLWriter) prepareTemplateData() htmlData {
	byStatus := make(map[string][]*events.ResultEvent)
	for _, r := range hw.results {
		byStatus[r.Status] = append(byStatus[r.Status], r)
	}

	data := htmlData{
		Title:           hw.config.Title,
		Generated:       time.Now(),
		Version:         defaults.Version,
		Total:           len(hw.results),
		ShowDiagnostics: hw.config.ShowDiagnostics,
	}
	if hw.summary != nil {
		data.Generated = hw.summary.Timing.CompletedAt
		data.Duration = hw.summary.Timing.DurationSec
	}

	for _, status := range defaults.Statuses() {
		rs := byStatus[status]
		slices.SortFunc(rs, func(a, b *events.ResultEvent) int { return cmp.Compare(a.Catalog, b.Catalog) })
		data.Groups = append(data.Groups, htmlGroup{
			Status:  status,
			File:    defaults.StatusFile(status),
			Results: rs,
		})
	}
	return data
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
th { background: #eee; }
.good { color: #2e7d32; } .warn { color: #f9a825; } .exception { color: #e65100; } .error { color: #c62828; }
.diag { font-family: monospace; font-size: 90%; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>{{ .Title }}</h1>
<p>{{ .Total }} service(s) validated{{ if .Duration }} in {{ printf "%.1f" .Duration }}s{{ end }}, {{ dateInZone "2006-01-02 15:04:05 MST" .Generated "UTC" }}, conecheck {{ .Version }}</p>
<ul>
{{- range .Groups }}
<li><a href="#{{ .Status }}" class="{{ .Status }}">{{ .Status }}</a>: {{ len .Results }} ({{ .File }})</li>
{{- end }}
</ul>
{{- range .Groups }}
<h2 id="{{ .Status }}" class="{{ .Status }}">{{ .Status | upper }} ({{ len .Results }})</h2>
{{- if .Results }}
<table>
<tr><th>Catalog</th><th>Expected</th><th>Warnings</th><th>Exceptions</th><th>Codes</th><th>Time</th></tr>
{{- range .Results }}
<tr>
<td>{{ if .ResultDir }}<a href="{{ .ResultDir }}/vo.xml">{{ .Catalog }}</a>{{ else }}{{ .Catalog }}{{ end }}<br><a href="{{ .QueryURL }}">{{ .URL | trunc 80 }}</a></td>
<td>{{ .Expected }}</td>
<td>{{ .Warnings }}</td>
<td>{{ .Exceptions }}</td>
<td>{{ .WarningTypes | join ", " | default "-" }}</td>
<td>{{ .DurationMs }} ms</td>
</tr>
{{- if .NetworkError }}
<tr><td colspan="6" class="diag error">{{ .NetworkError }}</td></tr>
{{- else if and $.ShowDiagnostics .Diagnostics }}
<tr><td colspan="6" class="diag">{{ .Diagnostics | join "\n" }}</td></tr>
{{- end }}
{{- end }}
</table>
{{- else }}
<p>None.</p>
{{- end }}
{{- end }}
</body>
</html>
`
