package writers

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conecheck/conecheck/pkg/jsonutil"
	"github.com/conecheck/conecheck/pkg/output/events"
	"github.com/conecheck/conecheck/pkg/testutil"
)

type closeRecorder struct {
	bytes.Buffer
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func res(catalog, status string, nw int, diags ...string) *events.ResultEvent {
	return &events.ResultEvent{
		BaseEvent:   events.NewBase(events.EventTypeResult, "run-1"),
		Catalog:     catalog,
		URL:         "http://archive.example.org/cone?CAT=" + catalog + "&",
		QueryURL:    "http://archive.example.org/cone?CAT=" + catalog + "&RA=0&DEC=0&SR=0.1&VERB=1",
		Status:      status,
		Warnings:    nw,
		Diagnostics: diags,
		DurationMs:  42,
	}
}

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, jsonutil.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestJSONLWriter_OneEventPerLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, JSONLOptions{})

	require.NoError(t, w.Write(&events.StartEvent{BaseEvent: events.NewBase(events.EventTypeStart, "run-1"), Services: 2}))
	require.NoError(t, w.Write(res("USNO-A2 1", "warn", 1, "1:1: W22: The DEFINITIONS element is deprecated")))
	require.NoError(t, w.Write(&events.ProgressEvent{BaseEvent: events.NewBase(events.EventTypeProgress, "run-1"), Current: 1, Total: 2}))
	require.NoError(t, w.Flush())

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 3)
	assert.Equal(t, "start", lines[0]["type"])
	assert.Equal(t, "result", lines[1]["type"])
	assert.Equal(t, "USNO-A2 1", lines[1]["catalog"])
	assert.Len(t, lines[1]["diagnostics"], 1)
	assert.Equal(t, "progress", lines[2]["type"])
}

func TestJSONLWriter_Filters(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, JSONLOptions{OmitDiagnostics: true, OnlyFailures: true, SkipProgress: true})

	require.NoError(t, w.Write(res("good one", "good", 0)))
	orig := res("bad one", "exception", 0, "E10: bad datatype")
	require.NoError(t, w.Write(orig))
	require.NoError(t, w.Write(&events.ProgressEvent{BaseEvent: events.NewBase(events.EventTypeProgress, "run-1")}))
	require.NoError(t, w.Write(&events.CompleteEvent{BaseEvent: events.NewBase(events.EventTypeComplete, "run-1"), Success: true}))

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 2)
	assert.Equal(t, "bad one", lines[0]["catalog"])
	assert.NotContains(t, lines[0], "diagnostics")
	assert.Equal(t, "complete", lines[1]["type"])
	assert.Len(t, orig.Diagnostics, 1, "the caller's event is not modified")
}

func TestJSONLWriter_ClosesUnderlying(t *testing.T) {
	t.Parallel()
	rec := &closeRecorder{}
	w := NewJSONLWriter(rec, JSONLOptions{})
	assert.True(t, w.SupportsEvent(events.EventTypeSummary))
	require.NoError(t, w.Close())
	assert.Equal(t, 1, rec.closed)
}

func TestHTMLWriter_GroupsByStatus(t *testing.T) {
	t.Parallel()
	rec := &closeRecorder{}
	w, err := NewHTMLWriter(rec, HTMLConfig{ShowDiagnostics: true})
	require.NoError(t, err)

	require.NoError(t, w.Write(res("Zeta", "good", 0)))
	require.NoError(t, w.Write(res("Alpha", "good", 0)))
	warn := res("Warned <b>", "warn", 1, "3:4: W09: ID attribute not capitalized")
	warn.WarningTypes = []string{"W09"}
	warn.ResultDir = "0a1b2c3d"
	require.NoError(t, w.Write(warn))
	broken := res("Broken", "error", 0)
	broken.NetworkError = "connection refused"
	require.NoError(t, w.Write(broken))
	require.NoError(t, w.Write(&events.SummaryEvent{
		BaseEvent: events.NewBase(events.EventTypeSummary, "run-1"),
		Timing:    events.SummaryTiming{CompletedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), DurationSec: 3},
	}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, rec.closed)

	page := rec.String()
	assert.Contains(t, page, "<title>Cone Search validation results</title>")
	assert.Contains(t, page, "4 service(s) validated in 3.0s, 2024-01-02 03:04:05 UTC")
	assert.Contains(t, page, `<h2 id="good" class="good">GOOD (2)</h2>`)
	assert.Contains(t, page, `<h2 id="exception" class="exception">EXCEPTION (0)</h2>`)
	assert.Contains(t, page, "conesearch_good.json")
	assert.Less(t, strings.Index(page, ">Alpha<"), strings.Index(page, ">Zeta<"))
	assert.Less(t, strings.Index(page, "GOOD ("), strings.Index(page, "WARN ("))
	assert.Contains(t, page, `<a href="0a1b2c3d/vo.xml">Warned &lt;b&gt;</a>`)
	assert.Contains(t, page, "<td>W09</td>")
	assert.Contains(t, page, "W09: ID attribute not capitalized")
	assert.Contains(t, page, "connection refused")
	assert.NotContains(t, page, "Warned <b>")
}

func TestHTMLWriter_SupportsEvent(t *testing.T) {
	t.Parallel()
	w, err := NewHTMLWriter(&bytes.Buffer{}, HTMLConfig{Title: "nightly"})
	require.NoError(t, err)
	assert.True(t, w.SupportsEvent(events.EventTypeResult))
	assert.True(t, w.SupportsEvent(events.EventTypeSummary))
	assert.False(t, w.SupportsEvent(events.EventTypeProgress))
}

func TestHTMLWriter_CloseError(t *testing.T) {
	t.Parallel()
	fw := testutil.NewFailingWriteCloser()
	w, err := NewHTMLWriter(fw, HTMLConfig{})
	require.NoError(t, err)
	require.NoError(t, w.Write(res("Alpha", "good", 0)))
	assert.ErrorIs(t, w.Close(), testutil.ErrFault)
	assert.Contains(t, string(fw.Bytes()), "Alpha")
}

func TestHTMLWriter_RenderError(t *testing.T) {
	t.Parallel()
	w, err := NewHTMLWriter(&testutil.FailingWriter{}, HTMLConfig{})
	require.NoError(t, err)
	assert.ErrorIs(t, w.Close(), testutil.ErrFault)
}

func TestHTMLWriter_RenderErrorStillCloses(t *testing.T) {
	t.Parallel()
	fw := &testutil.FailingWriteCloser{WriteErr: testutil.ErrFault}
	w, err := NewHTMLWriter(fw, HTMLConfig{})
	require.NoError(t, err)

	err = w.Close()
	require.ErrorIs(t, err, testutil.ErrFault)
	assert.Contains(t, err.Error(), "render index")
	assert.True(t, fw.Closed())
}
