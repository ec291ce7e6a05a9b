package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/vos"
)

func registryXML(base string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<VOTABLE version="1.1" xmlns="http://www.ivoa.net/xml/VOTable/v1.1">
<RESOURCE><TABLE>
<FIELD name="res_title" datatype="char" arraysize="*"/>
<FIELD name="access_url" datatype="char" arraysize="*"/>
<DATA><TABLEDATA>
<TR><TD>Good</TD><TD>%[1]s/good?CAT=a&amp;</TD></TR>
<TR><TD>Warn</TD><TD>%[1]s/warn</TD></TR>
</TABLEDATA></DATA></TABLE></RESOURCE></VOTABLE>
`, base)
}

func newArchive(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/registry", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, registryXML(srv.URL))
	})
	for _, name := range []string{"good", "warn"} {
		data, err := os.ReadFile(filepath.Join("testdata", name+".xml"))
		require.NoError(t, err)
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/xml")
			_, _ = w.Write(data)
		})
	}
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type result struct {
	code   int
	stdout string
	stderr string
}

func execute(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--log-format", "text", "--no-color"}, args...), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// validated runs a validation pass and returns its destination directory.
func validated(t *testing.T, extra ...string) (string, *httptest.Server) {
	t.Helper()
	srv := newArchive(t)
	dest := t.TempDir()
	args := append([]string{"validate", "--dest", dest, "--registry", srv.URL + "/registry"}, extra...)
	res := execute(t, args...)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	return dest, srv
}

func TestValidate(t *testing.T) {
	srv := newArchive(t)
	dest := t.TempDir()
	eventsFile := filepath.Join(t.TempDir(), "events.jsonl")

	res := execute(t, "validate", "--dest", dest, "--registry", srv.URL+"/registry",
		"--parallel", "--html", "--events", eventsFile)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)

	for _, status := range defaults.Statuses() {
		assert.FileExists(t, filepath.Join(dest, defaults.StatusFile(status)))
	}
	assert.FileExists(t, filepath.Join(dest, defaults.ResultsDir, "index.html"))
	assert.Contains(t, res.stderr, "[warn] Warn 1")
	assert.NotContains(t, res.stderr, "[good] Good 1")
	assert.Regexp(t, `Total\s+2`, res.stderr)

	data, err := os.ReadFile(eventsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], `"type":"start"`)
	assert.Contains(t, lines[len(lines)-1], `"type":"complete"`)
	assert.Contains(t, lines[len(lines)-1], `"success":true`)
}

func TestValidate_Strict(t *testing.T) {
	srv := newArchive(t)
	res := execute(t, "validate", "--dest", t.TempDir(), "--registry", srv.URL+"/registry", "--strict", "--quiet")
	assert.Equal(t, defaults.ExitDegraded, res.code)
	assert.NotContains(t, res.stderr, "conecheck: ")
	assert.NotContains(t, res.stderr, "[warn] Warn 1")
	assert.Regexp(t, `Warn\s+1`, res.stderr)
}

func TestValidate_URLSelection(t *testing.T) {
	srv := newArchive(t)
	dest := t.TempDir()
	res := execute(t, "validate", "--dest", dest, "--registry", srv.URL+"/registry",
		"--url", srv.URL+"/warn", "--verbose")
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)

	db, err := vos.FromJSON(filepath.Join(dest, defaults.StatusFile(defaults.StatusGood)))
	require.NoError(t, err)
	assert.Zero(t, db.Len())
	db, err = vos.FromJSON(filepath.Join(dest, defaults.StatusFile(defaults.StatusWarn)))
	require.NoError(t, err)
	assert.Equal(t, 1, db.Len())
}

func TestValidate_RegistryUnavailable(t *testing.T) {
	srv := newArchive(t)
	res := execute(t, "validate", "--dest", t.TempDir(), "--registry", srv.URL+"/missing")
	assert.Equal(t, defaults.ExitNetworkError, res.code)
	assert.Contains(t, res.stderr, "conecheck: ")
}

func TestValidate_UsageErrors(t *testing.T) {
	for name, args := range map[string][]string{
		"unknown flag":      {"validate", "--bogus"},
		"extra argument":    {"validate", "extra"},
		"unknown command":   {"frobnicate"},
		"exclusive flags":   {"validate", "--url", "http://x/cone?", "--default-urls"},
		"bad log level":     {"--log-level", "loud", "validate"},
		"bad timeout":       {"validate", "--timeout", "-1s"},
		"bad concurrency":   {"validate", "--concurrency", "0"},
		"missing config":    {"--config", "/nonexistent/conecheck.yaml", "validate"},
		"verbose and quiet": {"validate", "-v", "-q"},
	} {
		t.Run(name, func(t *testing.T) {
			res := execute(t, args...)
			assert.Equal(t, defaults.ExitUserError, res.code, res.stderr)
		})
	}
}

func TestInspect(t *testing.T) {
	dest, _ := validated(t)

	res := execute(t, "inspect", "tally", "--base", dest)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "1 good catalog(s)\n1 warn catalog(s)\n0 exception catalog(s)\n0 error catalog(s)\ntotal: 2 catalog(s)\n", res.stdout)

	res = execute(t, "inspect", "list", "warn", "--base", dest)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.True(t, strings.HasPrefix(res.stdout, "Warn 1\n    "), res.stdout)

	res = execute(t, "inspect", "print", "Good 1", "--base", dest)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"validate_expected": "good"`)
	assert.True(t, strings.HasSuffix(res.stdout, "Found in good\n"))

	res = execute(t, "inspect", "print", "Nope 1", "--base", dest)
	assert.Equal(t, "Nope 1 not found.\n", res.stdout)

	res = execute(t, "inspect", "keys", "--base", dest)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"Warn 1"`)
}

func TestInspect_Remote(t *testing.T) {
	dest, _ := validated(t)
	files := httptest.NewServer(http.FileServer(http.Dir(dest)))
	defer files.Close()

	res := execute(t, "inspect", "tally", "--base", files.URL)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "total: 2 catalog(s)")
}

func TestInspect_Errors(t *testing.T) {
	dest, _ := validated(t)

	res := execute(t, "inspect", "list", "bogus", "--base", dest)
	assert.Equal(t, defaults.ExitUserError, res.code)

	res = execute(t, "inspect", "tally", "--base", t.TempDir())
	assert.Equal(t, defaults.ExitUserError, res.code, "missing databases")

	files := httptest.NewServer(http.NotFoundHandler())
	defer files.Close()
	res = execute(t, "inspect", "tally", "--base", files.URL)
	assert.Equal(t, defaults.ExitNetworkError, res.code)
}

func TestDB(t *testing.T) {
	srv := newArchive(t)
	dir := t.TempDir()
	imported := filepath.Join(dir, "registry.json")

	res := execute(t, "db", "import", "--registry", srv.URL+"/registry", imported)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)

	res = execute(t, "db", "list", imported)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "Good 1\nWarn 1\n", res.stdout)

	res = execute(t, "db", "list", imported, "--pattern", "W*")
	assert.Equal(t, "Warn 1\n", res.stdout)

	res = execute(t, "db", "list", imported, "--by-url", "--pattern", "http://*/warn")
	assert.Equal(t, srv.URL+"/warn\n", res.stdout)

	res = execute(t, "db", "list", imported, "--pattern", "[")
	assert.Equal(t, defaults.ExitUserError, res.code)

	res = execute(t, "db", "show", imported, "Good 1")
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"url": "`+srv.URL+`/good?CAT=a&"`)

	res = execute(t, "db", "show", imported, "--by-url", srv.URL+"/warn")
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"title": "Warn"`)

	res = execute(t, "db", "show", imported, "Nope")
	assert.Equal(t, defaults.ExitUserError, res.code)

	res = execute(t, "db", "import", "--registry", srv.URL+"/registry", imported)
	assert.Equal(t, defaults.ExitUserError, res.code, "refuses to overwrite without --force")
}

func TestDB_MergeAndDelete(t *testing.T) {
	dest, _ := validated(t)
	good := filepath.Join(dest, defaults.StatusFile(defaults.StatusGood))
	warn := filepath.Join(dest, defaults.StatusFile(defaults.StatusWarn))
	merged := filepath.Join(t.TempDir(), "all.json")

	res := execute(t, "db", "merge", merged, good, warn)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	db, err := vos.FromJSON(merged)
	require.NoError(t, err)
	assert.Equal(t, 2, db.Len())

	res = execute(t, "db", "merge", "--force", merged, good, good)
	assert.Equal(t, defaults.ExitUserError, res.code, "duplicate names")

	res = execute(t, "db", "delete", merged, "Good 1")
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	res = execute(t, "db", "list", merged)
	assert.Equal(t, "Warn 1\n", res.stdout)

	res = execute(t, "db", "delete", merged, "Good 1")
	assert.Equal(t, defaults.ExitUserError, res.code)
}

func TestCompare(t *testing.T) {
	before, _ := validated(t)
	after := t.TempDir()

	// Demote "Good 1" by moving it into the warn database.
	good, err := vos.FromJSON(filepath.Join(before, defaults.StatusFile(defaults.StatusGood)))
	require.NoError(t, err)
	warn, err := vos.FromJSON(filepath.Join(before, defaults.StatusFile(defaults.StatusWarn)))
	require.NoError(t, err)
	moved, err := warn.Merge(good)
	require.NoError(t, err)
	require.NoError(t, moved.ToJSON(filepath.Join(after, defaults.StatusFile(defaults.StatusWarn)), false))
	for _, status := range []string{defaults.StatusGood, defaults.StatusException, defaults.StatusError} {
		require.NoError(t, vos.CreateEmpty().ToJSON(filepath.Join(after, defaults.StatusFile(status)), false))
	}

	res := execute(t, "compare", before, after)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "good: 1 -> 0 (-1)\n")
	assert.Contains(t, res.stdout, "regressed: Good 1 (good -> warn)\n")
	assert.Contains(t, res.stdout, "verdict: regressed\n")

	res = execute(t, "compare", "--json", before, after)
	require.Equal(t, defaults.ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"verdict": "regressed"`)

	res = execute(t, "compare", "--fail-on-regression", before, after)
	assert.Equal(t, defaults.ExitDegraded, res.code)

	res = execute(t, "compare", before, t.TempDir())
	assert.Equal(t, defaults.ExitUserError, res.code)
}
