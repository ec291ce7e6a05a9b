package inspect

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conecheck/conecheck/pkg/config"
	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/testutil"
	"github.com/conecheck/conecheck/pkg/vos"
)

func loadTestdata(t *testing.T) *ConeSearchResults {
	t.Helper()
	cfg := config.Default()
	cfg.BaseURL = "testdata"
	r, err := Load(context.Background(), cfg, nil)
	require.NoError(t, err)
	return r
}

// assertGolden compares output with a golden file line by line, ignoring
// trailing whitespace.
func assertGolden(t *testing.T, golden string, got []byte) {
	t.Helper()
	want, err := os.ReadFile(filepath.Join("testdata", golden))
	require.NoError(t, err)
	if diff := cmp.Diff(trimLines(string(want)), trimLines(string(got))); diff != "" {
		t.Errorf("%s mismatch (-want +got):\n%s", golden, diff)
	}
}

func trimLines(s string) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines
}

func TestCatKeys(t *testing.T) {
	t.Parallel()
	r := loadTestdata(t)
	want := map[string][]string{
		"good": {
			"HST Guide Star Catalog 2.3 1",
			"The USNO-A2.0 Catalogue (Monet+ 1998) 1",
		},
		"warn":      {"2MASS All-Sky Point Source Catalog 1"},
		"exception": {},
		"error":     {"BROKEN 1"},
	}
	assert.Empty(t, cmp.Diff(want, r.CatKeys()))

	keys := r.CatKeys()
	keys["good"][0] = "mutated"
	assert.Equal(t, "HST Guide Star Catalog 2.3 1", r.CatKeys()["good"][0])
}

func TestTally(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, loadTestdata(t).Tally(&buf))
	assertGolden(t, "tally.out", buf.Bytes())
}

func TestListCats(t *testing.T) {
	t.Parallel()
	r := loadTestdata(t)
	tests := []struct {
		golden        string
		status        string
		ignoreNoncrit bool
	}{
		{"listcats1.out", "good", false},
		{"listcats2.out", "good", true},
		{"listcats_warn.out", "warn", true},
	}
	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			require.NoError(t, r.ListCats(&buf, tt.status, tt.ignoreNoncrit))
			assertGolden(t, tt.golden, buf.Bytes())
		})
	}
}

func TestListCats_DoesNotModifyDatabase(t *testing.T) {
	t.Parallel()
	r := loadTestdata(t)
	require.NoError(t, r.ListCats(&bytes.Buffer{}, "warn", true))

	var buf bytes.Buffer
	require.NoError(t, r.ListCats(&buf, "warn", false))
	assert.Contains(t, buf.String(), "W18, W22")
}

func TestListCats_UnknownStatus(t *testing.T) {
	t.Parallel()
	err := loadTestdata(t).ListCats(&bytes.Buffer{}, "nerr", false)
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestListCats_EmptyStatus(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, loadTestdata(t).ListCats(&buf, "exception", false))
	assert.Empty(t, buf.String())
}

func TestPrintCat(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, loadTestdata(t).PrintCat(&buf, "The USNO-A2.0 Catalogue (Monet+ 1998) 1"))
	assertGolden(t, "printcat.out", buf.Bytes())
}

func TestPrintCat_NotFound(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, loadTestdata(t).PrintCat(&buf, "foo"))
	assert.Equal(t, "foo not found.\n", buf.String())
}

func TestWriteErrorsPropagate(t *testing.T) {
	t.Parallel()
	r := loadTestdata(t)
	assert.Error(t, r.Tally(&testutil.FailingWriter{}))
	assert.Error(t, r.ListCats(&testutil.FailingWriter{}, "good", false))
	assert.Error(t, r.PrintCat(&testutil.FailingWriter{}, "BROKEN 1"))
}

func TestLoad_RemoteBase(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.FileServer(http.Dir("testdata")))
	defer srv.Close()

	cfg := config.Default()
	cfg.BaseURL = srv.URL // no trailing slash
	r, err := Load(context.Background(), cfg, srv.Client())
	require.NoError(t, err)
	assert.Len(t, r.CatKeys()["good"], 2)
}

func TestLoad_MissingDatabase(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.BaseURL = t.TempDir()
	_, err := Load(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromDatabases_FillsMissingStatuses(t *testing.T) {
	t.Parallel()
	good := vos.CreateEmpty()
	require.NoError(t, good.AddCatalogByURL("only", "http://a.example/cone?", false))

	r := FromDatabases(map[string]*vos.Database{defaults.StatusGood: good}, nil)
	var buf bytes.Buffer
	require.NoError(t, r.Tally(&buf))
	assert.Equal(t, "1 good catalog(s)\n0 warn catalog(s)\n0 exception catalog(s)\n0 error catalog(s)\ntotal: 1 catalog(s)\n", buf.String())

	db, err := r.Database(defaults.StatusError)
	require.NoError(t, err)
	assert.Zero(t, db.Len())
}
