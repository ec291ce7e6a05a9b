// Package inspect reads the four databases written by a validation pass and
// reports on them: per-status tallies, catalog listings with their
// diagnostics, and single catalog records.
package inspect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/conecheck/conecheck/pkg/config"
	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/validate"
	"github.com/conecheck/conecheck/pkg/vos"
	"github.com/conecheck/conecheck/pkg/votable"
)

// ConeSearchResults holds the good, warn, exception and error databases of
// one validation pass.
type ConeSearchResults struct {
	dbs         map[string]*vos.Database
	catkeys     map[string][]string
	noncritical map[string]bool
}

// Load reads the four databases from cfg.BaseURL, a directory or an
// http(s) URL.
func Load(ctx context.Context, cfg *config.Config, client *http.Client) (*ConeSearchResults, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	dbs := make(map[string]*vos.Database, len(defaults.Statuses()))
	for _, status := range defaults.Statuses() {
		loc := location(cfg.BaseURL, defaults.StatusFile(status))
		db, err := vos.Open(ctx, client, loc)
		if err != nil {
			return nil, fmt.Errorf("load %s database: %w", status, err)
		}
		dbs[status] = db
	}
	return FromDatabases(dbs, cfg.Noncritical), nil
}

// location appends a database file name to a base directory or URL.
func location(base, file string) string {
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		return base + file
	}
	return filepath.Join(base, file)
}

// FromDatabases builds results from in-memory databases keyed by status.
// Missing statuses are treated as empty.
func FromDatabases(dbs map[string]*vos.Database, noncritical []string) *ConeSearchResults {
	r := &ConeSearchResults{
		dbs:         make(map[string]*vos.Database, len(defaults.Statuses())),
		catkeys:     make(map[string][]string, len(defaults.Statuses())),
		noncritical: make(map[string]bool, len(noncritical)),
	}
	for _, code := range noncritical {
		r.noncritical[code] = true
	}
	for _, status := range defaults.Statuses() {
		db := dbs[status]
		if db == nil {
			db = vos.CreateEmpty()
		}
		r.dbs[status] = db
		// An empty pattern cannot fail.
		r.catkeys[status], _ = db.ListCatalogs("", true)
	}
	return r
}

// CatKeys returns the sorted catalog names of every status.
func (r *ConeSearchResults) CatKeys() map[string][]string {
	out := make(map[string][]string, len(r.catkeys))
	for status, names := range r.catkeys {
		out[status] = slices.Clone(names)
	}
	return out
}

// Database returns the database of a status.
func (r *ConeSearchResults) Database(status string) (*vos.Database, error) {
	db, ok := r.dbs[status]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	return db, nil
}

// Tally writes the number of catalogs per status and the total.
func (r *ConeSearchResults) Tally(w io.Writer) error {
	var b strings.Builder
	total := 0
	for _, status := range defaults.Statuses() {
		n := len(r.catkeys[status])
		total += n
		fmt.Fprintf(&b, "%d %s catalog(s)\n", n, status)
	}
	fmt.Fprintf(&b, "total: %d catalog(s)\n", total)
	_, err := io.WriteString(w, b.String())
	return err
}

// ListCats writes the catalogs of one status with their warning codes and
// diagnostics. With ignoreNoncrit, non-critical codes and the diagnostics
// carrying them are left out.
func (r *ConeSearchResults) ListCats(w io.Writer, status string, ignoreNoncrit bool) error {
	db, err := r.Database(status)
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, name := range r.catkeys[status] {
		cat, err := db.GetCatalog(name)
		if err != nil {
			return err
		}
		codes := cat.Strings(validate.KeyWarningTypes)
		lines := cat.Strings(validate.KeyWarnings)
		if ignoreNoncrit {
			codes = slices.DeleteFunc(slices.Clone(codes), r.isNoncritical)
			lines = slices.DeleteFunc(slices.Clone(lines), func(line string) bool {
				return r.isNoncritical(votable.ParseDiagnostic(line).Code)
			})
		}

		b.WriteString(name)
		b.WriteByte('\n')
		if len(codes) > 0 {
			fmt.Fprintf(&b, "    %s\n", strings.Join(codes, ", "))
		}
		for _, line := range lines {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	_, err = io.WriteString(w, b.String())
	return err
}

func (r *ConeSearchResults) isNoncritical(code string) bool {
	return r.noncritical[code]
}

// PrintCat writes the record of the named catalog and the status it was
// found in, or a not-found line.
func (r *ConeSearchResults) PrintCat(w io.Writer, name string) error {
	for _, status := range defaults.Statuses() {
		if !slices.Contains(r.catkeys[status], name) {
			continue
		}
		cat, err := r.dbs[status].GetCatalog(name)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\nFound in %s\n", cat, status)
		return err
	}
	_, err := fmt.Fprintf(w, "%s not found.\n", name)
	return err
}
