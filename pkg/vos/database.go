// Package vos holds Cone Search service catalogs and the JSON databases
// they are stored in: one record per service, keyed by a unique name, with
// at most one record per access URL unless a caller asks otherwise.
//
// On disk a database looks like
//
//	{
//	    "__version__": 1,
//	    "catalogs": {
//	        "HST Guide Star Catalog 2.3 1": {"url": "...", ...}
//	    }
//	}
package vos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/httpclient"
	"github.com/conecheck/conecheck/pkg/jsonutil"
)

// Database is a named collection of catalogs. It is safe for concurrent use.
type Database struct {
	mu       sync.RWMutex
	version  int
	catalogs map[string]Catalog
}

// Entry pairs a catalog with its name.
type Entry struct {
	Name    string
	Catalog Catalog
}

type dbFile struct {
	Version  *int               `json:"__version__"`
	Catalogs map[string]Catalog `json:"catalogs"`
}

// CreateEmpty returns a database with no catalogs.
func CreateEmpty() *Database {
	return &Database{
		version:  defaults.DatabaseVersion,
		catalogs: make(map[string]Catalog),
	}
}

// Decode reads a database from r.
func Decode(r io.Reader) (*Database, error) {
	var f dbFile
	if err := jsonutil.UnmarshalRead(r, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDatabase, err)
	}
	if f.Version == nil {
		return nil, fmt.Errorf("%w: missing __version__", ErrInvalidDatabase)
	}
	if *f.Version < 1 {
		return nil, fmt.Errorf("%w: __version__ %d", ErrInvalidDatabase, *f.Version)
	}
	if *f.Version > defaults.DatabaseVersion {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrUnsupportedVersion, *f.Version, defaults.DatabaseVersion)
	}
	if f.Catalogs == nil {
		return nil, fmt.Errorf("%w: missing catalogs", ErrInvalidDatabase)
	}

	db := &Database{version: *f.Version, catalogs: make(map[string]Catalog, len(f.Catalogs))}
	for name, cat := range f.Catalogs {
		if cat == nil {
			cat = Catalog{}
		}
		db.catalogs[name] = cat
	}
	return db, nil
}

// FromJSON reads a database file.
func FromJSON(filename string) (*Database, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	db, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return db, nil
}

// Open loads a database from a local path or an http(s) URL.
func Open(ctx context.Context, client *http.Client, location string) (*Database, error) {
	if !isRemote(location) {
		return FromJSON(location)
	}

	resp, err := httpclient.Get(ctx, client, location, defaults.BufferMax)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	db, err := Decode(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return db, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Encode writes the database as sorted, four-space indented JSON.
func (db *Database) Encode(w io.Writer) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	version := db.version
	return jsonutil.WriteIndent(w, dbFile{Version: &version, Catalogs: db.catalogs}, jsonutil.DatabaseIndent)
}

// ToJSON writes the database to filename. An existing file is replaced only
// when overwrite is true. The file is written to a temporary name first and
// renamed into place.
func (db *Database) ToJSON(filename string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(filename); err == nil {
			return fmt.Errorf("%w: %s", ErrFileExists, filename)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := db.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

// Version returns the format version the database was read with.
func (db *Database) Version() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.version
}

// Len returns the number of catalogs.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.catalogs)
}

// GetCatalog returns the catalog stored under name.
func (db *Database) GetCatalog(name string) (Catalog, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	cat, ok := db.catalogs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCatalogNotFound, name)
	}
	return cat, nil
}

// GetCatalogByURL returns the first catalog, by name, whose access URL is url.
func (db *Database) GetCatalogByURL(url string) (string, Catalog, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	name, ok := db.nameForURL(url)
	if !ok {
		return "", nil, fmt.Errorf("%w: url %q", ErrCatalogNotFound, url)
	}
	return name, db.catalogs[name], nil
}

func (db *Database) nameForURL(url string) (string, bool) {
	var found []string
	for name, cat := range db.catalogs {
		if cat.URL() == url {
			found = append(found, name)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	return slices.Min(found), true
}

// Catalogs returns every catalog sorted by name.
func (db *Database) Catalogs() []Entry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]Entry, 0, len(db.catalogs))
	for name, cat := range db.catalogs {
		out = append(out, Entry{Name: name, Catalog: cat})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// ListCatalogs returns catalog names, restricted to those matching the
// glob pattern when it is non-empty, and sorted on request. "*" stops at
// "/"; use "**" to span it.
func (db *Database) ListCatalogs(pattern string, sorted bool) ([]string, error) {
	db.mu.RLock()
	names := make([]string, 0, len(db.catalogs))
	for name := range db.catalogs {
		names = append(names, name)
	}
	db.mu.RUnlock()
	return filterNames(names, pattern, sorted)
}

// ListCatalogsByURL is ListCatalogs over access URLs.
func (db *Database) ListCatalogsByURL(pattern string, sorted bool) ([]string, error) {
	db.mu.RLock()
	urls := make([]string, 0, len(db.catalogs))
	for _, cat := range db.catalogs {
		urls = append(urls, cat.URL())
	}
	db.mu.RUnlock()
	return filterNames(urls, pattern, sorted)
}

func filterNames(in []string, pattern string, sorted bool) ([]string, error) {
	out := in
	if pattern != "" {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
		}
		out = in[:0]
		for _, s := range in {
			if doublestar.MatchUnvalidated(pattern, s) {
				out = append(out, s)
			}
		}
	}
	if sorted {
		slices.Sort(out)
	}
	return out, nil
}

// AddCatalog stores cat under name. A second catalog with the same access
// URL is refused unless allowDuplicateURL is set.
func (db *Database) AddCatalog(name string, cat Catalog, allowDuplicateURL bool) error {
	if err := cat.validate(); err != nil {
		return fmt.Errorf("%q: %w", name, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.catalogs[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCatalog, name)
	}
	if !allowDuplicateURL {
		if other, ok := db.nameForURL(cat.URL()); ok {
			return fmt.Errorf("%w: %q already used by %q", ErrDuplicateURL, cat.URL(), other)
		}
	}
	db.catalogs[name] = cat
	return nil
}

// AddCatalogByURL stores a catalog holding only url under name.
func (db *Database) AddCatalogByURL(name, url string, allowDuplicateURL bool) error {
	return db.AddCatalog(name, NewCatalog(url), allowDuplicateURL)
}

// DeleteCatalog removes the catalog stored under name.
func (db *Database) DeleteCatalog(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.catalogs[name]; !ok {
		return fmt.Errorf("%w: %q", ErrCatalogNotFound, name)
	}
	delete(db.catalogs, name)
	return nil
}

// DeleteCatalogByURL removes every catalog whose access URL is url.
func (db *Database) DeleteCatalogByURL(url string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	removed := 0
	for name, cat := range db.catalogs {
		if cat.URL() == url {
			delete(db.catalogs, name)
			removed++
		}
	}
	if removed == 0 {
		return fmt.Errorf("%w: url %q", ErrCatalogNotFound, url)
	}
	return nil
}

// Merge returns a new database holding the catalogs of db and other.
// Catalogs present in both under the same name fail the merge; so do
// distinct names sharing an access URL.
func (db *Database) Merge(other *Database) (*Database, error) {
	out := CreateEmpty()
	var errs []error
	for _, src := range []*Database{db, other} {
		for _, e := range src.Catalogs() {
			if err := out.AddCatalog(e.Name, e.Catalog.Clone(), false); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
