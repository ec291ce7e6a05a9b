package vos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/httpclient"
	"github.com/conecheck/conecheck/pkg/votable"
)

// Registry columns every service row must carry.
const (
	RegistryTitleField = "res_title"
	RegistryURLField   = "access_url"
)

// FromRegistry downloads a registry VOTable (or reads it from a local path)
// and converts it with FromRegistryReader.
func FromRegistry(ctx context.Context, client *http.Client, location string, logger *slog.Logger) (*Database, error) {
	var data []byte
	if isRemote(location) {
		resp, err := httpclient.Get(ctx, client, location, defaults.BufferMax)
		if err != nil {
			return nil, fmt.Errorf("fetch registry %s: %w", location, err)
		}
		data = resp.Body
	} else {
		var err error
		if data, err = os.ReadFile(location); err != nil {
			return nil, err
		}
	}
	return FromRegistryReader(bytes.NewReader(data), logger)
}

// FromRegistryReader builds a database from a registry VOTable. Each row of
// the first table becomes a catalog named "<title> <n>", n counting the
// rows with that title from 1. access_url becomes "url", res_title becomes
// "title" and the remaining columns are copied. A row repeating an earlier
// access URL is dropped and counted in the earlier catalog's
// duplicatesIgnored.
func FromRegistryReader(r io.Reader, logger *slog.Logger) (*Database, error) {
	if logger == nil {
		logger = slog.Default()
	}

	doc, _, err := votable.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	tbl := doc.FirstTable()
	if tbl == nil {
		return nil, fmt.Errorf("%w: registry has no table", ErrRegistryField)
	}
	titleCol := tbl.FieldIndex(RegistryTitleField)
	urlCol := tbl.FieldIndex(RegistryURLField)
	for field, col := range map[string]int{RegistryTitleField: titleCol, RegistryURLField: urlCol} {
		if col < 0 {
			return nil, fmt.Errorf("%w: %s", ErrRegistryField, field)
		}
	}

	db := CreateEmpty()
	byURL := make(map[string]string)
	titles := make(map[string]int)

	for i, rec := range tbl.Records() {
		url := normalizeURL(cell(tbl, i, urlCol))
		title := strings.TrimSpace(cell(tbl, i, titleCol))
		if url == "" {
			logger.Warn("registry row without access URL", slog.Int("row", i), slog.String("title", title))
			continue
		}
		if first, dup := byURL[url]; dup {
			cat := db.catalogs[first]
			cat[KeyDuplicatesIgnored] = cat.Int(KeyDuplicatesIgnored) + 1
			logger.Warn("duplicate catalog ignored",
				slog.String("url", url),
				slog.String("title", title),
				slog.String("kept", first))
			continue
		}

		titles[title]++
		name := fmt.Sprintf("%s %d", title, titles[title])

		cat := Catalog(rec)
		delete(cat, RegistryTitleField)
		delete(cat, RegistryURLField)
		cat[KeyURL] = url
		cat[KeyTitle] = title
		cat[KeyDuplicatesIgnored] = 0

		if err := db.AddCatalog(name, cat, false); err != nil {
			return nil, err
		}
		byURL[url] = name
	}
	return db, nil
}

func cell(t *votable.Table, row, col int) string {
	if col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// normalizeURL trims blanks and undoes the double escaping some registries
// apply to access URLs.
func normalizeURL(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "&amp;", "&")
}

// NormalizeURL is the form access URLs are compared in.
func NormalizeURL(s string) string { return normalizeURL(s) }
