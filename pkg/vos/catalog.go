package vos

import (
	"fmt"
	"strings"

	"github.com/conecheck/conecheck/pkg/jsonutil"
)

// Catalog is one Cone Search service record. Besides "url" the keys are
// open: registry columns, "title", "duplicatesIgnored" and the
// validate_* annotations all live side by side.
type Catalog map[string]any

// Well-known catalog keys.
const (
	KeyURL               = "url"
	KeyTitle             = "title"
	KeyDuplicatesIgnored = "duplicatesIgnored"
)

// NewCatalog returns a catalog holding only an access URL.
func NewCatalog(url string) Catalog {
	return Catalog{KeyURL: url}
}

// URL returns the access URL, or "" if the record has none.
func (c Catalog) URL() string {
	s, _ := c[KeyURL].(string)
	return s
}

// Title returns the service title, or "".
func (c Catalog) Title() string {
	s, _ := c[KeyTitle].(string)
	return s
}

// Get returns the value stored under key.
func (c Catalog) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// Strings returns key as a string slice; JSON arrays decode as []any.
func (c Catalog) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int returns key as an int. JSON numbers decode as float64.
func (c Catalog) Int(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Clone returns a shallow copy.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// String returns the record as indented JSON with sorted keys.
func (c Catalog) String() string {
	data, err := jsonutil.MarshalIndent(map[string]any(c), "", jsonutil.DatabaseIndent)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(c))
	}
	return string(data)
}

func (c Catalog) validate() error {
	if strings.TrimSpace(c.URL()) == "" {
		return fmt.Errorf("%w: missing %q", ErrInvalidCatalog, KeyURL)
	}
	return nil
}
