// Package votable reads IVOA VOTable documents and records every VOTable
// warning (Wnn) and exception (Enn) it runs into instead of stopping at the
// first one. Only TABLEDATA serialisations are decoded; BINARY, BINARY2 and
// FITS tables are recognised and reported.
package votable

import (
	"math"
	"strconv"
	"strings"
)

// Document is a parsed VOTABLE element.
type Document struct {
	Version   string // normalised, e.g. "1.3"; "" when the file gave none
	Namespace string
	Infos     []Info
	Params    []Param
	Resources []*Resource
}

// Resource is a RESOURCE element.
type Resource struct {
	ID        string
	Name      string
	Type      string
	Infos     []Info
	Params    []Param
	Tables    []*Table
	Resources []*Resource
}

// Field describes a FIELD (or the metadata part of a PARAM).
type Field struct {
	ID        string
	Name      string
	Datatype  string
	Arraysize string
	Width     string
	Precision string
	Unit      string
	UCD       string
	Utype     string
	Xtype     string
}

// Param is a PARAM element.
type Param struct {
	Field
	Value string
}

// Info is an INFO element. Content is its character data.
type Info struct {
	ID      string
	Name    string
	Value   string
	Content string
}

// Table is a TABLE element with its TABLEDATA cells as raw strings.
type Table struct {
	ID     string
	Name   string
	NRows  int // -1 when the nrows attribute is absent
	Format string
	Fields []Field
	Params []Param
	Infos  []Info
	Rows   [][]string
}

// FieldIndex returns the index of the field with the given name or ID,
// or -1.
func (t *Table) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name || f.ID == name {
			return i
		}
	}
	return -1
}

// FieldByUCD returns the first field whose UCD matches one of ucds,
// comparing case-insensitively and ignoring surrounding blanks.
func (t *Table) FieldByUCD(ucds ...string) (Field, bool) {
	for _, f := range t.Fields {
		u := strings.TrimSpace(f.UCD)
		for _, want := range ucds {
			if strings.EqualFold(u, want) {
				return f, true
			}
		}
	}
	return Field{}, false
}

// Value converts a cell to the Go value matching its field datatype:
// integers to int64, floating types to float64, boolean to bool and
// everything else to string. Empty, unparsable and non-finite cells
// become nil.
func (t *Table) Value(row, col int) any {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Fields) || col >= len(t.Rows[row]) {
		return nil
	}
	cell := t.Rows[row][col]
	f := t.Fields[col]
	if isScalar(f.Arraysize) {
		return convertScalar(f.Datatype, cell)
	}
	return cell
}

// Records returns each row as a map from field name to converted value.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i := range t.Rows {
		rec := make(map[string]any, len(t.Fields))
		for j, f := range t.Fields {
			key := f.Name
			if key == "" {
				key = f.ID
			}
			rec[key] = t.Value(i, j)
		}
		out[i] = rec
	}
	return out
}

// FirstTable returns the first TABLE of the document in document order.
func (d *Document) FirstTable() *Table {
	var walk func([]*Resource) *Table
	walk = func(rs []*Resource) *Table {
		for _, r := range rs {
			if len(r.Tables) > 0 {
				return r.Tables[0]
			}
			if t := walk(r.Resources); t != nil {
				return t
			}
		}
		return nil
	}
	return walk(d.Resources)
}

func isScalar(arraysize string) bool {
	return arraysize == "" || arraysize == "1"
}

func convertScalar(datatype, cell string) any {
	s := strings.TrimSpace(cell)
	switch datatype {
	case "short", "int", "long", "unsignedByte":
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil
		}
		return n
	case "float", "double":
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case "boolean":
		b, ok := parseBool(s)
		if !ok {
			return nil
		}
		return b
	}
	return cell
}

// parseBool accepts the VOTable boolean spellings. ok is false for
// anything else, including the empty (null) value.
func parseBool(s string) (value, ok bool) {
	switch strings.ToLower(s) {
	case "t", "true", "1":
		return true, true
	case "f", "false", "0":
		return false, true
	}
	return false, false
}
