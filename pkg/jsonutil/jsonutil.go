// Package jsonutil wraps github.com/go-json-experiment/json for the rest of
// the module. Catalog databases are written with sorted keys and four-space
// indentation so that regenerated files diff cleanly.
//
// Usage:
//
//	err := jsonutil.Unmarshal(data, &v)
//	err = jsonutil.WriteIndent(w, db, jsonutil.DatabaseIndent)
package jsonutil

import (
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// DatabaseIndent is the indentation of catalog database files.
const DatabaseIndent = "    "

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// UnmarshalRead decodes one JSON value from r into v.
func UnmarshalRead(r io.Reader, v any) error {
	return json.UnmarshalRead(r, v)
}

// Marshal returns the compact JSON encoding of v with map keys sorted.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true))
}

// MarshalIndent returns the indented JSON encoding of v with map keys sorted
// and a space after every colon.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return json.Marshal(v,
		json.Deterministic(true),
		jsontext.WithIndentPrefix(prefix),
		jsontext.WithIndent(indent),
	)
}

// WriteIndent writes the indented encoding of v to w followed by a newline.
func WriteIndent(w io.Writer, v any, indent string) error {
	data, err := MarshalIndent(v, "", indent)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// Encoder writes one compact JSON value per line (JSON Lines).
type Encoder struct {
	w io.Writer
}

// NewStreamEncoder creates an encoder that writes to w.
func NewStreamEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the JSON encoding of v to the stream, followed by a newline.
func (e *Encoder) Encode(v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = e.w.Write(data)
	return err
}
