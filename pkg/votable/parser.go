package votable

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// Namespaces per VOTable version. 1.4 kept the 1.3 namespace.
var namespaces = map[string]string{
	"1.1": "http://www.ivoa.net/xml/VOTable/v1.1",
	"1.2": "http://www.ivoa.net/xml/VOTable/v1.2",
	"1.3": "http://www.ivoa.net/xml/VOTable/v1.3",
	"1.4": "http://www.ivoa.net/xml/VOTable/v1.3",
}

var supportedVersions = map[string]bool{"1.0": true, "1.1": true, "1.2": true, "1.3": true, "1.4": true}

var datatypes = map[string]bool{
	"boolean": true, "bit": true, "unsignedByte": true, "short": true, "int": true, "long": true,
	"char": true, "unicodeChar": true, "float": true, "double": true,
	"floatComplex": true, "doubleComplex": true,
}

var coosysSystems = map[string]bool{
	"eq_FK4": true, "eq_FK5": true, "ICRS": true, "ecl_FK4": true, "ecl_FK5": true,
	"galactic": true, "supergalactic": true, "xy": true, "barycentric": true, "geo_app": true,
}

// Attributes each element may carry, besides namespaced ones.
var attributes = map[string][]string{
	"VOTABLE":     {"ID", "version"},
	"RESOURCE":    {"ID", "name", "type", "utype"},
	"TABLE":       {"ID", "name", "ucd", "utype", "ref", "nrows"},
	"FIELD":       {"ID", "name", "datatype", "arraysize", "width", "precision", "unit", "ucd", "utype", "xtype", "ref", "type"},
	"PARAM":       {"ID", "name", "datatype", "arraysize", "width", "precision", "unit", "ucd", "utype", "xtype", "ref", "value"},
	"INFO":        {"ID", "name", "value", "unit", "xtype", "ref", "ucd", "utype"},
	"GROUP":       {"ID", "name", "ucd", "utype", "ref"},
	"FIELDref":    {"ref", "ucd", "utype"},
	"PARAMref":    {"ref", "ucd", "utype"},
	"COOSYS":      {"ID", "equinox", "epoch", "system", "refposition"},
	"TIMESYS":     {"ID", "timeorigin", "timescale", "refposition"},
	"TR":          {"ID"},
	"TD":          {"encoding", "ref"},
	"DESCRIPTION": {},
	"DEFINITIONS": {},
	"DATA":        {},
	"TABLEDATA":   {},
}

var (
	xmlIDRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)
	arraysizeRe = regexp.MustCompile(`^(\d+x)*(\d+\*?|\*)$`)
	precisionRe = regexp.MustCompile(`^[EF]?[1-9][0-9]*$`)
	ucdWord     = `([A-Za-z]+:)?[A-Za-z0-9_][A-Za-z0-9_\-]*(\.[A-Za-z0-9_\-]+)*`
	ucdRe       = regexp.MustCompile(`^` + ucdWord + `(;\s*` + ucdWord + `)*$`)
)

type parser struct {
	dec     *xml.Decoder
	doc     *Document
	diags   []Diagnostic
	version string
	ids     map[string]bool
	refs    []pendingRef
}

type pendingRef struct {
	ref       string
	line, col int
	element   string
}

// Parse reads a VOTable document. Problems the document can survive are
// collected as diagnostics. A non-nil error (ErrNotVOTable, ErrMalformed)
// means parsing stopped early; the diagnostics then include that failure
// and the Document holds whatever was read before it.
func Parse(r io.Reader) (*Document, []Diagnostic, error) {
	p := &parser{
		dec: xml.NewDecoder(r),
		doc: &Document{},
		ids: make(map[string]bool),
	}
	p.dec.CharsetReader = charset.NewReaderLabel

	err := p.run()
	return p.doc, p.diags, err
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*Document, []Diagnostic, error) {
	return Parse(bytes.NewReader(data))
}

func (p *parser) run() error {
	start, err := p.root()
	if err != nil {
		return p.fail(err)
	}
	if start.Name.Local != "VOTABLE" {
		p.add("E19", "File does not appear to be a VOTABLE (root element is '%s')", start.Name.Local)
		return ErrNotVOTable
	}
	if err := p.votable(start); err != nil {
		return p.fail(err)
	}

	for _, ref := range p.refs {
		if !p.ids[ref.ref] {
			p.diags = append(p.diags, Diagnostic{
				Code: "W43", Line: ref.line, Col: ref.col,
				Message: fmt.Sprintf("%s ref='%s' which has not already been defined", ref.element, ref.ref),
			})
		}
	}
	if len(p.doc.Resources) == 0 {
		p.add("W53", "VOTABLE element must contain at least one RESOURCE element.")
	}
	return nil
}

// root returns the first start element, skipping the prolog.
func (p *parser) root() (xml.StartElement, error) {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// fail records a fatal read error as a diagnostic and maps it to a sentinel.
func (p *parser) fail(err error) error {
	if errors.Is(err, io.EOF) && len(p.diags) == 0 && p.doc.Version == "" && len(p.doc.Resources) == 0 {
		p.add("E19", "File does not appear to be a VOTABLE (no root element)")
		return ErrNotVOTable
	}
	var serr *xml.SyntaxError
	if errors.As(err, &serr) {
		p.diags = append(p.diags, Diagnostic{Code: CodeUnknown, Line: serr.Line, Message: serr.Msg})
	} else {
		p.add(CodeUnknown, "%v", err)
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

func (p *parser) add(code, format string, args ...any) {
	line, col := p.dec.InputPos()
	p.diags = append(p.diags, Diagnostic{Code: code, Line: line, Col: col, Message: fmt.Sprintf(format, args...)})
}

// attrs returns the element's attributes by local name and reports unknown,
// miscapitalised, malformed and duplicate IDs on the way.
func (p *parser) attrs(el xml.StartElement) map[string]string {
	allowed := attributes[el.Name.Local]
	out := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		if a.Name.Space != "" || a.Name.Local == "xmlns" {
			continue
		}
		name := a.Name.Local
		if name == "id" {
			p.add("W09", "ID attribute not capitalized")
			name = "ID"
		}
		if !contains(allowed, name) {
			p.add("W48", "Unknown attribute '%s' on %s", name, el.Name.Local)
		}
		out[name] = a.Value
	}
	if id, ok := out["ID"]; ok {
		switch {
		case !xmlIDRe.MatchString(id):
			p.add("W02", "%s attribute 'ID' is invalid. Must be a standard XML id", el.Name.Local)
		case p.ids[id]:
			p.add("W32", "Duplicate ID '%s'", id)
		}
		p.ids[id] = true
	}
	return out
}

func (p *parser) ref(el string, attrs map[string]string) {
	if ref := attrs["ref"]; ref != "" {
		line, col := p.dec.InputPos()
		p.refs = append(p.refs, pendingRef{ref: ref, line: line, col: col, element: el})
	}
}

// unknown reports and skips an element that is not allowed where it appears.
func (p *parser) unknown(el xml.StartElement) error {
	p.add("W10", "Unknown tag '%s'. Ignoring", el.Name.Local)
	return p.dec.Skip()
}

// children walks the content of the current element, calling handle for
// each child and text for character data, until the matching end tag.
func (p *parser) children(handle func(xml.StartElement) error, text func(string)) error {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := handle(t); err != nil {
				return err
			}
		case xml.CharData:
			if text != nil {
				text(string(t))
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (p *parser) votable(start xml.StartElement) error {
	attrs := p.attrs(start)
	p.doc.Namespace = start.Name.Space

	raw, hasVersion := attrs["version"]
	switch {
	case !hasVersion:
		p.add("W20", "No version number specified in file. Assuming 1.1")
		p.version = "1.1"
	case strings.HasPrefix(raw, "v") && supportedVersions[raw[1:]]:
		p.add("W29", "Version specified in non-standard form '%s'", raw)
		p.version = raw[1:]
		p.doc.Version = p.version
	case !supportedVersions[raw]:
		p.add("W21", "VOTable versions 1.0-1.4 are supported, but this file is '%s'", raw)
		p.version = raw
		p.doc.Version = raw
	default:
		p.version = raw
		p.doc.Version = raw
	}

	if want, ok := namespaces[p.version]; ok {
		switch {
		case p.doc.Namespace == "":
			p.add("W42", "No XML namespace specified")
		case p.doc.Namespace != want:
			p.add("W41", "An XML namespace is specified, but is incorrect. Expected '%s', got '%s'", want, p.doc.Namespace)
		}
	}

	descriptions := 0
	return p.children(func(el xml.StartElement) error {
		switch el.Name.Local {
		case "DESCRIPTION":
			descriptions++
			if descriptions == 2 {
				p.add("W17", "VOTABLE element contains more than one DESCRIPTION element")
			}
			return p.dec.Skip()
		case "DEFINITIONS":
			p.attrs(el)
			p.add("W22", "The DEFINITIONS element is deprecated in VOTable 1.1. Ignoring")
			return p.dec.Skip()
		case "COOSYS":
			return p.coosys(el)
		case "TIMESYS":
			p.attrs(el)
			return p.dec.Skip()
		case "GROUP":
			return p.group(el)
		case "PARAM":
			prm, err := p.field(el, true)
			p.doc.Params = append(p.doc.Params, prm)
			return err
		case "INFO":
			info, err := p.info(el)
			p.doc.Infos = append(p.doc.Infos, info)
			return err
		case "RESOURCE":
			res := &Resource{}
			p.doc.Resources = append(p.doc.Resources, res)
			return p.resource(el, res)
		}
		return p.unknown(el)
	}, nil)
}

func (p *parser) resource(start xml.StartElement, res *Resource) error {
	attrs := p.attrs(start)
	res.ID, res.Name, res.Type = attrs["ID"], attrs["name"], attrs["type"]
	if res.Type != "" && res.Type != "results" && res.Type != "meta" {
		p.add("E18", "type must be 'results' or 'meta', not '%s'", res.Type)
	}

	descriptions := 0
	return p.children(func(el xml.StartElement) error {
		switch el.Name.Local {
		case "DESCRIPTION":
			descriptions++
			if descriptions == 2 {
				p.add("W17", "RESOURCE element contains more than one DESCRIPTION element")
			}
			return p.dec.Skip()
		case "COOSYS":
			return p.coosys(el)
		case "TIMESYS":
			p.attrs(el)
			return p.dec.Skip()
		case "GROUP":
			return p.group(el)
		case "LINK":
			return p.dec.Skip()
		case "PARAM":
			prm, err := p.field(el, true)
			res.Params = append(res.Params, prm)
			return err
		case "INFO":
			info, err := p.info(el)
			res.Infos = append(res.Infos, info)
			return err
		case "TABLE":
			t := &Table{NRows: -1}
			res.Tables = append(res.Tables, t)
			return p.table(el, t)
		case "RESOURCE":
			sub := &Resource{}
			res.Resources = append(res.Resources, sub)
			return p.resource(el, sub)
		}
		return p.unknown(el)
	}, nil)
}

func (p *parser) table(start xml.StartElement, t *Table) error {
	attrs := p.attrs(start)
	t.ID, t.Name = attrs["ID"], attrs["name"]
	p.ref("TABLE", attrs)
	if v, ok := attrs["nrows"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			t.NRows = n
		}
	}

	descriptions := 0
	err := p.children(func(el xml.StartElement) error {
		switch el.Name.Local {
		case "DESCRIPTION":
			descriptions++
			if descriptions == 2 {
				p.add("W17", "TABLE element contains more than one DESCRIPTION element")
			}
			return p.dec.Skip()
		case "FIELD":
			prm, err := p.field(el, false)
			t.Fields = append(t.Fields, prm.Field)
			return err
		case "PARAM":
			prm, err := p.field(el, true)
			t.Params = append(t.Params, prm)
			return err
		case "INFO":
			info, err := p.info(el)
			t.Infos = append(t.Infos, info)
			return err
		case "GROUP":
			return p.group(el)
		case "LINK":
			return p.dec.Skip()
		case "DATA":
			return p.data(el, t)
		}
		return p.unknown(el)
	}, nil)
	if err != nil {
		return err
	}

	if t.NRows >= 0 && t.Format == "TABLEDATA" && t.NRows != len(t.Rows) {
		p.add("W18", "TABLE specified nrows=%d, but table contains %d rows", t.NRows, len(t.Rows))
	}
	return nil
}

// field parses FIELD and PARAM elements.
func (p *parser) field(start xml.StartElement, isParam bool) (Param, error) {
	el := start.Name.Local
	attrs := p.attrs(start)
	p.ref(el, attrs)

	f := Field{
		ID:        attrs["ID"],
		Name:      attrs["name"],
		Datatype:  attrs["datatype"],
		Arraysize: attrs["arraysize"],
		Width:     attrs["width"],
		Precision: attrs["precision"],
		Unit:      attrs["unit"],
		UCD:       attrs["ucd"],
		Utype:     attrs["utype"],
		Xtype:     attrs["xtype"],
	}

	if f.Name == "" {
		p.add("W15", "%s element missing required 'name' attribute", el)
	} else if f.ID == "" && !xmlIDRe.MatchString(f.Name) {
		p.add("W03", "Implicitly generating an ID from a name '%s'", f.Name)
	}
	if _, ok := attrs["datatype"]; !ok {
		p.add("E10", "'datatype' attribute required on all '%s' elements", el)
	} else if !datatypes[f.Datatype] {
		p.add("E06", "Unknown datatype '%s' on field '%s'", f.Datatype, f.Name)
	}
	if f.Arraysize != "" && !arraysizeRe.MatchString(f.Arraysize) {
		p.add("E13", "Invalid arraysize attribute '%s'", f.Arraysize)
	}
	if f.Width != "" {
		if n, err := strconv.Atoi(f.Width); err != nil || n <= 0 {
			p.add("E12", "width must be a positive integer, got '%s'", f.Width)
		}
	}
	if f.Precision != "" && !precisionRe.MatchString(f.Precision) {
		p.add("E11", "precision '%s' is invalid", f.Precision)
	}
	if f.UCD != "" && !ucdRe.MatchString(strings.TrimSpace(f.UCD)) {
		p.add("W06", "Invalid UCD '%s'", f.UCD)
	}

	prm := Param{Field: f}
	if isParam {
		v, ok := attrs["value"]
		if !ok {
			p.add("E14", "value attribute is required for all PARAM elements")
		}
		prm.Value = v
	}

	return prm, p.children(func(child xml.StartElement) error {
		switch child.Name.Local {
		case "DESCRIPTION", "VALUES", "LINK":
			return p.dec.Skip()
		}
		return p.unknown(child)
	}, nil)
}

func (p *parser) info(start xml.StartElement) (Info, error) {
	attrs := p.attrs(start)
	p.ref("INFO", attrs)
	info := Info{ID: attrs["ID"], Name: attrs["name"], Value: attrs["value"]}
	if _, ok := attrs["name"]; !ok {
		p.add("W35", "'name' attribute required for INFO elements")
	}
	if _, ok := attrs["value"]; !ok {
		p.add("W35", "'value' attribute required for INFO elements")
	}

	var content strings.Builder
	err := p.children(func(el xml.StartElement) error {
		return p.unknown(el)
	}, func(s string) { content.WriteString(s) })
	info.Content = strings.TrimSpace(content.String())
	return info, err
}

func (p *parser) coosys(start xml.StartElement) error {
	attrs := p.attrs(start)
	if p.version >= "1.2" {
		p.add("W27", "COOSYS deprecated in VOTable 1.2")
	}
	if attrs["ID"] == "" {
		p.add("E15", "ID attribute is required for all COOSYS elements")
	}
	if sys, ok := attrs["system"]; ok && !coosysSystems[sys] {
		p.add("E16", "Invalid system attribute '%s'", sys)
	}
	return p.dec.Skip()
}

func (p *parser) group(start xml.StartElement) error {
	p.attrs(start)
	return p.children(func(el xml.StartElement) error {
		switch el.Name.Local {
		case "FIELDref", "PARAMref":
			p.ref(el.Name.Local, p.attrs(el))
			return p.dec.Skip()
		case "PARAM":
			_, err := p.field(el, true)
			return err
		case "GROUP":
			return p.group(el)
		case "DESCRIPTION":
			return p.dec.Skip()
		}
		return p.unknown(el)
	}, nil)
}

func (p *parser) data(start xml.StartElement, t *Table) error {
	p.attrs(start)
	return p.children(func(el xml.StartElement) error {
		switch el.Name.Local {
		case "TABLEDATA":
			t.Format = "TABLEDATA"
			return p.tabledata(el, t)
		case "BINARY", "BINARY2", "FITS":
			t.Format = el.Name.Local
			if el.Name.Local == "BINARY2" && p.version < "1.3" {
				p.add("W52", "The BINARY2 format was introduced in VOTable 1.3, but this file is declared as version '%s'", p.version)
			}
			p.add("W37", "Unsupported data format '%s'", el.Name.Local)
			return p.dec.Skip()
		case "INFO":
			info, err := p.info(el)
			t.Infos = append(t.Infos, info)
			return err
		}
		return p.unknown(el)
	}, nil)
}

func (p *parser) tabledata(start xml.StartElement, t *Table) error {
	p.attrs(start)
	cells := newCellChecker(p, t.Fields)
	return p.children(func(tr xml.StartElement) error {
		if tr.Name.Local != "TR" {
			return p.unknown(tr)
		}
		p.attrs(tr)
		var row []string
		err := p.children(func(td xml.StartElement) error {
			if td.Name.Local != "TD" {
				return p.unknown(td)
			}
			p.attrs(td)
			var b strings.Builder
			err := p.children(func(el xml.StartElement) error {
				return p.unknown(el)
			}, func(s string) { b.WriteString(s) })
			row = append(row, b.String())
			return err
		}, nil)
		if err != nil {
			return err
		}
		cells.check(row)
		t.Rows = append(t.Rows, row)
		return nil
	}, nil)
}

// cellChecker validates TABLEDATA cells against their fields, reporting
// each code at most once per column so that a broken column in a large
// table yields one diagnostic rather than thousands.
type cellChecker struct {
	p        *parser
	fields   []Field
	reported map[string]bool
}

func newCellChecker(p *parser, fields []Field) *cellChecker {
	return &cellChecker{p: p, fields: fields, reported: make(map[string]bool)}
}

func (c *cellChecker) once(code string, col int, format string, args ...any) {
	key := code + "/" + strconv.Itoa(col)
	if c.reported[key] {
		return
	}
	c.reported[key] = true
	c.p.add(code, format, args...)
}

func (c *cellChecker) check(row []string) {
	switch {
	case len(row) > len(c.fields):
		c.once("E20", -1, "Data has more columns than are defined in the header (%d)", len(c.fields))
	case len(row) < len(c.fields):
		c.once("E21", -1, "Data has fewer columns (%d) than are defined in the header (%d)", len(row), len(c.fields))
	}
	for i, cell := range row {
		if i >= len(c.fields) {
			break
		}
		c.cell(i, c.fields[i], cell)
	}
}

func (c *cellChecker) cell(col int, f Field, cell string) {
	s := strings.TrimSpace(cell)
	switch f.Datatype {
	case "char":
		for i := 0; i < len(cell); i++ {
			if cell[i] >= utf8.RuneSelf {
				c.once("W55", col, "FIELD (%s) has datatype=\"char\" but contains non-ASCII value", f.Name)
				break
			}
		}
		fallthrough
	case "unicodeChar":
		if n, fixed := fixedLength(f.Arraysize); fixed && utf8.RuneCountInString(cell) > n {
			c.once("W46", col, "%s value is too long for specified length of %d", f.Datatype, n)
		}
		return
	}

	if !isScalar(f.Arraysize) {
		if n, fixed := fixedLength(f.Arraysize); fixed && s != "" {
			if got := len(strings.Fields(s)); got != n {
				c.once("E02", col, "Incorrect number of elements in array. Expected multiple of %d, got %d", n, got)
			}
		}
		return
	}

	switch f.Datatype {
	case "short", "int", "long", "unsignedByte":
		if s == "" {
			c.once("W49", col, "Empty cell illegal for integer fields.")
			return
		}
		if _, err := strconv.ParseInt(s, 0, 64); err != nil {
			if errors.Is(err, strconv.ErrRange) {
				c.once("W51", col, "Value '%s' out of range for %s integer field", s, f.Datatype)
			} else {
				c.once("W30", col, "Invalid literal for int '%s'. Treating as empty.", s)
			}
		}
	case "float", "double":
		if s == "" {
			return
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			c.once("W30", col, "Invalid literal for float '%s'. Treating as empty.", s)
		}
	case "boolean":
		if s == "" || s == "?" || s == " " {
			return
		}
		if _, ok := parseBool(s); !ok {
			c.once("E05", col, "Invalid boolean value '%s'", s)
		}
	}
}

// fixedLength returns the total element count of a fixed arraysize such as
// "8" or "2x3". Variable sizes ("*", "8*") report fixed=false.
func fixedLength(arraysize string) (n int, fixed bool) {
	if arraysize == "" || strings.Contains(arraysize, "*") {
		return 0, false
	}
	n = 1
	for _, part := range strings.Split(arraysize, "x") {
		k, err := strconv.Atoi(part)
		if err != nil {
			return 0, false
		}
		n *= k
	}
	return n, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
