package votable

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFile(t *testing.T, name string) (*Document, []Diagnostic) {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()

	doc, diags, err := Parse(f)
	require.NoError(t, err)
	return doc, diags
}

func TestParse_ConeSearchResponse(t *testing.T) {
	t.Parallel()
	doc, diags := parseFile(t, "conesearch.xml")

	assert.Empty(t, diags)
	assert.Equal(t, "1.3", doc.Version)
	assert.Equal(t, "http://www.ivoa.net/xml/VOTable/v1.3", doc.Namespace)
	require.Len(t, doc.Resources, 1)
	assert.Equal(t, "results", doc.Resources[0].Type)
	require.Len(t, doc.Resources[0].Infos, 1)
	assert.Equal(t, "QUERY_STATUS", doc.Resources[0].Infos[0].Name)

	tbl := doc.FirstTable()
	require.NotNil(t, tbl)
	assert.Equal(t, 2, tbl.NRows)
	assert.Equal(t, "TABLEDATA", tbl.Format)
	assert.Len(t, tbl.Fields, 6)
	assert.Len(t, tbl.Rows, 2)

	ra, ok := tbl.FieldByUCD("POS_EQ_RA_MAIN", "pos.eq.ra;meta.main")
	require.True(t, ok)
	assert.Equal(t, "ra", ra.Name)
	assert.Equal(t, "deg", ra.Unit)

	_, ok = tbl.FieldByUCD("pos.galactic.lon")
	assert.False(t, ok)
}

func TestTable_Values(t *testing.T) {
	t.Parallel()
	doc, _ := parseFile(t, "conesearch.xml")
	tbl := doc.FirstTable()

	assert.Equal(t, 1, tbl.FieldIndex("ra"))
	assert.Equal(t, -1, tbl.FieldIndex("missing"))

	assert.Equal(t, "star1", tbl.Value(0, 0))
	assert.Equal(t, 0.01, tbl.Value(0, 1))
	assert.Equal(t, int64(3), tbl.Value(0, 4))
	assert.Equal(t, true, tbl.Value(0, 5))
	assert.Nil(t, tbl.Value(1, 3), "empty float is null")
	assert.Equal(t, false, tbl.Value(1, 5))
	assert.Nil(t, tbl.Value(5, 0))

	recs := tbl.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "star2", recs[1]["id"])
	assert.Equal(t, 359.99, recs[1]["ra"])
}

func TestParse_Warnings(t *testing.T) {
	t.Parallel()
	doc, diags := parseFile(t, "warnings.xml")

	assert.Equal(t, "1.1", doc.Version)
	assert.Equal(t,
		[]string{"W09", "W18", "W22", "W30", "W42", "W46", "W48", "W49"},
		Codes(diags))

	nw, nx := Count(diags)
	assert.Equal(t, 8, nw)
	assert.Zero(t, nx)

	for _, d := range diags {
		assert.Positive(t, d.Line, d.String())
	}
}

func TestParse_Exceptions(t *testing.T) {
	t.Parallel()
	_, diags := parseFile(t, "exceptions.xml")

	assert.Equal(t, []string{"E06", "E10", "E14", "E18", "E20"}, Codes(diags))
	nw, nx := Count(diags)
	assert.Zero(t, nw)
	assert.Equal(t, 5, nx)
}

func TestParse_Latin1(t *testing.T) {
	t.Parallel()
	doc, diags := parseFile(t, "latin1.xml")

	tbl := doc.FirstTable()
	require.NotNil(t, tbl)
	assert.Equal(t, "café", tbl.Value(0, 0))
	assert.Equal(t, []string{"W55"}, Codes(diags))
}

func TestParse_Versions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		root    string
		version string
		codes   []string
	}{
		{
			name:    "missing version",
			root:    `<VOTABLE>`,
			version: "",
			codes:   []string{"W20", "W42"},
		},
		{
			name:    "v prefix",
			root:    `<VOTABLE version="v1.2" xmlns="http://www.ivoa.net/xml/VOTable/v1.2">`,
			version: "1.2",
			codes:   []string{"W29"},
		},
		{
			name:    "unsupported",
			root:    `<VOTABLE version="2.0">`,
			version: "2.0",
			codes:   []string{"W21"},
		},
		{
			name:    "wrong namespace",
			root:    `<VOTABLE version="1.3" xmlns="http://www.ivoa.net/xml/VOTable/v1.1">`,
			version: "1.3",
			codes:   []string{"W41"},
		},
		{
			name:    "1.4 uses 1.3 namespace",
			root:    `<VOTABLE version="1.4" xmlns="http://www.ivoa.net/xml/VOTable/v1.3">`,
			version: "1.4",
			codes:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, diags, err := ParseBytes([]byte(tt.root + `<RESOURCE/></VOTABLE>`))
			require.NoError(t, err)
			assert.Equal(t, tt.version, doc.Version)
			assert.Equal(t, tt.codes, Codes(diags))
		})
	}
}

func TestParse_ElementChecks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		body  string
		codes []string
	}{
		{
			name:  "no resource",
			body:  ``,
			codes: []string{"W53"},
		},
		{
			name:  "unknown tag",
			body:  `<RESOURCE><BOGUS><TABLE/></BOGUS></RESOURCE>`,
			codes: []string{"W10"},
		},
		{
			name:  "invalid and duplicate ids",
			body:  `<RESOURCE ID="1r"><TABLE ID="t"/><TABLE ID="t"/></RESOURCE>`,
			codes: []string{"W02", "W32"},
		},
		{
			name:  "two descriptions",
			body:  `<DESCRIPTION>a</DESCRIPTION><DESCRIPTION>b</DESCRIPTION><RESOURCE/>`,
			codes: []string{"W17"},
		},
		{
			name:  "undefined ref",
			body:  `<RESOURCE><TABLE><GROUP><FIELDref ref="nope"/></GROUP><FIELD name="a" ID="a" datatype="int"/><GROUP><FIELDref ref="a"/></GROUP></TABLE></RESOURCE>`,
			codes: []string{"W43"},
		},
		{
			name:  "info without value",
			body:  `<INFO name="QUERY_STATUS"/><RESOURCE/>`,
			codes: []string{"W35"},
		},
		{
			name:  "coosys after 1.2",
			body:  `<COOSYS system="sky"/><RESOURCE/>`,
			codes: []string{"E15", "E16", "W27"},
		},
		{
			name:  "field attributes",
			body:  `<RESOURCE><TABLE><FIELD name="a b" datatype="char" arraysize="x*" width="-1" precision="G3" ucd="not a ucd!"/></TABLE></RESOURCE>`,
			codes: []string{"E11", "E12", "E13", "W03", "W06"},
		},
		{
			name:  "fewer cells",
			body:  `<RESOURCE><TABLE><FIELD name="a" datatype="int"/><FIELD name="b" datatype="int"/><DATA><TABLEDATA><TR><TD>1</TD></TR></TABLEDATA></DATA></TABLE></RESOURCE>`,
			codes: []string{"E21"},
		},
		{
			name:  "bad boolean and out of range",
			body:  `<RESOURCE><TABLE><FIELD name="a" datatype="boolean"/><FIELD name="b" datatype="long"/><DATA><TABLEDATA><TR><TD>maybe</TD><TD>99999999999999999999</TD></TR></TABLEDATA></DATA></TABLE></RESOURCE>`,
			codes: []string{"E05", "W51"},
		},
		{
			name:  "wrong array length",
			body:  `<RESOURCE><TABLE><FIELD name="a" datatype="double" arraysize="2"/><DATA><TABLEDATA><TR><TD>1 2 3</TD></TR></TABLEDATA></DATA></TABLE></RESOURCE>`,
			codes: []string{"E02"},
		},
		{
			name:  "binary2",
			body:  `<RESOURCE><TABLE><FIELD name="a" datatype="int"/><DATA><BINARY2><STREAM encoding="base64">AAAA</STREAM></BINARY2></DATA></TABLE></RESOURCE>`,
			codes: []string{"W37"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := `<VOTABLE version="1.3" xmlns="http://www.ivoa.net/xml/VOTable/v1.3">` + tt.body + `</VOTABLE>`
			_, diags, err := ParseBytes([]byte(src))
			require.NoError(t, err)
			assert.Equal(t, tt.codes, Codes(diags))
		})
	}
}

func TestParse_Binary2BeforeVersion13(t *testing.T) {
	t.Parallel()
	src := `<VOTABLE version="1.2" xmlns="http://www.ivoa.net/xml/VOTable/v1.2"><RESOURCE><TABLE>` +
		`<DATA><BINARY2/></DATA></TABLE></RESOURCE></VOTABLE>`
	doc, diags, err := ParseBytes([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"W37", "W52"}, Codes(diags))
	assert.Equal(t, "BINARY2", doc.FirstTable().Format)
}

func TestParse_RowFloodReportedOnce(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	b.WriteString(`<VOTABLE version="1.3" xmlns="http://www.ivoa.net/xml/VOTable/v1.3"><RESOURCE><TABLE>`)
	b.WriteString(`<FIELD name="x" datatype="double"/><DATA><TABLEDATA>`)
	for range 500 {
		b.WriteString(`<TR><TD>nope</TD></TR>`)
	}
	b.WriteString(`</TABLEDATA></DATA></TABLE></RESOURCE></VOTABLE>`)

	doc, diags, err := ParseBytes([]byte(b.String()))
	require.NoError(t, err)
	assert.Len(t, diags, 1)
	assert.Len(t, doc.FirstTable().Rows, 500)
}

func TestParse_Fatal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		want error
		code string
	}{
		{name: "empty", src: ``, want: ErrNotVOTable, code: "E19"},
		{name: "html", src: `<!DOCTYPE html><html><body>Service unavailable</body></html>`, want: ErrNotVOTable, code: "E19"},
		{name: "truncated", src: `<VOTABLE version="1.3"><RESOURCE><TABLE>`, want: ErrMalformed, code: CodeUnknown},
		{name: "mismatched", src: `<VOTABLE version="1.3"><RESOURCE></VOTABLE>`, want: ErrMalformed, code: CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, diags, err := ParseBytes([]byte(tt.src))
			require.ErrorIs(t, err, tt.want)
			require.NotEmpty(t, diags)
			last := diags[len(diags)-1]
			assert.Equal(t, tt.code, last.Code)
			assert.Equal(t, Exception, last.Kind())
		})
	}
}
