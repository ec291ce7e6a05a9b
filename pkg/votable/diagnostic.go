package votable

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Kind separates diagnostics that only warn from those that make a
// document incorrect.
type Kind int

const (
	Warning Kind = iota
	Exception
)

func (k Kind) String() string {
	if k == Warning {
		return "warning"
	}
	return "exception"
}

// CodeUnknown is assigned to diagnostic lines that carry no recognisable code.
const CodeUnknown = "unknown"

// CodeConeSearch marks problems found by the Cone Search checks rather than
// the VOTable parser.
const CodeConeSearch = "VOS"

// Diagnostic is one problem found while reading a VOTable.
type Diagnostic struct {
	Code    string // Wnn, Enn, VOS or unknown
	Line    int
	Col     int
	Message string
}

// Kind reports Warning for Wnn codes and Exception for everything else.
func (d Diagnostic) Kind() Kind {
	if isWarningCode(d.Code) {
		return Warning
	}
	return Exception
}

// IsWarning is shorthand for d.Kind() == Warning.
func (d Diagnostic) IsWarning() bool { return d.Kind() == Warning }

// String renders "<line>:<col>: <code>: <message>", the form stored in
// catalog databases and read back by ParseDiagnostic.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Col, d.Code, d.Message)
}

func isWarningCode(code string) bool {
	return len(code) == 3 && code[0] == 'W' && isDigit(code[1]) && isDigit(code[2])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

var (
	codeRe = regexp.MustCompile(`\b([WE]\d{2}|VOS|unknown): ?`)
	posRe  = regexp.MustCompile(`(\d+):(\d+):\s*$`)
)

// ParseDiagnostic recovers a Diagnostic from its textual form. Anything in
// front of the position (a file name, say) is ignored. A line without a
// code yields CodeUnknown with the whole line as message.
func ParseDiagnostic(line string) Diagnostic {
	line = strings.TrimRight(line, "\r\n")
	loc := codeRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return Diagnostic{Code: CodeUnknown, Message: strings.TrimSpace(line)}
	}

	d := Diagnostic{
		Code:    line[loc[2]:loc[3]],
		Message: line[loc[1]:],
	}
	if m := posRe.FindStringSubmatch(line[:loc[0]]); m != nil {
		d.Line, _ = strconv.Atoi(m[1])
		d.Col, _ = strconv.Atoi(m[2])
	}
	return d
}

// Codes returns the sorted set of distinct codes in diags.
func Codes(diags []Diagnostic) []string {
	seen := make(map[string]bool, len(diags))
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		if !seen[d.Code] {
			seen[d.Code] = true
			out = append(out, d.Code)
		}
	}
	slices.Sort(out)
	return out
}

// Count returns the number of warnings and exceptions in diags.
func Count(diags []Diagnostic) (warnings, exceptions int) {
	for _, d := range diags {
		if d.IsWarning() {
			warnings++
		} else {
			exceptions++
		}
	}
	return warnings, exceptions
}

// Describe returns the short description of a code, or "" if unknown.
func Describe(code string) string {
	return descriptions[code]
}

var descriptions = map[string]string{
	"W02": "Attribute is not a valid XML id",
	"W03": "Implicitly generating an ID from a name",
	"W06": "Invalid UCD",
	"W09": "ID attribute not capitalized",
	"W10": "Unknown tag",
	"W15": "Element missing required 'name' attribute",
	"W17": "Element contains more than one DESCRIPTION element",
	"W18": "TABLE nrows does not match the number of rows",
	"W20": "No version number specified in file",
	"W21": "VOTable version not supported",
	"W22": "The DEFINITIONS element is deprecated",
	"W27": "COOSYS deprecated in VOTable 1.2",
	"W29": "Version specified in non-standard form",
	"W30": "Invalid literal for float",
	"W32": "Duplicate ID",
	"W35": "Required attribute missing on INFO element",
	"W37": "Unsupported data format",
	"W41": "Incorrect XML namespace",
	"W42": "No XML namespace specified",
	"W43": "Reference to an undefined ID",
	"W46": "Value is too long for specified length",
	"W48": "Unknown attribute on element",
	"W49": "Empty cell illegal for integer fields",
	"W51": "Value out of range for integer field",
	"W52": "BINARY2 format used before VOTable 1.3",
	"W53": "VOTABLE element must contain at least one RESOURCE element",
	"W55": "char field contains non-ASCII value",
	"E02": "Incorrect number of elements in array",
	"E05": "Invalid boolean value",
	"E06": "Unknown datatype",
	"E10": "'datatype' attribute required",
	"E11": "Invalid precision",
	"E12": "Invalid width",
	"E13": "Invalid arraysize attribute",
	"E14": "value attribute is required for all PARAM elements",
	"E15": "ID attribute is required for all COOSYS elements",
	"E16": "Invalid system attribute",
	"E18": "RESOURCE type must be 'results' or 'meta'",
	"E19": "File does not appear to be a VOTABLE",
	"E20": "Data has more columns than are defined in the header",
	"E21": "Data has fewer columns than are defined in the header",
	"VOS": "Response is not a valid Cone Search result",
}
