package validate

import (
	"fmt"
	"strings"

	"github.com/conecheck/conecheck/pkg/votable"
)

// requiredUCDs are the columns every Cone Search response must carry, as
// UCD1 names with their UCD1+ equivalents.
var requiredUCDs = []struct {
	ucd1, ucd1p string
}{
	{"ID_MAIN", "meta.id;meta.main"},
	{"POS_EQ_RA_MAIN", "pos.eq.ra;meta.main"},
	{"POS_EQ_DEC_MAIN", "pos.eq.dec;meta.main"},
}

// coneSearchChecks applies the Cone Search rules on top of a VOTable that
// parsed without exceptions. Problems are reported with the VOS code.
func coneSearchChecks(doc *votable.Document, accessURL string) []votable.Diagnostic {
	vos := func(format string, args ...any) []votable.Diagnostic {
		return []votable.Diagnostic{{Code: votable.CodeConeSearch, Message: fmt.Sprintf(format, args...)}}
	}

	if len(doc.Resources) == 0 {
		return vos("No resource")
	}
	if msg, ok := serverError(doc.Infos, doc.Params); ok {
		return vos("Catalog server '%s' returned error '%s'", accessURL, msg)
	}
	for _, r := range doc.Resources {
		if msg, ok := serverError(r.Infos, r.Params); ok {
			return vos("Catalog server '%s' returned error '%s'", accessURL, msg)
		}
	}

	res := doc.Resources[0]
	if len(res.Tables) == 0 {
		return vos("No table returned by server")
	}
	tbl := res.Tables[0]

	var out []votable.Diagnostic
	for _, req := range requiredUCDs {
		if _, ok := tbl.FieldByUCD(req.ucd1, req.ucd1p); !ok {
			out = append(out, vos("Missing required UCD '%s'", req.ucd1)...)
		}
	}
	return out
}

// serverError finds an INFO or PARAM named or identified "Error".
func serverError(infos []votable.Info, params []votable.Param) (string, bool) {
	for _, in := range infos {
		if isErrorName(in.Name) || isErrorName(in.ID) {
			msg := in.Value
			if msg == "" {
				msg = strings.TrimSpace(in.Content)
			}
			return msg, true
		}
	}
	for _, p := range params {
		if isErrorName(p.Name) || isErrorName(p.ID) {
			return p.Value, true
		}
	}
	return "", false
}

func isErrorName(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "error")
}
