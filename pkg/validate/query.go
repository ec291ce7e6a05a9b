package validate

import (
	"strconv"
	"strings"

	"github.com/conecheck/conecheck/pkg/config"
)

// QueryURL appends the test cone to a Cone Search access URL. A separator
// is added only when the access URL does not already end in "&" or "?".
func QueryURL(accessURL string, q config.TestQuery) string {
	var b strings.Builder
	b.WriteString(accessURL)
	switch {
	case strings.HasSuffix(accessURL, "&"), strings.HasSuffix(accessURL, "?"):
	case strings.Contains(accessURL, "?"):
		b.WriteByte('&')
	default:
		b.WriteByte('?')
	}
	b.WriteString("RA=")
	b.WriteString(formatDeg(q.RA))
	b.WriteString("&DEC=")
	b.WriteString(formatDeg(q.Dec))
	b.WriteString("&SR=")
	b.WriteString(formatDeg(q.SR))
	b.WriteString("&VERB=")
	b.WriteString(strconv.Itoa(q.Verb))
	return b.String()
}

func formatDeg(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
