package httpclient

import (
	"net/http"

	"github.com/conecheck/conecheck/pkg/defaults"
)

// uaTransport sets the User-Agent and a VOTable-preferring Accept header
// unless the caller already set them.
type uaTransport struct {
	base      http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (m *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" && m.userAgent != "" {
		r.Header.Set("User-Agent", m.userAgent)
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", defaults.AcceptVOTable)
	}
	return m.base.RoundTrip(r)
}
