package httpclient

import (
	"errors"
	"fmt"
)

// Sentinel errors for HTTP client failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidProxy indicates the configured proxy URL could not be parsed.
	ErrInvalidProxy = errors.New("httpclient: invalid proxy URL")

	// ErrProxyConnect indicates the client failed to connect through
	// the configured proxy (SOCKS4/5, HTTP).
	ErrProxyConnect = errors.New("httpclient: proxy connection failed")

	// ErrDNS indicates a DNS resolution failure for the target host.
	ErrDNS = errors.New("httpclient: DNS resolution failed")

	// ErrTLS indicates a TLS handshake or certificate verification failure.
	ErrTLS = errors.New("httpclient: TLS handshake failed")

	// ErrTimeout indicates the request did not finish within its deadline.
	ErrTimeout = errors.New("httpclient: request timed out")

	// ErrHTTPStatus indicates a non-2xx response. See StatusError.
	ErrHTTPStatus = errors.New("httpclient: unexpected HTTP status")

	// ErrTooManyRedirects indicates the redirect limit was reached.
	ErrTooManyRedirects = errors.New("httpclient: too many redirects")
)

// StatusError carries the status of a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %s from %s", e.Status, e.URL)
}

// Unwrap makes errors.Is(err, ErrHTTPStatus) hold.
func (e *StatusError) Unwrap() error { return ErrHTTPStatus }
