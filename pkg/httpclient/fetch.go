package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/conecheck/conecheck/pkg/iohelper"
)

// Response is a fully read HTTP response.
type Response struct {
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get fetches rawURL and reads at most maxBytes of body. Non-2xx statuses
// return a *StatusError; transport failures are wrapped with ErrDNS, ErrTLS
// or ErrTimeout when they can be recognised.
func Get(ctx context.Context, client *http.Client, rawURL string, maxBytes int64) (*Response, error) {
	if client == nil {
		client = Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, Classify(err)
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := iohelper.ReadBodyStrict(resp.Body, maxBytes)
	if err != nil {
		return nil, Classify(err)
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Classify wraps a transport error with the matching sentinel. Errors that
// match none are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	var netErr net.Error

	switch {
	case errors.Is(err, ErrDNS), errors.Is(err, ErrTLS), errors.Is(err, ErrTimeout):
		return err
	case errors.As(err, &dnsErr):
		return fmt.Errorf("%w: %v", ErrDNS, err)
	case errors.As(err, &certErr), errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr), errors.As(err, &recordErr):
		return fmt.Errorf("%w: %v", ErrTLS, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// IsTransient reports whether a failed request is worth retrying:
// timeouts, connection failures and 5xx or 429 responses. DNS, TLS,
// redirect loops and 4xx statuses are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrDNS), errors.Is(err, ErrTLS), errors.Is(err, ErrTooManyRedirects),
		errors.Is(err, ErrInvalidProxy), errors.Is(err, iohelper.ErrBodyTooLarge):
		return false
	case errors.Is(err, ErrTimeout):
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
