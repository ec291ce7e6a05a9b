package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// defaultProxyPorts fills in a missing port; the keys are the accepted schemes.
// socks5h resolves target names on the proxy side.
var defaultProxyPorts = map[string]string{
	"http":    "8080",
	"https":   "8443",
	"socks5":  "1080",
	"socks5h": "1080",
}

// parseProxy normalises a proxy setting. A bare "host:port" means an HTTP
// proxy. An empty setting returns nil, nil.
func parseProxy(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	port, ok := defaultProxyPorts[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported proxy scheme %q (want http, https, socks5 or socks5h)", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("proxy %q has no host", raw)
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return u, nil
}

func isSOCKS(u *url.URL) bool {
	return strings.HasPrefix(u.Scheme, "socks5")
}

// socksDialContext returns a DialContext that tunnels through the SOCKS
// proxy at u. Each dial, handshake included, is bounded by timeout.
func socksDialContext(u *url.URL, timeout time.Duration) (func(context.Context, string, string) (net.Conn, error), error) {
	d, err := proxy.FromURL(u, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("%s dialer cannot be cancelled", u.Scheme)
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return cd.DialContext(ctx, network, addr)
	}, nil
}

// applyProxy routes the transport through the configured proxy: HTTP(S)
// proxies via Transport.Proxy, SOCKS proxies via a custom dialer.
func applyProxy(t *http.Transport, raw string, dialTimeout time.Duration) error {
	u, err := parseProxy(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	if u == nil {
		return nil
	}
	if !isSOCKS(u) {
		t.Proxy = http.ProxyURL(u)
		return nil
	}
	dial, err := socksDialContext(u, dialTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProxyConnect, err)
	}
	t.Proxy = nil
	t.DialContext = dial
	return nil
}
