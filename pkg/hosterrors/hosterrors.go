// Package hosterrors remembers hosts that keep failing at the network level
// so that a validation run does not spend its remote timeout on every
// remaining service of an archive that is down.
//
// Usage:
//
//	if cache.Check(accessURL) {
//	    return hosterrors.ErrHostSkipped
//	}
//	if err := probe(); hosterrors.IsNetworkError(err) {
//	    cache.MarkError(accessURL)
//	}
package hosterrors

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conecheck/conecheck/pkg/duration"
	"github.com/conecheck/conecheck/pkg/httpclient"
)

// DefaultMaxErrors is the number of consecutive network errors after which
// a host is skipped.
const DefaultMaxErrors = 3

// DefaultExpiry is how long to cache a failed host
const DefaultExpiry = duration.CacheMedium

// ErrHostSkipped is reported instead of probing a host already known to be down.
var ErrHostSkipped = errors.New("hosterrors: host skipped after repeated network errors")

type hostState struct {
	count     int
	markedAt  time.Time
	permanent bool
}

// Cache stores hosts that have failed connectivity checks. The zero value
// is not usable; call NewCache.
type Cache struct {
	mu        sync.Mutex
	hosts     map[string]*hostState
	maxErrors int
	expiry    time.Duration
	now       func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a host error cache. maxErrors <= 0 means DefaultMaxErrors.
func NewCache(maxErrors int, expiry time.Duration) *Cache {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	return &Cache{
		hosts:     make(map[string]*hostState),
		maxErrors: maxErrors,
		expiry:    expiry,
		now:       time.Now,
	}
}

// MarkError records an error for a host. Returns true once the host has
// reached the threshold and will be skipped.
func (c *Cache) MarkError(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.hosts[host]
	if !ok {
		st = &hostState{}
		c.hosts[host] = st
	}
	c.expire(st)

	st.count++
	if st.count >= c.maxErrors {
		if st.markedAt.IsZero() {
			st.markedAt = c.now()
		}
		return true
	}
	return false
}

// MarkPermanent skips a host for the rest of the run (DNS failures).
func (c *Cache) MarkPermanent(host string) {
	host = normalizeHost(host)
	if host == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hosts[host] = &hostState{count: c.maxErrors, markedAt: c.now(), permanent: true}
}

// Check returns true if the host should be skipped.
func (c *Cache) Check(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.hosts[host]
	if ok {
		c.expire(st)
	}
	if !ok || st.count < c.maxErrors {
		c.misses.Add(1)
		return false
	}
	c.hits.Add(1)
	return true
}

// expire resets a non-permanent entry whose skip window has passed.
// Callers hold c.mu.
func (c *Cache) expire(st *hostState) {
	if !st.permanent && !st.markedAt.IsZero() && c.now().Sub(st.markedAt) > c.expiry {
		st.count = 0
		st.markedAt = time.Time{}
	}
}

// Clear forgets a host, typically after a successful request.
func (c *Cache) Clear(host string) {
	host = normalizeHost(host)
	if host == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hosts, host)
}

// Size returns the number of hosts in the cache.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.hosts)
}

// Stats returns cache hit/miss statistics.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// normalizeHost extracts and lower-cases the host from a URL or host string.
func normalizeHost(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if strings.Contains(input, "://") {
		if u, err := url.Parse(input); err == nil && u.Host != "" {
			input = u.Host
		}
	}
	host, _, err := net.SplitHostPort(input)
	if err != nil {
		host = input
	}
	return strings.ToLower(host)
}

// IsNetworkError reports whether err means the host itself is unreachable,
// as opposed to the service answering badly.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, httpclient.ErrHTTPStatus) {
		return false
	}
	if errors.Is(err, httpclient.ErrDNS) || errors.Is(err, httpclient.ErrTimeout) ||
		errors.Is(err, httpclient.ErrTLS) || errors.Is(err, httpclient.ErrProxyConnect) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsPermanent reports errors that will not heal within a run.
func IsPermanent(err error) bool {
	return errors.Is(err, httpclient.ErrDNS)
}
