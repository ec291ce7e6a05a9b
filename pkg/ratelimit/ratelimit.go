// Package ratelimit paces outgoing probes, globally or per host, on top of
// golang.org/x/time/rate token buckets.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration
type Config struct {
	// RequestsPerSecond limits requests per second (0 = unlimited)
	RequestsPerSecond int

	// Burst allows bursting up to N requests before limiting kicks in
	// (default: RequestsPerSecond/10, at least 1)
	Burst int

	// PerHost gives every host its own bucket instead of one shared bucket
	PerHost bool
}

// Limiter provides rate limiting for HTTP requests. A nil *Limiter or one
// built with RequestsPerSecond 0 never blocks.
type Limiter struct {
	config Config
	global *rate.Limiter

	hosts   map[string]*rate.Limiter
	hostsMu sync.Mutex

	requests atomic.Int64
}

// New creates a new rate limiter with the given configuration
func New(cfg Config) *Limiter {
	l := &Limiter{config: cfg, hosts: make(map[string]*rate.Limiter)}
	if cfg.RequestsPerSecond > 0 && !cfg.PerHost {
		l.global = l.newBucket()
	}
	return l
}

// NewPerSecond is a shorthand for a shared limiter.
func NewPerSecond(rps int) *Limiter {
	return New(Config{RequestsPerSecond: rps})
}

func (l *Limiter) newBucket() *rate.Limiter {
	burst := l.config.Burst
	if burst <= 0 {
		burst = l.config.RequestsPerSecond / 10
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), burst)
}

// Wait blocks until the shared bucket allows another request.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.WaitForHost(ctx, "")
}

// WaitForHost blocks until the bucket for host allows another request.
// Without PerHost, every host shares one bucket.
func (l *Limiter) WaitForHost(ctx context.Context, host string) error {
	if l == nil {
		return ctx.Err()
	}
	l.requests.Add(1)
	b := l.bucket(host)
	if b == nil {
		return ctx.Err()
	}
	return b.Wait(ctx)
}

// bucket returns the bucket governing host, or nil when unlimited.
func (l *Limiter) bucket(host string) *rate.Limiter {
	l.hostsMu.Lock()
	defer l.hostsMu.Unlock()
	if l.config.RequestsPerSecond <= 0 {
		return nil
	}
	if !l.config.PerHost {
		return l.global
	}
	b, ok := l.hosts[host]
	if !ok {
		b = l.newBucket()
		l.hosts[host] = b
	}
	return b
}

// SetRate changes the throughput of every existing and future bucket.
func (l *Limiter) SetRate(rps int) {
	l.hostsMu.Lock()
	defer l.hostsMu.Unlock()
	l.config.RequestsPerSecond = rps
	apply := func(b *rate.Limiter) {
		b.SetLimit(rate.Limit(rps))
	}
	if l.global != nil {
		apply(l.global)
	} else if rps > 0 && !l.config.PerHost {
		l.global = l.newBucket()
	}
	for _, b := range l.hosts {
		apply(b)
	}
}

// Stats is a snapshot of limiter usage.
type Stats struct {
	Requests         int64
	HostLimiterCount int
}

// Stats returns the number of Wait calls and per-host buckets so far.
func (l *Limiter) Stats() Stats {
	l.hostsMu.Lock()
	defer l.hostsMu.Unlock()
	return Stats{
		Requests:         l.requests.Load(),
		HostLimiterCount: len(l.hosts),
	}
}

// ClearAllHosts drops every per-host bucket.
func (l *Limiter) ClearAllHosts() {
	l.hostsMu.Lock()
	defer l.hostsMu.Unlock()
	l.hosts = make(map[string]*rate.Limiter)
}
