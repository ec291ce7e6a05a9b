// Package retry provides the context-aware retry engine used for registry
// downloads and service probes.
//
// Three strategies are supported:
//   - Exponential: delay doubles each attempt (1s, 2s, 4s, …)
//   - Linear: delay grows linearly (1s, 2s, 3s, …)
//   - Constant: delay stays the same each attempt
//
// Usage:
//
//	err := retry.Do(ctx, retry.ForProbes(cfg.Retries), func() error {
//	    resp, err = httpclient.Get(ctx, client, u, max)
//	    return err
//	})
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/conecheck/conecheck/pkg/duration"
)

// Strategy defines the backoff algorithm.
type Strategy int

const (
	// Exponential doubles the delay each attempt: initDelay * 2^attempt.
	Exponential Strategy = iota
	// Linear increases the delay linearly: initDelay * (attempt+1).
	Linear
	// Constant uses the same delay between every attempt.
	Constant
)

// Config controls retry behaviour.
type Config struct {
	MaxAttempts int           // Total attempts (including the first). 0 means no-op.
	InitDelay   time.Duration // Base delay before first retry.
	MaxDelay    time.Duration // Upper bound on any single delay.
	Strategy    Strategy      // Backoff algorithm.
	Jitter      bool          // Add ±25% random jitter to each delay.

	// Retryable decides whether an error deserves another attempt.
	// nil retries every error.
	Retryable func(error) bool

	// OnRetry is called before each sleep with the failed attempt (0-indexed).
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns 3 attempts, exponential backoff from 2s to 30s with jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitDelay:   duration.RetryStd,
		MaxDelay:    duration.RetryMax,
		Strategy:    Exponential,
		Jitter:      true,
	}
}

// ForProbes returns the policy for a single service probe: the first
// attempt plus retries extra ones, with short delays.
func ForProbes(retries int) Config {
	if retries < 0 {
		retries = 0
	}
	cfg := DefaultConfig()
	cfg.MaxAttempts = retries + 1
	cfg.InitDelay = duration.RetryFast
	return cfg
}

// StopError wraps an error to signal that retrying should stop immediately.
// Use this when the caller knows the error is permanent (e.g. 4xx HTTP status).
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop wraps err so that Do returns it without further retries.
func Stop(err error) error {
	return &StopError{Err: err}
}

type sleeper interface {
	sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes fn up to cfg.MaxAttempts times, sleeping between failures
// according to the configured strategy. It returns nil on the first
// successful call, or the last error if all attempts fail. If the context
// is cancelled, ctx.Err() is returned immediately.
//
// If fn returns a StopError, or cfg.Retryable rejects the error, Do returns
// it without retrying.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return doWithSleeper(ctx, cfg, fn, realSleeper{})
}

func doWithSleeper(ctx context.Context, cfg Config, fn func() error, s sleeper) error {
	if cfg.MaxAttempts <= 0 {
		return nil
	}

	var lastErr error
	for attempt := range cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var stop *StopError
		if errors.As(lastErr, &stop) {
			return stop.Err
		}
		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return lastErr
		}

		if attempt < cfg.MaxAttempts-1 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, lastErr)
			}
			if err := s.sleep(ctx, CalcDelay(cfg, attempt)); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// CalcDelay computes the sleep duration for a given attempt (0-indexed).
// The result is never negative and never above MaxDelay, even for huge
// attempt numbers.
func CalcDelay(cfg Config, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	var f float64
	switch cfg.Strategy {
	case Exponential:
		f = float64(cfg.InitDelay) * math.Pow(2, float64(attempt))
	case Linear:
		f = float64(cfg.InitDelay) * float64(attempt+1)
	default:
		f = float64(cfg.InitDelay)
	}

	var delay time.Duration
	if cfg.MaxDelay > 0 && (math.IsInf(f, 0) || f > float64(cfg.MaxDelay)) {
		delay = cfg.MaxDelay
	} else if f >= math.MaxInt64 {
		delay = time.Duration(math.MaxInt64)
	} else {
		delay = time.Duration(f)
	}

	if cfg.Jitter && delay > 0 {
		quarter := int64(delay) / 4
		if quarter > 0 {
			j := time.Duration(rand.Int64N(quarter))
			if rand.IntN(2) == 0 && delay+j <= cfg.MaxDelay {
				delay += j
			} else {
				delay -= j
			}
		}
	}
	return delay
}
