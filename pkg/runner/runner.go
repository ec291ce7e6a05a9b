// Package runner provides bounded-concurrency fan-out of one task per
// service, with per-task timeouts, rate limiting and host-error skipping.
package runner

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/conecheck/conecheck/pkg/defaults"
	"github.com/conecheck/conecheck/pkg/duration"
	"github.com/conecheck/conecheck/pkg/hosterrors"
	"github.com/conecheck/conecheck/pkg/ratelimit"
)

// Target is one unit of work: Key identifies it (a catalog name), URL is
// what gets contacted and drives rate limiting and host skipping.
type Target struct {
	Key string
	URL string
}

// Result represents the result of processing a single target
type Result[T any] struct {
	Target   Target
	Data     T
	Error    error
	Duration time.Duration
}

// Stats tracks execution statistics
type Stats struct {
	Total      int64
	Completed  int64
	Successful int64
	Failed     int64
	Skipped    int64
	StartTime  time.Time
}

// Progress returns completion percentage (0-100)
func (s *Stats) Progress() float64 {
	total := atomic.LoadInt64(&s.Total)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Completed)) / float64(total) * 100
}

// Runner executes tasks concurrently across multiple targets
type Runner[T any] struct {
	// Concurrency is the number of parallel workers; 1 runs strictly in order
	Concurrency int

	// Timeout per target
	Timeout time.Duration

	// Limiter paces task starts (optional)
	Limiter *ratelimit.Limiter

	// HostErrors skips hosts that keep failing (optional)
	HostErrors *hosterrors.Cache

	// Stats tracks execution statistics
	Stats Stats

	// OnProgress is called after each target completes
	OnProgress func(completed, total int64, result Result[T])
}

// NewRunner creates a new runner with default settings
func NewRunner[T any]() *Runner[T] {
	return &Runner[T]{
		Concurrency: defaults.ConcurrencyMedium,
		Timeout:     duration.RemoteTimeout,
	}
}

// TaskFunc is the function type for processing a single target
type TaskFunc[T any] func(ctx context.Context, target Target) (T, error)

// Run executes task for every target and returns the results in completion
// order. If ctx is cancelled, targets not yet started produce no result.
func (r *Runner[T]) Run(ctx context.Context, targets []Target, task TaskFunc[T]) []Result[T] {
	var mu sync.Mutex
	results := make([]Result[T], 0, len(targets))
	r.RunWithCallback(ctx, targets, task, func(res Result[T]) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	})
	return results
}

// RunWithCallback executes tasks and calls callback for each result as it
// completes. Callbacks may run concurrently when Concurrency > 1.
func (r *Runner[T]) RunWithCallback(ctx context.Context, targets []Target, task TaskFunc[T], callback func(Result[T])) {
	if len(targets) == 0 {
		return
	}

	r.Stats = Stats{
		Total:     int64(len(targets)),
		StartTime: time.Now(),
	}

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = defaults.ConcurrencyMedium
	}
	if concurrency > len(targets) {
		concurrency = len(targets)
	}
	sem := make(chan struct{}, concurrency)

	var wg conc.WaitGroup
	defer wg.Wait()

	for _, target := range targets {
		if ctx.Err() != nil {
			return
		}

		// The slot is taken before the host check so that, with one worker,
		// a failure is recorded before the next target on that host is looked at.
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		if r.HostErrors != nil && r.HostErrors.Check(target.URL) {
			r.finish(Result[T]{
				Target: target,
				Error:  fmt.Errorf("%w: %s", hosterrors.ErrHostSkipped, extractHost(target.URL)),
			}, true, callback)
			<-sem
			continue
		}

		if err := r.Limiter.WaitForHost(ctx, extractHost(target.URL)); err != nil {
			<-sem
			return
		}

		wg.Go(func() {
			defer func() { <-sem }()
			r.finish(r.execute(ctx, target, task), false, callback)
		})
	}
}

// execute runs one task under its own timeout. A panicking task becomes a
// failed result instead of taking the whole run down.
func (r *Runner[T]) execute(ctx context.Context, target Target, task TaskFunc[T]) Result[T] {
	start := time.Now()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = duration.RemoteTimeout
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var data T
	var err error
	if rec := panics.Try(func() { data, err = task(taskCtx, target) }); rec != nil {
		err = fmt.Errorf("%w: %s: %v", ErrTaskPanic, target.Key, rec.AsError())
	}

	return Result[T]{
		Target:   target,
		Data:     data,
		Error:    err,
		Duration: time.Since(start),
	}
}

func (r *Runner[T]) finish(res Result[T], skipped bool, callback func(Result[T])) {
	completed := atomic.AddInt64(&r.Stats.Completed, 1)
	switch {
	case skipped:
		atomic.AddInt64(&r.Stats.Skipped, 1)
		atomic.AddInt64(&r.Stats.Failed, 1)
	case res.Error == nil:
		atomic.AddInt64(&r.Stats.Successful, 1)
		if r.HostErrors != nil {
			r.HostErrors.Clear(res.Target.URL)
		}
	default:
		atomic.AddInt64(&r.Stats.Failed, 1)
		if r.HostErrors != nil {
			switch {
			case hosterrors.IsPermanent(res.Error):
				r.HostErrors.MarkPermanent(res.Target.URL)
			case hosterrors.IsNetworkError(res.Error):
				r.HostErrors.MarkError(res.Target.URL)
			}
		}
	}

	if r.OnProgress != nil {
		r.OnProgress(completed, atomic.LoadInt64(&r.Stats.Total), res)
	}
	callback(res)
}

// extractHost returns the host name of a URL, or "" if it has none.
func extractHost(target string) string {
	if u, err := url.Parse(target); err == nil {
		return u.Hostname()
	}
	return ""
}
