package retry

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conecheck/conecheck/pkg/duration"
)

// fakeSleeper records delays without actually sleeping.
type fakeSleeper struct {
	delays []time.Duration
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.delays = append(f.delays, d)
	return nil
}

var errTemporary = errors.New("temporary")

func TestDo_SucceedsFirstTry(t *testing.T) {
	t.Parallel()
	s := &fakeSleeper{}
	err := doWithSleeper(context.Background(), DefaultConfig(), func() error { return nil }, s)
	require.NoError(t, err)
	assert.Empty(t, s.delays)
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := &fakeSleeper{}
	cfg := Config{MaxAttempts: 3, InitDelay: time.Second, MaxDelay: 30 * time.Second}

	err := doWithSleeper(context.Background(), cfg, func() error {
		if calls.Add(1) < 3 {
			return errTemporary
		}
		return nil
	}, s)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, s.delays)
}

func TestDo_ReturnsLastError(t *testing.T) {
	t.Parallel()
	s := &fakeSleeper{}
	var calls int
	err := doWithSleeper(context.Background(), ForProbes(2), func() error {
		calls++
		return errTemporary
	}, s)

	require.ErrorIs(t, err, errTemporary)
	assert.Equal(t, 3, calls)
	assert.Len(t, s.delays, 2)
}

func TestDo_StopError(t *testing.T) {
	t.Parallel()
	permanent := errors.New("404")
	var calls int
	err := doWithSleeper(context.Background(), DefaultConfig(), func() error {
		calls++
		return Stop(permanent)
	}, &fakeSleeper{})

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryablePredicate(t *testing.T) {
	t.Parallel()
	permanent := errors.New("dns")
	cfg := DefaultConfig()
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	var calls int
	err := doWithSleeper(context.Background(), cfg, func() error {
		calls++
		return permanent
	}, &fakeSleeper{})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetry(t *testing.T) {
	t.Parallel()
	var seen []int
	cfg := ForProbes(2)
	cfg.OnRetry = func(attempt int, err error) {
		assert.ErrorIs(t, err, errTemporary)
		seen = append(seen, attempt)
	}
	_ = doWithSleeper(context.Background(), cfg, func() error { return errTemporary }, &fakeSleeper{})
	assert.Equal(t, []int{0, 1}, seen)
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	err := Do(ctx, DefaultConfig(), func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_CancelDuringSleep(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitDelay: time.Hour, MaxDelay: time.Hour, Strategy: Constant}

	err := Do(ctx, cfg, func() error {
		cancel()
		return errTemporary
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDo_ZeroAttemptsIsNoop(t *testing.T) {
	t.Parallel()
	called := false
	require.NoError(t, Do(context.Background(), Config{}, func() error {
		called = true
		return errTemporary
	}))
	assert.False(t, called)
}

func TestForProbes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, ForProbes(0).MaxAttempts)
	assert.Equal(t, 1, ForProbes(-3).MaxAttempts)
	assert.Equal(t, 4, ForProbes(3).MaxAttempts)
	assert.Equal(t, duration.RetryFast, ForProbes(1).InitDelay)
}

func TestCalcDelay_Strategies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		strategy Strategy
		attempt  int
		want     time.Duration
	}{
		{Exponential, 0, time.Second},
		{Exponential, 3, 8 * time.Second},
		{Exponential, 10, 30 * time.Second},
		{Linear, 0, time.Second},
		{Linear, 4, 5 * time.Second},
		{Constant, 7, time.Second},
	}
	for _, tt := range tests {
		cfg := Config{InitDelay: time.Second, MaxDelay: 30 * time.Second, Strategy: tt.strategy}
		assert.Equal(t, tt.want, CalcDelay(cfg, tt.attempt), "strategy %d attempt %d", tt.strategy, tt.attempt)
	}
}

// int64 overflow at high attempt numbers must clamp to MaxDelay.
func TestCalcDelay_NoOverflow(t *testing.T) {
	t.Parallel()
	for _, s := range []Strategy{Exponential, Linear} {
		cfg := Config{InitDelay: time.Second, MaxDelay: 30 * time.Second, Strategy: s, Jitter: true}
		for _, attempt := range []int{62, 63, 64, 1000, math.MaxInt32} {
			d := CalcDelay(cfg, attempt)
			require.Positive(t, d, "attempt %d", attempt)
			require.LessOrEqual(t, d, cfg.MaxDelay, "attempt %d", attempt)
		}
	}
}

func TestCalcDelay_JitterBounds(t *testing.T) {
	t.Parallel()
	cfg := Config{InitDelay: 4 * time.Second, MaxDelay: time.Minute, Strategy: Constant, Jitter: true}
	for range 200 {
		d := CalcDelay(cfg, 0)
		require.GreaterOrEqual(t, d, 3*time.Second)
		require.LessOrEqual(t, d, 5*time.Second)
	}
}
