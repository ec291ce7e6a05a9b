package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conecheck/conecheck/pkg/output/events"
)

type mockWriter struct {
	mu      sync.Mutex
	events  []events.Event
	types   []events.EventType
	failErr error
	flushed int
	closed  int
}

func (w *mockWriter) Write(e events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failErr != nil {
		return w.failErr
	}
	w.events = append(w.events, e)
	return nil
}

func (w *mockWriter) Flush() error { w.flushed++; return nil }
func (w *mockWriter) Close() error { w.closed++; return nil }

func (w *mockWriter) SupportsEvent(t events.EventType) bool {
	if len(w.types) == 0 {
		return true
	}
	for _, x := range w.types {
		if x == t {
			return true
		}
	}
	return false
}

func (w *mockWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

type mockHook struct {
	types []events.EventType
	delay time.Duration
	calls atomic.Int32
	err   error
}

func (h *mockHook) OnEvent(ctx context.Context, e events.Event) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.calls.Add(1)
	return h.err
}

func (h *mockHook) EventTypes() []events.EventType { return h.types }

func resultEvent() events.Event {
	return &events.ResultEvent{BaseEvent: events.NewBase(events.EventTypeResult, "run")}
}

func TestDispatch_RoutesByType(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	all := &mockWriter{}
	onlySummary := &mockWriter{types: []events.EventType{events.EventTypeSummary}}
	d.RegisterWriter(all)
	d.RegisterWriter(onlySummary)

	hook := &mockHook{types: []events.EventType{events.EventTypeResult}}
	d.RegisterHook(hook)

	require.NoError(t, d.Dispatch(context.Background(), resultEvent()))
	require.NoError(t, d.Dispatch(context.Background(), &events.SummaryEvent{
		BaseEvent: events.NewBase(events.EventTypeSummary, "run"),
	}))

	assert.Equal(t, 2, all.count())
	assert.Equal(t, 1, onlySummary.count())
	assert.Equal(t, int32(1), hook.calls.Load())
}

func TestDispatch_FailuresDoNotStopDelivery(t *testing.T) {
	t.Parallel()
	d := New(Config{})
	bad := &mockWriter{failErr: errors.New("disk full")}
	good := &mockWriter{}
	d.RegisterWriter(bad)
	d.RegisterWriter(good)
	failing := &mockHook{err: errors.New("boom")}
	ok := &mockHook{}
	d.RegisterHook(failing)
	d.RegisterHook(ok)

	require.NoError(t, d.Dispatch(context.Background(), resultEvent()))
	assert.Equal(t, 1, good.count())
	assert.Equal(t, int32(1), ok.calls.Load())
}

func TestClose_WaitsForAsyncHooks(t *testing.T) {
	t.Parallel()
	d := New(Config{Async: true})
	hooks := make([]*mockHook, 5)
	for i := range hooks {
		hooks[i] = &mockHook{delay: 50 * time.Millisecond}
		d.RegisterHook(hooks[i])
	}

	require.NoError(t, d.Dispatch(context.Background(), resultEvent()))
	require.NoError(t, d.Close())

	for i, h := range hooks {
		assert.Equal(t, int32(1), h.calls.Load(), "hook %d", i)
	}
}

func TestClose_DropsLaterEvents(t *testing.T) {
	t.Parallel()
	d := New(Config{})
	w := &mockWriter{}
	d.RegisterWriter(w)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	require.NoError(t, d.Dispatch(context.Background(), resultEvent()))

	assert.Zero(t, w.count())
	assert.Equal(t, 1, w.closed)
	assert.Equal(t, 1, w.flushed)
}

func TestDispatch_ConcurrentWithClose(t *testing.T) {
	t.Parallel()
	d := New(Config{Async: true})
	d.RegisterHook(&mockHook{})
	d.RegisterWriter(&mockWriter{})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), resultEvent())
		}()
	}
	_ = d.Close()
	wg.Wait()
}

func TestNilDispatcher(t *testing.T) {
	t.Parallel()
	var d *Dispatcher
	assert.NoError(t, d.Dispatch(context.Background(), resultEvent()))
	assert.NoError(t, d.Flush())
	assert.NoError(t, d.Close())
}
