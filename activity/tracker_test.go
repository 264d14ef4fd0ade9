package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	times []time.Time
	err   error
}

func (r *recorder) Touch(_ context.Context, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.times = append(r.times, at)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.times)
}

func TestObserveIgnoredWhileStopped(t *testing.T) {
	rec := &recorder{}
	tr := New(rec, Options{Clock: clockwork.NewFakeClock()})

	wrote, err := tr.Observe(context.Background(), SignalClick)
	require.NoError(t, err)
	require.False(t, wrote)
	require.Zero(t, rec.count())
}

func TestObserveThrottles(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	tr := New(rec, Options{Clock: clock})
	tr.Start()
	ctx := context.Background()

	wrote, err := tr.Observe(ctx, SignalKeyDown)
	require.NoError(t, err)
	require.True(t, wrote)

	clock.Advance(4 * time.Second)
	wrote, _ = tr.Observe(ctx, SignalMouseMove)
	require.False(t, wrote)

	clock.Advance(time.Second)
	wrote, _ = tr.Observe(ctx, SignalScroll)
	require.True(t, wrote)

	require.Equal(t, 2, rec.count())
	require.Equal(t, clock.Now(), tr.LastTouch())
}

func TestObserveIgnoresUnknownSignals(t *testing.T) {
	rec := &recorder{}
	tr := New(rec, Options{Clock: clockwork.NewFakeClock(), Signals: []Signal{SignalClick}})
	tr.Start()

	wrote, err := tr.Observe(context.Background(), SignalMouseMove)
	require.NoError(t, err)
	require.False(t, wrote)

	wrote, err = tr.Observe(context.Background(), SignalClick)
	require.NoError(t, err)
	require.True(t, wrote)
}

func TestTouchIsUnconditionalAndRestartsWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	var touched []time.Time
	tr := New(rec, Options{Clock: clock, OnTouch: func(at time.Time) { touched = append(touched, at) }})

	require.NoError(t, tr.Touch(context.Background()))
	require.Equal(t, 1, rec.count())

	tr.Start()
	clock.Advance(2 * time.Second)
	wrote, _ := tr.Observe(context.Background(), SignalClick)
	require.False(t, wrote, "touch must restart the throttle window")
	require.Len(t, touched, 1)
}

func TestStopIsIdempotentAndResetsWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	tr := New(rec, Options{Clock: clock})
	tr.Start()
	require.True(t, tr.Running())

	_, _ = tr.Observe(context.Background(), SignalClick)
	tr.Stop()
	tr.Stop()
	require.False(t, tr.Running())
	require.True(t, tr.LastTouch().IsZero())

	tr.Start()
	wrote, _ := tr.Observe(context.Background(), SignalClick)
	require.True(t, wrote)
}

func TestWriteFailureIsReturned(t *testing.T) {
	rec := &recorder{err: errors.New("store down")}
	tr := New(rec, Options{Clock: clockwork.NewFakeClock()})
	tr.Start()

	wrote, err := tr.Observe(context.Background(), SignalClick)
	require.Error(t, err)
	require.False(t, wrote)
}
