package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu   sync.Mutex
	snap Snapshot
	err  error
}

func (s *fakeSource) Snapshot(context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.err
}

func (s *fakeSource) set(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

type fakeController struct {
	mu           sync.Mutex
	refreshErr   error
	refreshes    int
	terminations []Termination
	onTerminate  func()
	onRefresh    func()
}

func (c *fakeController) Refresh(context.Context) error {
	c.mu.Lock()
	c.refreshes++
	err := c.refreshErr
	hook := c.onRefresh
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (c *fakeController) Terminate(_ context.Context, t Termination) {
	c.mu.Lock()
	c.terminations = append(c.terminations, t)
	hook := c.onTerminate
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (c *fakeController) counts() (int, []Termination) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes, append([]Termination(nil), c.terminations...)
}

func newMonitor(t *testing.T, src SessionSource, ctrl Controller, clock clockwork.Clock) *Monitor {
	t.Helper()
	m, err := New(src, ctrl, Config{Clock: clock})
	require.NoError(t, err)
	return m
}

func TestEvaluate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newMonitor(t, &fakeSource{}, &fakeController{}, clock)
	now := clock.Now()

	cases := []struct {
		name     string
		snap     Snapshot
		decision Decision
		term     Termination
	}{
		{"missing expiry", Snapshot{LastActivityAt: now}, DecisionLogout, Termination{Redirect: true, Reason: ReasonMissing}},
		{"missing activity", Snapshot{ExpiresAt: now.Add(time.Hour)}, DecisionLogout, Termination{Redirect: true, Reason: ReasonMissing}},
		{"inactive", Snapshot{ExpiresAt: now.Add(10 * time.Minute), LastActivityAt: now.Add(-15 * time.Minute)}, DecisionLogout, Termination{Notify: true, Redirect: true, Reason: ReasonInactive}},
		{"inactive beats expired", Snapshot{ExpiresAt: now.Add(-time.Minute), LastActivityAt: now.Add(-20 * time.Minute)}, DecisionLogout, Termination{Notify: true, Redirect: true, Reason: ReasonInactive}},
		{"expired", Snapshot{ExpiresAt: now.Add(-time.Second), LastActivityAt: now}, DecisionRefresh, Termination{}},
		{"within buffer", Snapshot{ExpiresAt: now.Add(time.Minute), LastActivityAt: now.Add(-time.Minute)}, DecisionRefresh, Termination{}},
		{"healthy", Snapshot{ExpiresAt: now.Add(10 * time.Minute), LastActivityAt: now.Add(-14 * time.Minute)}, DecisionNone, Termination{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, term := m.Evaluate(tc.snap, now)
			require.Equal(t, tc.decision, decision)
			require.Equal(t, tc.term, term)
		})
	}
}

func TestCheckExpiredTokenActiveUserRefreshesOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	src := &fakeSource{snap: Snapshot{ExpiresAt: now.Add(-time.Second), LastActivityAt: now.Add(-30 * time.Second)}}
	ctrl := &fakeController{}
	m := newMonitor(t, src, ctrl, clock)

	m.Start(context.Background())
	defer m.Stop()

	require.Equal(t, DecisionRefresh, m.Check(context.Background()))
	refreshes, terms := ctrl.counts()
	require.Equal(t, 1, refreshes)
	require.Empty(t, terms)
	require.Equal(t, StateActive, m.State())
}

func TestCheckInactiveTerminatesWithNotification(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	src := &fakeSource{snap: Snapshot{ExpiresAt: now.Add(10 * time.Minute), LastActivityAt: now.Add(-16 * time.Minute)}}
	ctrl := &fakeController{}
	m := newMonitor(t, src, ctrl, clock)

	var transitions []State
	m.cfg.OnTransition = func(_, to State) { transitions = append(transitions, to) }
	m.Start(context.Background())

	require.Equal(t, DecisionLogout, m.Check(context.Background()))
	refreshes, terms := ctrl.counts()
	require.Zero(t, refreshes)
	require.Equal(t, []Termination{{Notify: true, Redirect: true, Reason: ReasonInactive}}, terms)
	require.Equal(t, StateIdle, m.State())
	require.Equal(t, []State{StateActive, StateTerminating, StateIdle}, transitions)
	m.Wait()
}

func TestCheckRefreshFailureTerminatesSilently(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	src := &fakeSource{snap: Snapshot{ExpiresAt: now, LastActivityAt: now}}
	ctrl := &fakeController{refreshErr: errors.New("refresh token revoked")}
	m := newMonitor(t, src, ctrl, clock)
	m.Start(context.Background())

	require.Equal(t, DecisionRefresh, m.Check(context.Background()))
	refreshes, terms := ctrl.counts()
	require.Equal(t, 1, refreshes)
	require.Equal(t, []Termination{{Notify: false, Redirect: false, Reason: ReasonRefreshFailed}}, terms)
	require.Equal(t, StateIdle, m.State())
}

func TestCheckMissingSessionRedirectsWithoutNotification(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctrl := &fakeController{}
	m := newMonitor(t, &fakeSource{}, ctrl, clock)
	m.Start(context.Background())

	require.Equal(t, DecisionLogout, m.Check(context.Background()))
	_, terms := ctrl.counts()
	require.Equal(t, []Termination{{Notify: false, Redirect: true, Reason: ReasonMissing}}, terms)
}

func TestCheckSourceErrorIsTransient(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctrl := &fakeController{}
	m := newMonitor(t, &fakeSource{err: errors.New("redis unavailable")}, ctrl, clock)
	m.Start(context.Background())
	defer m.Stop()

	require.Equal(t, DecisionNone, m.Check(context.Background()))
	refreshes, terms := ctrl.counts()
	require.Zero(t, refreshes)
	require.Empty(t, terms)
	require.Equal(t, StateActive, m.State())
}

func TestCheckWhileIdleDoesNothing(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctrl := &fakeController{}
	m := newMonitor(t, &fakeSource{}, ctrl, clock)

	require.Equal(t, DecisionNone, m.Check(context.Background()))
	_, terms := ctrl.counts()
	require.Empty(t, terms)
}

func TestKeepAliveFiresOnSchedule(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{}
	src.set(Snapshot{ExpiresAt: clock.Now().Add(time.Hour), LastActivityAt: clock.Now()})
	ctrl := &fakeController{}
	m, err := New(src, ctrl, Config{Clock: clock, PollInterval: time.Hour, KeepAliveInterval: 14 * time.Minute, InactivityTimeout: 2 * time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.Start(ctx)
	defer func() {
		m.Stop()
		m.Wait()
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	clock.Advance(14 * time.Minute)

	require.Eventually(t, func() bool {
		refreshes, _ := ctrl.counts()
		return refreshes == 1
	}, time.Second, 5*time.Millisecond)
	_, terms := ctrl.counts()
	require.Empty(t, terms)
}

func TestKeepAliveFailureTerminatesSilently(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctrl := &fakeController{refreshErr: errors.New("network down")}
	m := newMonitor(t, &fakeSource{}, ctrl, clock)
	m.Start(context.Background())

	m.KeepAlive(context.Background())
	_, terms := ctrl.counts()
	require.Equal(t, []Termination{{Notify: false, Redirect: false, Reason: ReasonKeepAliveFailed}}, terms)
	require.Equal(t, StateIdle, m.State())
}

func TestTerminateMayStopMonitorFromLoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	src := &fakeSource{snap: Snapshot{ExpiresAt: now.Add(time.Hour), LastActivityAt: now}}
	ctrl := &fakeController{}
	m := newMonitor(t, src, ctrl, clock)
	ctrl.onTerminate = m.Stop

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m.Start(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	src.set(Snapshot{ExpiresAt: now.Add(time.Hour), LastActivityAt: now.Add(-time.Hour)})
	clock.Advance(DefaultPollInterval)

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("monitor loop did not exit after terminate")
	}
	_, terms := ctrl.counts()
	require.Len(t, terms, 1)
	require.Equal(t, ReasonInactive, terms[0].Reason)
}

func TestStopDuringRefreshSkipsTerminate(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	src := &fakeSource{snap: Snapshot{ExpiresAt: now, LastActivityAt: now}}
	ctrl := &fakeController{refreshErr: context.Canceled}
	m := newMonitor(t, src, ctrl, clock)
	m.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	ctrl.onRefresh = func() {
		m.Stop()
		cancel()
	}
	m.Check(ctx)

	_, terms := ctrl.counts()
	require.Empty(t, terms)
	require.Equal(t, StateIdle, m.State())
}

func TestStartIsIdempotentAndStopRestart(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := newMonitor(t, &fakeSource{}, &fakeController{}, clock)

	m.Start(context.Background())
	m.Start(context.Background())
	require.Equal(t, StateActive, m.State())

	m.Stop()
	m.Stop()
	m.Wait()
	require.Equal(t, StateIdle, m.State())

	m.Start(context.Background())
	require.Equal(t, StateActive, m.State())
	m.Stop()
	m.Wait()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil, &fakeController{}, Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&fakeSource{}, &fakeController{}, Config{RefreshBuffer: time.Hour, InactivityTimeout: time.Minute})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
