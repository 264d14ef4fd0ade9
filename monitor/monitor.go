package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Defaults match a 15 minute access token.
const (
	DefaultPollInterval      = time.Minute
	DefaultKeepAliveInterval = 14 * time.Minute
	DefaultInactivityTimeout = 15 * time.Minute
	DefaultRefreshBuffer     = time.Minute
)

// ErrInvalidConfig is returned by New for inconsistent intervals.
var ErrInvalidConfig = errors.New("monitor: invalid config")

// State is the monitor's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateActive
	StateRefreshing
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRefreshing:
		return "refreshing"
	case StateTerminating:
		return "terminating"
	default:
		return "idle"
	}
}

// Decision is the outcome of one Check.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionRefresh
	DecisionLogout
)

func (d Decision) String() string {
	switch d {
	case DecisionRefresh:
		return "refresh"
	case DecisionLogout:
		return "logout"
	default:
		return "none"
	}
}

// Reason says why a session was terminated.
type Reason string

const (
	ReasonMissing         Reason = "missing_session"
	ReasonInactive        Reason = "inactive"
	ReasonRefreshFailed   Reason = "refresh_failed"
	ReasonKeepAliveFailed Reason = "keepalive_failed"
)

// Termination describes how the controller should end the session.
type Termination struct {
	Notify   bool
	Redirect bool
	Reason   Reason
}

// Snapshot is what the monitor reads on every tick. A zero field means
// the value is missing from the store.
type Snapshot struct {
	ExpiresAt      time.Time
	LastActivityAt time.Time
}

// SessionSource supplies snapshots. An error is treated as transient.
type SessionSource interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Controller performs the actions the monitor decides on.
type Controller interface {
	// Refresh runs the guarded token refresh.
	Refresh(ctx context.Context) error
	// Terminate ends the session. It must tolerate being called for a
	// session that already ended and may call Stop on the monitor.
	Terminate(ctx context.Context, t Termination)
}

// Config tunes a Monitor. Zero durations take defaults.
type Config struct {
	PollInterval      time.Duration
	KeepAliveInterval time.Duration
	InactivityTimeout time.Duration
	RefreshBuffer     time.Duration
	Clock             clockwork.Clock
	Logger            *zap.Logger
	// OnTransition observes every state change.
	OnTransition func(from, to State)
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	if c.RefreshBuffer <= 0 {
		c.RefreshBuffer = DefaultRefreshBuffer
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Monitor watches one session for expiry and inactivity.
type Monitor struct {
	src  SessionSource
	ctrl Controller
	cfg  Config

	state atomic.Int32

	// checkMu serializes Check and keep-alive so one tick finishes before
	// the next starts.
	checkMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates cfg and returns an idle Monitor.
func New(src SessionSource, ctrl Controller, cfg Config) (*Monitor, error) {
	if src == nil || ctrl == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("source and controller are required"))
	}
	cfg = cfg.withDefaults()
	if cfg.RefreshBuffer >= cfg.InactivityTimeout {
		return nil, errors.Join(ErrInvalidConfig, errors.New("refresh buffer must be shorter than the inactivity timeout"))
	}
	return &Monitor{src: src, ctrl: ctrl, cfg: cfg}, nil
}

// State returns the current state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) setState(to State) {
	from := State(m.state.Swap(int32(to)))
	if from == to {
		return
	}
	m.cfg.Logger.Debug("session monitor transition",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(from, to)
	}
}

// Start moves an idle monitor to Active and launches its poll and
// keep-alive loops. Both loops end when ctx is done or Stop is called.
// Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.setState(StateActive)

	poll := m.cfg.Clock.NewTicker(m.cfg.PollInterval)
	keep := m.cfg.Clock.NewTicker(m.cfg.KeepAliveInterval)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer poll.Stop()
		defer keep.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.Chan():
				m.Check(ctx)
			case <-keep.Chan():
				m.KeepAlive(ctx)
			}
		}
	}()
}

// Stop cancels the loops and moves to Idle without waiting for them, so
// it is safe to call from a Controller invoked by the loop itself. It is
// idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.setState(StateIdle)
}

// Wait blocks until the loops of the last Start have exited.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Evaluate decides what to do with snap at now. It has no side effects.
func (m *Monitor) Evaluate(snap Snapshot, now time.Time) (Decision, Termination) {
	if snap.ExpiresAt.IsZero() || snap.LastActivityAt.IsZero() {
		return DecisionLogout, Termination{Notify: false, Redirect: true, Reason: ReasonMissing}
	}
	if now.Sub(snap.LastActivityAt) >= m.cfg.InactivityTimeout {
		return DecisionLogout, Termination{Notify: true, Redirect: true, Reason: ReasonInactive}
	}
	if snap.ExpiresAt.Sub(now) <= m.cfg.RefreshBuffer {
		return DecisionRefresh, Termination{}
	}
	return DecisionNone, Termination{}
}

// Check runs one poll tick: read the snapshot, decide, act. An idle
// monitor does nothing.
func (m *Monitor) Check(ctx context.Context) Decision {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	if m.State() != StateActive {
		return DecisionNone
	}

	snap, err := m.src.Snapshot(ctx)
	if err != nil {
		m.cfg.Logger.Warn("session monitor could not read session", zap.Error(err))
		return DecisionNone
	}

	decision, term := m.Evaluate(snap, m.cfg.Clock.Now())
	switch decision {
	case DecisionLogout:
		m.terminate(ctx, term)
	case DecisionRefresh:
		m.refresh(ctx, ReasonRefreshFailed)
	}
	return decision
}

// KeepAlive refreshes proactively, independent of the snapshot.
func (m *Monitor) KeepAlive(ctx context.Context) {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	if m.State() != StateActive {
		return
	}
	m.refresh(ctx, ReasonKeepAliveFailed)
}

func (m *Monitor) refresh(ctx context.Context, onFailure Reason) {
	if !m.state.CompareAndSwap(int32(StateActive), int32(StateRefreshing)) {
		return
	}
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(StateActive, StateRefreshing)
	}
	if err := m.ctrl.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			// Stopped while waiting; whoever stopped us owns the session.
			return
		}
		m.cfg.Logger.Warn("session refresh failed",
			zap.String("reason", string(onFailure)),
			zap.Error(err),
		)
		m.terminate(ctx, Termination{Notify: false, Redirect: false, Reason: onFailure})
		return
	}
	// Stop may have run while refreshing.
	if m.state.CompareAndSwap(int32(StateRefreshing), int32(StateActive)) && m.cfg.OnTransition != nil {
		m.cfg.OnTransition(StateRefreshing, StateActive)
	}
}

func (m *Monitor) terminate(ctx context.Context, t Termination) {
	m.setState(StateTerminating)
	m.cfg.Logger.Info("session terminated",
		zap.String("reason", string(t.Reason)),
		zap.Bool("notify", t.Notify),
		zap.Bool("redirect", t.Redirect),
	)
	m.ctrl.Terminate(context.WithoutCancel(ctx), t)
	m.Stop()
}
