package activity

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultThrottle is the minimum spacing between two recorded signals.
const DefaultThrottle = 5 * time.Second

// Signal is a user interaction reported by the embedding shell.
type Signal string

const (
	SignalKeyDown    Signal = "keydown"
	SignalTouchStart Signal = "touchstart"
	SignalClick      Signal = "click"
	SignalMouseMove  Signal = "mousemove"
	SignalScroll     Signal = "scroll"
)

// DefaultSignals are the interactions that count as activity.
var DefaultSignals = []Signal{SignalKeyDown, SignalTouchStart, SignalClick, SignalMouseMove, SignalScroll}

// Valid reports whether s is one of the known signals.
func (s Signal) Valid() bool {
	for _, known := range DefaultSignals {
		if s == known {
			return true
		}
	}
	return false
}

// Recorder persists the last activity time. session.Store satisfies it.
type Recorder interface {
	Touch(ctx context.Context, at time.Time) error
}

// Options configures a Tracker. Zero values take defaults.
type Options struct {
	Throttle time.Duration
	Signals  []Signal
	Clock    clockwork.Clock
	Logger   *zap.Logger
	// OnTouch is called after every successful write.
	OnTouch func(at time.Time)
}

// Tracker records user activity while started. Writes are synchronous:
// when Observe or Touch returns nil the recorder already holds the time.
type Tracker struct {
	rec      Recorder
	clock    clockwork.Clock
	throttle time.Duration
	signals  map[Signal]struct{}
	logger   *zap.Logger
	onTouch  func(time.Time)

	mu      sync.Mutex
	running bool
	last    time.Time
}

// New returns a stopped Tracker writing to rec.
func New(rec Recorder, opts Options) *Tracker {
	t := &Tracker{
		rec:      rec,
		clock:    opts.Clock,
		throttle: opts.Throttle,
		logger:   opts.Logger,
		onTouch:  opts.OnTouch,
		signals:  map[Signal]struct{}{},
	}
	if t.clock == nil {
		t.clock = clockwork.NewRealClock()
	}
	if t.throttle <= 0 {
		t.throttle = DefaultThrottle
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	signals := opts.Signals
	if len(signals) == 0 {
		signals = DefaultSignals
	}
	for _, s := range signals {
		t.signals[s] = struct{}{}
	}
	return t
}

// Start enables Observe. Calling Start on a running tracker is a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
}

// Stop disables Observe. It is idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.running = false
	t.last = time.Time{}
	t.mu.Unlock()
}

// Running reports whether the tracker is started.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Touch records the current time unconditionally and restarts the
// throttle window. It works whether or not the tracker is started.
func (t *Tracker) Touch(ctx context.Context) error {
	now := t.clock.Now()
	t.mu.Lock()
	t.last = now
	t.mu.Unlock()
	return t.write(ctx, now)
}

// Observe records sig as activity. It reports whether a write happened:
// signals arriving while stopped, outside the configured set or within
// the throttle window of the previous write are dropped.
func (t *Tracker) Observe(ctx context.Context, sig Signal) (bool, error) {
	if _, ok := t.signals[sig]; !ok {
		return false, nil
	}

	now := t.clock.Now()
	t.mu.Lock()
	if !t.running || (!t.last.IsZero() && now.Sub(t.last) < t.throttle) {
		t.mu.Unlock()
		return false, nil
	}
	t.last = now
	t.mu.Unlock()

	if !t.Running() {
		return false, nil
	}
	if err := t.write(ctx, now); err != nil {
		return false, err
	}
	return true, nil
}

// LastTouch returns the time of the last write attempt, or zero.
func (t *Tracker) LastTouch() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Tracker) write(ctx context.Context, at time.Time) error {
	if err := t.rec.Touch(ctx, at); err != nil {
		t.logger.Warn("activity write failed", zap.Error(err))
		return err
	}
	if t.onTouch != nil {
		t.onTouch(at)
	}
	return nil
}
