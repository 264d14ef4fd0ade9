package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

var (
	// ErrRefreshFailed matches every *RefreshError.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrSessionEnded is returned to a caller whose stale token was cleared
	// rather than replaced, meaning the session ended while it waited.
	ErrSessionEnded = errors.New("session ended")
)

// RefreshError is returned to the original caller and to every caller that
// waited on the same failed refresh.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	if e.Err == nil {
		return ErrRefreshFailed.Error()
	}
	return ErrRefreshFailed.Error() + ": " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error { return e.Err }

func (e *RefreshError) Is(target error) bool { return target == ErrRefreshFailed }

// RefreshFunc exchanges the stored refresh token for a new access token.
// It must persist the new token before returning and owns every other side
// effect of the exchange, including clearing the session on failure.
type RefreshFunc func(ctx context.Context) (string, error)

// Refresher is the guarded refresh entry point. stale is the access token
// the caller found rejected, or "" for an unconditional refresh.
type Refresher interface {
	Refresh(ctx context.Context, stale string) (string, error)
}

// RefreshGroup guarantees at most one RefreshFunc call in flight. Callers
// arriving while one runs wait for it and receive its token or its error.
// A caller whose stale token was already replaced gets the replacement
// without starting another call.
type RefreshGroup struct {
	fn      RefreshFunc
	tokens  TokenSource
	timeout time.Duration
	observe func(d time.Duration, err error)

	mu       sync.Mutex
	group    singleflight.Group
	inFlight atomic.Bool
	calls    atomic.Uint64
}

// NewRefreshGroup wraps fn. tokens is read to detect stale callers; a
// positive timeout bounds each call independently of the callers' contexts.
func NewRefreshGroup(fn RefreshFunc, tokens TokenSource, timeout time.Duration) *RefreshGroup {
	return &RefreshGroup{fn: fn, tokens: tokens, timeout: timeout}
}

// OnSettle registers a callback invoked once per settled call with its
// duration and error. It must be set before the group is used.
func (g *RefreshGroup) OnSettle(fn func(d time.Duration, err error)) {
	g.observe = fn
}

// Refresh runs or joins the in-flight refresh. The refresh itself is
// detached from ctx so one caller giving up does not fail the others;
// ctx only bounds how long this caller waits.
func (g *RefreshGroup) Refresh(ctx context.Context, stale string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// The stale check and the join happen under one lock. RefreshFunc
	// persists its token before the singleflight key is released, so a
	// caller that still reads its stale token here is guaranteed to join
	// the running call instead of starting a second one.
	g.mu.Lock()
	if stale != "" && g.tokens != nil {
		current, err := g.tokens.AccessToken(ctx)
		if err == nil && current != stale {
			g.mu.Unlock()
			if current == "" {
				return "", ErrSessionEnded
			}
			return current, nil
		}
	}
	ch := g.group.DoChan(refreshKey, func() (interface{}, error) {
		g.inFlight.Store(true)
		defer g.inFlight.Store(false)

		rctx := context.WithoutCancel(ctx)
		if g.timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(rctx, g.timeout)
			defer cancel()
		}

		g.calls.Add(1)
		start := time.Now()
		token, err := g.fn(rctx)
		if g.observe != nil {
			g.observe(time.Since(start), err)
		}
		return token, err
	})
	g.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// InFlight reports whether a refresh is currently running.
func (g *RefreshGroup) InFlight() bool {
	return g.inFlight.Load()
}

// Calls returns how many times the wrapped RefreshFunc ran.
func (g *RefreshGroup) Calls() uint64 {
	return g.calls.Load()
}
