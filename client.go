package goPortal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/activity"
	"github.com/MrEthical07/goPortal/api"
	"github.com/MrEthical07/goPortal/internal/events"
	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/monitor"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/transport"
)

// Client defines a public type used by goPortal APIs.
//
// Client owns one user session: its persisted tokens, the activity
// tracker, the session monitor and the HTTP client that attaches and
// refreshes the bearer token. Client methods are safe for concurrent use.
type Client struct {
	cfg    Config
	logger *zap.Logger
	clock  clockwork.Clock
	origin string

	store       session.Store
	broadcaster session.Broadcaster
	cookie      session.CookieMirror
	ds          api.DataSource

	httpClient *http.Client
	refresh    *transport.RefreshGroup
	monitor    *monitor.Monitor
	tracker    *activity.Tracker

	navigator Navigator
	notifier  Notifier
	events    *events.Dispatcher
	metrics   *Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	sess *session.Session
	// gen advances whenever sess is replaced; a refresh started under an
	// older generation must not persist its tokens.
	gen uint64

	syncOnce sync.Once
	syncStop func()
	closers  []func() error
	closed   atomic.Bool
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (c *Client) CurrentUser() *model.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.User.Clone()
}

// IsAuthenticated reports whether a session is established in memory.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess != nil && c.sess.User != nil
}

// Session returns a copy of the in-memory session, or nil.
func (c *Client) Session() *session.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess.Clone()
}

// AccessToken returns the stored access token, or "" without a session.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.accessToken(ctx)
}

// HTTPClient returns the client that attaches the bearer token and
// recovers from a 401 by refreshing once. Requests made with a context
// from transport.WithoutAuth are sent anonymously.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// DataSource returns the DataSource chosen at build time.
func (c *Client) DataSource() api.DataSource {
	return c.ds
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config {
	return cloneConfig(c.cfg)
}

// MonitorState reports the session monitor's state.
func (c *Client) MonitorState() monitor.State {
	return c.monitor.State()
}

// MetricsSnapshot returns the current counters and histograms.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped returns the number of events dropped by a full buffer.
func (c *Client) EventsDropped() uint64 {
	return c.events.Dropped()
}

// Observe forwards a user interaction signal to the activity tracker. It
// reports whether the signal was recorded; throttled and unknown signals
// and signals received without a session are ignored.
func (c *Client) Observe(ctx context.Context, sig activity.Signal) (bool, error) {
	return c.tracker.Observe(ctx, sig)
}

// Close stops the monitor, the tracker and the sync subscription, drains
// the event dispatcher and releases the data source. The stored session
// is kept so a later Restore can resume it. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.monitor.Stop()
	c.tracker.Stop()
	c.cancel()
	c.monitor.Wait()

	c.mu.Lock()
	stop := c.syncStop
	c.syncStop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}

	c.events.Close()

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) current() *session.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess
}

func (c *Client) setSession(s *session.Session) {
	c.mu.Lock()
	c.sess = s
	c.gen++
	c.mu.Unlock()
}

func (c *Client) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// swapSession replaces the in-memory session and returns the previous one.
func (c *Client) swapSession(s *session.Session) *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.sess
	c.sess = s
	c.gen++
	return prev
}

// startSession starts the tracker and the monitor for an established
// session. Both are bound to the client's lifetime, not to ctx.
func (c *Client) startSession() {
	if c.closed.Load() {
		return
	}
	c.tracker.Start()
	c.monitor.Start(c.ctx)
}

func (c *Client) stopSession() {
	c.monitor.Stop()
	c.tracker.Stop()
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	s, err := c.store.Load(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.AccessToken, nil
}

func (c *Client) notify(ctx context.Context, sev Severity, msg string) {
	c.notifier.Notify(ctx, Notification{Severity: sev, Message: msg})
}

func (c *Client) fail(ctx context.Context, err error, fallback string) {
	c.notify(ctx, SeverityError, api.UserMessage(err, fallback))
}

func (c *Client) navigate(ctx context.Context, path string) {
	c.navigator.Navigate(ctx, path)
}

func userID(u *model.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func userEmail(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}
