package goPortal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/monitor"
	"github.com/MrEthical07/goPortal/session"
)

// LoginResult is returned by a successful Login.
type LoginResult struct {
	User        *model.User
	Destination string
}

// LoginOption customizes Login.
type LoginOption func(*loginOptions)

type loginOptions struct {
	redirect string
}

// WithRedirect passes the page the user was sent away from, usually the
// "from" query parameter of the login page. Unsafe values are ignored.
func WithRedirect(from string) LoginOption {
	return func(o *loginOptions) { o.redirect = from }
}

// LogoutOption customizes Logout.
type LogoutOption func(*logoutOptions)

type logoutOptions struct {
	notify   bool
	redirect bool
	reason   string
}

// WithoutNotification suppresses the logout confirmation.
func WithoutNotification() LogoutOption {
	return func(o *logoutOptions) { o.notify = false }
}

// WithoutRedirect keeps the user on the current page.
func WithoutRedirect() LogoutOption {
	return func(o *logoutOptions) { o.redirect = false }
}

const reasonUser = "user"

// Login describes the login operation and its observable behavior.
//
// Login exchanges credentials for a session, persists it with a fresh
// expiry and activity time, mirrors the access token into the cookie,
// starts the monitor and tracker, then navigates to the requested
// redirect target if it is safe or to the default landing page. Errors
// are notified with the server message and returned.
func (c *Client) Login(ctx context.Context, creds model.Credentials, opts ...LoginOption) (*LoginResult, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	var o loginOptions
	for _, opt := range opts {
		opt(&o)
	}

	resp, err := c.ds.Login(ctx, creds)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, SessionEvent{Type: EventLogin, Email: creds.Email, Error: eventError(err)})
		c.fail(ctx, err, "Login failed")
		return nil, err
	}

	user := resp.User
	if err := c.establish(ctx, resp.Token, resp.RefreshToken, resp.TokenType, &user); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.fail(ctx, err, "Login failed")
		return nil, err
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.emit(ctx, SessionEvent{Type: EventLogin, UserID: user.ID, Email: user.Email, Success: true})
	c.publish(ctx, session.SyncLogin, &user)
	c.notify(ctx, SeveritySuccess, "Successfully logged in")

	dest := SafeRedirect(o.redirect, c.cfg.Navigation)
	if o.redirect != "" && dest != o.redirect {
		c.metrics.Inc(MetricRedirectRejected)
		c.logger.Warn("login redirect target rejected", zap.String("target", o.redirect))
	}
	c.navigate(ctx, dest)

	return &LoginResult{User: user.Clone(), Destination: dest}, nil
}

// establish persists a new session and starts watching it.
func (c *Client) establish(ctx context.Context, access, refresh, tokenType string, user *model.User) error {
	if tokenType == "" {
		tokenType = "Bearer"
	}
	now := c.clock.Now()
	sess := &session.Session{
		AccessToken:    access,
		RefreshToken:   refresh,
		TokenType:      tokenType,
		User:           user.Clone(),
		ExpiresAt:      now.Add(c.cfg.Session.AccessTokenLifetime),
		LastActivityAt: now,
	}
	if err := c.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionPersist, err)
	}
	c.cookie.Set(access)
	c.setSession(sess)
	c.startSession()
	c.ensureSync()
	return nil
}

// Register describes the register operation and its observable behavior.
//
// Register creates an account without signing in, notifies the server's
// confirmation and navigates to the login page.
func (c *Client) Register(ctx context.Context, reg model.Registration) (string, error) {
	msg, err := c.ds.Register(ctx, reg)
	if err != nil {
		c.metrics.Inc(MetricRegisterFailure)
		c.emit(ctx, SessionEvent{Type: EventRegister, Email: reg.Email, Error: eventError(err)})
		c.fail(ctx, err, "Registration failed")
		return "", err
	}
	c.metrics.Inc(MetricRegisterSuccess)
	c.emit(ctx, SessionEvent{Type: EventRegister, Email: reg.Email, Success: true})
	c.notify(ctx, SeveritySuccess, "Registration successful. Please check your email to verify your account.")
	c.navigate(ctx, c.cfg.Navigation.LoginPath)
	return msg, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout revokes the refresh token on a best-effort basis, then clears
// the store, the cookie and the in-memory session and stops the monitor
// and tracker whatever the outcome. By default it notifies the user and
// navigates to the login page; see WithoutNotification and
// WithoutRedirect. The returned error only reports a store that could not
// be cleared.
func (c *Client) Logout(ctx context.Context, opts ...LogoutOption) error {
	o := logoutOptions{notify: true, redirect: true, reason: reasonUser}
	for _, opt := range opts {
		opt(&o)
	}
	return c.endSession(ctx, o)
}

func (c *Client) endSession(ctx context.Context, o logoutOptions) error {
	// Swapping first makes a refresh still in flight discard its result.
	prev := c.swapSession(nil)
	c.stopSession()

	refreshToken := ""
	if prev != nil {
		refreshToken = prev.RefreshToken
	}
	if stored, err := c.store.Load(ctx); err == nil && stored.RefreshToken != "" {
		refreshToken = stored.RefreshToken
	}
	if refreshToken != "" {
		if err := c.ds.RevokeToken(ctx, refreshToken); err != nil {
			c.logger.Warn("refresh token revoke failed", zap.Error(err))
		}
	}

	clearErr := c.store.Clear(ctx)
	if clearErr != nil {
		c.logger.Error("session store clear failed", zap.Error(clearErr))
	}
	c.cookie.Clear()

	c.metrics.Inc(MetricLogout)
	if o.reason == string(monitor.ReasonInactive) {
		c.metrics.Inc(MetricLogoutInactive)
	}
	var user *model.User
	if prev != nil {
		user = prev.User
	}
	c.emit(ctx, SessionEvent{Type: EventLogout, UserID: userID(user), Email: userEmail(user), Success: clearErr == nil, Reason: o.reason, Error: eventError(clearErr)})
	c.publish(ctx, session.SyncLogout, nil)

	if o.notify {
		c.notify(ctx, SeveritySuccess, logoutMessage(o.reason))
	}
	if o.redirect {
		c.navigate(ctx, c.cfg.Navigation.LoginPath)
	}
	if clearErr != nil {
		return fmt.Errorf("clear session: %w", clearErr)
	}
	return nil
}

func logoutMessage(reason string) string {
	if reason == string(monitor.ReasonInactive) {
		return "You have been logged out due to inactivity"
	}
	return "Successfully logged out"
}

// terminate is the monitor's path into endSession. A session that has
// already ended, for example by a failed refresh, is left alone.
func (c *Client) terminate(ctx context.Context, t monitor.Termination) {
	if c.current() == nil {
		c.stopSession()
		return
	}
	err := c.endSession(ctx, logoutOptions{notify: t.Notify, redirect: t.Redirect, reason: string(t.Reason)})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("session termination incomplete", zap.Error(err))
	}
}
