package goPortal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/monitor"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/transport"
)

// RefreshUserToken describes the refreshusertoken operation and its observable behavior.
//
// RefreshUserToken exchanges the stored refresh token for a new pair
// through the client's single guarded refresh, so it joins a refresh
// already in flight instead of starting another. On success the store,
// the cookie, the expiry and the activity time are updated. On failure
// the session is ended silently, without notification or navigation, and
// the error is returned.
func (c *Client) RefreshUserToken(ctx context.Context) (*model.TokenResponse, error) {
	if _, err := c.refresh.Refresh(ctx, ""); err != nil {
		return nil, err
	}
	sess := c.current()
	if sess == nil {
		return nil, ErrNotAuthenticated
	}
	return &model.TokenResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    sess.TokenType,
	}, nil
}

// exchange is the RefreshFunc behind the client's RefreshGroup. It runs
// at most once at a time.
func (c *Client) exchange(ctx context.Context) (string, error) {
	token, err := c.exchangeOnce(ctx)
	if errors.Is(err, transport.ErrSessionEnded) {
		c.logger.Debug("refresh settled after the session ended; tokens discarded")
		return "", err
	}
	if err != nil {
		c.metrics.Inc(MetricRefreshFailure)
		sess := c.current()
		var user *model.User
		if sess != nil {
			user = sess.User
		}
		c.emit(ctx, SessionEvent{Type: EventRefresh, UserID: userID(user), Error: eventError(err)})
		c.logger.Warn("token refresh failed", zap.Error(err))
		// The refresh may have failed on its own deadline; cleanup gets a fresh one.
		cleanupCtx, cancel := c.detached(ctx)
		defer cancel()
		if sess != nil {
			_ = c.endSession(cleanupCtx, logoutOptions{reason: string(monitor.ReasonRefreshFailed)})
		} else {
			c.clearStale(cleanupCtx)
		}
		return "", err
	}
	c.metrics.Inc(MetricRefreshSuccess)
	c.emit(ctx, SessionEvent{Type: EventRefresh, UserID: userID(c.CurrentUser()), Success: true})
	return token, nil
}

func (c *Client) exchangeOnce(ctx context.Context) (string, error) {
	gen := c.generation()
	stored, err := c.store.Load(ctx)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return "", fmt.Errorf("load session: %w", err)
	}
	if stored == nil || stored.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	resp, err := c.ds.RefreshToken(ctx, stored.RefreshToken)
	if err != nil {
		return "", err
	}

	now := c.clock.Now()
	tokens := session.Tokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresAt:    now.Add(c.cfg.Session.AccessTokenLifetime),
	}

	// The generation check and the write happen under one lock so a
	// logout either sees the new tokens in the store or makes us drop them.
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.discardTokens(ctx, tokens.RefreshToken)
		return "", transport.ErrSessionEnded
	}
	if err := c.store.SaveTokens(ctx, tokens); err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("save tokens: %w", err)
	}
	c.cookie.Set(tokens.AccessToken)
	if c.sess != nil {
		c.sess.Apply(tokens)
	}
	c.mu.Unlock()

	if !isBackgroundRefresh(ctx) {
		if err := c.tracker.Touch(ctx); err != nil {
			c.logger.Warn("activity write after refresh failed", zap.Error(err))
		}
	}
	return tokens.AccessToken, nil
}

// discardTokens revokes a refresh token issued to a session that has
// since ended.
func (c *Client) discardTokens(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	rctx, cancel := c.detached(ctx)
	defer cancel()
	if err := c.ds.RevokeToken(rctx, refreshToken); err != nil {
		c.logger.Warn("revoke of discarded refresh token failed", zap.Error(err))
	}
}

// clearStale wipes a store left behind without an in-memory session.
func (c *Client) clearStale(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("session store clear failed", zap.Error(err))
	}
	c.cookie.Clear()
}

func (c *Client) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.cfg.API.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (c *Client) observeRefresh(d time.Duration, _ error) {
	c.metrics.Observe(MetricRefreshLatency, d)
}

// monitorController adapts the Client to monitor.Controller.
type monitorController struct {
	c *Client
}

// Refresh runs the guarded refresh without counting as user activity.
func (m monitorController) Refresh(ctx context.Context) error {
	_, err := m.c.refresh.Refresh(withBackgroundRefresh(ctx), "")
	return err
}

func (m monitorController) Terminate(ctx context.Context, t monitor.Termination) {
	m.c.terminate(ctx, t)
}

// storeSource adapts the session store to monitor.SessionSource.
type storeSource struct {
	store session.Store
}

func (s storeSource) Snapshot(ctx context.Context) (monitor.Snapshot, error) {
	sess, err := s.store.Load(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return monitor.Snapshot{}, nil
	}
	if err != nil {
		return monitor.Snapshot{}, err
	}
	return monitor.Snapshot{ExpiresAt: sess.ExpiresAt, LastActivityAt: sess.LastActivityAt}, nil
}

var (
	_ monitor.Controller    = monitorController{}
	_ monitor.SessionSource = storeSource{}
)
