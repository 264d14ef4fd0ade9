package goPortal

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/session"
)

// Restore describes the restore operation and its observable behavior.
//
// Restore resumes the session left in the store, typically at application
// start. An incomplete stored session is cleared without navigation. An
// expired one is refreshed first; if that fails the session is ended
// silently and Restore returns nil. A resumed session gets a fresh
// activity time, the cookie and a running monitor and tracker. Restore
// returns the signed-in user, or nil.
func (c *Client) Restore(ctx context.Context) (*model.User, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	c.ensureSync()

	stored, err := c.store.Load(ctx)
	if err != nil && !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrCorrupt) {
		return nil, err
	}
	if err != nil || !stored.Complete() {
		c.logger.Debug("no resumable session; clearing store")
		c.clearStale(ctx)
		return nil, nil
	}

	c.setSession(stored)

	if stored.Expired(c.clock.Now()) {
		if _, err := c.RefreshUserToken(ctx); err != nil {
			c.logger.Info("expired session could not be refreshed", zap.Error(err))
			return nil, nil
		}
	} else {
		c.cookie.Set(stored.AccessToken)
		if err := c.tracker.Touch(ctx); err != nil {
			c.logger.Warn("activity write on restore failed", zap.Error(err))
		}
	}

	c.startSession()
	user := c.CurrentUser()
	c.metrics.Inc(MetricSessionRestored)
	c.emit(ctx, SessionEvent{Type: EventSessionRestored, UserID: userID(user), Email: userEmail(user), Success: true})
	return user, nil
}

// publish announces an identity change to other clients sharing the store.
func (c *Client) publish(ctx context.Context, typ session.SyncType, u *model.User) {
	if c.broadcaster == nil || !c.cfg.Sync.Enabled {
		return
	}
	msg := session.SyncMessage{Origin: c.origin, Type: typ, User: u.Clone(), At: c.clock.Now()}
	if err := c.broadcaster.Publish(ctx, msg); err != nil {
		c.logger.Warn("session sync publish failed", zap.String("type", string(typ)), zap.Error(err))
	}
}

// ensureSync subscribes once to identity changes of other clients.
func (c *Client) ensureSync() {
	if c.broadcaster == nil || !c.cfg.Sync.Enabled {
		return
	}
	c.syncOnce.Do(func() {
		ch, stop, err := c.broadcaster.Subscribe(c.ctx)
		if err != nil {
			c.logger.Warn("session sync subscribe failed", zap.Error(err))
			return
		}
		c.mu.Lock()
		c.syncStop = stop
		c.mu.Unlock()
		go c.followSync(ch)
	})
}

func (c *Client) followSync(ch <-chan session.SyncMessage) {
	for msg := range ch {
		if msg.Origin == c.origin {
			continue
		}
		c.applySync(c.ctx, msg)
	}
}

// applySync adopts a change made by another client. A remote logout ends
// the local session without revoking, notifying or navigating; a remote
// login resumes the stored session; an update replaces the user.
func (c *Client) applySync(ctx context.Context, msg session.SyncMessage) {
	switch msg.Type {
	case session.SyncLogout:
		c.stopSession()
		c.cookie.Clear()
		if prev := c.swapSession(nil); prev == nil {
			return
		}
	case session.SyncLogin:
		stored, err := c.store.Load(ctx)
		if err != nil || !stored.Complete() {
			c.logger.Debug("remote login without a complete stored session", zap.Error(err))
			return
		}
		if msg.User != nil {
			stored.User = msg.User.Clone()
		}
		c.setSession(stored)
		c.cookie.Set(stored.AccessToken)
		c.startSession()
	case session.SyncUpdate:
		if msg.User == nil || !c.IsAuthenticated() {
			return
		}
		c.adoptUser(msg.User)
	default:
		return
	}
	c.metrics.Inc(MetricSyncApplied)
	c.emit(ctx, SessionEvent{Type: EventSyncApplied, UserID: userID(msg.User), Success: true, Reason: string(msg.Type)})
}
