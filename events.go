package goPortal

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/internal/events"
)

// SessionEvent is one session lifecycle record delivered to an EventSink.
type SessionEvent = events.Event

// EventSink receives session events from the async dispatcher.
type EventSink = events.Sink

// Event types.
const (
	EventLogin           = "login"
	EventRegister        = "register"
	EventLogout          = "logout"
	EventRefresh         = "refresh"
	EventSessionRestored = "session_restored"
	EventProfileUpdated  = "profile_updated"
	EventPasswordChanged = "password_changed"
	EventSyncApplied     = "sync_applied"
)

// NoOpSink drops events.
type NoOpSink = events.NoOpSink

// ChannelSink delivers events into a buffered channel.
type ChannelSink = events.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = events.JSONWriterSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink { return events.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return events.NewJSONWriterSink(w) }

// NewZapSink returns a sink logging events through logger.
func NewZapSink(logger *zap.Logger) EventSink { return events.NewZapSink(logger) }

func (c *Client) emit(ctx context.Context, e SessionEvent) {
	if c.events == nil {
		return
	}
	now := c.clock.Now()
	e.ID = events.NewID(now)
	e.Timestamp = now
	e.Origin = c.origin
	c.events.Emit(ctx, e)
}

func eventError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
