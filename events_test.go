package goPortal

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goPortal/model"
)

func nextEvent(t *testing.T, sink *ChannelSink) SessionEvent {
	t.Helper()
	select {
	case e := <-sink.Events():
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return SessionEvent{}
}

func TestSessionEventsAreDispatched(t *testing.T) {
	sink := NewChannelSink(16)
	h := newHarness(t, func(cfg *Config, b *Builder) {
		cfg.Events.Enabled = true
		b.WithEventSink(sink)
	})

	h.login(t, clientCreds)
	login := nextEvent(t, sink)
	if login.Type != EventLogin || !login.Success || login.Email != clientCreds.Email {
		t.Fatalf("unexpected login event %+v", login)
	}
	if login.ID == "" || !login.Timestamp.Equal(testEpoch) || login.Origin == "" {
		t.Fatalf("expected stamped event, got %+v", login)
	}

	if err := h.client.Logout(context.Background(), WithoutRedirect()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	logout := nextEvent(t, sink)
	if logout.Type != EventLogout || logout.Reason != reasonUser || logout.UserID != login.UserID {
		t.Fatalf("unexpected logout event %+v", logout)
	}
}

func TestFailedLoginEventCarriesError(t *testing.T) {
	sink := NewChannelSink(4)
	h := newHarness(t, func(cfg *Config, b *Builder) {
		cfg.Events.Enabled = true
		b.WithEventSink(sink)
	})

	_, _ = h.client.Login(context.Background(), model.Credentials{Email: clientCreds.Email, Password: "nope"})
	e := nextEvent(t, sink)
	if e.Type != EventLogin || e.Success || e.Error == "" {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestEventsDisabledByDefault(t *testing.T) {
	sink := NewChannelSink(4)
	h := newHarness(t, func(_ *Config, b *Builder) { b.WithEventSink(sink) })

	h.login(t, clientCreds)
	select {
	case e := <-sink.Events():
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
	if h.client.EventsDropped() != 0 {
		t.Fatalf("expected no dropped events")
	}
}
