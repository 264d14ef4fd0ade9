package goPortal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/MrEthical07/goPortal/api"
	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/offline"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/stubserver"
	"github.com/MrEthical07/goPortal/transport"
)

const refreshRoute = "POST /api/auth/token/refresh"

type liveHarness struct {
	*harness
	backend     *offline.Backend
	server      *stubserver.Server
	serverClock *clockwork.FakeClock
}

// newLiveHarness serves an offline catalog over HTTP and builds a live
// client against it. Server and client keep separate clocks so access
// tokens can expire on the server without waking the client's monitor.
func newLiveHarness(t *testing.T) *liveHarness {
	t.Helper()
	serverClock := clockwork.NewFakeClockAt(testEpoch)
	backend, err := offline.Open(context.Background(), offline.Config{
		DSN:        "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		SigningKey: []byte("live-test-signing-key-0123456789"),
		Clock:      serverClock,
	})
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	server := stubserver.New(backend, stubserver.Options{Logger: zap.NewNop()})
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	h := buildHarness(t, session.NewMemoryStore(), clockwork.NewFakeClockAt(testEpoch), func(cfg *Config, _ *Builder) {
		cfg.DataSource.Mode = DataSourceLive
		cfg.API.BaseURL = srv.URL
	})
	return &liveHarness{harness: h, backend: backend, server: server, serverClock: serverClock}
}

// concurrently runs n authenticated profile reads and returns their errors.
func (l *liveHarness) concurrently(n int) []error {
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.client.DataSource().CurrentUser(context.Background())
		}(i)
	}
	wg.Wait()
	return errs
}

func TestLiveLoginUsesBearerTransport(t *testing.T) {
	l := newLiveHarness(t)
	res := l.login(t, clientCreds)
	if res.Destination != "/dashboard" {
		t.Fatalf("unexpected destination %q", res.Destination)
	}

	me, err := l.client.DataSource().CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if me.Email != clientCreds.Email {
		t.Fatalf("unexpected user %q", me.Email)
	}
	if l.server.Hits(refreshRoute) != 0 {
		t.Fatalf("a valid token must not refresh")
	}

	// Listings are public; WithoutAuth sends them anonymously.
	page, err := l.client.DataSource().ListProperties(WithoutAuth(context.Background()), model.PageRequest{Size: 2})
	if err != nil || len(page.Content) != 2 {
		t.Fatalf("list properties: %v %+v", err, page)
	}
}

func TestLiveExpiredTokenRefreshesOnceForConcurrentCallers(t *testing.T) {
	l := newLiveHarness(t)
	l.login(t, clientCreds)
	before := l.stored(t)

	l.serverClock.Advance(16 * time.Minute)

	const n = 8
	for i, err := range l.concurrently(n) {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if got := l.server.Hits(refreshRoute); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	after := l.stored(t)
	if after.AccessToken == before.AccessToken || after.RefreshToken == before.RefreshToken {
		t.Fatalf("expected rotated tokens")
	}
	snap := l.client.MetricsSnapshot()
	if snap.Counters[MetricRequestReplayed] != n || snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
	if !l.client.IsAuthenticated() {
		t.Fatalf("expected session to survive")
	}
}

func TestLiveRefreshFailureRejectsQueuedCallers(t *testing.T) {
	l := newLiveHarness(t)
	l.login(t, clientCreds)
	if err := l.backend.RevokeToken(context.Background(), l.stored(t).RefreshToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	l.rec.reset()
	l.serverClock.Advance(16 * time.Minute)

	const n = 6
	for i, err := range l.concurrently(n) {
		if api.StatusOf(err) != http.StatusUnauthorized {
			t.Fatalf("call %d: expected 401, got %v", i, err)
		}
		if !errors.Is(err, transport.ErrRefreshFailed) {
			t.Fatalf("call %d: expected refresh failure, got %v", i, err)
		}
	}
	if got := l.server.Hits(refreshRoute); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	l.requireEmptyStore(t)
	if l.client.IsAuthenticated() {
		t.Fatalf("expected session to end")
	}
	if len(l.rec.navigations()) != 0 || len(l.rec.notifications()) != 0 {
		t.Fatalf("refresh failure must be silent, got %v %v", l.rec.navigations(), l.rec.notifications())
	}
	if got := l.client.MetricsSnapshot().Counters[MetricRequestRejected]; got != n {
		t.Fatalf("expected %d rejected requests, got %d", n, got)
	}
}

func TestLiveUploadReplaysBodyAfterRefresh(t *testing.T) {
	l := newLiveHarness(t)
	l.login(t, agentCreds)
	l.serverClock.Advance(16 * time.Minute)

	created, err := l.client.DataSource().CreateProperty(context.Background(), model.Property{
		Title: "Replayed Listing", Type: model.PropertyCondo, Price: 410000, City: "Toronto", State: "ON",
	})
	if err != nil {
		t.Fatalf("create after expiry: %v", err)
	}
	if created.Title != "Replayed Listing" {
		t.Fatalf("replayed body lost, got %+v", created)
	}
	if got := l.server.Hits(refreshRoute); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}
}

func TestLiveLogoutRevokesOnServer(t *testing.T) {
	l := newLiveHarness(t)
	l.login(t, clientCreds)
	refresh := l.stored(t).RefreshToken

	if err := l.client.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if l.server.Hits("POST /api/auth/token/revoke") != 1 {
		t.Fatalf("expected revoke call")
	}
	if _, err := l.backend.RefreshToken(context.Background(), refresh); api.StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected revoked token, got %v", err)
	}
}

func TestLiveCookieMirrorsAccessToken(t *testing.T) {
	l := newLiveHarness(t)
	l.login(t, clientCreds)

	mirror, ok := l.client.cookie.(*session.JarMirror)
	if !ok {
		t.Fatalf("expected jar mirror, got %T", l.client.cookie)
	}
	if mirror.Value() != l.stored(t).AccessToken {
		t.Fatalf("cookie out of step with stored token")
	}
	if err := l.client.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if mirror.Value() != "" {
		t.Fatalf("expected cookie cleared, got %q", mirror.Value())
	}
}
