package goPortal

import (
	"context"
	"errors"
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
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	clientCreds = model.Credentials{Email: "client@realestate.com", Password: "Client123!"}
	agentCreds  = model.Credentials{Email: "agent@realestate.com", Password: "Agent123!"}
)

// recorder captures navigation and notifications.
type recorder struct {
	mu    sync.Mutex
	paths []string
	notes []Notification
}

func (r *recorder) Navigate(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

func (r *recorder) lastNotification() Notification {
	notes := r.notifications()
	if len(notes) == 0 {
		return Notification{}
	}
	return notes[len(notes)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = nil
	r.notes = nil
}

type harness struct {
	client *Client
	store  session.Store
	clock  *clockwork.FakeClock
	rec    *recorder
}

func mockConfig() Config {
	cfg := DefaultConfig()
	cfg.DataSource.Mode = DataSourceMock
	cfg.DataSource.MockDSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.DataSource.MockSigningKey = []byte("root-package-test-signing-key-32")
	cfg.Metrics.Enabled = true
	return cfg
}

// newHarness builds a mock-mode client on a memory store and a fake clock.
func newHarness(t *testing.T, mutate ...func(*Config, *Builder)) *harness {
	t.Helper()
	return buildHarness(t, session.NewMemoryStore(), clockwork.NewFakeClockAt(testEpoch), mutate...)
}

// buildHarness builds a client on store. A nil store leaves the choice to
// the configured storage backend.
func buildHarness(t *testing.T, store session.Store, clock *clockwork.FakeClock, mutate ...func(*Config, *Builder)) *harness {
	t.Helper()
	h := &harness{store: store, clock: clock, rec: &recorder{}}
	cfg := mockConfig()
	b := New().
		WithClock(h.clock).
		WithLogger(zap.NewNop()).
		WithNavigator(h.rec).
		WithNotifier(h.rec)
	if store != nil {
		b.WithStore(store)
	}
	for _, m := range mutate {
		m(&cfg, b)
	}
	b.WithConfig(cfg)

	c, err := b.Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	h.client = c
	if h.store == nil {
		h.store = c.store
	}
	return h
}

// sibling builds a second client sharing the store, clock and data source.
func (h *harness) sibling(t *testing.T, mutate ...func(*Config, *Builder)) *harness {
	t.Helper()
	ds := h.client.DataSource()
	mutate = append([]func(*Config, *Builder){func(_ *Config, b *Builder) { b.WithDataSource(ds) }}, mutate...)
	return buildHarness(t, h.store, h.clock, mutate...)
}

func withDataSource(ds api.DataSource) func(*Config, *Builder) {
	return func(_ *Config, b *Builder) { b.WithDataSource(ds) }
}

func (h *harness) login(t *testing.T, creds model.Credentials, opts ...LoginOption) *LoginResult {
	t.Helper()
	res, err := h.client.Login(context.Background(), creds, opts...)
	if err != nil {
		t.Fatalf("login %s: %v", creds.Email, err)
	}
	return res
}

func (h *harness) stored(t *testing.T) *session.Session {
	t.Helper()
	s, err := h.store.Load(context.Background())
	if err != nil {
		t.Fatalf("load stored session: %v", err)
	}
	return s
}

func (h *harness) requireEmptyStore(t *testing.T) {
	t.Helper()
	if s, err := h.store.Load(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected empty store, got %+v (%v)", s, err)
	}
}

// storeTokens reads the caller's identity from a session store.
type storeTokens struct {
	store session.Store
}

func (s storeTokens) AccessToken(ctx context.Context) (string, error) {
	sess, err := s.store.Load(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sess.AccessToken, nil
}

// openBackend opens an offline catalog that authenticates as whoever is
// signed in on store.
func openBackend(t *testing.T, store session.Store, clock clockwork.Clock) *offline.Backend {
	t.Helper()
	backend, err := offline.Open(context.Background(), offline.Config{
		DSN:        "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		SigningKey: []byte("root-package-test-signing-key-32"),
		Clock:      clock,
		Tokens:     storeTokens{store: store},
	})
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

// seedSession signs in on backend and writes the session to store the way
// an earlier run of the application would have.
func seedSession(t *testing.T, store session.Store, backend *offline.Backend, creds model.Credentials, expiresAt, lastActivity time.Time) *model.LoginResponse {
	t.Helper()
	resp, err := backend.Login(context.Background(), creds)
	if err != nil {
		t.Fatalf("seed login: %v", err)
	}
	user := resp.User
	err = store.Save(context.Background(), &session.Session{
		AccessToken:    resp.Token,
		RefreshToken:   resp.RefreshToken,
		TokenType:      resp.TokenType,
		User:           &user,
		ExpiresAt:      expiresAt,
		LastActivityAt: lastActivity,
	})
	if err != nil {
		t.Fatalf("seed save: %v", err)
	}
	return resp
}

// eventually polls cond in real time; sync delivery is asynchronous.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
