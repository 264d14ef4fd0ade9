package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// tokenBox is a concurrency-safe stand-in for the session store.
type tokenBox struct {
	mu    sync.Mutex
	token string
}

func (b *tokenBox) AccessToken(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token, nil
}

func (b *tokenBox) set(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

// protectedServer accepts only "Bearer <valid>" and echoes the request body.
type protectedServer struct {
	*httptest.Server
	valid        atomic.Value
	unauthorized atomic.Int32
	seen         sync.Map
}

func newProtectedServer(t *testing.T, valid string) *protectedServer {
	t.Helper()
	ps := &protectedServer{}
	ps.valid.Store(valid)
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		ps.seen.Store(r.Header.Get(HeaderRequestID)+"|"+auth, true)
		if auth != "Bearer "+ps.valid.Load().(string) {
			ps.unauthorized.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"expired"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Auth", auth)
		_, _ = w.Write(body)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func newClient(tokens TokenSource, refresher Refresher, hooks Hooks) *http.Client {
	return &http.Client{Transport: New(Options{Tokens: tokens, Refresher: refresher, Hooks: hooks})}
}

func TestAttachesBearerToken(t *testing.T) {
	srv := newProtectedServer(t, "t0")
	tokens := &tokenBox{token: "t0"}
	client := newClient(tokens, nil, Hooks{})

	resp, err := client.Get(srv.URL + "/properties")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Bearer t0", resp.Header.Get("X-Auth"))
}

func TestWithoutAuthSendsNoToken(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var calls atomic.Int32
	group := NewRefreshGroup(func(context.Context) (string, error) {
		calls.Add(1)
		return "t1", nil
	}, nil, 0)
	client := newClient(&tokenBox{token: "t0"}, group, Hooks{})

	req, err := http.NewRequestWithContext(WithoutAuth(context.Background()), http.MethodPost, srv.URL+"/auth/login", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "", got.Load())
	require.Zero(t, calls.Load())
}

func TestNoTokenNoRefresh(t *testing.T) {
	srv := newProtectedServer(t, "t0")
	var calls atomic.Int32
	group := NewRefreshGroup(func(context.Context) (string, error) {
		calls.Add(1)
		return "t1", nil
	}, nil, 0)
	client := newClient(&tokenBox{}, group, Hooks{})

	resp, err := client.Get(srv.URL + "/users/profile")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, calls.Load())
}

func TestRefreshEndpointIsNotIntercepted(t *testing.T) {
	srv := newProtectedServer(t, "never")
	var calls atomic.Int32
	tokens := &tokenBox{token: "t0"}
	group := NewRefreshGroup(func(context.Context) (string, error) {
		calls.Add(1)
		return "t1", nil
	}, tokens, 0)
	client := newClient(tokens, group, Hooks{})

	resp, err := client.Post(srv.URL+"/api/auth/token/refresh", "application/json", strings.NewReader(`{"refreshToken":"r1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, calls.Load())
}

func TestSingleUnauthorizedIsReplayedWithBody(t *testing.T) {
	srv := newProtectedServer(t, "t0")
	tokens := &tokenBox{token: "t0"}
	group := NewRefreshGroup(func(context.Context) (string, error) {
		srv.valid.Store("t1")
		tokens.set("t1")
		return "t1", nil
	}, tokens, 0)

	var replayed atomic.Int32
	client := newClient(tokens, group, Hooks{Replayed: func() { replayed.Add(1) }})

	srv.valid.Store("t-rotated")
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/users/profile", io.NopCloser(strings.NewReader(`{"name":"Jane"}`)))
	require.NoError(t, err)
	req.Header.Set(HeaderRequestID, "req-1")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `{"name":"Jane"}`, string(body))
	require.Equal(t, "Bearer t1", resp.Header.Get("X-Auth"))
	require.EqualValues(t, 1, group.Calls())
	require.EqualValues(t, 1, replayed.Load())

	_, firstSeen := srv.seen.Load("req-1|Bearer t0")
	_, replaySeen := srv.seen.Load("req-1|Bearer t1")
	require.True(t, firstSeen, "first attempt keeps the request id")
	require.True(t, replaySeen, "replay keeps the request id")
}

func TestReplayIsAttemptedOnlyOnce(t *testing.T) {
	srv := newProtectedServer(t, "never")
	tokens := &tokenBox{token: "t0"}
	group := NewRefreshGroup(func(context.Context) (string, error) {
		tokens.set("t1")
		return "t1", nil
	}, tokens, 0)
	client := newClient(tokens, group, Hooks{})

	resp, err := client.Get(srv.URL + "/users/profile")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 1, group.Calls())
	require.EqualValues(t, 2, srv.unauthorized.Load())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const callers = 8
	srv := newProtectedServer(t, "t1")
	tokens := &tokenBox{token: "t0"}
	release := make(chan struct{})
	group := NewRefreshGroup(func(context.Context) (string, error) {
		<-release
		tokens.set("t1")
		return "t1", nil
	}, tokens, 0)
	client := newClient(tokens, group, Hooks{})

	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(srv.URL + "/properties/favorites/ids")
			if err != nil {
				errs[i] = err
				return
			}
			defer resp.Body.Close()
			results[i] = resp.Header.Get("X-Auth")
		}(i)
	}

	require.Eventually(t, func() bool { return srv.unauthorized.Load() == callers }, 2*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "Bearer t1", results[i])
	}
	require.EqualValues(t, 1, group.Calls())
}

func TestConcurrentUnauthorizedAllRejectedOnRefreshFailure(t *testing.T) {
	const callers = 6
	srv := newProtectedServer(t, "t1")
	tokens := &tokenBox{token: "t0"}
	release := make(chan struct{})
	cause := errors.New("refresh token revoked")
	group := NewRefreshGroup(func(context.Context) (string, error) {
		<-release
		tokens.set("")
		return "", cause
	}, tokens, 0)

	var rejected atomic.Int32
	client := newClient(tokens, group, Hooks{Rejected: func(error) { rejected.Add(1) }})

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(srv.URL + "/users/profile")
			if resp != nil {
				resp.Body.Close()
			}
			errs[i] = err
		}(i)
	}

	require.Eventually(t, func() bool { return srv.unauthorized.Load() == callers }, 2*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		require.ErrorIs(t, err, ErrRefreshFailed)
	}
	require.EqualValues(t, 1, group.Calls())
	require.EqualValues(t, callers, rejected.Load())
}

func TestStaleTokenReplaysWithoutRefresh(t *testing.T) {
	srv := newProtectedServer(t, "t1")
	tokens := &tokenBox{token: "t0"}
	var calls atomic.Int32
	group := NewRefreshGroup(func(context.Context) (string, error) {
		calls.Add(1)
		return "t2", nil
	}, tokens, 0)

	// The token changes between attaching it and the 401 arriving.
	base := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get("Authorization") == "Bearer t0" {
			tokens.set("t1")
		}
		return http.DefaultTransport.RoundTrip(r)
	})
	client := &http.Client{Transport: New(Options{Base: base, Tokens: tokens, Refresher: group})}

	resp, err := client.Get(srv.URL + "/properties/1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Zero(t, calls.Load())
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":     "abc",
		"bearer  abc ":   "abc",
		" Bearer abc":    "abc",
		"Basic dXNlcjpw": "",
		"Bearer":         "",
		"":               "",
	}
	for header, want := range cases {
		require.Equal(t, want, BearerToken(header), "header %q", header)
	}
}
