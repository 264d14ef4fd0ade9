package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HeaderRequestID carries a per-call id; a replay keeps the original id.
	HeaderRequestID = "X-Request-ID"
	// DefaultRefreshPath is the path suffix of the refresh endpoint.
	DefaultRefreshPath = "/auth/token/refresh"

	maxDrainBytes = 64 << 10
)

// TokenSource returns the current access token, or "" when there is no
// session.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, error) { return f(ctx) }

// Hooks observe adapter outcomes. Nil hooks are skipped.
type Hooks struct {
	// Replayed fires after a request is re-sent with a new token.
	Replayed func()
	// Rejected fires when a request fails because its refresh failed.
	Rejected func(err error)
}

// Options configures a Transport.
type Options struct {
	Base        http.RoundTripper
	Tokens      TokenSource
	Refresher   Refresher
	RefreshPath string
	TokenType   string
	Hooks       Hooks
	Logger      *zap.Logger
}

// Transport attaches the bearer token to every request and recovers from a
// single 401 per request by refreshing once and replaying.
type Transport struct {
	base        http.RoundTripper
	tokens      TokenSource
	refresher   Refresher
	refreshPath string
	tokenType   string
	hooks       Hooks
	logger      *zap.Logger
}

// New returns a Transport. A nil Base uses http.DefaultTransport; a nil
// Refresher disables 401 recovery.
func New(opts Options) *Transport {
	t := &Transport{
		base:        opts.Base,
		tokens:      opts.Tokens,
		refresher:   opts.Refresher,
		refreshPath: opts.RefreshPath,
		tokenType:   opts.TokenType,
		hooks:       opts.Hooks,
		logger:      opts.Logger,
	}
	if t.base == nil {
		t.base = http.DefaultTransport
	}
	if t.refreshPath == "" {
		t.refreshPath = DefaultRefreshPath
	}
	if t.tokenType == "" {
		t.tokenType = "Bearer"
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = RequestIDFromContext(ctx)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	token := ""
	if !skipAuth(ctx) && t.tokens != nil {
		token, err = t.tokens.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("transport: read access token: %w", err)
		}
	}

	first, err := t.prepare(ctx, req, getBody, requestID, token)
	if err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !t.canRecover(req, token) {
		return resp, nil
	}
	drain(resp)

	next, err := t.refresher.Refresh(ctx, token)
	if err != nil {
		if t.hooks.Rejected != nil {
			t.hooks.Rejected(err)
		}
		t.logger.Debug("request rejected after refresh failure",
			zap.String("request_id", requestID),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		var rerr *RefreshError
		if !errors.As(err, &rerr) {
			err = &RefreshError{Err: err}
		}
		return nil, err
	}

	replay, err := t.prepare(markRetried(ctx), req, getBody, requestID, next)
	if err != nil {
		return nil, err
	}
	if t.hooks.Replayed != nil {
		t.hooks.Replayed()
	}
	return t.base.RoundTrip(replay)
}

// canRecover reports whether a 401 for req may trigger a refresh. Requests
// that carried no token, the refresh call itself and replays never do.
func (t *Transport) canRecover(req *http.Request, token string) bool {
	ctx := req.Context()
	return t.refresher != nil &&
		token != "" &&
		!skipAuth(ctx) &&
		!retried(ctx) &&
		!strings.HasSuffix(req.URL.Path, t.refreshPath)
}

func (t *Transport) prepare(ctx context.Context, req *http.Request, getBody func() (io.ReadCloser, error), requestID, token string) (*http.Request, error) {
	out := req.Clone(ctx)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("transport: reopen body: %w", err)
		}
		out.Body = body
		out.GetBody = getBody
	}
	out.Header.Set(HeaderRequestID, requestID)
	if token != "" {
		out.Header.Set("Authorization", t.tokenType+" "+token)
	}
	return out, nil
}

// replayableBody returns a func producing fresh copies of req's body,
// buffering it when the request cannot reproduce it. The original body is
// closed either way.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}
	buf, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("transport: buffer body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header value, or returns "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
