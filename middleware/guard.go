package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/model"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/transport"
)

// ErrTokenRejected is returned by verifiers for missing, malformed,
// expired or forged tokens.
var ErrTokenRejected = errors.New("access token rejected")

var (
	// DefaultPublicPaths are reachable without a session. Each entry also
	// covers its sub-paths, except "/" which matches only itself.
	DefaultPublicPaths = []string{
		"/", "/images", "/login", "/register", "/forgot-password",
		"/reset-password", "/verify-email", "/about", "/contact",
		"/services", "/properties", "/newsletter",
	}

	// DefaultAuthPaths send a signed-in visitor on to their landing page.
	DefaultAuthPaths = []string{"/login", "/register", "/forgot-password", "/reset-password"}

	// DefaultProtectedPrefixes override public matching. Listing details
	// need a session even though the listing index is public.
	DefaultProtectedPrefixes = []string{"/properties/"}
)

// GateOptions configures [RouteGate]. Zero-valued fields take the
// defaults above, a login path of "/login" and an [ExpiryOnly] verifier.
type GateOptions struct {
	Verifier          Verifier
	Navigation        goPortal.NavigationConfig
	CookieName        string
	PublicPaths       []string
	AuthPaths         []string
	ProtectedPrefixes []string
	Logger            *zap.Logger
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims a gate accepted for this request.
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return c, ok
}

// RouteGate returns middleware that redirects anonymous visitors away from
// protected pages and signed-in visitors away from auth pages.
//
// A protected page redirects to the login path with a from parameter
// naming the page. An auth page visited with a valid token redirects to
// SafeRedirect(from). Everything else passes through, with the accepted
// claims attached to the request context.
func RouteGate(opts GateOptions) func(http.Handler) http.Handler {
	g := newGate(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			claims := g.claims(r)

			if hasAnyPrefix(path, g.protected) {
				if claims == nil {
					g.toLogin(w, r, path)
					return
				}
				next.ServeHTTP(w, withClaims(r, claims))
				return
			}

			if claims != nil && matches(path, g.auth) {
				dest := goPortal.SafeRedirect(r.URL.Query().Get("from"), g.nav)
				g.logger.Debug("auth page visited with session", zap.String("path", path), zap.String("to", dest))
				http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
				return
			}

			if claims == nil && !matches(path, g.public) {
				g.toLogin(w, r, path)
				return
			}

			if claims != nil {
				r = withClaims(r, claims)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits requests whose gate-accepted claims carry at least
// one of roles. Missing claims yield 401 and missing roles 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			holder := &model.User{Roles: claims.Roles}
			for _, role := range roles {
				if holder.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

type gate struct {
	verifier  Verifier
	nav       goPortal.NavigationConfig
	cookie    string
	public    []string
	auth      []string
	protected []string
	logger    *zap.Logger
}

func newGate(opts GateOptions) *gate {
	g := &gate{
		verifier:  opts.Verifier,
		nav:       opts.Navigation,
		cookie:    opts.CookieName,
		public:    opts.PublicPaths,
		auth:      opts.AuthPaths,
		protected: opts.ProtectedPrefixes,
		logger:    opts.Logger,
	}
	if g.verifier == nil {
		g.verifier = ExpiryOnly(nil, 0)
	}
	if g.nav.LoginPath == "" {
		g.nav.LoginPath = "/login"
	}
	if g.nav.DefaultLanding == "" {
		g.nav.DefaultLanding = "/dashboard"
	}
	if g.cookie == "" {
		g.cookie = session.DefaultCookieName
	}
	if g.public == nil {
		g.public = DefaultPublicPaths
	}
	if g.auth == nil {
		g.auth = DefaultAuthPaths
	}
	if g.protected == nil {
		g.protected = DefaultProtectedPrefixes
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

// claims returns nil unless the request carries a token the verifier
// accepts. The cookie wins over an Authorization header.
func (g *gate) claims(r *http.Request) *jwt.AccessClaims {
	token := ""
	if c, err := r.Cookie(g.cookie); err == nil {
		token = c.Value
	}
	if token == "" {
		token = transport.BearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		return nil
	}
	claims, err := g.verifier.Verify(token)
	if err != nil {
		g.logger.Debug("access token rejected", zap.String("path", r.URL.Path), zap.Error(err))
		return nil
	}
	return claims
}

func (g *gate) toLogin(w http.ResponseWriter, r *http.Request, path string) {
	target := g.nav.LoginPath
	if !strings.HasPrefix(path, g.nav.LoginPath) {
		target += "?" + url.Values{"from": {path}}.Encode()
	}
	g.logger.Debug("redirecting to login", zap.String("path", path))
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func withClaims(r *http.Request, c *jwt.AccessClaims) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), claimsContextKey{}, c))
}

func matches(path string, list []string) bool {
	for _, p := range list {
		if path == p || (p != "/" && strings.HasPrefix(path, p+"/")) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
