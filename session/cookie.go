package session

import (
	"net/http"
	"net/url"
	"time"
)

// DefaultCookieName is the cookie route gates read the access token from.
const DefaultCookieName = "auth-token"

// DefaultCookieMaxAge matches the web front end's seven-day cookie.
const DefaultCookieMaxAge = 7 * 24 * time.Hour

// CookieMirror mirrors the access token into a same-site cookie.
type CookieMirror interface {
	Set(token string)
	Clear()
}

// NoopCookieMirror discards every call.
type NoopCookieMirror struct{}

func (NoopCookieMirror) Set(string) {}
func (NoopCookieMirror) Clear()     {}

// JarMirror writes the cookie into an http.CookieJar so requests sent
// through a client using that jar carry it.
type JarMirror struct {
	jar    http.CookieJar
	site   *url.URL
	name   string
	maxAge time.Duration
}

// NewJarMirror scopes the cookie to site. Empty name and non-positive
// maxAge fall back to the defaults.
func NewJarMirror(jar http.CookieJar, site *url.URL, name string, maxAge time.Duration) *JarMirror {
	if name == "" {
		name = DefaultCookieName
	}
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	return &JarMirror{jar: jar, site: site, name: name, maxAge: maxAge}
}

func (m *JarMirror) Set(token string) {
	if m == nil || m.jar == nil || m.site == nil {
		return
	}
	m.jar.SetCookies(m.site, []*http.Cookie{m.cookie(token, int(m.maxAge/time.Second))})
}

func (m *JarMirror) Clear() {
	if m == nil || m.jar == nil || m.site == nil {
		return
	}
	m.jar.SetCookies(m.site, []*http.Cookie{m.cookie("", -1)})
}

// Value returns the mirrored token, if any.
func (m *JarMirror) Value() string {
	if m == nil || m.jar == nil || m.site == nil {
		return ""
	}
	for _, c := range m.jar.Cookies(m.site) {
		if c.Name == m.name {
			return c.Value
		}
	}
	return ""
}

func (m *JarMirror) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   m.site.Scheme == "https",
		SameSite: http.SameSiteStrictMode,
	}
}
