package goPortal

import (
	"net/url"
	"strings"
)

// SafeRedirect returns the post-login destination for the requested
// redirect target, or nav.DefaultLanding when target is unsafe.
//
// Accepted targets are absolute paths on the portal itself. Rejected:
// protocol-relative values ("//host"), anything containing a backslash or
// control character, values carrying a scheme or host other than
// nav.Origin, relative paths, and the login page itself. An absolute URL
// on nav.Origin is reduced to its path, query and fragment.
func SafeRedirect(target string, nav NavigationConfig) string {
	fallback := nav.DefaultLanding
	if fallback == "" {
		fallback = "/"
	}

	target = strings.TrimSpace(target)
	if target == "" || strings.ContainsAny(target, "\\") || hasControl(target) {
		return fallback
	}
	if strings.HasPrefix(target, "//") {
		return fallback
	}

	u, err := url.Parse(target)
	if err != nil || u.Opaque != "" || u.User != nil {
		return fallback
	}
	if u.Scheme != "" || u.Host != "" {
		if !sameOrigin(u, nav.Origin) {
			return fallback
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return fallback
	}
	if isLoginPath(path, nav.LoginPath) {
		return fallback
	}

	dest := path
	if u.RawQuery != "" {
		dest += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		dest += "#" + u.EscapedFragment()
	}
	return dest
}

func sameOrigin(u *url.URL, origin string) bool {
	if origin == "" {
		return false
	}
	o, err := url.Parse(origin)
	if err != nil || o.Host == "" {
		return false
	}
	return strings.EqualFold(u.Scheme, o.Scheme) && strings.EqualFold(u.Host, o.Host)
}

func isLoginPath(path, login string) bool {
	if login == "" {
		return false
	}
	path = strings.TrimRight(path, "/")
	login = strings.TrimRight(login, "/")
	return strings.EqualFold(path, login)
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
