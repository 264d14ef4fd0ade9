package jwt

import (
	"testing"
	"time"
)

// FuzzJWTParseAccess feeds arbitrary strings to both the verifying and the
// unverified parser. Neither may panic and garbage must never verify.
func FuzzJWTParseAccess(f *testing.F) {
	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "fuzz-test",
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, _, err := mgr.CreateAccess(Subject{ID: 1, Email: "a@b.com"})
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOjF9.")
	f.Add(valid + "x")

	f.Fuzz(func(t *testing.T, token string) {
		_, _ = Inspect(token)
		_ = IsExpired(token, time.Now(), 0)
		claims, err := mgr.ParseAccess(token)
		if err == nil && token != valid && claims == nil {
			t.Fatalf("nil claims without error for %q", token)
		}
	})
}
