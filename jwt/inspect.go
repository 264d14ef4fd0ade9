package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned by Inspect when the token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// Inspect decodes the claims of tokenStr without verifying its signature.
// Clients use it to read expiry and identity from tokens they were handed
// by the server; it must never be used to authorize anything.
func Inspect(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of tokenStr, unverified.
func ExpiresAt(tokenStr string) (time.Time, error) {
	claims, err := Inspect(tokenStr)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether tokenStr is unreadable or expires within skew
// of now.
func IsExpired(tokenStr string, now time.Time, skew time.Duration) bool {
	exp, err := ExpiresAt(tokenStr)
	if err != nil {
		return true
	}
	return !now.Add(skew).Before(exp)
}
