package middleware

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MrEthical07/goPortal/jwt"
)

// Verifier turns a raw access token into claims or rejects it.
type Verifier interface {
	Verify(token string) (*jwt.AccessClaims, error)
}

// VerifierFunc adapts a function to [Verifier].
type VerifierFunc func(token string) (*jwt.AccessClaims, error)

func (f VerifierFunc) Verify(token string) (*jwt.AccessClaims, error) { return f(token) }

// ExpiryOnly accepts any well-formed token whose exp lies more than skew
// ahead of clock. The signature is not checked, so the claims it returns
// may be used for routing but never for authorization decisions that
// protect data.
func ExpiryOnly(clock clockwork.Clock, skew time.Duration) Verifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return VerifierFunc(func(token string) (*jwt.AccessClaims, error) {
		if jwt.IsExpired(token, clock.Now(), skew) {
			return nil, ErrTokenRejected
		}
		return jwt.Inspect(token)
	})
}
