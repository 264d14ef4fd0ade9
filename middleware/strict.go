package middleware

import (
	"fmt"

	"github.com/MrEthical07/goPortal/jwt"
)

// Signed verifies signature, expiry, issuer and audience with m.
func Signed(m *jwt.Manager) Verifier {
	return VerifierFunc(func(token string) (*jwt.AccessClaims, error) {
		if m == nil {
			return nil, ErrTokenRejected
		}
		claims, err := m.ParseAccess(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTokenRejected, err)
		}
		return claims, nil
	})
}
