package offline

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const opaqueTokenSize = 32

// Purposes of single-use account tokens.
const (
	PurposeVerify = "verify"
	PurposeReset  = "reset"
)

type bearerKey struct{}

// WithBearer attaches the caller's access token to ctx. It takes
// precedence over Config.Tokens.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func (b *Backend) bearer(ctx context.Context) string {
	if v, ok := ctx.Value(bearerKey{}).(string); ok && v != "" {
		return v
	}
	if b.tokens == nil {
		return ""
	}
	token, err := b.tokens.AccessToken(ctx)
	if err != nil {
		b.logger.Debug("token source failed")
		return ""
	}
	return token
}

// newOpaqueToken returns a random base64url token and the hex SHA-256 the
// catalog stores in its place.
func newOpaqueToken() (string, string, error) {
	var raw [opaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw[:])
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// errMalformedToken rejects values that newOpaqueToken cannot have made.
var errMalformedToken = errors.New("malformed token")

func checkOpaqueToken(token string) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != opaqueTokenSize {
		return errMalformedToken
	}
	return nil
}
