package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goPortal/model"
)

// Storage keys. They match the keys the web front end keeps in local
// storage so a session exported from one can be read by the other.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyTokenType    = "tokenType"
	KeyTokenExpiry  = "tokenExpiry"
	KeyLastActivity = "lastActivity"
)

// AllKeys lists every key a Store writes.
var AllKeys = []string{KeyToken, KeyRefreshToken, KeyUser, KeyTokenType, KeyTokenExpiry, KeyLastActivity}

var (
	// ErrNotFound is returned by Load when no key is present.
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt is returned by Load when a stored field cannot be decoded.
	ErrCorrupt = errors.New("session corrupt")
	// ErrRedisUnavailable wraps transport failures of the Redis store.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Store persists the session. Implementations perform no validation; the
// caller owns consistency between the stored and in-memory session.
type Store interface {
	// Save replaces every stored key with the values in s.
	Save(ctx context.Context, s *Session) error
	// Load returns whatever is stored, possibly partial, or ErrNotFound.
	Load(ctx context.Context) (*Session, error)
	// Clear removes every key.
	Clear(ctx context.Context) error
	// SaveTokens overwrites the token fields and expiry only.
	SaveTokens(ctx context.Context, t Tokens) error
	// SaveUser overwrites the user record only.
	SaveUser(ctx context.Context, u *model.User) error
	// Touch records the last activity time. It does nothing when no
	// access token is stored.
	Touch(ctx context.Context, at time.Time) error
}

func encodeSession(s *Session) (map[string]string, error) {
	fields := map[string]string{}
	if s == nil {
		return fields, nil
	}
	if s.AccessToken != "" {
		fields[KeyToken] = s.AccessToken
	}
	if s.RefreshToken != "" {
		fields[KeyRefreshToken] = s.RefreshToken
	}
	if s.TokenType != "" {
		fields[KeyTokenType] = s.TokenType
	}
	if s.User != nil {
		raw, err := encodeUser(s.User)
		if err != nil {
			return nil, err
		}
		fields[KeyUser] = raw
	}
	if !s.ExpiresAt.IsZero() {
		fields[KeyTokenExpiry] = encodeTime(s.ExpiresAt)
	}
	if !s.LastActivityAt.IsZero() {
		fields[KeyLastActivity] = encodeTime(s.LastActivityAt)
	}
	return fields, nil
}

func encodeTokens(t Tokens) map[string]string {
	fields := map[string]string{
		KeyToken:       t.AccessToken,
		KeyTokenExpiry: encodeTime(t.ExpiresAt),
	}
	if t.RefreshToken != "" {
		fields[KeyRefreshToken] = t.RefreshToken
	}
	if t.TokenType != "" {
		fields[KeyTokenType] = t.TokenType
	}
	return fields
}

func decodeSession(fields map[string]string) (*Session, error) {
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	s := &Session{
		AccessToken:  fields[KeyToken],
		RefreshToken: fields[KeyRefreshToken],
		TokenType:    fields[KeyTokenType],
	}
	if raw, ok := fields[KeyUser]; ok && raw != "" {
		var u model.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrCorrupt, err)
		}
		s.User = &u
	}
	var err error
	if s.ExpiresAt, err = decodeTime(fields[KeyTokenExpiry]); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, KeyTokenExpiry, err)
	}
	if s.LastActivityAt, err = decodeTime(fields[KeyLastActivity]); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, KeyLastActivity, err)
	}
	return s, nil
}

func encodeUser(u *model.User) (string, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encode user: %w", err)
	}
	return string(raw), nil
}

// Timestamps are stored as unix milliseconds.
func encodeTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func decodeTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
