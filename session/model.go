package session

import (
	"time"

	"github.com/MrEthical07/goPortal/model"
)

// Session is the client's authenticated identity plus its tokens and
// timestamps. ExpiresAt is always the last refresh time plus the access
// token lifetime.
type Session struct {
	AccessToken    string
	RefreshToken   string
	TokenType      string
	User           *model.User
	ExpiresAt      time.Time
	LastActivityAt time.Time
}

// Tokens is the token half of a Session, written after every refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// Complete reports whether s holds everything needed to resume: both
// tokens and a user record.
func (s *Session) Complete() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != "" && s.User != nil
}

// Expired reports whether the access token expiry is at or before now.
// A session without an expiry is treated as expired.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.User = s.User.Clone()
	return &out
}

// Apply overwrites the token fields of s with t.
func (s *Session) Apply(t Tokens) {
	s.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		s.RefreshToken = t.RefreshToken
	}
	if t.TokenType != "" {
		s.TokenType = t.TokenType
	}
	s.ExpiresAt = t.ExpiresAt
}
