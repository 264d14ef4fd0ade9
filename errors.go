package goPortal

import "errors"

var (
	// ErrNotAuthenticated is returned by operations that need a session when there is none.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken is returned by a refresh when the store holds no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrPasswordMismatch is returned by ChangePassword when the confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrSessionPersist wraps store failures while establishing a session.
	ErrSessionPersist = errors.New("session could not be persisted")
	// ErrClientClosed is returned after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrRedisRequired is returned by Build for the redis backend without a client.
	ErrRedisRequired = errors.New("redis client required for the redis storage backend")
	// ErrBuilderUsed is returned by a second Build.
	ErrBuilderUsed = errors.New("builder already used")
)
