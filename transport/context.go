package transport

import "context"

type withoutAuthKey struct{}
type retriedKey struct{}
type requestIDKey struct{}

// WithoutAuth marks ctx so requests made with it carry no bearer token and
// are never retried after a 401. Login and other anonymous endpoints use
// it so a stale session cannot interfere with them.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, withoutAuthKey{}, true)
}

// WithRequestID pins the X-Request-ID header sent with requests made
// with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func skipAuth(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(withoutAuthKey{}).(bool)
	return v
}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func retried(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}
