package goPortal

import (
	"context"

	"github.com/MrEthical07/goPortal/transport"
)

type backgroundRefreshKey struct{}

// WithRequestID pins the X-Request-ID sent with every request made with
// ctx through the Client's HTTP client, including a replay after a
// refresh.
func WithRequestID(ctx context.Context, id string) context.Context {
	return transport.WithRequestID(ctx, id)
}

// WithoutAuth marks ctx so requests made with it carry no bearer token
// and never trigger a refresh.
func WithoutAuth(ctx context.Context) context.Context {
	return transport.WithoutAuth(ctx)
}

// withBackgroundRefresh marks a refresh started by the session monitor.
// Such refreshes do not count as user activity.
func withBackgroundRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, backgroundRefreshKey{}, true)
}

func isBackgroundRefresh(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(backgroundRefreshKey{}).(bool)
	return v
}
