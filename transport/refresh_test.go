package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRefreshGroupUnconditionalRefresh(t *testing.T) {
	tokens := &tokenBox{token: "t0"}
	group := NewRefreshGroup(func(context.Context) (string, error) {
		tokens.set("t1")
		return "t1", nil
	}, tokens, 0)

	token, err := group.Refresh(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "t1", token)

	token, err = group.Refresh(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "t1", token)
	require.EqualValues(t, 2, group.Calls())
}

func TestRefreshGroupReturnsReplacementForStaleCaller(t *testing.T) {
	tokens := &tokenBox{token: "t5"}
	group := NewRefreshGroup(func(context.Context) (string, error) {
		return "unexpected", nil
	}, tokens, 0)

	token, err := group.Refresh(context.Background(), "t4")
	require.NoError(t, err)
	require.Equal(t, "t5", token)
	require.Zero(t, group.Calls())
}

func TestRefreshGroupSessionEnded(t *testing.T) {
	group := NewRefreshGroup(func(context.Context) (string, error) {
		return "unexpected", nil
	}, &tokenBox{}, 0)

	_, err := group.Refresh(context.Background(), "t0")
	require.ErrorIs(t, err, ErrSessionEnded)
	require.Zero(t, group.Calls())
}

func TestRefreshGroupWaiterCancellationDoesNotCancelRefresh(t *testing.T) {
	tokens := &tokenBox{token: "t0"}
	release := make(chan struct{})
	var refreshCtxErr atomic.Value
	done := make(chan struct{})
	group := NewRefreshGroup(func(ctx context.Context) (string, error) {
		defer close(done)
		<-release
		if err := ctx.Err(); err != nil {
			refreshCtxErr.Store(err)
		}
		tokens.set("t1")
		return "t1", nil
	}, tokens, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := group.Refresh(ctx, "t0")
		errCh <- err
	}()

	require.Eventually(t, group.InFlight, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	<-done
	require.Nil(t, refreshCtxErr.Load())

	token, err := tokens.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "t1", token)
}

func TestRefreshGroupTimeoutBoundsCall(t *testing.T) {
	group := NewRefreshGroup(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, nil, 20*time.Millisecond)

	_, err := group.Refresh(context.Background(), "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRefreshGroupOnSettle(t *testing.T) {
	cause := errors.New("boom")
	group := NewRefreshGroup(func(context.Context) (string, error) {
		return "", cause
	}, nil, 0)

	var settled atomic.Int32
	var lastErr atomic.Value
	group.OnSettle(func(_ time.Duration, err error) {
		settled.Add(1)
		lastErr.Store(err)
	})

	_, err := group.Refresh(context.Background(), "")
	require.ErrorIs(t, err, cause)
	require.EqualValues(t, 1, settled.Load())
	require.Equal(t, cause, lastErr.Load())
}

func TestRefreshErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("revoked")
	err := error(&RefreshError{Err: cause})
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "token refresh failed: revoked", err.Error())
}
