package session

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/MrEthical07/goPortal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "pt", "tab", time.Hour)
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession() *Session {
	now := time.UnixMilli(1_700_000_000_000)
	return &Session{
		AccessToken:  "t1",
		RefreshToken: "r1",
		TokenType:    "Bearer",
		User: &model.User{
			ID:      1,
			Name:    "Admin User",
			Email:   "admin@realestate.com",
			Enabled: true,
			Roles:   []string{model.RoleAdmin},
		},
		ExpiresAt:      now.Add(15 * time.Minute),
		LastActivityAt: now,
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("redis", func(t *testing.T) {
		store, _, done := newRedisStoreTest(t)
		defer done()
		fn(t, store)
	})
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		want := testSession()
		if err := store.Save(ctx, want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.AccessToken != "t1" || got.RefreshToken != "r1" || got.TokenType != "Bearer" {
			t.Fatalf("unexpected tokens: %+v", got)
		}
		if got.User == nil || got.User.Email != want.User.Email || !got.User.IsAdmin() {
			t.Fatalf("unexpected user: %+v", got.User)
		}
		if !got.ExpiresAt.Equal(want.ExpiresAt) || !got.LastActivityAt.Equal(want.LastActivityAt) {
			t.Fatalf("timestamps drifted: %v %v", got.ExpiresAt, got.LastActivityAt)
		}
		if !got.Complete() {
			t.Fatalf("expected complete session")
		}
	})
}

func TestStoreLoadEmptyReturnsNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		if _, err := store.Load(context.Background()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStoreClearRemovesEveryKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if err := store.Save(ctx, testSession()); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("second clear: %v", err)
		}
		if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after clear, got %v", err)
		}
	})
}

func TestStoreSaveTokensKeepsUserAndActivity(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		orig := testSession()
		if err := store.Save(ctx, orig); err != nil {
			t.Fatalf("save: %v", err)
		}
		exp := orig.ExpiresAt.Add(10 * time.Minute)
		if err := store.SaveTokens(ctx, Tokens{AccessToken: "t2", RefreshToken: "r2", ExpiresAt: exp}); err != nil {
			t.Fatalf("save tokens: %v", err)
		}
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.AccessToken != "t2" || got.RefreshToken != "r2" || !got.ExpiresAt.Equal(exp) {
			t.Fatalf("tokens not updated: %+v", got)
		}
		if got.TokenType != "Bearer" {
			t.Fatalf("token type lost: %q", got.TokenType)
		}
		if got.User == nil || got.User.ID != 1 || !got.LastActivityAt.Equal(orig.LastActivityAt) {
			t.Fatalf("unrelated fields changed: %+v", got)
		}
	})
}

func TestStoreSaveUserKeepsTokens(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if err := store.Save(ctx, testSession()); err != nil {
			t.Fatalf("save: %v", err)
		}
		updated := testSession().User
		updated.Name = "Renamed"
		if err := store.SaveUser(ctx, updated); err != nil {
			t.Fatalf("save user: %v", err)
		}
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.User.Name != "Renamed" {
			t.Fatalf("user not updated: %+v", got.User)
		}
		if got.AccessToken != "t1" || got.RefreshToken != "r1" {
			t.Fatalf("tokens changed: %+v", got)
		}
	})
}

func TestStoreTouchOnlyWritesActivity(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if err := store.Save(ctx, testSession()); err != nil {
			t.Fatalf("save: %v", err)
		}
		at := time.UnixMilli(1_800_000_000_000)
		if err := store.Touch(ctx, at); err != nil {
			t.Fatalf("touch: %v", err)
		}
		got, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !got.LastActivityAt.Equal(at) {
			t.Fatalf("expected activity %v, got %v", at, got.LastActivityAt)
		}
		if got.AccessToken != "t1" || got.RefreshToken != "r1" || !got.Complete() {
			t.Fatalf("touch changed other fields: %+v", got)
		}
	})
}

func TestStoreTouchOnEmptyStoreWritesNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if err := store.Save(ctx, testSession()); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if err := store.Touch(ctx, time.UnixMilli(1_800_000_000_000)); err != nil {
			t.Fatalf("touch: %v", err)
		}
		if got, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after touch on empty store, got %+v (%v)", got, err)
		}
	})
}

func TestRedisStoreTouchDoesNotRecreateHash(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()

	if err := store.Touch(context.Background(), time.Now()); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if mr.Exists(store.Key()) {
		t.Fatalf("touch must not create %s", store.Key())
	}
}

func TestRedisStoreUsesFixedFieldNames(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()

	if err := store.Save(context.Background(), testSession()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if store.Key() != "pt:tab:session" {
		t.Fatalf("unexpected key %q", store.Key())
	}
	fields, err := mr.HKeys(store.Key())
	if err != nil {
		t.Fatalf("hkeys: %v", err)
	}
	sort.Strings(fields)
	want := append([]string(nil), AllKeys...)
	sort.Strings(want)
	if len(fields) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Fatalf("expected fields %v, got %v", want, fields)
		}
	}
	if ttl := mr.TTL(store.Key()); ttl <= 0 {
		t.Fatalf("expected ttl on session hash, got %v", ttl)
	}
}

func TestRedisStoreCorruptUser(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()

	mr.HSet(store.Key(), KeyUser, "{not json")
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()

	mr.Close()
	if err := store.Touch(context.Background(), time.Now()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestBroadcastersDeliverMessages(t *testing.T) {
	cases := map[string]func(t *testing.T) (Broadcaster, func()){
		"memory": func(t *testing.T) (Broadcaster, func()) { return NewMemoryStore(), func() {} },
		"redis": func(t *testing.T) (Broadcaster, func()) {
			store, _, done := newRedisStoreTest(t)
			return store, done
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			b, done := build(t)
			defer done()
			ctx := context.Background()

			msgs, cancel, err := b.Subscribe(ctx)
			if err != nil {
				t.Fatalf("subscribe: %v", err)
			}
			defer cancel()

			sent := SyncMessage{Origin: "tab-a", Type: SyncLogout}
			if err := b.Publish(ctx, sent); err != nil {
				t.Fatalf("publish: %v", err)
			}

			select {
			case got := <-msgs:
				if got.Origin != "tab-a" || got.Type != SyncLogout {
					t.Fatalf("unexpected message %+v", got)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for sync message")
			}

			cancel()
			for range msgs {
			}
		})
	}
}
