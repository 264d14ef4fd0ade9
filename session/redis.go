package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goPortal/model"
	"github.com/redis/go-redis/v9"
)

const redisSubscriberBuffer = 16

// touchScript writes the activity field only while the hash holds a token.
var touchScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
	return redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
end
return 0
`)

// RedisStore keeps the session in one Redis hash so every process of the
// same namespace observes the same tokens and activity timestamp.
//
// Layout:
//
//	<prefix>:<namespace>:session  HASH  token refreshToken user tokenType tokenExpiry lastActivity
//	<prefix>:<namespace>:sync     pub/sub channel of SyncMessage JSON
type RedisStore struct {
	redis   redis.UniversalClient
	key     string
	channel string
	ttl     time.Duration
}

// NewRedisStore binds a store to prefix and namespace. A positive ttl is
// applied to the hash on every full or token write.
func NewRedisStore(rdb redis.UniversalClient, prefix, namespace string, ttl time.Duration) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "portal"
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "default"
	}
	base := prefix + ":" + namespace
	return &RedisStore{
		redis:   rdb,
		key:     base + ":session",
		channel: base + ":sync",
		ttl:     ttl,
	}
}

// Key returns the hash key holding the session.
func (s *RedisStore) Key() string { return s.key }

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	fields, err := encodeSession(sess)
	if err != nil {
		return err
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(fields) > 0 {
			pipe.HSet(ctx, s.key, toArgs(fields)...)
			s.expire(ctx, pipe)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeSession(fields)
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) SaveTokens(ctx context.Context, t Tokens) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, toArgs(encodeTokens(t))...)
		s.expire(ctx, pipe)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) SaveUser(ctx context.Context, u *model.User) error {
	raw, err := encodeUser(u)
	if err != nil {
		return err
	}
	if err := s.redis.HSet(ctx, s.key, KeyUser, raw).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Touch(ctx context.Context, at time.Time) error {
	err := touchScript.Run(ctx, s.redis, []string{s.key}, KeyToken, KeyLastActivity, encodeTime(at)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Publish(ctx context.Context, msg SyncMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode sync message: %w", err)
	}
	if err := s.redis.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning,
// so a Publish issued afterwards is never missed.
func (s *RedisStore) Subscribe(ctx context.Context) (<-chan SyncMessage, func(), error) {
	ps := s.redis.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make(chan SyncMessage, redisSubscriberBuffer)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		for raw := range ps.Channel() {
			var msg SyncMessage
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				continue
			}
			select {
			case out <- msg:
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
			wg.Wait()
		})
	}
	return out, cancel, nil
}

func (s *RedisStore) expire(ctx context.Context, pipe redis.Pipeliner) {
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
}

func toArgs(fields map[string]string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
