package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore tracks rolling-window counters in Redis so limits hold
// across all instances. Each counter is a key with a TTL equal to its window:
// INCR starts the window, TTL expiry resets it.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Count(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, fmt.Errorf("read counter: %w", err)
	}

	count, err := getCmd.Int()
	if errors.Is(err, redis.Nil) {
		return 0, time.Now().Add(window), nil
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse counter: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = window
	}
	return count, time.Now().Add(ttl), nil
}

// Incr atomically increments the counter and arms the window TTL on first
// increment. The INCR/EXPIRE NX pair keeps concurrent callers from extending
// an already-armed window.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	pipe := s.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("increment counter: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = window
	}
	return int(incrCmd.Val()), time.Now().Add(ttl), nil
}

// decrScript gives an increment back without resurrecting a counter whose
// window expired between the increment and the give-back.
var decrScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('DECR', KEYS[1])
end
return 0`)

func (s *RedisCounterStore) Decr(ctx context.Context, key string) error {
	if err := decrScript.Run(ctx, s.client, []string{key}).Err(); err != nil {
		return fmt.Errorf("decrement counter: %w", err)
	}
	return nil
}
