package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the typed contract over the shared key-value store: bounded
// lists, scalars, pattern deletion and an atomic token bucket. It carries
// no business logic; the layered caches are built on top of it.
type Store interface {
	// AppendBounded pushes an item onto the window at key, trims the window
	// to the newest limit items and refreshes the window TTL.
	AppendBounded(ctx context.Context, key string, item []byte, limit int, ttl time.Duration) error

	// ReadWindow returns the newest limit items in insertion order.
	ReadWindow(ctx context.Context, key string, limit int) ([][]byte, error)

	SetScalar(ctx context.Context, key, value string, ttl time.Duration) error

	// GetScalar returns the value and whether the key exists.
	GetScalar(ctx context.Context, key string) (string, bool, error)

	DeleteKeys(ctx context.Context, keys ...string) error

	// DeleteByPattern removes every key matching pattern using incremental
	// scans; it never blocks the store the way KEYS would.
	DeleteByPattern(ctx context.Context, pattern string) error

	// TokenBucket refills and consumes one token in a single server-side
	// atomic step and returns the remaining tokens. Zero means the caller
	// is rate limited.
	TokenBucket(ctx context.Context, key string, capacity, refill int, interval time.Duration) (int64, error)

	FlushAll(ctx context.Context) error
}

// Token bucket as a single EVAL so concurrent handlers cannot race a
// read-modify-write cycle. Refills floor(elapsed/interval)*refill tokens,
// clamps to capacity, consumes one if available.
const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local tokens = tonumber(redis.call('HGET', key, 'tokens') or capacity)
local last = tonumber(redis.call('HGET', key, 'ts') or 0)
if last == 0 then last = now end
local elapsed = now - last
if elapsed >= interval then
  local add = math.floor(elapsed / interval) * refill
  tokens = math.min(capacity, tokens + add)
  last = now
end
if tokens <= 0 then
  redis.call('HSET', key, 'tokens', tokens)
  redis.call('HSET', key, 'ts', last)
  return 0
else
  tokens = tokens - 1
  redis.call('HSET', key, 'tokens', tokens)
  redis.call('HSET', key, 'ts', last)
  redis.call('EXPIRE', key, interval * 2)
  return tokens
end
`

type redisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Store backed by the given Redis client. The client
// is constructed once at process start and shared for the process lifetime.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) AppendBounded(ctx context.Context, key string, item []byte, limit int, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, item)
		pipe.LTrim(ctx, key, int64(-limit), -1)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending to window %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) ReadWindow(ctx context.Context, key string, limit int) ([][]byte, error) {
	items, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading window %s: %w", key, err)
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = []byte(item)
	}
	return out, nil
}

func (s *redisStore) SetScalar(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) GetScalar(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *redisStore) DeleteKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting keys: %w", err)
	}
	return nil
}

func (s *redisStore) DeleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return fmt.Errorf("scanning %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("deleting matches of %s: %w", pattern, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *redisStore) TokenBucket(ctx context.Context, key string, capacity, refill int, interval time.Duration) (int64, error) {
	now := time.Now().Unix()
	result, err := s.client.Eval(ctx, tokenBucketScript, []string{key},
		now, capacity, refill, int64(interval.Seconds())).Result()
	if err != nil {
		return 0, fmt.Errorf("token bucket %s: %w", key, err)
	}
	remaining, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("token bucket %s: unexpected reply %T", key, result)
	}
	return remaining, nil
}

func (s *redisStore) FlushAll(ctx context.Context) error {
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("flushing cache db: %w", err)
	}
	return nil
}
