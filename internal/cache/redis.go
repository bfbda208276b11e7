package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every catalog key in Redis.
const KeyPrefix = "catalog:"

const scanBatch = 100

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-backed cache store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observe("get", "miss")
			return nil, ErrMiss
		}
		observe("get", "error")
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	observe("get", "hit")
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, KeyPrefix+key, value, ttl).Err(); err != nil {
		observe("set", "error")
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	observe("set", "ok")
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, KeyPrefix+key).Err(); err != nil {
		observe("delete", "error")
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	observe("delete", "ok")
	return nil
}

// DeletePattern walks the keyspace with SCAN and deletes matches one scan
// page at a time, so it never blocks Redis the way KEYS would.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, KeyPrefix+pattern, scanBatch).Result()
		if err != nil {
			observe("delete_pattern", "error")
			return fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				observe("delete_pattern", "error")
				return fmt.Errorf("redis del %s: %w", pattern, err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	observe("delete_pattern", "ok")
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
