package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Cache backed by Redis. Entries are stored sonic-encoded with
// a Redis TTL, so Redis removes them on expiry.
type RedisStore[V any] struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed store. A non-positive ttl falls back to DefaultTTL.
func NewRedisStore[V any](redisClient *redis.Client, ttl time.Duration) *RedisStore[V] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore[V]{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get implements Cache.
func (s *RedisStore[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	data, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(backendRedis).Inc()
			return zero, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return zero, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry[V]
	if err := sonic.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return zero, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expires keys lazily at millisecond precision; the entry's own
	// deadline is authoritative.
	if entry.IsExpiredAt(time.Now()) {
		CacheMisses.WithLabelValues(backendRedis).Inc()
		return zero, ErrCacheMiss
	}

	CacheHits.WithLabelValues(backendRedis).Inc()
	return entry.Value, nil
}

// Put implements Cache.
func (s *RedisStore[V]) Put(ctx context.Context, key string, value V) error {
	data, err := sonic.Marshal(newEntry(value, time.Now(), s.ttl))
	if err != nil {
		CacheErrors.WithLabelValues(backendRedis, "put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheStores.WithLabelValues(backendRedis).Inc()
	return nil
}

// TTL implements Cache.
func (s *RedisStore[V]) TTL() time.Duration {
	return s.ttl
}
