package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/gamepasses-api/pkg/logging"
)

// RedisLimiter counts requests per client in fixed windows stored in Redis,
// so every instance sharing the Redis shares the budget.
type RedisLimiter struct {
	redis  *redis.Client
	config Config
	now    func() time.Time
	logger zerolog.Logger
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(redisClient *redis.Client, cfg Config) *RedisLimiter {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}

	return &RedisLimiter{
		redis:  redisClient,
		config: cfg.withDefaults(),
		now:    time.Now,
		logger: logging.NewLogger("ratelimit-redis"),
	}
}

// Allow implements Limiter. Redis errors are returned with a zero Decision;
// callers decide whether to fail open.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	window := now.Truncate(l.config.Window)
	windowKey := RedisKeyPrefix + key + ":" + strconv.FormatInt(window.Unix(), 10)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, l.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("count request in redis: %w", err)
	}

	count := int(incr.Val())
	d := Decision{Limit: l.config.Requests}
	if count <= l.config.Requests {
		d.Allowed = true
		d.Remaining = l.config.Requests - count
	} else {
		d.RetryAfter = window.Add(l.config.Window).Sub(now)
		l.logger.Debug().
			Str("client", key).
			Int("count", count).
			Dur("retry_after", d.RetryAfter).
			Msg("Client over request budget")
	}

	record(backendRedis, d)
	return d, nil
}
