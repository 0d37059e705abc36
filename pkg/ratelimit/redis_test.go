package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

func newTestRedisLimiter(t *testing.T, cfg Config, at time.Time) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	client, mr := setupTestRedis(t)
	limiter := NewRedisLimiter(client, cfg)
	limiter.now = func() time.Time { return at }
	return limiter, mr
}

func TestNewRedisLimiter_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisLimiter should panic with nil redis client")
		}
	}()
	NewRedisLimiter(nil, DefaultConfig())
}

func TestRedisLimiter_Budget(t *testing.T) {
	// 40s into the window starting at 1_700_000_040.
	at := time.Unix(1_700_000_080, 0)
	limiter, mr := newTestRedisLimiter(t, Config{Requests: 3, Window: time.Minute}, at)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !d.Allowed || d.Remaining != 2-i {
			t.Fatalf("Request %d: got %+v", i+1, d)
		}
	}

	d, err := limiter.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("Fourth request should be denied")
	}

	if d.RetryAfter != 20*time.Second {
		t.Errorf("RetryAfter = %v, want 20s", d.RetryAfter)
	}

	key := "gamepasses:ratelimit:1.2.3.4:1700000040"
	if !mr.Exists(key) {
		t.Errorf("Expected window counter %s, have %v", key, mr.Keys())
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Errorf("Counter TTL = %v, want within (0, 1m]", ttl)
	}
}

func TestRedisLimiter_NewWindowResets(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, Config{Requests: 1, Window: time.Minute})
	limiter.now = func() time.Time { return at }
	ctx := context.Background()

	limiter.Allow(ctx, "a")
	if d, _ := limiter.Allow(ctx, "a"); d.Allowed {
		t.Fatal("Expected budget to be exhausted")
	}

	at = at.Add(time.Minute)
	if d, _ := limiter.Allow(ctx, "a"); !d.Allowed {
		t.Error("Expected a fresh budget in the next window")
	}
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedisLimiter(client, Config{Requests: 2, Window: time.Minute})
	second := NewRedisLimiter(client, Config{Requests: 2, Window: time.Minute})
	first.now = func() time.Time { return at }
	second.now = func() time.Time { return at }

	first.Allow(ctx, "a")
	second.Allow(ctx, "a")
	if d, _ := first.Allow(ctx, "a"); d.Allowed {
		t.Error("Budget should be shared between limiters on the same redis")
	}
}

func TestRedisLimiter_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	limiter := NewRedisLimiter(client, DefaultConfig())
	mr.Close()

	if _, err := limiter.Allow(context.Background(), "a"); err == nil {
		t.Error("Expected an error when redis is unavailable")
	}
}
