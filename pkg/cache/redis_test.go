package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-memory Redis for unit tests.
// Integration tests run against a real Redis via testcontainers-go.
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

type pass struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore[int](nil, time.Minute)
}

func TestRedisStore_PutAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore[[]pass](client, 10*time.Minute)
	ctx := context.Background()

	want := []pass{{ID: 1, Name: "VIP", Price: 5}, {ID: 2, Name: "Boost", Price: 10}}
	if err := store.Put(ctx, Key("123"), want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, Key("123"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Get = %v, want %v", got, want)
	}

	if !mr.Exists("gamepasses:123_all") {
		t.Error("Expected namespaced key in redis")
	}
	if ttl := mr.TTL("gamepasses:123_all"); ttl != 10*time.Minute {
		t.Errorf("Redis TTL = %v, want 10m", ttl)
	}
}

func TestRedisStore_Miss(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStore[[]pass](client, time.Minute)

	_, err := store.Get(context.Background(), Key("nobody"))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisStore_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore[[]pass](client, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, Key("1"), []pass{{ID: 1, Price: 1}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mr.FastForward(61 * time.Second)

	if _, err := store.Get(ctx, Key("1")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected miss after TTL, got %v", err)
	}
}

func TestRedisStore_InvalidEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore[[]pass](client, time.Minute)

	mr.Set("gamepasses:bad_all", "not json")

	_, err := store.Get(context.Background(), Key("bad"))
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestRedisStore_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore[[]pass](client, time.Minute)
	mr.Close()

	ctx := context.Background()
	if _, err := store.Get(ctx, Key("1")); err == nil || errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected a redis error distinct from a miss, got %v", err)
	}
	if err := store.Put(ctx, Key("1"), nil); err == nil {
		t.Error("Expected Put to fail when redis is down")
	}
}
