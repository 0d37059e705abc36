package cache

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultTTL is how long a result set is served before it is recomputed.
	DefaultTTL = 600 * time.Second

	backendMemory = "memory"
	backendRedis  = "redis"
)

var (
	// ErrCacheMiss indicates the requested key was not found or has expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry could not be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Cache stores values under string keys for a fixed TTL that starts at insertion.
// Entries are never invalidated early; an expired entry is a miss.
// Implementations must be safe for concurrent use. Concurrent Puts to the same
// key are last-writer-wins.
type Cache[V any] interface {
	// Get returns the live value for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (V, error)

	// Put stores value under key for TTL().
	Put(ctx context.Context, key string, value V) error

	// TTL returns the lifetime given to every entry.
	TTL() time.Duration
}
