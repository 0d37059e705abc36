package cache

import (
	"time"
)

// Entry wraps a cached value with its lifecycle timestamps.
type Entry[V any] struct {
	// Value is the cached result. It is never modified after insertion.
	Value V `json:"value"`

	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time `json:"expires_at"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// newEntry creates an entry stored at now that lives for ttl.
func newEntry[V any](value V, now time.Time, ttl time.Duration) Entry[V] {
	return Entry[V]{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CachedAt:  now,
	}
}

// IsExpiredAt returns true if the entry has expired at the given time.
func (e *Entry[V]) IsExpiredAt(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry[V]) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
