package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Cache with per-entry expiry. A background
// sweeper drops expired entries; Close stops it.
type MemoryStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
	ttl     time.Duration
	now     func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates a memory store. A non-positive ttl falls back to DefaultTTL.
func NewMemoryStore[V any](ttl time.Duration) *MemoryStore[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m := &MemoryStore[V]{
		entries: make(map[string]Entry[V]),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go m.sweep()

	return m
}

// Get implements Cache.
func (m *MemoryStore[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.RLock()
	entry, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists || entry.IsExpiredAt(m.now()) {
		CacheMisses.WithLabelValues(backendMemory).Inc()
		var zero V
		return zero, ErrCacheMiss
	}

	CacheHits.WithLabelValues(backendMemory).Inc()
	return entry.Value, nil
}

// Put implements Cache.
func (m *MemoryStore[V]) Put(_ context.Context, key string, value V) error {
	m.mu.Lock()
	m.entries[key] = newEntry(value, m.now(), m.ttl)
	size := len(m.entries)
	m.mu.Unlock()

	CacheStores.WithLabelValues(backendMemory).Inc()
	CacheEntries.Set(float64(size))
	return nil
}

// TTL implements Cache.
func (m *MemoryStore[V]) TTL() time.Duration {
	return m.ttl
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the background sweeper.
func (m *MemoryStore[V]) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
	})
	return nil
}

// sweep periodically removes expired entries.
func (m *MemoryStore[V]) sweep() {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *MemoryStore[V]) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, entry := range m.entries {
		if entry.IsExpiredAt(now) {
			delete(m.entries, key)
		}
	}
	CacheEntries.Set(float64(len(m.entries)))
}
