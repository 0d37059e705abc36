// Package cache stores aggregated per-user results for a fixed time-to-live.
//
// Two backends implement the Cache interface:
//
//   - MemoryStore keeps entries in a process-local map with per-entry expiry
//   - RedisStore keeps sonic-encoded entries in Redis with a native TTL, so
//     several service instances share one cache
//
// # Basic Usage
//
//	store := cache.NewMemoryStore[[]gamepass.Pass](cache.DefaultTTL)
//	defer store.Close()
//
//	passes, err := store.Get(ctx, cache.Key(userID))
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - aggregate and store
//		_ = store.Put(ctx, cache.Key(userID), passes)
//	}
//
// # Redis Backend
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewRedisStore[[]gamepass.Pass](redisClient, cache.DefaultTTL)
//
// # Metrics
//
//   - gamepasses_cache_hits_total{backend} - Cache hits
//   - gamepasses_cache_misses_total{backend} - Cache misses (absent or expired)
//   - gamepasses_cache_stores_total{backend} - Inserts
//   - gamepasses_cache_memory_entries - Live entries in the memory backend
//   - gamepasses_cache_errors_total{backend,operation} - Cache operation errors
package cache
