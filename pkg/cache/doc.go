// Package cache provides a Redis-backed response cache for DSIS lookups.
//
// Header and metadata lookups by id, and the project list, change rarely
// compared to how often scripts ask for them. The client stores the decoded
// response body under a deterministic key and serves repeated lookups from
// Redis until the entry's TTL runs out.
//
// Paginated collection reads are never cached: the widening window makes every
// page request unique, and an export must see the live collection.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key := cache.CacheKey{
//		Model:   "recall",
//		Root:    "https://dsis.example/dsl.svc/recall",
//		Project: "NORWAY_WELLDB",
//		Entity:  "LOG",
//		ID:      "1234",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from DSIS, then
//		_ = manager.Set(ctx, key, cache.NewEntry(url, body, 0))
//	}
//
// # Metrics
//
//   - dsis_cache_hits_total - Cache hits
//   - dsis_cache_misses_total - Cache misses
//   - dsis_cache_size_bytes - Bytes written to / read from the cache
//   - dsis_cache_errors_total{operation} - Cache operation errors
package cache
