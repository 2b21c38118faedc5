// Package cache stores responses of the remote paginated API in Redis so page
// fetches are shared across processes and paged model sessions.
//
// Entries live until the Expires header of the response they were built from
// (DefaultTTL when absent). Entries that carry an ETag or Last-Modified value
// allow conditional requests; a 304 answer refreshes the entry TTL instead of
// transferring the page again.
//
//	manager := cache.NewManager(redisClient)
//	key := cache.Key{Endpoint: "/v1/orders", Page: 3}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch and manager.Set(ctx, key, entry)
//	}
//
// Metrics:
//
//   - pagedlist_cache_hits_total
//   - pagedlist_cache_misses_total
//   - pagedlist_cache_stored_bytes_total
//   - pagedlist_cache_conditional_requests_total
//   - pagedlist_cache_not_modified_total
//   - pagedlist_cache_errors_total{operation}
package cache
