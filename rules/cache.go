package rules

import "time"

// RulesCache caches the ordered active-rule list so execution doesn't hit the store
// on every claim. Implementations: InMemoryRulesCache, RedisRulesCache.
type RulesCache interface {
	// Get returns the cached rules, or nil on a miss or expiry
	Get() []*BusinessRule

	// Set stores rules in cache
	Set(rules []*BusinessRule)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// 0 means entries only go away on Invalidate.
	TTL time.Duration
}

// DefaultCacheConfig caches until the next mutation
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
