package rules

import (
	"sync"
	"time"
)

// InMemoryRulesCache is a process-local RulesCache
type InMemoryRulesCache struct {
	rules    []*BusinessRule
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
	isValid  bool
}

// NewInMemoryRulesCache creates an empty in-memory rules cache
func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{config: config}
}

// Get returns deep copies of the cached rules, or nil when invalid or expired
func (c *InMemoryRulesCache) Get() []*BusinessRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.validLocked() {
		return nil
	}
	return cloneRules(c.rules)
}

// Set stores deep copies of rules
func (c *InMemoryRulesCache) Set(rules []*BusinessRule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rules = cloneRules(rules)
	c.cachedAt = time.Now()
	c.isValid = true
}

// Invalidate clears the cache
func (c *InMemoryRulesCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.rules = nil
}

// IsValid returns true if cache contains valid data
func (c *InMemoryRulesCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.validLocked()
}

func (c *InMemoryRulesCache) validLocked() bool {
	if !c.isValid {
		return false
	}
	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return false
	}
	return true
}

func cloneRules(rules []*BusinessRule) []*BusinessRule {
	out := make([]*BusinessRule, len(rules))
	for i, r := range rules {
		out[i] = r.Clone()
	}
	return out
}
