package rules

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/claims/internal/logger"
)

const redisOpTimeout = 2 * time.Second

// RedisRulesCache shares the active-rule list between service replicas.
// Redis failures degrade to cache misses so execution falls back to the store.
type RedisRulesCache struct {
	client redis.UniversalClient
	key    string
	config CacheConfig
}

// NewRedisRulesCache caches one payer's rules under "<prefix>:rules:<payerID>"
func NewRedisRulesCache(client redis.UniversalClient, prefix, payerID string, config CacheConfig) *RedisRulesCache {
	if prefix == "" {
		prefix = "claims"
	}
	return &RedisRulesCache{
		client: client,
		key:    prefix + ":rules:" + payerID,
		config: config,
	}
}

// Key returns the redis key backing this cache
func (c *RedisRulesCache) Key() string {
	return c.key
}

// Get returns the cached rules, or nil on a miss or Redis error
func (c *RedisRulesCache) Get() []*BusinessRule {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("redis rules cache read failed", "key", c.key, "error", err)
		}
		return nil
	}

	var rules []*BusinessRule
	if err := json.Unmarshal(data, &rules); err != nil {
		logger.Warn("redis rules cache entry is corrupt", "key", c.key, "error", err)
		return nil
	}
	if rules == nil {
		rules = []*BusinessRule{}
	}
	return rules
}

// Set stores rules as JSON with the configured TTL
func (c *RedisRulesCache) Set(rules []*BusinessRule) {
	if rules == nil {
		rules = []*BusinessRule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		logger.Warn("failed to encode rules for redis cache", "key", c.key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key, data, c.config.TTL).Err(); err != nil {
		logger.Warn("redis rules cache write failed", "key", c.key, "error", err)
	}
}

// Invalidate deletes the cached entry
func (c *RedisRulesCache) Invalidate() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		logger.Warn("redis rules cache invalidate failed", "key", c.key, "error", err)
	}
}

// IsValid reports whether an entry is present
func (c *RedisRulesCache) IsValid() bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := c.client.Exists(ctx, c.key).Result()
	return err == nil && n > 0
}
