package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/osbuild/ibmetrics/pkg/observability"
)

// ResultCache memoizes computed responses. Lookups hit the in-process LRU
// first and fall through to Redis when configured. Keys embed the dataset
// version, so entries from before a reload simply stop being asked for.
type ResultCache struct {
	lru     *lru.Cache[string, []byte]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewResultCache builds a result cache. redisAddr may be empty, leaving
// only the in-process layer.
func NewResultCache(redisAddr, redisPassword string, ttl time.Duration, metrics *observability.Metrics) (*ResultCache, error) {
	l, err := lru.New[string, []byte](256)
	if err != nil {
		return nil, fmt.Errorf("creating result cache: %w", err)
	}
	c := &ResultCache{lru: l, ttl: ttl, metrics: metrics}

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: redisPassword})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", redisAddr, err)
		}
		c.redis = client
	}
	return c, nil
}

// Close releases the Redis connection if one exists.
func (c *ResultCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

// Key builds a cache key from the route, dataset version and parameters.
func Key(route string, version uint64, params ...string) string {
	key := fmt.Sprintf("ibmetrics:%s:v%d", route, version)
	for _, p := range params {
		key += ":" + p
	}
	return key
}

// Get looks up a cached response and unmarshals it into out.
func (c *ResultCache) Get(ctx context.Context, route, key string, out interface{}) bool {
	if data, ok := c.lru.Get(key); ok {
		if json.Unmarshal(data, out) == nil {
			c.metrics.CacheHitsTotal.WithLabelValues(route).Inc()
			return true
		}
	}
	if c.redis != nil {
		if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
			if json.Unmarshal(data, out) == nil {
				c.lru.Add(key, data)
				c.metrics.CacheHitsTotal.WithLabelValues(route).Inc()
				return true
			}
		}
	}
	c.metrics.CacheMissesTotal.WithLabelValues(route).Inc()
	return false
}

// Set stores a computed response in both layers.
func (c *ResultCache) Set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.lru.Add(key, data)
	if c.redis != nil {
		c.redis.Set(ctx, key, data, c.ttl)
	}
}
