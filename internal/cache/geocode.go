// In file: internal/cache/geocode.go
package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/version"
	"github.com/dileep-u-k/weatherbot/internal/weather"

	"github.com/redis/go-redis/v9"
)

type geocodeEntry struct {
	result    *weather.GeocodeResult
	expiresAt time.Time
}

// MemoryGeocodeCache is a TTL map guarded by an RWMutex.
type MemoryGeocodeCache struct {
	mu      sync.RWMutex
	entries map[string]geocodeEntry
	now     func() time.Time
}

var _ weather.GeocodeCache = (*MemoryGeocodeCache)(nil)

func NewMemoryGeocodeCache() *MemoryGeocodeCache {
	return &MemoryGeocodeCache{entries: make(map[string]geocodeEntry), now: time.Now}
}

func (c *MemoryGeocodeCache) Get(_ context.Context, key string) (*weather.GeocodeResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.result, true
}

func (c *MemoryGeocodeCache) Set(_ context.Context, key string, res *weather.GeocodeResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = geocodeEntry{result: res, expiresAt: c.now().Add(ttl)}
}

// Len counts entries, expired ones included.
func (c *MemoryGeocodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisGeocodeCache stores each result under a hashed, versioned key and lets
// Redis expire it.
type RedisGeocodeCache struct {
	rdb *redis.Client
}

var _ weather.GeocodeCache = (*RedisGeocodeCache)(nil)

func NewRedisGeocodeCache(rdb *redis.Client) *RedisGeocodeCache {
	return &RedisGeocodeCache{rdb: rdb}
}

func (c *RedisGeocodeCache) Get(ctx context.Context, key string) (*weather.GeocodeResult, bool) {
	val, err := c.rdb.Get(ctx, version.GenerateVersionedCacheKey("geocode", key)).Result()
	if err == redis.Nil {
		return nil, false
	} else if err != nil {
		log.Printf("Redis GET error for geocode cache: %v", err)
		return nil, false
	}
	var res weather.GeocodeResult
	if err := json.Unmarshal([]byte(val), &res); err != nil {
		log.Printf("Corrupt geocode cache entry for '%s': %v", key, err)
		return nil, false
	}
	return &res, true
}

func (c *RedisGeocodeCache) Set(ctx context.Context, key string, res *weather.GeocodeResult, ttl time.Duration) {
	data, err := json.Marshal(res)
	if err != nil {
		log.Printf("Failed to encode geocode result for '%s': %v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, version.GenerateVersionedCacheKey("geocode", key), data, ttl).Err(); err != nil {
		log.Printf("Redis SET error for geocode cache: %v", err)
	}
}
