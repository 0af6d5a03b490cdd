package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when the key is absent or caching is disabled.
var ErrMiss = errors.New("cache miss")

// Cache is a small JSON read-through cache on top of Redis.
// A nil *Cache (or one built from a nil client) is valid and disables
// caching, so callers degrade gracefully when Redis is unreachable.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Cache. client may be nil to disable caching.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

// GetJSON loads the value stored under key into dest.
// Returns ErrMiss when absent; other Redis errors are logged and reported as misses.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	if c == nil {
		return ErrMiss
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: get %q failed: %v", key, err)
		}
		return ErrMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Printf("cache: unmarshal %q failed: %v", key, err)
		return ErrMiss
	}
	return nil
}

// SetJSON stores value under key with the configured TTL. Best-effort.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache: marshal %q failed: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("cache: set %q failed: %v", key, err)
	}
}

// InvalidatePattern deletes all keys matching the glob pattern (e.g. "bookings:renter:42:*").
// Uses SCAN to avoid blocking Redis on large keyspaces. Best-effort.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) {
	if c == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("cache: scan %q failed: %v", pattern, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("cache: del %q failed: %v", pattern, err)
	}
}
