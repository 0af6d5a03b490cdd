package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis at the given address.
// Returns nil when addr is empty or the server cannot be reached;
// callers should treat a nil client as "caching disabled".
func NewRedisClient(addr, password string, dbNum int) *redis.Client {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbNum,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis: ping %s failed, caching disabled: %v", addr, err)
		return nil
	}
	return client
}
