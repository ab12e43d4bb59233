package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"perma-store/conf"

	"github.com/redis/go-redis/v9"
)

// Cache optional redis-backed read cache. A nil *Cache is valid and
// turns every operation into a no-op, so callers never branch on the
// redis.enabled flag themselves.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connect to redis when enabled, otherwise return nil.
func NewCache(cfg conf.RedisConfig) (*Cache, error) {
	if !cfg.Enabled {
		log.Println("Redis cache disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis cache connected: %s:%d", cfg.Host, cfg.Port)
	return &Cache{
		client: client,
		ttl:    time.Duration(cfg.CacheTTL) * time.Second,
	}, nil
}

// Set store value as JSON with the configured TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache marshal failed for %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("cache set failed for %s: %v", key, err)
	}
}

// Get load value into dest, returns false on miss or error
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Printf("cache unmarshal failed for %s: %v", key, err)
		return false
	}
	return true
}

// Delete drop keys, used on writes that invalidate cached reads
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("cache delete failed: %v", err)
	}
}

// Close release the redis connection
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
