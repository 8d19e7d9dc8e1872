package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/invoice-manager/internal/store"
)

const cacheKey = "settings:v1"

// Cache keeps a short-lived JSON copy of the settings row in Redis. A nil
// Cache or client disables caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Get reports whether a cached row was found.
func (c *Cache) Get(ctx context.Context) (store.Settings, bool, error) {
	if !c.enabled() {
		return store.Settings{}, false, nil
	}
	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Settings{}, false, nil
		}
		return store.Settings{}, false, err
	}
	var s store.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return store.Settings{}, false, err
	}
	return s, true, nil
}

// Set stores s with the configured TTL.
func (c *Cache) Set(ctx context.Context, s store.Settings) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey, data, c.ttl).Err()
}

// Invalidate drops the cached row.
func (c *Cache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Del(ctx, cacheKey).Err()
}
