package payment

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ReplayGuard claims a delivery key so a repeated notification is rejected.
type ReplayGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisReplayGuard implements ReplayGuard with SETNX. A nil client admits
// everything.
type RedisReplayGuard struct {
	Client *redis.Client
}

func (r RedisReplayGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Release frees the key, used when recording failed and a retry should be
// allowed through.
func (r RedisReplayGuard) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, key).Err()
}
