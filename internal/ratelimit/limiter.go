package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Limiter counts requests per key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// StoreLimiter adapts a ulule limiter store to Limiter.
type StoreLimiter struct {
	Store limiter.Store
}

// NewRedisLimiter keeps counters in Redis so limits hold across instances.
func NewRedisLimiter(rdb *redis.Client, prefix string) (StoreLimiter, error) {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return StoreLimiter{}, err
	}
	return StoreLimiter{Store: store}, nil
}

// NewMemoryLimiter keeps counters in process memory.
func NewMemoryLimiter() StoreLimiter {
	return StoreLimiter{Store: memory.NewStore()}
}

// Allow registers a hit for key and reports whether it is within max.
func (l StoreLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lim := limiter.New(l.Store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := lim.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
