// Package lock serialises critical sections across API instances using a
// single Redis key per section.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTimeout means MaxWait elapsed before the key became free.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

const (
	defaultTTL     = 10 * time.Second
	defaultBackoff = 25 * time.Millisecond
)

// unlock deletes the key only while it still carries our token, so a holder
// whose TTL expired cannot free somebody else's lock.
var unlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a SET NX based mutex. The zero MaxWait waits as long as ctx does.
type Locker struct {
	R            *redis.Client
	Prefix       string
	RetryBackoff time.Duration
	MaxWait      time.Duration
}

// WithLock runs fn while holding key. fn receives the caller's ctx; MaxWait
// only bounds the wait for the lock. ttl caps how long a crashed holder
// blocks everyone else.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	switch {
	case l.R == nil:
		return errors.New("lock: redis client not configured")
	case fn == nil:
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	name, token := l.Prefix+key, uuid.NewString()
	if err := l.acquire(ctx, name, token, ttl); err != nil {
		return err
	}
	defer func() { _ = unlock.Run(context.WithoutCancel(ctx), l.R, []string{name}, token).Err() }()
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, name, token string, ttl time.Duration) error {
	waitCtx := ctx
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.MaxWait)
		defer cancel()
	}
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	ticker := time.NewTicker(backoff)
	defer ticker.Stop()
	for {
		ok, err := l.R.SetNX(waitCtx, name, token, ttl).Result()
		if ok {
			return nil
		}
		if err != nil && waitCtx.Err() == nil {
			return err
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrTimeout
		case <-ticker.C:
		}
	}
}
