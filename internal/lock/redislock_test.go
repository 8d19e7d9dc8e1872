package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-manager/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerialisesHolders(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{R: client, Prefix: "lock:", RetryBackoff: 2 * time.Millisecond}

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "invoice-number", time.Second, func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(3 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestWithLockReleasesOnError(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client, Prefix: "lock:"}

	err := locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		require.True(t, mr.Exists("lock:k"))
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, mr.Exists("lock:k"))
}

func TestWithLockTimesOut(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set("lock:busy", "someone-else"))

	locker := lock.Locker{R: client, Prefix: "lock:", RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
	called := false
	err := locker.WithLock(context.Background(), "busy", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrTimeout)
	require.False(t, called)
	require.True(t, mr.Exists("lock:busy"))
}

func TestWithLockWaitBudgetDoesNotBoundCallback(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{R: client, Prefix: "lock:", MaxWait: 10 * time.Millisecond}

	err := locker.WithLock(context.Background(), "slow", time.Second, func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		return ctx.Err()
	})
	require.NoError(t, err)
}

func TestWithLockDoesNotFreeForeignToken(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client, Prefix: "lock:"}

	err := locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		// simulate expiry and takeover by another instance
		require.NoError(t, mr.Set("lock:k", "other"))
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("lock:k")
	require.NoError(t, err)
	require.Equal(t, "other", got)
}
