package numbering

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/lock"
	"github.com/noah-isme/invoice-manager/internal/store"
)

func TestNextSequential(t *testing.T) {
	require.Equal(t, "INV-0001", NextSequential("INV", nil, 0))
	require.Equal(t, "INV-0004", NextSequential("INV", []string{"INV-0003", "INV-0001"}, 3))
	require.Equal(t, "INV-10000", NextSequential("INV", []string{"INV-9999"}, 12))
	require.Equal(t, "ACME-0008", NextSequential("ACME", []string{"INV-0040", "ACME-0007"}, 50))
}

func TestNextSequentialFallsBackToMaxID(t *testing.T) {
	require.Equal(t, "INV-0013", NextSequential("INV", []string{"INV-draft", "INV-"}, 12))
}

func TestNextDaily(t *testing.T) {
	day := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	require.Equal(t, "INV-20250601-0001", NextDaily("INV", day, nil))

	existing := []string{"INV-20250601-0002", "INV-20250531-0009", "INV-20250601-0010", "INV-20250601-x"}
	require.Equal(t, "INV-20250601-0011", NextDaily("INV", day, existing))
}

type fakeStore struct {
	numbers []string
	maxID   int64
	prefix  string
}

func (f *fakeStore) InvoiceNumbersWithPrefix(_ context.Context, prefix string, _ int32) ([]string, error) {
	f.prefix = prefix
	return f.numbers, nil
}

func (f *fakeStore) MaxInvoiceID(context.Context) (int64, error) { return f.maxID, nil }

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: store.InvoiceNumberConstraint}
}

func TestAllocateRetriesOnceOnCollision(t *testing.T) {
	fs := &fakeStore{numbers: []string{"INV-0001"}, maxID: 1}
	alloc := &Allocator{Store: fs, Prefix: "INV"}

	var tried []string
	number, err := alloc.Allocate(context.Background(), func(_ context.Context, number string) error {
		tried = append(tried, number)
		if len(tried) == 1 {
			// a concurrent writer took the number first
			fs.numbers = append(fs.numbers, number)
			return uniqueViolation()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"INV-0002", "INV-0003"}, tried)
	require.Equal(t, "INV-0003", number)
}

func TestAllocateSurfacesConflictAfterSecondCollision(t *testing.T) {
	alloc := &Allocator{Store: &fakeStore{}, Prefix: "INV"}
	calls := 0
	_, err := alloc.Allocate(context.Background(), func(context.Context, string) error {
		calls++
		return uniqueViolation()
	})
	require.Equal(t, 2, calls)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, "NUMBER_CONFLICT", appErr.Code)
	require.Equal(t, 409, appErr.HTTPStatus)
}

func TestAllocateDoesNotRetryOtherErrors(t *testing.T) {
	alloc := &Allocator{Store: &fakeStore{}}
	boom := errors.New("boom")
	calls := 0
	_, err := alloc.Allocate(context.Background(), func(context.Context, string) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestAllocateDailyUsesDayPrefix(t *testing.T) {
	fs := &fakeStore{numbers: []string{"INV-20250102-0004"}}
	alloc := &Allocator{
		Store:  fs,
		Scheme: SchemeDaily,
		Now:    func() time.Time { return time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC) },
	}
	number, err := alloc.Allocate(context.Background(), func(context.Context, string) error { return nil })
	require.NoError(t, err)
	require.Equal(t, "INV-20250102-0005", number)
	require.Equal(t, "INV-20250102-", fs.prefix)
}

func TestAllocateHoldsRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	alloc := &Allocator{
		Store:  &fakeStore{},
		Locker: lock.Locker{R: rdb, Prefix: "lock:"},
	}
	_, err := alloc.Allocate(context.Background(), func(context.Context, string) error {
		require.True(t, mr.Exists("lock:invoice-number"))
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("lock:invoice-number"))
}
