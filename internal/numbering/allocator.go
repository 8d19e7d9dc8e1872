package numbering

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/obs"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// Schemes.
const (
	SchemeSequential = "sequential"
	SchemeDaily      = "daily"
)

const candidateLimit = 50

// ErrNumberConflict is surfaced when a freshly generated number still
// collides after one retry.
var ErrNumberConflict = common.NewAppError("NUMBER_CONFLICT", "could not allocate a unique invoice number, retry the request", http.StatusConflict, nil)

// Store reads existing invoice numbers.
type Store interface {
	InvoiceNumbersWithPrefix(ctx context.Context, prefix string, limit int32) ([]string, error)
	MaxInvoiceID(ctx context.Context) (int64, error)
}

// Locker serialises allocation across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Allocator hands out invoice numbers. Generation and the caller's insert
// run under one lock; a unique violation is retried once with a fresh number.
type Allocator struct {
	Store   Store
	Locker  Locker
	Scheme  string
	Prefix  string
	LockTTL time.Duration
	Now     func() time.Time
	Logger  zerolog.Logger
}

// Next computes the next number without reserving it.
func (a *Allocator) Next(ctx context.Context) (string, error) {
	if a == nil || a.Store == nil {
		return "", errors.New("numbering: store not configured")
	}
	prefix := a.prefix()
	if a.Scheme == SchemeDaily {
		day := a.now()
		existing, err := a.Store.InvoiceNumbersWithPrefix(ctx, DailyPrefix(prefix, day), candidateLimit)
		if err != nil {
			return "", fmt.Errorf("numbering: list daily numbers: %w", err)
		}
		return NextDaily(prefix, day, existing), nil
	}
	existing, err := a.Store.InvoiceNumbersWithPrefix(ctx, prefix+"-", candidateLimit)
	if err != nil {
		return "", fmt.Errorf("numbering: list numbers: %w", err)
	}
	maxID, err := a.Store.MaxInvoiceID(ctx)
	if err != nil {
		return "", fmt.Errorf("numbering: max id: %w", err)
	}
	return NextSequential(prefix, existing, maxID), nil
}

// Allocate generates a number and passes it to insert, which must persist
// and commit the invoice before returning.
func (a *Allocator) Allocate(ctx context.Context, insert func(ctx context.Context, number string) error) (string, error) {
	var number string
	run := func(ctx context.Context) error {
		var err error
		for attempt := 1; attempt <= 2; attempt++ {
			number, err = a.Next(ctx)
			if err != nil {
				return err
			}
			err = insert(ctx, number)
			if err == nil {
				return nil
			}
			if !store.IsUniqueViolation(err, store.InvoiceNumberConstraint) {
				return err
			}
			a.Logger.Warn().Str("invoice_number", number).Int("attempt", attempt).Msg("invoice number collision")
			if obs.InvoiceNumberConflictsTotal != nil {
				outcome := "retried"
				if attempt == 2 {
					outcome = "failed"
				}
				obs.InvoiceNumberConflictsTotal.WithLabelValues(outcome).Inc()
			}
		}
		return ErrNumberConflict
	}

	if a.Locker == nil {
		err := run(ctx)
		return number, err
	}
	err := a.Locker.WithLock(ctx, "invoice-number", a.LockTTL, run)
	return number, err
}

func (a *Allocator) prefix() string {
	if a.Prefix == "" {
		return "INV"
	}
	return a.Prefix
}

func (a *Allocator) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}
