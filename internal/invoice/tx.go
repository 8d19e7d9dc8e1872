package invoice

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/invoice-manager/internal/store"
)

// Transactor runs fn against a Store bound to a single transaction. fn's
// error rolls the transaction back.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// PoolTx opens transactions on a pgx pool.
type PoolTx struct {
	Pool    *pgxpool.Pool
	Queries *store.Queries
}

func (p PoolTx) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(p.Queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
