package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert invoice: %w", &pgconn.PgError{Code: "23505", ConstraintName: InvoiceNumberConstraint})
	require.True(t, IsUniqueViolation(err, ""))
	require.True(t, IsUniqueViolation(err, InvoiceNumberConstraint))
	require.False(t, IsUniqueViolation(err, "api_keys_key_id_key"))
	require.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

func TestIsForeignKeyViolation(t *testing.T) {
	require.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
}

func TestIsNotFound(t *testing.T) {
	require.True(t, IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	require.False(t, IsNotFound(context.Canceled))
}

type recordingDB struct {
	sql  string
	args []any
}

func (r *recordingDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (r *recordingDB) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	r.sql, r.args = sql, args
	return nil, errors.New("not implemented")
}

func (r *recordingDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	r.sql, r.args = sql, args
	return errRow{}
}

type errRow struct{}

func (errRow) Scan(...any) error { return pgx.ErrNoRows }

func TestDeleteReportsRowsAffected(t *testing.T) {
	db := &recordingDB{}
	n, err := New(db).DeleteInvoice(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, []any{int64(9)}, db.args)
}

func TestInsertAuditLogSendsNullMetadata(t *testing.T) {
	db := &recordingDB{}
	require.NoError(t, New(db).InsertAuditLog(context.Background(), InsertAuditLogParams{ActorKind: "api_key"}))
	require.Nil(t, db.args[len(db.args)-1])
}

func TestGetInvoicePropagatesNoRows(t *testing.T) {
	db := &recordingDB{}
	_, err := New(db).GetInvoice(context.Background(), 1)
	require.True(t, IsNotFound(err))
	require.Contains(t, db.sql, "LEFT JOIN customers")
}
