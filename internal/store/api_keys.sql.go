package store

import (
	"context"
	"time"
)

const apiKeyColumns = `id, name, key_id, key_hash, can_read, can_write, active, created_at, last_used_at`

func scanAPIKey(row interface{ Scan(...any) error }) (APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.Name, &k.KeyID, &k.KeyHash, &k.CanRead, &k.CanWrite, &k.Active, &k.CreatedAt, &k.LastUsedAt)
	return k, err
}

type CreateAPIKeyParams struct {
	Name     string
	KeyID    string
	KeyHash  string
	CanRead  bool
	CanWrite bool
}

const createAPIKey = `INSERT INTO api_keys (name, key_id, key_hash, can_read, can_write)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + apiKeyColumns

func (q *Queries) CreateAPIKey(ctx context.Context, arg CreateAPIKeyParams) (APIKey, error) {
	return scanAPIKey(q.db.QueryRow(ctx, createAPIKey, arg.Name, arg.KeyID, arg.KeyHash, arg.CanRead, arg.CanWrite))
}

const getAPIKeyByKeyID = `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_id = $1`

func (q *Queries) GetAPIKeyByKeyID(ctx context.Context, keyID string) (APIKey, error) {
	return scanAPIKey(q.db.QueryRow(ctx, getAPIKeyByKeyID, keyID))
}

const listAPIKeys = `SELECT ` + apiKeyColumns + ` FROM api_keys ORDER BY created_at DESC, id DESC`

func (q *Queries) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := q.db.Query(ctx, listAPIKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	return items, rows.Err()
}

const countAPIKeys = `SELECT count(*) FROM api_keys`

func (q *Queries) CountAPIKeys(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countAPIKeys).Scan(&n)
	return n, err
}

const setAPIKeyActive = `UPDATE api_keys SET active = $2 WHERE id = $1 RETURNING ` + apiKeyColumns

func (q *Queries) SetAPIKeyActive(ctx context.Context, id int64, active bool) (APIKey, error) {
	return scanAPIKey(q.db.QueryRow(ctx, setAPIKeyActive, id, active))
}

const touchAPIKey = `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`

func (q *Queries) TouchAPIKey(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.Exec(ctx, touchAPIKey, id, at)
	return err
}
