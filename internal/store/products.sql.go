package store

import (
	"context"

	"github.com/noah-isme/invoice-manager/internal/money"
)

const productColumns = `id, name, description, unit_price, active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.UnitPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type ProductParams struct {
	Name        string
	Description *string
	UnitPrice   money.Amount
	Active      bool
}

const createProduct = `INSERT INTO products (name, description, unit_price, active)
VALUES ($1, $2, $3, $4)
RETURNING ` + productColumns

func (q *Queries) CreateProduct(ctx context.Context, arg ProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct, arg.Name, arg.Description, arg.UnitPrice, arg.Active))
}

const updateProduct = `UPDATE products SET name = $2, description = $3, unit_price = $4, active = $5, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

func (q *Queries) UpdateProduct(ctx context.Context, id int64, arg ProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct, id, arg.Name, arg.Description, arg.UnitPrice, arg.Active))
}

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

type ListProductsParams struct {
	ActiveOnly bool
	Limit      int32
	Offset     int32
}

const listProducts = `SELECT ` + productColumns + ` FROM products
WHERE (NOT $1::boolean OR active)
ORDER BY lower(name), id
LIMIT $2 OFFSET $3`

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.ActiveOnly, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const countProducts = `SELECT count(*) FROM products WHERE (NOT $1::boolean OR active)`

func (q *Queries) CountProducts(ctx context.Context, activeOnly bool) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countProducts, activeOnly).Scan(&n)
	return n, err
}

const deleteProduct = `DELETE FROM products WHERE id = $1`

func (q *Queries) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteProduct, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
