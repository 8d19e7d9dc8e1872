package store

import (
	"context"

	"github.com/noah-isme/invoice-manager/internal/money"
)

const customerColumns = `id, name, email, phone, address_line1, address_line2, city, postcode, country,
	tax_rate, uses_default_tax, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.AddressLine1, &c.AddressLine2, &c.City,
		&c.Postcode, &c.Country, &c.TaxRate, &c.UsesDefaultTax, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

type CustomerParams struct {
	Name           string
	Email          *string
	Phone          *string
	AddressLine1   *string
	AddressLine2   *string
	City           *string
	Postcode       *string
	Country        *string
	TaxRate        *money.Amount
	UsesDefaultTax bool
}

const createCustomer = `INSERT INTO customers (name, email, phone, address_line1, address_line2, city, postcode,
	country, tax_rate, uses_default_tax)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + customerColumns

func (q *Queries) CreateCustomer(ctx context.Context, arg CustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, createCustomer, arg.Name, arg.Email, arg.Phone, arg.AddressLine1,
		arg.AddressLine2, arg.City, arg.Postcode, arg.Country, arg.TaxRate, arg.UsesDefaultTax))
}

const updateCustomer = `UPDATE customers SET name = $2, email = $3, phone = $4, address_line1 = $5,
	address_line2 = $6, city = $7, postcode = $8, country = $9, tax_rate = $10, uses_default_tax = $11,
	updated_at = now()
WHERE id = $1
RETURNING ` + customerColumns

func (q *Queries) UpdateCustomer(ctx context.Context, id int64, arg CustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, updateCustomer, id, arg.Name, arg.Email, arg.Phone, arg.AddressLine1,
		arg.AddressLine2, arg.City, arg.Postcode, arg.Country, arg.TaxRate, arg.UsesDefaultTax))
}

const getCustomer = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

func (q *Queries) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomer, id))
}

const getCustomerByName = `SELECT ` + customerColumns + ` FROM customers
WHERE lower(name) = lower($1)
ORDER BY id
LIMIT 1`

func (q *Queries) GetCustomerByName(ctx context.Context, name string) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomerByName, name))
}

type ListCustomersParams struct {
	Search string
	Limit  int32
	Offset int32
}

const listCustomers = `SELECT ` + customerColumns + ` FROM customers
WHERE ($1::text = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
ORDER BY lower(name), id
LIMIT $2 OFFSET $3`

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomers, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const countCustomers = `SELECT count(*) FROM customers
WHERE ($1::text = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')`

func (q *Queries) CountCustomers(ctx context.Context, search string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countCustomers, search).Scan(&n)
	return n, err
}

const deleteCustomer = `DELETE FROM customers WHERE id = $1`

func (q *Queries) DeleteCustomer(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCustomer, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
