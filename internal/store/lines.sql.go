package store

import (
	"context"
	"time"

	"github.com/noah-isme/invoice-manager/internal/money"
)

const invoiceItemColumns = `id, invoice_id, product_id, description, quantity, unit_price, line_total, position`

func scanInvoiceItem(row interface{ Scan(...any) error }) (InvoiceItem, error) {
	var it InvoiceItem
	err := row.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.Description, &it.Quantity, &it.UnitPrice,
		&it.LineTotal, &it.Position)
	return it, err
}

type CreateInvoiceItemParams struct {
	InvoiceID   int64
	ProductID   *int64
	Description string
	Quantity    money.Amount
	UnitPrice   money.Amount
	LineTotal   money.Amount
	Position    int32
}

const createInvoiceItem = `INSERT INTO invoice_items (invoice_id, product_id, description, quantity, unit_price,
	line_total, position)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + invoiceItemColumns

func (q *Queries) CreateInvoiceItem(ctx context.Context, arg CreateInvoiceItemParams) (InvoiceItem, error) {
	return scanInvoiceItem(q.db.QueryRow(ctx, createInvoiceItem, arg.InvoiceID, arg.ProductID, arg.Description,
		arg.Quantity, arg.UnitPrice, arg.LineTotal, arg.Position))
}

const deleteInvoiceItems = `DELETE FROM invoice_items WHERE invoice_id = $1`

func (q *Queries) DeleteInvoiceItems(ctx context.Context, invoiceID int64) error {
	_, err := q.db.Exec(ctx, deleteInvoiceItems, invoiceID)
	return err
}

const listInvoiceItems = `SELECT ` + invoiceItemColumns + ` FROM invoice_items
WHERE invoice_id = $1
ORDER BY position, id`

func (q *Queries) ListInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.db.Query(ctx, listInvoiceItems, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InvoiceItem{}
	for rows.Next() {
		it, err := scanInvoiceItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const paymentColumns = `id, invoice_id, amount, payment_date, method, external_reference, created_at`

func scanPayment(row interface{ Scan(...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaymentDate, &p.Method, &p.ExternalReference, &p.CreatedAt)
	return p, err
}

type CreatePaymentParams struct {
	InvoiceID         int64
	Amount            money.Amount
	PaymentDate       time.Time
	Method            string
	ExternalReference string
}

const createPayment = `INSERT INTO payments (invoice_id, amount, payment_date, method, external_reference)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + paymentColumns

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment, arg.InvoiceID, arg.Amount, arg.PaymentDate, arg.Method,
		arg.ExternalReference))
}

const listPayments = `SELECT ` + paymentColumns + ` FROM payments
WHERE invoice_id = $1
ORDER BY payment_date, id`

func (q *Queries) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPayments, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const deletePayment = `DELETE FROM payments WHERE invoice_id = $1 AND id = $2`

func (q *Queries) DeletePayment(ctx context.Context, invoiceID, paymentID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deletePayment, invoiceID, paymentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
