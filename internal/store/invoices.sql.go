package store

import (
	"context"
	"time"

	"github.com/noah-isme/invoice-manager/internal/money"
)

const invoiceSelect = `SELECT i.id, i.invoice_number, i.customer_id, COALESCE(c.name, ''), i.status, i.issue_date,
	i.due_date, i.notes, i.subtotal_amount, i.tax_rate, i.tax_amount, i.total_amount, i.balance_due,
	i.created_at, i.updated_at
FROM invoices i
LEFT JOIN customers c ON c.id = i.customer_id`

func scanInvoice(row interface{ Scan(...any) error }) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.CustomerName, &inv.Status, &inv.IssueDate,
		&inv.DueDate, &inv.Notes, &inv.SubtotalAmount, &inv.TaxRate, &inv.TaxAmount, &inv.TotalAmount,
		&inv.BalanceDue, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

// InvoiceParams carries every persisted invoice column, derived totals
// included.
type InvoiceParams struct {
	InvoiceNumber  string
	CustomerID     int64
	Status         string
	IssueDate      time.Time
	DueDate        *time.Time
	Notes          string
	SubtotalAmount money.Amount
	TaxRate        money.Amount
	TaxAmount      money.Amount
	TotalAmount    money.Amount
	BalanceDue     money.Amount
}

const createInvoice = `INSERT INTO invoices (invoice_number, customer_id, status, issue_date, due_date, notes,
	subtotal_amount, tax_rate, tax_amount, total_amount, balance_due)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

// CreateInvoice inserts the invoice and returns its id.
func (q *Queries) CreateInvoice(ctx context.Context, arg InvoiceParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createInvoice, arg.InvoiceNumber, arg.CustomerID, arg.Status, arg.IssueDate,
		arg.DueDate, arg.Notes, arg.SubtotalAmount, arg.TaxRate, arg.TaxAmount, arg.TotalAmount,
		arg.BalanceDue).Scan(&id)
	return id, err
}

const updateInvoice = `UPDATE invoices SET invoice_number = $2, customer_id = $3, status = $4, issue_date = $5,
	due_date = $6, notes = $7, subtotal_amount = $8, tax_rate = $9, tax_amount = $10, total_amount = $11,
	balance_due = $12, updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateInvoice(ctx context.Context, id int64, arg InvoiceParams) error {
	_, err := q.db.Exec(ctx, updateInvoice, id, arg.InvoiceNumber, arg.CustomerID, arg.Status, arg.IssueDate,
		arg.DueDate, arg.Notes, arg.SubtotalAmount, arg.TaxRate, arg.TaxAmount, arg.TotalAmount, arg.BalanceDue)
	return err
}

const getInvoice = invoiceSelect + ` WHERE i.id = $1`

func (q *Queries) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoice, id))
}

const getInvoiceForUpdate = invoiceSelect + ` WHERE i.id = $1 FOR UPDATE OF i`

// GetInvoiceForUpdate locks the invoice row for the rest of the transaction.
func (q *Queries) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceForUpdate, id))
}

const getInvoiceIDByNumber = `SELECT id FROM invoices WHERE invoice_number = $1`

func (q *Queries) GetInvoiceIDByNumber(ctx context.Context, number string) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, getInvoiceIDByNumber, number).Scan(&id)
	return id, err
}

// ListInvoicesParams filters the invoice list. Filter is "all", "open" (not
// paid and not cancelled) or a concrete status. "overdue" also matches sent
// invoices whose due date is before Today but that no write has touched since.
type ListInvoicesParams struct {
	Filter     string
	CustomerID *int64
	Today      time.Time
	Limit      int32
	Offset     int32
}

const invoiceFilter = ` WHERE ($1::text = 'all'
	OR ($1 = 'open' AND i.status NOT IN ('paid', 'cancelled'))
	OR ($1 = 'overdue' AND i.status = 'sent' AND i.due_date < $3::date)
	OR i.status = $1)
	AND ($2::bigint IS NULL OR i.customer_id = $2)`

const listInvoices = invoiceSelect + invoiceFilter + `
ORDER BY i.issue_date DESC, i.id DESC
LIMIT $4 OFFSET $5`

func (q *Queries) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoices, arg.Filter, arg.CustomerID, arg.Today, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

const countInvoices = `SELECT count(*) FROM invoices i` + invoiceFilter

func (q *Queries) CountInvoices(ctx context.Context, arg ListInvoicesParams) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countInvoices, arg.Filter, arg.CustomerID, arg.Today).Scan(&n)
	return n, err
}

const deleteInvoice = `DELETE FROM invoices WHERE id = $1`

func (q *Queries) DeleteInvoice(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteInvoice, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const invoiceNumbersWithPrefix = `SELECT invoice_number FROM invoices
WHERE starts_with(invoice_number, $1)
  AND substr(invoice_number, length($1) + 1) ~ '^[0-9]+$'
ORDER BY length(invoice_number) DESC, invoice_number DESC
LIMIT $2`

// InvoiceNumbersWithPrefix returns the highest numbers made of prefix
// followed by digits only. Longer numbers sort first so NNNNN outranks NNNN;
// hand-entered numbers such as INV-draft never fill the limit.
func (q *Queries) InvoiceNumbersWithPrefix(ctx context.Context, prefix string, limit int32) ([]string, error) {
	rows, err := q.db.Query(ctx, invoiceNumbersWithPrefix, prefix, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const maxInvoiceID = `SELECT COALESCE(max(id), 0)::bigint FROM invoices`

func (q *Queries) MaxInvoiceID(ctx context.Context) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, maxInvoiceID).Scan(&id)
	return id, err
}

const customerHasInvoices = `SELECT EXISTS (SELECT 1 FROM invoices WHERE customer_id = $1)`

func (q *Queries) CustomerHasInvoices(ctx context.Context, customerID int64) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, customerHasInvoices, customerID).Scan(&ok)
	return ok, err
}
