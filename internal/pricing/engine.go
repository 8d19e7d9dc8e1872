// Package pricing holds the invoice arithmetic: tax resolution, due-date
// policy and the totals engine that derives subtotal, tax, total, balance
// and status from an invoice's items and payments.
package pricing

import (
	"time"

	"github.com/noah-isme/invoice-manager/internal/money"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusOverdue   Status = "overdue"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusOverdue, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Line is a priced invoice line.
type Line struct {
	Quantity  money.Amount
	UnitPrice money.Amount
	LineTotal money.Amount
}

// Invoice carries the inputs and derived fields of the totals engine.
type Invoice struct {
	Status   Status
	DueDate  *time.Time
	TaxRate  *money.Amount
	Items    []Line
	Payments []money.Amount

	Subtotal   money.Amount
	TaxAmount  money.Amount
	Total      money.Amount
	PaidTotal  money.Amount
	BalanceDue money.Amount
}

// Recalculate derives the monetary fields and status of inv in place.
// Line totals are rounded before they are summed. today is compared by
// calendar date only.
func Recalculate(inv *Invoice, today time.Time) {
	if inv == nil {
		return
	}
	lineTotals := make([]money.Amount, len(inv.Items))
	for i := range inv.Items {
		inv.Items[i].LineTotal = inv.Items[i].Quantity.Mul(inv.Items[i].UnitPrice).Round2()
		lineTotals[i] = inv.Items[i].LineTotal
	}
	inv.Subtotal = money.Sum(lineTotals...).Round2()

	rate := money.Zero
	if inv.TaxRate != nil {
		rate = *inv.TaxRate
	}
	inv.TaxAmount = inv.Subtotal.Percent(rate).Round2()
	inv.Total = inv.Subtotal.Add(inv.TaxAmount).Round2()
	inv.PaidTotal = money.Sum(inv.Payments...).Round2()
	inv.BalanceDue = inv.Total.Sub(inv.PaidTotal)

	inv.Status = nextStatus(inv, today)
}

func nextStatus(inv *Invoice, today time.Time) Status {
	switch inv.Status {
	case StatusCancelled, StatusDraft:
		return inv.Status
	}
	if inv.BalanceDue.Sign() <= 0 && inv.Total.IsPositive() {
		return StatusPaid
	}
	if inv.DueDate != nil && dateOnly(today).After(dateOnly(*inv.DueDate)) {
		return StatusOverdue
	}
	return StatusSent
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
