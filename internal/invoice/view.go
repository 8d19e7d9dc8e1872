package invoice

import (
	"time"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// Summary is the invoice header as listed.
type Summary struct {
	ID             int64        `json:"id"`
	InvoiceNumber  string       `json:"invoice_number"`
	CustomerID     int64        `json:"customer_id"`
	CustomerName   string       `json:"customer_name"`
	IssueDate      common.Date  `json:"issue_date"`
	DueDate        *common.Date `json:"due_date"`
	Status         string       `json:"status"`
	Notes          string       `json:"notes"`
	SubtotalAmount money.Amount `json:"subtotal_amount"`
	TaxRate        money.Amount `json:"tax_rate"`
	TaxAmount      money.Amount `json:"tax_amount"`
	TotalAmount    money.Amount `json:"total_amount"`
	BalanceDue     money.Amount `json:"balance_due"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// View is the full invoice document with its lines and payments.
type View struct {
	Summary
	Items    []ItemView    `json:"items"`
	Payments []PaymentView `json:"payments"`
}

type ItemView struct {
	ID          int64        `json:"id"`
	ProductID   *int64       `json:"product_id"`
	Description string       `json:"description"`
	Quantity    money.Amount `json:"quantity"`
	UnitPrice   money.Amount `json:"unit_price"`
	LineTotal   money.Amount `json:"line_total"`
}

type PaymentView struct {
	ID                int64        `json:"id"`
	InvoiceID         int64        `json:"invoice_id"`
	Amount            money.Amount `json:"amount"`
	PaymentDate       common.Date  `json:"payment_date"`
	Method            string       `json:"method"`
	ExternalReference string       `json:"external_reference"`
	CreatedAt         time.Time    `json:"created_at"`
}

// ToSummary converts a stored invoice row.
func ToSummary(inv store.Invoice) Summary {
	s := Summary{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		CustomerID:     inv.CustomerID,
		CustomerName:   inv.CustomerName,
		IssueDate:      common.Date{Time: inv.IssueDate},
		Status:         inv.Status,
		Notes:          inv.Notes,
		SubtotalAmount: inv.SubtotalAmount,
		TaxRate:        inv.TaxRate,
		TaxAmount:      inv.TaxAmount,
		TotalAmount:    inv.TotalAmount,
		BalanceDue:     inv.BalanceDue,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
	if inv.DueDate != nil {
		s.DueDate = &common.Date{Time: *inv.DueDate}
	}
	return s
}

// ToView assembles the full invoice document.
func ToView(inv store.Invoice, items []store.InvoiceItem, payments []store.Payment) View {
	v := View{
		Summary:  ToSummary(inv),
		Items:    make([]ItemView, 0, len(items)),
		Payments: make([]PaymentView, 0, len(payments)),
	}
	for _, it := range items {
		v.Items = append(v.Items, ItemView{
			ID:          it.ID,
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	for _, p := range payments {
		v.Payments = append(v.Payments, toPaymentView(p))
	}
	return v
}

func toPaymentView(p store.Payment) PaymentView {
	return PaymentView{
		ID:                p.ID,
		InvoiceID:         p.InvoiceID,
		Amount:            p.Amount,
		PaymentDate:       common.Date{Time: p.PaymentDate},
		Method:            p.Method,
		ExternalReference: p.ExternalReference,
		CreatedAt:         p.CreatedAt,
	}
}
