// Package invoice owns the invoice aggregate: header, lines and payments,
// kept consistent by recalculating totals inside one transaction per save.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/customer"
	"github.com/noah-isme/invoice-manager/internal/events"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/numbering"
	"github.com/noah-isme/invoice-manager/internal/obs"
	"github.com/noah-isme/invoice-manager/internal/pricing"
	"github.com/noah-isme/invoice-manager/internal/settings"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// Sources label how an invoice or payment entered the system.
const (
	SourceAPI     = "api"
	SourceImport  = "import"
	SourceWebhook = "webhook"
)

const maxDescriptionLen = 500

// Store is the subset of queries the invoice service needs.
type Store interface {
	CreateInvoice(ctx context.Context, arg store.InvoiceParams) (int64, error)
	UpdateInvoice(ctx context.Context, id int64, arg store.InvoiceParams) error
	GetInvoice(ctx context.Context, id int64) (store.Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (store.Invoice, error)
	GetInvoiceIDByNumber(ctx context.Context, number string) (int64, error)
	ListInvoices(ctx context.Context, arg store.ListInvoicesParams) ([]store.Invoice, error)
	CountInvoices(ctx context.Context, arg store.ListInvoicesParams) (int64, error)
	DeleteInvoice(ctx context.Context, id int64) (int64, error)
	CreateInvoiceItem(ctx context.Context, arg store.CreateInvoiceItemParams) (store.InvoiceItem, error)
	DeleteInvoiceItems(ctx context.Context, invoiceID int64) error
	ListInvoiceItems(ctx context.Context, invoiceID int64) ([]store.InvoiceItem, error)
	CreatePayment(ctx context.Context, arg store.CreatePaymentParams) (store.Payment, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]store.Payment, error)
	DeletePayment(ctx context.Context, invoiceID, paymentID int64) (int64, error)
	GetCustomer(ctx context.Context, id int64) (store.Customer, error)
	GetCustomerByName(ctx context.Context, name string) (store.Customer, error)
	CreateCustomer(ctx context.Context, arg store.CustomerParams) (store.Customer, error)
	GetProduct(ctx context.Context, id int64) (store.Product, error)
}

// SettingsReader loads the settings snapshot for one operation.
type SettingsReader interface {
	GetSettings(ctx context.Context) (store.Settings, error)
}

// Service implements invoice workflows. Tx may be nil, in which case writes
// run directly against Store.
type Service struct {
	Store        Store
	Tx           Transactor
	Settings     SettingsReader
	Numbers      *numbering.Allocator
	Events       *events.Bus
	RequireItems bool
	Now          func() time.Time
	Logger       zerolog.Logger
}

// ItemInput is one submitted invoice line.
type ItemInput struct {
	ProductID   *int64        `json:"product_id" validate:"omitempty,gt=0"`
	Description string        `json:"description"`
	Quantity    *money.Amount `json:"quantity"`
	UnitPrice   *money.Amount `json:"unit_price"`
}

// PaymentInput records money received against an invoice.
type PaymentInput struct {
	Amount            money.Amount `json:"amount"`
	PaymentDate       *common.Date `json:"payment_date"`
	Method            string       `json:"method" validate:"max=64"`
	ExternalReference string       `json:"external_reference" validate:"max=200"`
}

// CreateInput is the body of POST /invoices. Either CustomerID or Customer
// must be present; Customer is matched by name and created, in the invoice's
// transaction, when missing.
type CreateInput struct {
	CustomerID    *int64          `json:"customer_id" validate:"omitempty,gt=0"`
	Customer      *customer.Input `json:"customer"`
	InvoiceNumber string          `json:"invoice_number" validate:"max=64"`
	IssueDate     *common.Date    `json:"issue_date"`
	DueDate       *common.Date    `json:"due_date"`
	Status        string          `json:"status"`
	Notes         string          `json:"notes" validate:"max=5000"`
	TaxRate       *money.Amount   `json:"tax_rate"`
	Items         []ItemInput     `json:"items"`
	Payments      []PaymentInput  `json:"payments"`
}

// UpdateInput applies only the fields present in the request. Items, when
// present, replace the whole line set.
type UpdateInput struct {
	CustomerID    *int64              `json:"customer_id" validate:"omitempty,gt=0"`
	InvoiceNumber *string             `json:"invoice_number" validate:"omitempty,max=64"`
	IssueDate     *common.Date        `json:"issue_date"`
	DueDate       common.OptionalDate `json:"due_date"`
	Status        *string             `json:"status"`
	Notes         *string             `json:"notes" validate:"omitempty,max=5000"`
	TaxRate       *money.Amount       `json:"tax_rate"`
	Items         *[]ItemInput        `json:"items"`
}

// ListParams filters the invoice list. Status is "all", "open" or a status.
type ListParams struct {
	Status     string
	CustomerID *int64
	Limit      int
	Offset     int
}

// draft is an invoice held in memory between loading and persisting.
type draft struct {
	header   store.InvoiceParams
	items    []store.CreateInvoiceItemParams
	payments []money.Amount
}

func (d *draft) recalculate(today time.Time) {
	rate := d.header.TaxRate
	inv := pricing.Invoice{
		Status:   pricing.Status(d.header.Status),
		DueDate:  d.header.DueDate,
		TaxRate:  &rate,
		Items:    make([]pricing.Line, len(d.items)),
		Payments: d.payments,
	}
	for i, it := range d.items {
		inv.Items[i] = pricing.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	pricing.Recalculate(&inv, today)
	for i := range d.items {
		d.items[i].LineTotal = inv.Items[i].LineTotal
	}
	d.header.Status = string(inv.Status)
	d.header.SubtotalAmount = inv.Subtotal
	d.header.TaxAmount = inv.TaxAmount
	d.header.TotalAmount = inv.Total
	d.header.BalanceDue = inv.BalanceDue
}

// Create builds, prices and stores a new invoice, allocating a number unless
// the caller supplied one.
func (s *Service) Create(ctx context.Context, in CreateInput, source string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	ps, err := s.pricingSettings(ctx)
	if err != nil {
		return View{}, err
	}
	status, err := parseStatus(in.Status, pricing.StatusDraft)
	if err != nil {
		return View{}, err
	}
	items, err := s.buildItems(ctx, in.Items)
	if err != nil {
		return View{}, err
	}
	ref, err := s.customerRef(ctx, in.CustomerID, in.Customer)
	if err != nil {
		return View{}, err
	}
	rate := pricing.ResolveTaxRate(pricingCustomer(ref.row), ps)
	if in.TaxRate != nil {
		if rate, err = checkRate(*in.TaxRate); err != nil {
			return View{}, err
		}
	}
	today := s.today()
	issue := today
	if in.IssueDate != nil {
		issue = in.IssueDate.Time
	}

	d := draft{
		header: store.InvoiceParams{
			CustomerID: ref.row.ID,
			Status:     string(status),
			IssueDate:  issue,
			DueDate:    pricing.ResolveDueDate(issue, common.DatePtr(in.DueDate), ps),
			Notes:      strings.TrimSpace(in.Notes),
			TaxRate:    rate,
		},
		items: items,
	}
	payments := buildPayments(in.Payments, today)
	for _, p := range payments {
		d.payments = append(d.payments, p.Amount)
	}
	d.recalculate(today)

	var id int64
	insert := func(ctx context.Context, number string) error {
		d.header.InvoiceNumber = number
		return s.inTx(ctx, func(q Store) error {
			customerID, err := ref.ensure(ctx, q)
			if err != nil {
				return err
			}
			d.header.CustomerID = customerID
			newID, err := q.CreateInvoice(ctx, d.header)
			if err != nil {
				return fmt.Errorf("insert invoice: %w", err)
			}
			for _, it := range d.items {
				it.InvoiceID = newID
				if _, err := q.CreateInvoiceItem(ctx, it); err != nil {
					return fmt.Errorf("insert invoice item: %w", err)
				}
			}
			for _, p := range payments {
				p.InvoiceID = newID
				if _, err := q.CreatePayment(ctx, p); err != nil {
					return fmt.Errorf("insert payment: %w", err)
				}
			}
			id = newID
			return nil
		})
	}

	if number := strings.TrimSpace(in.InvoiceNumber); number != "" {
		if err := insert(ctx, number); err != nil {
			if store.IsUniqueViolation(err, store.InvoiceNumberConstraint) {
				return View{}, errNumberTaken
			}
			return View{}, err
		}
	} else {
		if s.Numbers == nil {
			return View{}, errors.New("invoice numbering not configured")
		}
		if _, err := s.Numbers.Allocate(ctx, insert); err != nil {
			return View{}, err
		}
	}

	view, err := s.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if obs.InvoicesCreatedTotal != nil {
		obs.InvoicesCreatedTotal.WithLabelValues(source).Inc()
	}
	if obs.PaymentsRecordedTotal != nil && len(payments) > 0 {
		obs.PaymentsRecordedTotal.WithLabelValues(source).Add(float64(len(payments)))
	}
	s.emit(ctx, events.TopicInvoiceCreated, id, view)
	return view, nil
}

var errNumberTaken = common.Conflict("INVOICE_NUMBER_TAKEN", "invoice number already exists")

// Update applies a partial change and recalculates.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	ps, err := s.pricingSettings(ctx)
	if err != nil {
		return View{}, err
	}
	var cust *store.Customer
	if in.CustomerID != nil {
		ref, err := s.customerRef(ctx, in.CustomerID, nil)
		if err != nil {
			return View{}, err
		}
		cust = &ref.row
	}
	var status pricing.Status
	if in.Status != nil {
		if status, err = parseStatus(*in.Status, ""); err != nil {
			return View{}, err
		}
	}
	var rate money.Amount
	if in.TaxRate != nil {
		if rate, err = checkRate(*in.TaxRate); err != nil {
			return View{}, err
		}
	}
	var number string
	if in.InvoiceNumber != nil {
		if number = strings.TrimSpace(*in.InvoiceNumber); number == "" {
			return View{}, common.Validation("invoice_number must not be empty")
		}
	}
	var items []store.CreateInvoiceItemParams
	if in.Items != nil {
		if items, err = s.buildItems(ctx, *in.Items); err != nil {
			return View{}, err
		}
	}
	today := s.today()

	err = s.inTx(ctx, func(q Store) error {
		cur, err := lockInvoice(ctx, q, id)
		if err != nil {
			return err
		}
		d, err := loadDraft(ctx, q, cur)
		if err != nil {
			return err
		}
		h := &d.header
		if number != "" {
			h.InvoiceNumber = number
		}
		if cust != nil && cust.ID != cur.CustomerID {
			h.CustomerID = cust.ID
			h.TaxRate = pricing.ResolveTaxRate(pricingCustomer(*cust), ps)
		}
		if in.TaxRate != nil {
			h.TaxRate = rate
		}
		if in.IssueDate != nil {
			h.IssueDate = in.IssueDate.Time
		}
		if in.DueDate.Set {
			h.DueDate = in.DueDate.Value
		}
		if in.Status != nil {
			h.Status = string(status)
		}
		if in.Notes != nil {
			h.Notes = strings.TrimSpace(*in.Notes)
		}
		if in.Items != nil {
			d.items = items
		}
		d.recalculate(today)

		if in.Items != nil {
			if err := q.DeleteInvoiceItems(ctx, id); err != nil {
				return fmt.Errorf("clear invoice items: %w", err)
			}
			for _, it := range d.items {
				it.InvoiceID = id
				if _, err := q.CreateInvoiceItem(ctx, it); err != nil {
					return fmt.Errorf("insert invoice item: %w", err)
				}
			}
		}
		if err := q.UpdateInvoice(ctx, id, d.header); err != nil {
			if store.IsUniqueViolation(err, store.InvoiceNumberConstraint) {
				return errNumberTaken
			}
			return fmt.Errorf("update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}

	view, err := s.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	s.emit(ctx, events.TopicInvoiceUpdated, id, view)
	return view, nil
}

// Get loads the full invoice document.
func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	inv, err := s.Store.GetInvoice(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return View{}, common.NotFound("invoice")
		}
		return View{}, fmt.Errorf("get invoice: %w", err)
	}
	items, err := s.Store.ListInvoiceItems(ctx, id)
	if err != nil {
		return View{}, fmt.Errorf("list invoice items: %w", err)
	}
	payments, err := s.Store.ListPayments(ctx, id)
	if err != nil {
		return View{}, fmt.Errorf("list payments: %w", err)
	}
	return ToView(inv, items, payments), nil
}

// List returns one page of invoice headers and the filtered total.
func (s *Service) List(ctx context.Context, p ListParams) ([]Summary, int64, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	filter := strings.ToLower(strings.TrimSpace(p.Status))
	switch {
	case filter == "":
		filter = "all"
	case filter == "all" || filter == "open":
	case pricing.Status(filter).Valid():
	default:
		return nil, 0, common.Validation("status must be all, open or an invoice status")
	}
	today := s.today()
	arg := store.ListInvoicesParams{Filter: filter, CustomerID: p.CustomerID, Today: today, Limit: int32(p.Limit), Offset: int32(p.Offset)}
	rows, err := s.Store.ListInvoices(ctx, arg)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	total, err := s.Store.CountInvoices(ctx, arg)
	if err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	out := make([]Summary, 0, len(rows))
	for _, inv := range rows {
		sum := ToSummary(inv)
		if pastDue(inv, today) {
			sum.Status = string(pricing.StatusOverdue)
		}
		out = append(out, sum)
	}
	return out, total, nil
}

// Delete removes an invoice; lines and payments cascade.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	n, err := s.Store.DeleteInvoice(ctx, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if n == 0 {
		return common.NotFound("invoice")
	}
	return nil
}

// AddPayment records a payment and recalculates the balance and status.
func (s *Service) AddPayment(ctx context.Context, id int64, in PaymentInput, source string) (View, PaymentView, error) {
	if err := s.ready(); err != nil {
		return View{}, PaymentView{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return View{}, PaymentView{}, err
	}
	amount := in.Amount.Round2()
	if !amount.IsPositive() {
		return View{}, PaymentView{}, common.Validation("amount must be greater than zero")
	}
	today := s.today()
	params := store.CreatePaymentParams{
		InvoiceID:         id,
		Amount:            amount,
		PaymentDate:       today,
		Method:            strings.TrimSpace(in.Method),
		ExternalReference: strings.TrimSpace(in.ExternalReference),
	}
	if in.PaymentDate != nil {
		params.PaymentDate = in.PaymentDate.Time
	}

	var payment store.Payment
	err := s.inTx(ctx, func(q Store) error {
		cur, err := lockInvoice(ctx, q, id)
		if err != nil {
			return err
		}
		if payment, err = q.CreatePayment(ctx, params); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return s.recalculateLocked(ctx, q, cur, today)
	})
	if err != nil {
		return View{}, PaymentView{}, err
	}

	view, err := s.Get(ctx, id)
	if err != nil {
		return View{}, PaymentView{}, err
	}
	if obs.PaymentsRecordedTotal != nil {
		obs.PaymentsRecordedTotal.WithLabelValues(source).Inc()
	}
	pv := toPaymentView(payment)
	s.emit(ctx, events.TopicPaymentRecorded, id, map[string]any{"invoice": view, "payment": pv})
	return view, pv, nil
}

// RecordPaymentByNumber is AddPayment addressed by invoice number.
func (s *Service) RecordPaymentByNumber(ctx context.Context, number string, in PaymentInput, source string) (View, PaymentView, error) {
	if err := s.ready(); err != nil {
		return View{}, PaymentView{}, err
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return View{}, PaymentView{}, common.Validation("invoice_number is required")
	}
	id, err := s.Store.GetInvoiceIDByNumber(ctx, number)
	if err != nil {
		if store.IsNotFound(err) {
			return View{}, PaymentView{}, common.NotFound("invoice")
		}
		return View{}, PaymentView{}, fmt.Errorf("find invoice: %w", err)
	}
	return s.AddPayment(ctx, id, in, source)
}

// DeletePayment removes a payment and recalculates, which can move a paid
// invoice back to sent or overdue.
func (s *Service) DeletePayment(ctx context.Context, id, paymentID int64) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	today := s.today()
	err := s.inTx(ctx, func(q Store) error {
		cur, err := lockInvoice(ctx, q, id)
		if err != nil {
			return err
		}
		n, err := q.DeletePayment(ctx, id, paymentID)
		if err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		if n == 0 {
			return common.NotFound("payment")
		}
		return s.recalculateLocked(ctx, q, cur, today)
	})
	if err != nil {
		return View{}, err
	}
	view, err := s.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	s.emit(ctx, events.TopicInvoiceUpdated, id, view)
	return view, nil
}

func (s *Service) recalculateLocked(ctx context.Context, q Store, cur store.Invoice, today time.Time) error {
	d, err := loadDraft(ctx, q, cur)
	if err != nil {
		return err
	}
	d.recalculate(today)
	if err := q.UpdateInvoice(ctx, cur.ID, d.header); err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

func lockInvoice(ctx context.Context, q Store, id int64) (store.Invoice, error) {
	inv, err := q.GetInvoiceForUpdate(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Invoice{}, common.NotFound("invoice")
		}
		return store.Invoice{}, fmt.Errorf("lock invoice: %w", err)
	}
	return inv, nil
}

func loadDraft(ctx context.Context, q Store, inv store.Invoice) (draft, error) {
	items, err := q.ListInvoiceItems(ctx, inv.ID)
	if err != nil {
		return draft{}, fmt.Errorf("list invoice items: %w", err)
	}
	payments, err := q.ListPayments(ctx, inv.ID)
	if err != nil {
		return draft{}, fmt.Errorf("list payments: %w", err)
	}
	d := draft{header: store.InvoiceParams{
		InvoiceNumber:  inv.InvoiceNumber,
		CustomerID:     inv.CustomerID,
		Status:         inv.Status,
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		Notes:          inv.Notes,
		SubtotalAmount: inv.SubtotalAmount,
		TaxRate:        inv.TaxRate,
		TaxAmount:      inv.TaxAmount,
		TotalAmount:    inv.TotalAmount,
		BalanceDue:     inv.BalanceDue,
	}}
	for _, it := range items {
		d.items = append(d.items, store.CreateInvoiceItemParams{
			InvoiceID:   it.InvoiceID,
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
			Position:    it.Position,
		})
	}
	for _, p := range payments {
		d.payments = append(d.payments, p.Amount)
	}
	return d, nil
}

// buildItems drops blank rows, fills product-only rows from the product and
// rounds quantity and unit price to the stored scale.
func (s *Service) buildItems(ctx context.Context, in []ItemInput) ([]store.CreateInvoiceItemParams, error) {
	out := make([]store.CreateInvoiceItemParams, 0, len(in))
	for i, it := range in {
		desc := strings.TrimSpace(it.Description)
		qty, price := money.Zero, money.Zero
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		if it.UnitPrice != nil {
			price = *it.UnitPrice
		}
		if it.ProductID == nil && desc == "" && qty.IsZero() && price.IsZero() {
			continue
		}
		if it.ProductID != nil {
			if *it.ProductID <= 0 {
				return nil, common.Validation(fmt.Sprintf("items[%d].product_id is invalid", i))
			}
			p, err := s.Store.GetProduct(ctx, *it.ProductID)
			if err != nil {
				if store.IsNotFound(err) {
					return nil, common.Validation(fmt.Sprintf("items[%d].product_id does not exist", i))
				}
				return nil, fmt.Errorf("get product: %w", err)
			}
			if desc == "" {
				desc = p.Name
			}
			if it.UnitPrice == nil {
				price = p.UnitPrice
			}
			if it.Quantity == nil {
				qty = money.FromInt(1)
			}
		}
		// columns are NUMERIC(12,2); price the line from what will be stored
		qty, price = qty.Round2(), price.Round2()
		if len(desc) > maxDescriptionLen {
			return nil, common.Validation(fmt.Sprintf("items[%d].description is too long", i))
		}
		if qty.IsNegative() {
			return nil, common.Validation(fmt.Sprintf("items[%d].quantity must not be negative", i))
		}
		out = append(out, store.CreateInvoiceItemParams{
			ProductID:   it.ProductID,
			Description: desc,
			Quantity:    qty,
			UnitPrice:   price,
			Position:    int32(len(out)),
		})
	}
	if s.RequireItems && len(out) == 0 {
		return nil, common.Validation("at least one item required")
	}
	return out, nil
}

// buildPayments keeps positive payments; others are ignored on create.
func buildPayments(in []PaymentInput, today time.Time) []store.CreatePaymentParams {
	out := make([]store.CreatePaymentParams, 0, len(in))
	for _, p := range in {
		amount := p.Amount.Round2()
		if !amount.IsPositive() {
			continue
		}
		date := today
		if p.PaymentDate != nil {
			date = p.PaymentDate.Time
		}
		out = append(out, store.CreatePaymentParams{
			Amount:            amount,
			PaymentDate:       date,
			Method:            strings.TrimSpace(p.Method),
			ExternalReference: strings.TrimSpace(p.ExternalReference),
		})
	}
	return out
}

// customerRef is the invoice's customer: an existing row, or a new one that
// ensure inserts inside the invoice transaction so a rejected invoice leaves
// no customer behind.
type customerRef struct {
	row    store.Customer
	create *store.CustomerParams
}

func (s *Service) customerRef(ctx context.Context, id *int64, in *customer.Input) (customerRef, error) {
	switch {
	case id != nil:
		c, err := s.Store.GetCustomer(ctx, *id)
		if err != nil {
			if store.IsNotFound(err) {
				return customerRef{}, common.Validation("customer_id does not exist")
			}
			return customerRef{}, fmt.Errorf("get customer: %w", err)
		}
		return customerRef{row: c}, nil
	case in != nil:
		params, err := customer.Prepare(*in)
		if err != nil {
			return customerRef{}, err
		}
		c, err := s.Store.GetCustomerByName(ctx, params.Name)
		if err == nil {
			return customerRef{row: c}, nil
		}
		if !store.IsNotFound(err) {
			return customerRef{}, fmt.Errorf("find customer: %w", err)
		}
		return customerRef{
			row:    store.Customer{Name: params.Name, TaxRate: params.TaxRate, UsesDefaultTax: params.UsesDefaultTax},
			create: &params,
		}, nil
	}
	return customerRef{}, common.Validation("customer_id or customer is required")
}

// ensure returns the customer id, inserting the pending customer through q.
// A concurrent insert of the same name is picked up instead of duplicated.
func (r customerRef) ensure(ctx context.Context, q Store) (int64, error) {
	if r.create == nil {
		return r.row.ID, nil
	}
	c, err := q.GetCustomerByName(ctx, r.create.Name)
	if err == nil {
		return c.ID, nil
	}
	if !store.IsNotFound(err) {
		return 0, fmt.Errorf("find customer: %w", err)
	}
	if c, err = q.CreateCustomer(ctx, *r.create); err != nil {
		return 0, fmt.Errorf("create customer: %w", err)
	}
	return c.ID, nil
}

func (s *Service) pricingSettings(ctx context.Context) (pricing.Settings, error) {
	row, err := s.Settings.GetSettings(ctx)
	if err != nil {
		return pricing.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings.Pricing(row), nil
}

func (s *Service) emit(ctx context.Context, topic string, id int64, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, id, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Int64("invoice_id", id).Msg("emit event failed")
	}
}

func (s *Service) inTx(ctx context.Context, fn func(Store) error) error {
	if s.Tx == nil {
		return fn(s.Store)
	}
	return s.Tx.InTx(ctx, fn)
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Settings == nil {
		return errors.New("invoice service not configured")
	}
	return nil
}

// pastDue reports a sent invoice whose due date passed without a write
// moving it to overdue.
func pastDue(inv store.Invoice, today time.Time) bool {
	return inv.Status == string(pricing.StatusSent) && inv.DueDate != nil && inv.DueDate.Before(today)
}

func (s *Service) today() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return common.DateOf(now().UTC())
}

func pricingCustomer(c store.Customer) *pricing.Customer {
	return &pricing.Customer{TaxRate: c.TaxRate, UsesDefaultTax: c.UsesDefaultTax}
}

func parseStatus(raw string, def pricing.Status) (pricing.Status, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" && def != "" {
		return def, nil
	}
	st := pricing.Status(raw)
	if !st.Valid() {
		return "", common.Validation("status must be one of draft, sent, overdue, paid, cancelled")
	}
	return st, nil
}

func checkRate(rate money.Amount) (money.Amount, error) {
	rate = rate.Round2()
	if rate.IsNegative() || rate.Cmp(money.FromInt(100)) > 0 {
		return money.Zero, common.Validation("tax_rate must be between 0 and 100")
	}
	return rate, nil
}
