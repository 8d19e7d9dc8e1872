package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/events"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/numbering"
	"github.com/noah-isme/invoice-manager/internal/store"
)

var clock = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type memStore struct {
	customers map[int64]store.Customer
	products  map[int64]store.Product
	invoices  map[int64]store.Invoice
	items     map[int64][]store.InvoiceItem
	payments  map[int64][]store.Payment

	// reserved numbers collide once and then become visible, as if another
	// request had committed them concurrently.
	reserved       map[string]bool
	visible        []string
	alwaysConflict bool

	nextCustomer, nextInvoice, nextItem, nextPayment int64
}

func newMemStore() *memStore {
	return &memStore{
		customers:    map[int64]store.Customer{},
		products:     map[int64]store.Product{},
		invoices:     map[int64]store.Invoice{},
		items:        map[int64][]store.InvoiceItem{},
		payments:     map[int64][]store.Payment{},
		reserved:     map[string]bool{},
		nextCustomer: 1, nextInvoice: 1, nextItem: 1, nextPayment: 1,
	}
}

func numberTaken() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: store.InvoiceNumberConstraint}
}

func (m *memStore) numberInUse(number string, except int64) bool {
	for id, inv := range m.invoices {
		if id != except && inv.InvoiceNumber == number {
			return true
		}
	}
	return false
}

func (m *memStore) apply(inv *store.Invoice, arg store.InvoiceParams) {
	inv.InvoiceNumber = arg.InvoiceNumber
	inv.CustomerID = arg.CustomerID
	inv.Status = arg.Status
	inv.IssueDate = arg.IssueDate
	inv.DueDate = arg.DueDate
	inv.Notes = arg.Notes
	inv.SubtotalAmount = arg.SubtotalAmount
	inv.TaxRate = arg.TaxRate
	inv.TaxAmount = arg.TaxAmount
	inv.TotalAmount = arg.TotalAmount
	inv.BalanceDue = arg.BalanceDue
	inv.UpdatedAt = clock
}

func (m *memStore) CreateInvoice(_ context.Context, arg store.InvoiceParams) (int64, error) {
	if m.alwaysConflict || m.numberInUse(arg.InvoiceNumber, 0) {
		return 0, numberTaken()
	}
	if m.reserved[arg.InvoiceNumber] {
		delete(m.reserved, arg.InvoiceNumber)
		m.visible = append(m.visible, arg.InvoiceNumber)
		return 0, numberTaken()
	}
	inv := store.Invoice{ID: m.nextInvoice, CreatedAt: clock}
	m.apply(&inv, arg)
	m.invoices[inv.ID] = inv
	m.nextInvoice++
	return inv.ID, nil
}

func (m *memStore) UpdateInvoice(_ context.Context, id int64, arg store.InvoiceParams) error {
	inv, ok := m.invoices[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if m.numberInUse(arg.InvoiceNumber, id) {
		return numberTaken()
	}
	m.apply(&inv, arg)
	m.invoices[id] = inv
	return nil
}

func (m *memStore) GetInvoice(_ context.Context, id int64) (store.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return store.Invoice{}, pgx.ErrNoRows
	}
	inv.CustomerName = m.customers[inv.CustomerID].Name
	return inv, nil
}

func (m *memStore) GetInvoiceForUpdate(ctx context.Context, id int64) (store.Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *memStore) GetInvoiceIDByNumber(_ context.Context, number string) (int64, error) {
	for id, inv := range m.invoices {
		if inv.InvoiceNumber == number {
			return id, nil
		}
	}
	return 0, pgx.ErrNoRows
}

func (m *memStore) filtered(arg store.ListInvoicesParams) []store.Invoice {
	out := []store.Invoice{}
	for id := int64(1); id < m.nextInvoice; id++ {
		inv, ok := m.invoices[id]
		if !ok {
			continue
		}
		switch arg.Filter {
		case "all":
		case "open":
			if inv.Status == "paid" || inv.Status == "cancelled" {
				continue
			}
		case "overdue":
			late := inv.Status == "sent" && inv.DueDate != nil && inv.DueDate.Before(arg.Today)
			if inv.Status != "overdue" && !late {
				continue
			}
		default:
			if inv.Status != arg.Filter {
				continue
			}
		}
		if arg.CustomerID != nil && inv.CustomerID != *arg.CustomerID {
			continue
		}
		inv.CustomerName = m.customers[inv.CustomerID].Name
		out = append(out, inv)
	}
	return out
}

func (m *memStore) ListInvoices(_ context.Context, arg store.ListInvoicesParams) ([]store.Invoice, error) {
	rows := m.filtered(arg)
	start := int(arg.Offset)
	if start > len(rows) {
		start = len(rows)
	}
	end := start + int(arg.Limit)
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], nil
}

func (m *memStore) CountInvoices(_ context.Context, arg store.ListInvoicesParams) (int64, error) {
	return int64(len(m.filtered(arg))), nil
}

func (m *memStore) DeleteInvoice(_ context.Context, id int64) (int64, error) {
	if _, ok := m.invoices[id]; !ok {
		return 0, nil
	}
	delete(m.invoices, id)
	delete(m.items, id)
	delete(m.payments, id)
	return 1, nil
}

func (m *memStore) InvoiceNumbersWithPrefix(_ context.Context, prefix string, limit int32) ([]string, error) {
	all := append([]string{}, m.visible...)
	for _, inv := range m.invoices {
		all = append(all, inv.InvoiceNumber)
	}
	out := []string{}
	for _, n := range all {
		rest, ok := strings.CutPrefix(n, prefix)
		if ok && rest != "" && strings.Trim(rest, "0123456789") == "" {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] > out[j]
	})
	if len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MaxInvoiceID(context.Context) (int64, error) {
	return m.nextInvoice - 1, nil
}

func (m *memStore) CustomerHasInvoices(_ context.Context, customerID int64) (bool, error) {
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateInvoiceItem(_ context.Context, arg store.CreateInvoiceItemParams) (store.InvoiceItem, error) {
	// NUMERIC(12,2) columns
	it := store.InvoiceItem{
		ID: m.nextItem, InvoiceID: arg.InvoiceID, ProductID: arg.ProductID, Description: arg.Description,
		Quantity: arg.Quantity.Round2(), UnitPrice: arg.UnitPrice.Round2(), LineTotal: arg.LineTotal.Round2(),
		Position: arg.Position,
	}
	m.nextItem++
	m.items[arg.InvoiceID] = append(m.items[arg.InvoiceID], it)
	return it, nil
}

func (m *memStore) DeleteInvoiceItems(_ context.Context, invoiceID int64) error {
	delete(m.items, invoiceID)
	return nil
}

func (m *memStore) ListInvoiceItems(_ context.Context, invoiceID int64) ([]store.InvoiceItem, error) {
	return append([]store.InvoiceItem{}, m.items[invoiceID]...), nil
}

func (m *memStore) CreatePayment(_ context.Context, arg store.CreatePaymentParams) (store.Payment, error) {
	p := store.Payment{
		ID: m.nextPayment, InvoiceID: arg.InvoiceID, Amount: arg.Amount, PaymentDate: arg.PaymentDate,
		Method: arg.Method, ExternalReference: arg.ExternalReference, CreatedAt: clock,
	}
	m.nextPayment++
	m.payments[arg.InvoiceID] = append(m.payments[arg.InvoiceID], p)
	return p, nil
}

func (m *memStore) ListPayments(_ context.Context, invoiceID int64) ([]store.Payment, error) {
	return append([]store.Payment{}, m.payments[invoiceID]...), nil
}

func (m *memStore) DeletePayment(_ context.Context, invoiceID, paymentID int64) (int64, error) {
	list := m.payments[invoiceID]
	for i, p := range list {
		if p.ID == paymentID {
			m.payments[invoiceID] = append(list[:i:i], list[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memStore) GetProduct(_ context.Context, id int64) (store.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memStore) CreateCustomer(_ context.Context, p store.CustomerParams) (store.Customer, error) {
	c := store.Customer{ID: m.nextCustomer, Name: p.Name, TaxRate: p.TaxRate, UsesDefaultTax: p.UsesDefaultTax}
	m.customers[c.ID] = c
	m.nextCustomer++
	return c, nil
}

func (m *memStore) UpdateCustomer(_ context.Context, id int64, p store.CustomerParams) (store.Customer, error) {
	c := store.Customer{ID: id, Name: p.Name, TaxRate: p.TaxRate, UsesDefaultTax: p.UsesDefaultTax}
	m.customers[id] = c
	return c, nil
}

func (m *memStore) GetCustomer(_ context.Context, id int64) (store.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return store.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) GetCustomerByName(_ context.Context, name string) (store.Customer, error) {
	for _, c := range m.customers {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return store.Customer{}, pgx.ErrNoRows
}

func (m *memStore) ListCustomers(context.Context, store.ListCustomersParams) ([]store.Customer, error) {
	return nil, nil
}

func (m *memStore) CountCustomers(context.Context, string) (int64, error) {
	return int64(len(m.customers)), nil
}

func (m *memStore) DeleteCustomer(_ context.Context, id int64) (int64, error) {
	delete(m.customers, id)
	return 1, nil
}

// customerTx undoes customer inserts when fn fails, the part of a rollback
// these tests look at.
type customerTx struct{ st *memStore }

func (tx customerTx) InTx(_ context.Context, fn func(Store) error) error {
	saved, next := maps.Clone(tx.st.customers), tx.st.nextCustomer
	if err := fn(tx.st); err != nil {
		tx.st.customers, tx.st.nextCustomer = saved, next
		return err
	}
	return nil
}

type fakeSettings struct {
	row store.Settings
}

func (f *fakeSettings) GetSettings(context.Context) (store.Settings, error) {
	return f.row, nil
}

type eventLog struct {
	topics []string
}

func (l *eventLog) InsertDomainEvent(_ context.Context, arg store.InsertDomainEventParams) (store.DomainEvent, error) {
	l.topics = append(l.topics, arg.Topic)
	return store.DomainEvent{Topic: arg.Topic, AggregateID: arg.AggregateID, Payload: arg.Payload}, nil
}

type fixture struct {
	st       *memStore
	svc      *Service
	settings *fakeSettings
	events   *eventLog
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	five := money.MustParse("5.00")
	st.customers[1] = store.Customer{ID: 1, Name: "Acme", UsesDefaultTax: true}
	st.customers[2] = store.Customer{ID: 2, Name: "Export Co", TaxRate: &five}
	st.nextCustomer = 3
	st.products[7] = store.Product{ID: 7, Name: "Widget", UnitPrice: money.MustParse("12.50"), Active: true}

	cfg := &fakeSettings{row: store.Settings{DefaultTaxRate: money.MustParse("20.00"), PaymentTermsDays: 30}}
	log := &eventLog{}
	now := func() time.Time { return clock }
	svc := &Service{
		Store:    st,
		Settings: cfg,
		Numbers:  &numbering.Allocator{Store: st, Now: now},
		Events:   &events.Bus{Store: log},
		Now:      now,
	}

	h := &Handler{Service: svc}
	r := chi.NewRouter()
	r.Get("/invoices", h.List)
	r.Post("/invoices", h.Create)
	r.Get("/invoices/{id}", h.Get)
	r.Get("/invoices/{id}/pdf", h.PDF)
	r.Put("/invoices/{id}", h.Update)
	r.Delete("/invoices/{id}", h.Delete)
	r.Post("/invoices/{id}/payments", h.AddPayment)
	r.Delete("/invoices/{id}/payments/{paymentID}", h.DeletePayment)
	return &fixture{st: st, svc: svc, settings: cfg, events: log, router: r}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) View {
	t.Helper()
	var body struct {
		Data View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Data
}

const scenarioA = `{"customer_id":1,"status":"sent","due_date":"2025-04-01",
	"items":[{"description":"Consulting","quantity":2,"unit_price":"50.00"}]}`

func TestCreateScenarioA(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/invoices", scenarioA)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "/api/v1/invoices/1", rr.Header().Get("Location"))

	body := rr.Body.String()
	for _, frag := range []string{
		`"invoice_number":"INV-0001"`, `"customer_name":"Acme"`, `"issue_date":"2025-03-10"`,
		`"due_date":"2025-04-01"`, `"subtotal_amount":100.00`, `"tax_rate":20.00`, `"tax_amount":20.00`,
		`"total_amount":120.00`, `"balance_due":120.00`, `"status":"sent"`, `"line_total":100.00`, `"payments":[]`,
	} {
		require.Contains(t, body, frag)
	}
	require.Equal(t, []string{events.TopicInvoiceCreated}, f.events.topics)
}

func TestCreateFillsDefaults(t *testing.T) {
	f := newFixture(t)
	f.settings.row.UseGlobalPaymentTerms = true

	rr := f.do(t, http.MethodPost, "/invoices", `{"customer_id":2,"items":[
		{"product_id":7},
		{"description":"","quantity":0,"unit_price":0},
		{"description":"Setup","quantity":"1","unit_price":"10"}
	],"payments":[{"amount":0},{"amount":"-5"}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	v := decodeView(t, rr)
	require.Equal(t, "draft", v.Status)
	require.Equal(t, "2025-03-10", v.IssueDate.Format(common.DateLayout))
	require.NotNil(t, v.DueDate)
	require.Equal(t, "2025-04-09", v.DueDate.Format(common.DateLayout))
	require.Equal(t, "5.00", v.TaxRate.String())
	require.Len(t, v.Items, 2)
	require.Equal(t, "Widget", v.Items[0].Description)
	require.Equal(t, "12.50", v.Items[0].LineTotal.String())
	require.Equal(t, int64(7), *v.Items[0].ProductID)
	require.Equal(t, "22.50", v.SubtotalAmount.String())
	require.Equal(t, "1.13", v.TaxAmount.String())
	require.Equal(t, "23.63", v.TotalAmount.String())
	require.Empty(t, v.Payments)
}

func TestCreateWithoutTermsHasNoDueDate(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/invoices", `{"customer_id":1,"items":[]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"due_date":null`)
	require.Contains(t, rr.Body.String(), `"total_amount":0.00`)
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"no customer":      `{"items":[]}`,
		"unknown customer": `{"customer_id":99}`,
		"bad status":       `{"customer_id":1,"status":"archived"}`,
		"tax too high":     `{"customer_id":1,"tax_rate":101}`,
		"bad date":         `{"customer_id":1,"issue_date":"10/03/2025"}`,
		"unknown product":  `{"customer_id":1,"items":[{"product_id":42}]}`,
		"negative qty":     `{"customer_id":1,"items":[{"description":"x","quantity":-1,"unit_price":1}]}`,
		"unknown field":    `{"customer_id":1,"colour":"red"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/invoices", body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
	require.Empty(t, f.st.invoices)
}

func TestCreateRequiresItemsWhenConfigured(t *testing.T) {
	f := newFixture(t)
	f.svc.RequireItems = true
	rr := f.do(t, http.MethodPost, "/invoices", `{"customer_id":1,"items":[{"description":"  "}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "at least one item required")
}

func TestCreateFindsOrCreatesCustomerByName(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/invoices", `{"customer":{"name":"New Client"},"items":[]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	v := decodeView(t, rr)
	require.Equal(t, int64(3), v.CustomerID)
	require.Equal(t, "New Client", v.CustomerName)
	require.Equal(t, "20.00", v.TaxRate.String())

	rr = f.do(t, http.MethodPost, "/invoices", `{"customer":{"name":"acme"},"items":[]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, int64(1), decodeView(t, rr).CustomerID)
}

func TestRejectedCreateLeavesNoCustomer(t *testing.T) {
	f := newFixture(t)
	f.svc.RequireItems = true
	f.svc.Tx = customerTx{st: f.st}

	rr := f.do(t, http.MethodPost, "/invoices", `{"customer":{"name":"Ghost Ltd"},"items":[]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "at least one item required")
	require.Len(t, f.st.customers, 2)

	rr = f.do(t, http.MethodPost, "/invoices", `{"customer":{"name":"Ghost Ltd"},"items":[{"product_id":99}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Len(t, f.st.customers, 2)

	body := `{"customer":{"name":"Ghost Ltd"},"items":[{"description":"Setup","quantity":1,"unit_price":10}]}`
	f.st.alwaysConflict = true
	rr = f.do(t, http.MethodPost, "/invoices", body)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Len(t, f.st.customers, 2)

	f.st.alwaysConflict = false
	rr = f.do(t, http.MethodPost, "/invoices", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Len(t, f.st.customers, 3)
	require.Equal(t, "Ghost Ltd", decodeView(t, rr).CustomerName)
}

func TestItemsArePricedAtStoredScale(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/invoices", `{"customer_id":1,"status":"sent",
		"items":[{"description":"Bolts","quantity":3,"unit_price":"0.335"}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	v := decodeView(t, rr)
	require.Equal(t, "0.34", v.Items[0].UnitPrice.String())
	require.Equal(t, "1.02", v.Items[0].LineTotal.String())
	require.Equal(t, "1.02", v.SubtotalAmount.String())
	require.Equal(t, "1.22", v.TotalAmount.String())

	rr = f.do(t, http.MethodPost, "/invoices/1/payments", `{"amount":"0.01"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	v = decodeView(t, rr)
	require.Equal(t, "1.02", v.SubtotalAmount.String())
	require.Equal(t, "1.22", v.TotalAmount.String())
	require.Equal(t, "1.21", v.BalanceDue.String())
	require.Equal(t, v.SubtotalAmount.String(), v.Items[0].LineTotal.String())
}

func TestExplicitNumberConflict(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", `{"customer_id":1,"invoice_number":"ACME-1"}`).Code)
	rr := f.do(t, http.MethodPost, "/invoices", `{"customer_id":1,"invoice_number":"ACME-1"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "INVOICE_NUMBER_TAKEN")
}

func TestAllocationRetriesOnceOnCollision(t *testing.T) {
	f := newFixture(t)
	f.st.reserved["INV-0001"] = true

	rr := f.do(t, http.MethodPost, "/invoices", `{"customer_id":1}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "INV-0002", decodeView(t, rr).InvoiceNumber)

	f.st.alwaysConflict = true
	rr = f.do(t, http.MethodPost, "/invoices", `{"customer_id":1}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "NUMBER_CONFLICT")
}

func TestAllocationSkipsHandEnteredNumbers(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", `{"customer_id":1,"invoice_number":"INV-0041"}`).Code)
	for i := 0; i < 60; i++ {
		body := fmt.Sprintf(`{"customer_id":1,"invoice_number":"INV-manual-entry-%02d"}`, i)
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", body).Code)
	}

	rr := f.do(t, http.MethodPost, "/invoices", `{"customer_id":1}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "INV-0042", decodeView(t, rr).InvoiceNumber)
}

func TestPaymentsDriveStatus(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", scenarioA).Code)

	rr := f.do(t, http.MethodPost, "/invoices/1/payments", `{"amount":"120.00","payment_date":"2025-03-11","method":"bank"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	v := decodeView(t, rr)
	require.Equal(t, "paid", v.Status)
	require.Equal(t, "0.00", v.BalanceDue.String())
	require.Len(t, v.Payments, 1)
	require.Equal(t, "2025-03-11", v.Payments[0].PaymentDate.Format(common.DateLayout))

	rr = f.do(t, http.MethodDelete, "/invoices/1/payments/1", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v = decodeView(t, rr)
	require.Equal(t, "sent", v.Status)
	require.Equal(t, "120.00", v.BalanceDue.String())

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/invoices/1/payments/1", "").Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/invoices/1/payments", `{"amount":0}`).Code)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/invoices/9/payments", `{"amount":1}`).Code)

	require.Equal(t, []string{events.TopicInvoiceCreated, events.TopicPaymentRecorded, events.TopicInvoiceUpdated}, f.events.topics)
}

func TestOverdueUntilSettled(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/invoices", `{"customer_id":1,"status":"sent","due_date":"2025-03-01",
		"items":[{"description":"Late","quantity":1,"unit_price":100}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "overdue", decodeView(t, rr).Status)

	rr = f.do(t, http.MethodPost, "/invoices/1/payments", `{"amount":20}`)
	require.Equal(t, "overdue", decodeView(t, rr).Status)
	require.Equal(t, "100.00", decodeView(t, rr).BalanceDue.String())

	rr = f.do(t, http.MethodPost, "/invoices/1/payments", `{"amount":150}`)
	v := decodeView(t, rr)
	require.Equal(t, "paid", v.Status)
	require.Equal(t, "-50.00", v.BalanceDue.String())
}

func TestUpdateAppliesPresentFieldsOnly(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", scenarioA).Code)

	rr := f.do(t, http.MethodPut, "/invoices/1", `{"notes":" thanks "}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v := decodeView(t, rr)
	require.Equal(t, "thanks", v.Notes)
	require.Len(t, v.Items, 1)
	require.Equal(t, "120.00", v.TotalAmount.String())
	require.Equal(t, "2025-04-01", v.DueDate.Format(common.DateLayout))

	// a new customer without tax_rate re-resolves the rate
	v = decodeView(t, f.do(t, http.MethodPut, "/invoices/1", `{"customer_id":2}`))
	require.Equal(t, "5.00", v.TaxRate.String())
	require.Equal(t, "105.00", v.TotalAmount.String())

	v = decodeView(t, f.do(t, http.MethodPut, "/invoices/1", `{"customer_id":1,"tax_rate":0}`))
	require.Equal(t, "0.00", v.TaxRate.String())
	require.Equal(t, "100.00", v.TotalAmount.String())

	v = decodeView(t, f.do(t, http.MethodPut, "/invoices/1", `{"items":[{"description":"A","quantity":1,"unit_price":10}],"due_date":null}`))
	require.Len(t, v.Items, 1)
	require.Equal(t, "A", v.Items[0].Description)
	require.Equal(t, "10.00", v.TotalAmount.String())
	require.Nil(t, v.DueDate)
	require.Len(t, f.st.items[1], 1)

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodPut, "/invoices/9", `{"notes":"x"}`).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/invoices/1", `{"status":""}`).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/invoices/1", `{"invoice_number":" "}`).Code)
}

func TestCancelledSurvivesPayments(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", scenarioA).Code)
	require.Equal(t, "cancelled", decodeView(t, f.do(t, http.MethodPut, "/invoices/1", `{"status":"cancelled"}`)).Status)

	v := decodeView(t, f.do(t, http.MethodPost, "/invoices/1/payments", `{"amount":120}`))
	require.Equal(t, "cancelled", v.Status)
	require.Equal(t, "0.00", v.BalanceDue.String())
}

func TestUpdateRejectsDuplicateNumber(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", `{"customer_id":1}`).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", `{"customer_id":1}`).Code)
	rr := f.do(t, http.MethodPut, "/invoices/2", `{"invoice_number":"INV-0001"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "INV-0002", f.st.invoices[2].InvoiceNumber)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", `{"customer_id":1}`).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", scenarioA).Code)
	paid := `{"customer_id":2,"status":"sent","items":[{"description":"x","quantity":1,"unit_price":100}],"payments":[{"amount":105}]}`
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", paid).Code)

	count := func(query string) int {
		rr := f.do(t, http.MethodGet, "/invoices"+query, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var body struct {
			Data       []Summary         `json:"data"`
			Pagination common.Pagination `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, rr.Header().Get("X-Total-Count"), jsonInt(body.Pagination.TotalItems))
		return len(body.Data)
	}
	require.Equal(t, 3, count(""))
	require.Equal(t, 2, count("?status=open"))
	require.Equal(t, 1, count("?status=paid"))
	require.Equal(t, 1, count("?status=draft"))
	require.Equal(t, 1, count("?status=all&customer_id=2"))
	require.Equal(t, 1, count("?limit=1&page=2"))
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/invoices?status=late", "").Code)
}

func TestListDerivesOverdueFromDueDate(t *testing.T) {
	f := newFixture(t)
	sent := `{"customer_id":1,"status":"sent","due_date":"2025-03-20","items":[{"description":"x","quantity":1,"unit_price":10}]}`
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", sent).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", `{"customer_id":1,"due_date":"2025-03-20"}`).Code)

	list := func() []Summary {
		rr := f.do(t, http.MethodGet, "/invoices?status=overdue", "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var body struct {
			Data []Summary `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, jsonInt(len(body.Data)), rr.Header().Get("X-Total-Count"))
		return body.Data
	}
	require.Empty(t, list())

	// no write happens between the due date passing and the list call
	f.svc.Now = func() time.Time { return time.Date(2025, 3, 21, 8, 0, 0, 0, time.UTC) }
	rows := list()
	require.Len(t, rows, 1)
	require.Equal(t, "INV-0001", rows[0].InvoiceNumber)
	require.Equal(t, "overdue", rows[0].Status)
	require.Equal(t, "sent", f.st.invoices[1].Status)
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestDeleteInvoice(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", scenarioA).Code)
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/invoices/1", "").Code)
	require.Empty(t, f.st.items)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/invoices/1", "").Code)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/invoices/1", "").Code)
}

func TestRecordPaymentByNumber(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", scenarioA).Code)

	v, p, err := f.svc.RecordPaymentByNumber(context.Background(), "INV-0001", PaymentInput{Amount: money.MustParse("20"), ExternalReference: "tx-1"}, SourceWebhook)
	require.NoError(t, err)
	require.Equal(t, "100.00", v.BalanceDue.String())
	require.Equal(t, "tx-1", p.ExternalReference)
	require.Equal(t, "2025-03-10", p.PaymentDate.Format(common.DateLayout))

	_, _, err = f.svc.RecordPaymentByNumber(context.Background(), "INV-9999", PaymentInput{Amount: money.FromInt(1)}, SourceWebhook)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestNilServiceIsReported(t *testing.T) {
	rr := httptest.NewRecorder()
	(&Handler{}).List(rr, httptest.NewRequest(http.MethodGet, "/invoices", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
