package store

import (
	"context"
	"time"

	"github.com/noah-isme/invoice-manager/internal/money"
)

// Querier lists every query Queries implements. Services depend on narrower
// interfaces; this one exists for wiring and compile time checks.
type Querier interface {
	CountUsers(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, error)

	CreateCustomer(ctx context.Context, arg CustomerParams) (Customer, error)
	UpdateCustomer(ctx context.Context, id int64, arg CustomerParams) (Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	GetCustomerByName(ctx context.Context, name string) (Customer, error)
	ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error)
	CountCustomers(ctx context.Context, search string) (int64, error)
	DeleteCustomer(ctx context.Context, id int64) (int64, error)

	CreateProduct(ctx context.Context, arg ProductParams) (Product, error)
	UpdateProduct(ctx context.Context, id int64, arg ProductParams) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error)
	CountProducts(ctx context.Context, activeOnly bool) (int64, error)
	DeleteProduct(ctx context.Context, id int64) (int64, error)

	GetSettings(ctx context.Context) (Settings, error)
	EnsureSettings(ctx context.Context, defaultTaxRate money.Amount) (Settings, error)
	UpdateSettings(ctx context.Context, s Settings) (Settings, error)

	CreateAPIKey(ctx context.Context, arg CreateAPIKeyParams) (APIKey, error)
	GetAPIKeyByKeyID(ctx context.Context, keyID string) (APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	CountAPIKeys(ctx context.Context) (int64, error)
	SetAPIKeyActive(ctx context.Context, id int64, active bool) (APIKey, error)
	TouchAPIKey(ctx context.Context, id int64, at time.Time) error

	CreateInvoice(ctx context.Context, arg InvoiceParams) (int64, error)
	UpdateInvoice(ctx context.Context, id int64, arg InvoiceParams) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	GetInvoiceIDByNumber(ctx context.Context, number string) (int64, error)
	ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error)
	CountInvoices(ctx context.Context, arg ListInvoicesParams) (int64, error)
	DeleteInvoice(ctx context.Context, id int64) (int64, error)
	InvoiceNumbersWithPrefix(ctx context.Context, prefix string, limit int32) ([]string, error)
	MaxInvoiceID(ctx context.Context) (int64, error)
	CustomerHasInvoices(ctx context.Context, customerID int64) (bool, error)

	CreateInvoiceItem(ctx context.Context, arg CreateInvoiceItemParams) (InvoiceItem, error)
	DeleteInvoiceItems(ctx context.Context, invoiceID int64) error
	ListInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error)
	CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	DeletePayment(ctx context.Context, invoiceID, paymentID int64) (int64, error)

	InsertDomainEvent(ctx context.Context, arg InsertDomainEventParams) (DomainEvent, error)
	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error
	ListAuditLogs(ctx context.Context, arg ListAuditLogsParams) ([]AuditLog, error)
}

var _ Querier = (*Queries)(nil)
