package store

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/invoice-manager/internal/money"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Customer struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Email          *string       `json:"email"`
	Phone          *string       `json:"phone"`
	AddressLine1   *string       `json:"address_line1"`
	AddressLine2   *string       `json:"address_line2"`
	City           *string       `json:"city"`
	Postcode       *string       `json:"postcode"`
	Country        *string       `json:"country"`
	TaxRate        *money.Amount `json:"tax_rate"`
	UsesDefaultTax bool          `json:"uses_default_tax"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type Product struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	UnitPrice   money.Amount `json:"unit_price"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Settings struct {
	DefaultTaxRate         money.Amount
	PaymentTermsDays       int32
	UseGlobalPaymentTerms  bool
	BrandName              string
	LogoURL                string
	CurrencySymbol         string
	CompanyName            string
	CompanyAddress         string
	CompanyEmail           string
	CompanyPhone           string
	CompanyVATNumber       string
	OutboundWebhookURL     string
	OutboundWebhookEnabled bool
	OutboundWebhookEvents  string
	OutboundWebhookSecret  string
	UpdatedAt              time.Time
}

type APIKey struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	KeyID      string     `json:"key_id"`
	KeyHash    string     `json:"-"`
	CanRead    bool       `json:"can_read"`
	CanWrite   bool       `json:"can_write"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

type Invoice struct {
	ID             int64
	InvoiceNumber  string
	CustomerID     int64
	CustomerName   string
	Status         string
	IssueDate      time.Time
	DueDate        *time.Time
	Notes          string
	SubtotalAmount money.Amount
	TaxRate        money.Amount
	TaxAmount      money.Amount
	TotalAmount    money.Amount
	BalanceDue     money.Amount
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type InvoiceItem struct {
	ID          int64
	InvoiceID   int64
	ProductID   *int64
	Description string
	Quantity    money.Amount
	UnitPrice   money.Amount
	LineTotal   money.Amount
	Position    int32
}

type Payment struct {
	ID                int64
	InvoiceID         int64
	Amount            money.Amount
	PaymentDate       time.Time
	Method            string
	ExternalReference string
	CreatedAt         time.Time
}

type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID int64
	Payload     json.RawMessage
	OccurredAt  time.Time
}

type AuditLog struct {
	ID           int64           `json:"id"`
	ActorKind    string          `json:"actor_kind"`
	ActorID      *string         `json:"actor_id"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   *string         `json:"resource_id"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        *string         `json:"route"`
	Status       int32           `json:"status"`
	IP           *string         `json:"ip"`
	UserAgent    *string         `json:"user_agent"`
	RequestID    *string         `json:"request_id"`
	Metadata     json.RawMessage `json:"metadata"`
	OccurredAt   time.Time       `json:"occurred_at"`
}
