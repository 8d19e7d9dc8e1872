package store

import (
	"context"

	"github.com/noah-isme/invoice-manager/internal/money"
)

const settingsColumns = `default_tax_rate, payment_terms_days, use_global_payment_terms, brand_name, logo_url,
	currency_symbol, company_name, company_address, company_email, company_phone, company_vat_number,
	outbound_webhook_url, outbound_webhook_enabled, outbound_webhook_events, outbound_webhook_secret, updated_at`

func scanSettings(row interface{ Scan(...any) error }) (Settings, error) {
	var s Settings
	err := row.Scan(&s.DefaultTaxRate, &s.PaymentTermsDays, &s.UseGlobalPaymentTerms, &s.BrandName, &s.LogoURL,
		&s.CurrencySymbol, &s.CompanyName, &s.CompanyAddress, &s.CompanyEmail, &s.CompanyPhone, &s.CompanyVATNumber,
		&s.OutboundWebhookURL, &s.OutboundWebhookEnabled, &s.OutboundWebhookEvents, &s.OutboundWebhookSecret,
		&s.UpdatedAt)
	return s, err
}

const getSettings = `SELECT ` + settingsColumns + ` FROM settings WHERE id = 1`

func (q *Queries) GetSettings(ctx context.Context) (Settings, error) {
	return scanSettings(q.db.QueryRow(ctx, getSettings))
}

const ensureSettings = `WITH inserted AS (
	INSERT INTO settings (id, default_tax_rate) VALUES (1, $1)
	ON CONFLICT (id) DO NOTHING
	RETURNING ` + settingsColumns + `
)
SELECT * FROM inserted
UNION ALL
SELECT ` + settingsColumns + ` FROM settings WHERE id = 1 AND NOT EXISTS (SELECT 1 FROM inserted)`

// EnsureSettings returns the settings row, creating it with defaultTaxRate
// when it does not exist yet.
func (q *Queries) EnsureSettings(ctx context.Context, defaultTaxRate money.Amount) (Settings, error) {
	return scanSettings(q.db.QueryRow(ctx, ensureSettings, defaultTaxRate))
}

const updateSettings = `UPDATE settings SET default_tax_rate = $1, payment_terms_days = $2,
	use_global_payment_terms = $3, brand_name = $4, logo_url = $5, currency_symbol = $6, company_name = $7,
	company_address = $8, company_email = $9, company_phone = $10, company_vat_number = $11,
	outbound_webhook_url = $12, outbound_webhook_enabled = $13, outbound_webhook_events = $14,
	outbound_webhook_secret = $15, updated_at = now()
WHERE id = 1
RETURNING ` + settingsColumns

func (q *Queries) UpdateSettings(ctx context.Context, s Settings) (Settings, error) {
	return scanSettings(q.db.QueryRow(ctx, updateSettings, s.DefaultTaxRate, s.PaymentTermsDays,
		s.UseGlobalPaymentTerms, s.BrandName, s.LogoURL, s.CurrencySymbol, s.CompanyName, s.CompanyAddress,
		s.CompanyEmail, s.CompanyPhone, s.CompanyVATNumber, s.OutboundWebhookURL, s.OutboundWebhookEnabled,
		s.OutboundWebhookEvents, s.OutboundWebhookSecret))
}
