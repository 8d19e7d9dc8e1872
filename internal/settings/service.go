// Package settings owns the single organisation settings row: tax and
// payment-term defaults, branding, company details and the outbound webhook
// configuration.
package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/events"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/notify"
	"github.com/noah-isme/invoice-manager/internal/pricing"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// DefaultTaxRate seeds a freshly created settings row.
var DefaultTaxRate = money.MustParse("20.00")

// Store is the subset of queries the settings service needs.
type Store interface {
	GetSettings(ctx context.Context) (store.Settings, error)
	EnsureSettings(ctx context.Context, defaultTaxRate money.Amount) (store.Settings, error)
	UpdateSettings(ctx context.Context, s store.Settings) (store.Settings, error)
}

// Service loads and updates settings.
type Service struct {
	Store  Store
	Cache  *Cache
	Logger zerolog.Logger
}

// GetSettings returns the settings row, creating it with defaults on first
// access.
func (s *Service) GetSettings(ctx context.Context) (store.Settings, error) {
	if cached, ok, err := s.Cache.Get(ctx); err != nil {
		s.Logger.Warn().Err(err).Msg("settings_cache_get_failed")
	} else if ok {
		return cached, nil
	}
	row, err := s.Store.GetSettings(ctx)
	if store.IsNotFound(err) {
		row, err = s.Store.EnsureSettings(ctx, DefaultTaxRate)
	}
	if err != nil {
		return store.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if err := s.Cache.Set(ctx, row); err != nil {
		s.Logger.Warn().Err(err).Msg("settings_cache_set_failed")
	}
	return row, nil
}

// Patch holds a partial settings update. Nil fields are left unchanged.
type Patch struct {
	DefaultTaxRate         *money.Amount `json:"default_tax_rate"`
	PaymentTermsDays       *int32        `json:"payment_terms_days" validate:"omitempty,min=0,max=3650"`
	UseGlobalPaymentTerms  *bool         `json:"use_global_payment_terms"`
	BrandName              *string       `json:"brand_name" validate:"omitempty,max=120"`
	LogoURL                *string       `json:"logo_url" validate:"omitempty,max=512"`
	CurrencySymbol         *string       `json:"currency_symbol" validate:"omitempty,max=8"`
	CompanyName            *string       `json:"company_name" validate:"omitempty,max=200"`
	CompanyAddress         *string       `json:"company_address" validate:"omitempty,max=1000"`
	CompanyEmail           *string       `json:"company_email" validate:"omitempty,max=200"`
	CompanyPhone           *string       `json:"company_phone" validate:"omitempty,max=64"`
	CompanyVATNumber       *string       `json:"company_vat_number" validate:"omitempty,max=64"`
	OutboundWebhookURL     *string       `json:"outbound_webhook_url" validate:"omitempty,max=512"`
	OutboundWebhookEnabled *bool         `json:"outbound_webhook_enabled"`
	OutboundWebhookEvents  []string      `json:"outbound_webhook_events"`
	OutboundWebhookSecret  *string       `json:"outbound_webhook_secret" validate:"omitempty,max=256"`
}

// Update applies p and stores the result.
func (s *Service) Update(ctx context.Context, p Patch) (store.Settings, error) {
	if err := common.ValidateStruct(p); err != nil {
		return store.Settings{}, err
	}
	cur, err := s.GetSettings(ctx)
	if err != nil {
		return store.Settings{}, err
	}
	next, err := apply(cur, p)
	if err != nil {
		return store.Settings{}, err
	}
	saved, err := s.Store.UpdateSettings(ctx, next)
	if err != nil {
		return store.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.Logger.Warn().Err(err).Msg("settings_cache_invalidate_failed")
	}
	return saved, nil
}

func apply(cur store.Settings, p Patch) (store.Settings, error) {
	next := cur
	if p.DefaultTaxRate != nil {
		rate := p.DefaultTaxRate.Round2()
		if rate.IsNegative() || rate.Cmp(money.FromInt(100)) > 0 {
			return store.Settings{}, common.Validation("default_tax_rate must be between 0 and 100")
		}
		next.DefaultTaxRate = rate
	}
	if p.PaymentTermsDays != nil {
		next.PaymentTermsDays = *p.PaymentTermsDays
	}
	if p.UseGlobalPaymentTerms != nil {
		next.UseGlobalPaymentTerms = *p.UseGlobalPaymentTerms
	}
	setString(&next.BrandName, p.BrandName)
	setString(&next.LogoURL, p.LogoURL)
	setString(&next.CurrencySymbol, p.CurrencySymbol)
	if next.CurrencySymbol == "" {
		next.CurrencySymbol = "£"
	}
	setString(&next.CompanyName, p.CompanyName)
	setString(&next.CompanyAddress, p.CompanyAddress)
	setString(&next.CompanyEmail, p.CompanyEmail)
	setString(&next.CompanyPhone, p.CompanyPhone)
	setString(&next.CompanyVATNumber, p.CompanyVATNumber)
	setString(&next.OutboundWebhookURL, p.OutboundWebhookURL)
	if next.OutboundWebhookURL != "" && p.OutboundWebhookURL != nil {
		if err := notify.ValidateURL(next.OutboundWebhookURL); err != nil {
			return store.Settings{}, common.Validation(err.Error())
		}
	}
	if p.OutboundWebhookEnabled != nil {
		next.OutboundWebhookEnabled = *p.OutboundWebhookEnabled
	}
	if p.OutboundWebhookEvents != nil {
		for _, t := range p.OutboundWebhookEvents {
			if len(events.ParseTopics(t)) != 1 {
				return store.Settings{}, common.Validation("unknown webhook event " + t).WithDetails(map[string]any{
					"allowed": events.DefaultTopics(),
				})
			}
		}
		next.OutboundWebhookEvents = events.JoinTopics(p.OutboundWebhookEvents)
	}
	if p.OutboundWebhookSecret != nil {
		next.OutboundWebhookSecret = *p.OutboundWebhookSecret
	}
	if next.OutboundWebhookEnabled && next.OutboundWebhookURL == "" {
		return store.Settings{}, common.Validation("outbound_webhook_url is required when the webhook is enabled")
	}
	return next, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Pricing converts the row into the snapshot the pricing functions take.
func Pricing(s store.Settings) pricing.Settings {
	rate := s.DefaultTaxRate
	return pricing.Settings{
		DefaultTaxRate:        &rate,
		PaymentTermsDays:      int(s.PaymentTermsDays),
		UseGlobalPaymentTerms: s.UseGlobalPaymentTerms,
	}
}

// View is the JSON representation. The webhook secret is never echoed.
type View struct {
	DefaultTaxRate         money.Amount `json:"default_tax_rate"`
	PaymentTermsDays       int32        `json:"payment_terms_days"`
	UseGlobalPaymentTerms  bool         `json:"use_global_payment_terms"`
	BrandName              string       `json:"brand_name"`
	LogoURL                string       `json:"logo_url"`
	CurrencySymbol         string       `json:"currency_symbol"`
	CompanyName            string       `json:"company_name"`
	CompanyAddress         string       `json:"company_address"`
	CompanyEmail           string       `json:"company_email"`
	CompanyPhone           string       `json:"company_phone"`
	CompanyVATNumber       string       `json:"company_vat_number"`
	OutboundWebhookURL     string       `json:"outbound_webhook_url"`
	OutboundWebhookEnabled bool         `json:"outbound_webhook_enabled"`
	OutboundWebhookEvents  []string     `json:"outbound_webhook_events"`
	OutboundWebhookSecret  bool         `json:"outbound_webhook_secret_set"`
}

// ToView renders s for API responses.
func ToView(s store.Settings) View {
	return View{
		DefaultTaxRate:         s.DefaultTaxRate,
		PaymentTermsDays:       s.PaymentTermsDays,
		UseGlobalPaymentTerms:  s.UseGlobalPaymentTerms,
		BrandName:              s.BrandName,
		LogoURL:                s.LogoURL,
		CurrencySymbol:         s.CurrencySymbol,
		CompanyName:            s.CompanyName,
		CompanyAddress:         s.CompanyAddress,
		CompanyEmail:           s.CompanyEmail,
		CompanyPhone:           s.CompanyPhone,
		CompanyVATNumber:       s.CompanyVATNumber,
		OutboundWebhookURL:     s.OutboundWebhookURL,
		OutboundWebhookEnabled: s.OutboundWebhookEnabled,
		OutboundWebhookEvents:  events.ParseTopics(s.OutboundWebhookEvents),
		OutboundWebhookSecret:  s.OutboundWebhookSecret != "",
	}
}
