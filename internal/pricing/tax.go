package pricing

import "github.com/noah-isme/invoice-manager/internal/money"

// Customer is the subset of customer data tax resolution depends on.
type Customer struct {
	TaxRate        *money.Amount
	UsesDefaultTax bool
}

// Settings is the organisation-wide configuration snapshot passed to the
// pricing functions for a single operation.
type Settings struct {
	DefaultTaxRate        *money.Amount
	PaymentTermsDays      int
	UseGlobalPaymentTerms bool
}

// ResolveTaxRate picks the customer's override rate unless the customer is
// absent, opted into the default, or has no override.
func ResolveTaxRate(customer *Customer, settings Settings) money.Amount {
	if customer == nil || customer.UsesDefaultTax || customer.TaxRate == nil {
		return settings.defaultTaxRate()
	}
	return *customer.TaxRate
}

func (s Settings) defaultTaxRate() money.Amount {
	if s.DefaultTaxRate == nil {
		return money.Zero
	}
	return *s.DefaultTaxRate
}
