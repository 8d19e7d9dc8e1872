package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveTaxRate(t *testing.T) {
	settings := Settings{DefaultTaxRate: rate("20.00")}

	require.Equal(t, "20.00", ResolveTaxRate(nil, settings).String())
	require.Equal(t, "20.00", ResolveTaxRate(&Customer{}, settings).String())
	require.Equal(t, "20.00", ResolveTaxRate(&Customer{TaxRate: rate("5.00"), UsesDefaultTax: true}, settings).String())
	require.Equal(t, "5.00", ResolveTaxRate(&Customer{TaxRate: rate("5.00")}, settings).String())
	require.Equal(t, "0.00", ResolveTaxRate(&Customer{TaxRate: rate("0")}, settings).String())
}

func TestResolveTaxRateUnsetDefault(t *testing.T) {
	require.Equal(t, "0.00", ResolveTaxRate(nil, Settings{}).String())
}

func TestResolveDueDate(t *testing.T) {
	issue := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	explicit := day(2025, 1, 1)

	got := ResolveDueDate(issue, explicit, Settings{UseGlobalPaymentTerms: true, PaymentTermsDays: 30})
	require.NotNil(t, got)
	require.True(t, got.Equal(*explicit))

	got = ResolveDueDate(issue, nil, Settings{UseGlobalPaymentTerms: true, PaymentTermsDays: 30})
	require.NotNil(t, got)
	require.Equal(t, "2025-03-02", got.Format("2006-01-02"))

	require.Nil(t, ResolveDueDate(issue, nil, Settings{UseGlobalPaymentTerms: false, PaymentTermsDays: 30}))
	require.Nil(t, ResolveDueDate(issue, nil, Settings{UseGlobalPaymentTerms: true, PaymentTermsDays: 0}))
}
