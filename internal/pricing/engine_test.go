package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-manager/internal/money"
)

var today = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

func rate(s string) *money.Amount {
	r := money.MustParse(s)
	return &r
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func scenarioA() *Invoice {
	return &Invoice{
		Status:  StatusSent,
		TaxRate: rate("20.00"),
		DueDate: day(2025, 4, 1),
		Items:   []Line{{Quantity: money.FromInt(2), UnitPrice: money.MustParse("50.00")}},
	}
}

func TestRecalculateScenarioA(t *testing.T) {
	inv := scenarioA()
	Recalculate(inv, today)

	require.Equal(t, "100.00", inv.Items[0].LineTotal.String())
	require.Equal(t, "100.00", inv.Subtotal.String())
	require.Equal(t, "20.00", inv.TaxAmount.String())
	require.Equal(t, "120.00", inv.Total.String())
	require.Equal(t, "120.00", inv.BalanceDue.String())
	require.Equal(t, StatusSent, inv.Status)
}

func TestRecalculateScenarioBPaid(t *testing.T) {
	inv := scenarioA()
	inv.Payments = []money.Amount{money.MustParse("120.00")}
	Recalculate(inv, today)

	require.Equal(t, "0.00", inv.BalanceDue.String())
	require.Equal(t, StatusPaid, inv.Status)
}

func TestRecalculateScenarioCOverdue(t *testing.T) {
	inv := scenarioA()
	inv.DueDate = day(2025, 3, 9)
	Recalculate(inv, today)
	require.Equal(t, StatusOverdue, inv.Status)
}

func TestDueTodayIsNotOverdue(t *testing.T) {
	inv := scenarioA()
	inv.DueDate = day(2025, 3, 10)
	Recalculate(inv, today)
	require.Equal(t, StatusSent, inv.Status)
}

func TestLineTotalsRoundBeforeSumming(t *testing.T) {
	inv := &Invoice{
		Status: StatusSent,
		Items: []Line{
			{Quantity: money.MustParse("3"), UnitPrice: money.MustParse("19.99")},
			{Quantity: money.MustParse("0.5"), UnitPrice: money.MustParse("0.01")},
			{Quantity: money.MustParse("0.5"), UnitPrice: money.MustParse("0.01")},
		},
	}
	Recalculate(inv, today)

	require.Equal(t, "59.97", inv.Items[0].LineTotal.String())
	require.Equal(t, "0.01", inv.Items[1].LineTotal.String())
	// 59.97 + 0.01 + 0.01, not round2(59.97 + 0.005 + 0.005)
	require.Equal(t, "59.99", inv.Subtotal.String())
	require.Equal(t, "0.00", inv.TaxAmount.String())
}

func TestTaxRoundsHalfUp(t *testing.T) {
	inv := &Invoice{
		Status:  StatusSent,
		TaxRate: rate("17.50"),
		Items:   []Line{{Quantity: money.FromInt(1), UnitPrice: money.MustParse("0.10")}},
	}
	Recalculate(inv, today)
	// 0.10 * 17.5% = 0.0175
	require.Equal(t, "0.02", inv.TaxAmount.String())
	require.Equal(t, "0.12", inv.Total.String())
}

func TestOverpaymentLeavesNegativeBalance(t *testing.T) {
	inv := scenarioA()
	inv.Payments = []money.Amount{money.MustParse("100"), money.MustParse("50")}
	Recalculate(inv, today)
	require.Equal(t, "-30.00", inv.BalanceDue.String())
	require.Equal(t, "150.00", inv.PaidTotal.String())
	require.Equal(t, StatusPaid, inv.Status)
}

func TestCancelledIsNeverChanged(t *testing.T) {
	inv := scenarioA()
	inv.Status = StatusCancelled
	inv.Payments = []money.Amount{money.MustParse("120")}
	Recalculate(inv, today)
	require.Equal(t, StatusCancelled, inv.Status)

	inv.DueDate = day(2020, 1, 1)
	inv.Payments = nil
	Recalculate(inv, today)
	require.Equal(t, StatusCancelled, inv.Status)
}

func TestDraftIsNotPromoted(t *testing.T) {
	inv := scenarioA()
	inv.Status = StatusDraft
	inv.Payments = []money.Amount{money.MustParse("120")}
	Recalculate(inv, today)
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, "0.00", inv.BalanceDue.String())
}

func TestPaidIsDemotedWhenBalanceReturns(t *testing.T) {
	inv := scenarioA()
	inv.Payments = []money.Amount{money.MustParse("120")}
	Recalculate(inv, today)
	require.Equal(t, StatusPaid, inv.Status)

	inv.Payments = nil
	Recalculate(inv, today)
	require.Equal(t, StatusSent, inv.Status)

	inv.DueDate = day(2025, 1, 1)
	Recalculate(inv, today)
	require.Equal(t, StatusOverdue, inv.Status)
}

func TestZeroTotalInvoiceIsNotPaid(t *testing.T) {
	inv := &Invoice{Status: StatusSent}
	Recalculate(inv, today)
	require.True(t, inv.Total.IsZero())
	require.Equal(t, StatusSent, inv.Status)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	inv := scenarioA()
	inv.Payments = []money.Amount{money.MustParse("33.33")}
	Recalculate(inv, today)
	snapshot := func() []string {
		out := []string{inv.Subtotal.String(), inv.TaxAmount.String(), inv.Total.String(), inv.BalanceDue.String(), string(inv.Status)}
		for _, it := range inv.Items {
			out = append(out, it.LineTotal.String())
		}
		return out
	}
	first := snapshot()

	Recalculate(inv, today)
	require.Equal(t, first, snapshot())
}

func TestStatusValid(t *testing.T) {
	require.True(t, StatusOverdue.Valid())
	require.False(t, Status("archived").Valid())
}
