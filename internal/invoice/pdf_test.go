package invoice

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/store"
)

func sampleView() View {
	due := common.Date{Time: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)}
	return View{
		Summary: Summary{
			ID:             1,
			InvoiceNumber:  "INV-0001",
			CustomerName:   "Acme",
			IssueDate:      common.Date{Time: clock},
			DueDate:        &due,
			Status:         "sent",
			Notes:          "Thanks for your business\nBank: 00-11-22",
			SubtotalAmount: money.MustParse("100.00"),
			TaxRate:        money.MustParse("20.00"),
			TaxAmount:      money.MustParse("20.00"),
			TotalAmount:    money.MustParse("120.00"),
			BalanceDue:     money.MustParse("-5.00"),
		},
		Items: []ItemView{{
			Description: "Consulting",
			Quantity:    money.MustParse("2.00"),
			UnitPrice:   money.MustParse("50.00"),
			LineTotal:   money.MustParse("100.00"),
		}},
	}
}

func pageText(pages []page) []string {
	var out []string
	for _, p := range pages {
		for _, t := range p.text {
			out = append(out, t.Value)
		}
	}
	return out
}

func TestLayoutPlacesHeaderLinesAndTotals(t *testing.T) {
	st := store.Settings{
		CompanyName:    "Northwind Ltd",
		CompanyAddress: "1 High Street\n\nLeeds LS1 1AA",
		CompanyEmail:   "billing@northwind.test",
		CurrencySymbol: "€",
	}
	pages := layoutPages(sampleView(), st)
	require.Len(t, pages, 1)
	text := pageText(pages)

	for _, want := range []string{
		"Northwind Ltd", "1 High Street", "Leeds LS1 1AA", "Email: billing@northwind.test",
		"INVOICE", "Invoice #: INV-0001", "Issue date: 2025-03-10", "Due date: 2025-04-01",
		"Bill to", "Acme",
		"Consulting", "2.00", "€50.00", "€100.00",
		"Subtotal", "VAT (20.00%)", "€20.00", "Total", "€120.00", "Balance due", "-€5.00",
		"Notes", "Bank: 00-11-22",
	} {
		require.Contains(t, text, want)
	}
	require.NotContains(t, text, "")
}

func TestLayoutFallsBackToBrandAndPound(t *testing.T) {
	v := sampleView()
	v.DueDate = nil
	text := pageText(layoutPages(v, store.Settings{BrandName: "Acme Billing"}))
	require.Contains(t, text, "Acme Billing")
	require.Contains(t, text, "£120.00")
	for _, line := range text {
		require.False(t, strings.HasPrefix(line, "Due date"), line)
	}

	text = pageText(layoutPages(v, store.Settings{}))
	require.Contains(t, text, "Invoice Manager")
}

func TestLayoutContinuesLongInvoicesOnNewPages(t *testing.T) {
	v := sampleView()
	v.Items = nil
	for i := 0; i < 80; i++ {
		v.Items = append(v.Items, ItemView{
			Description: fmt.Sprintf("Line %02d", i),
			Quantity:    money.FromInt(1),
			UnitPrice:   money.FromInt(1),
			LineTotal:   money.FromInt(1),
		})
	}
	pages := layoutPages(v, store.Settings{})
	require.Greater(t, len(pages), 1)
	for _, p := range pages[1:] {
		require.Equal(t, "Description", p.text[0].Value)
		for _, txt := range p.text {
			require.LessOrEqual(t, txt.Pos[1], pageHeight-pageMargin+rowHeight)
		}
	}
	text := pageText(pages)
	require.Contains(t, text, "Line 00")
	require.Contains(t, text, "Line 79")
	require.Contains(t, text, "Balance due")
}

func TestTruncateKeepsShortText(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestInvoicePDFEndpoint(t *testing.T) {
	f := newFixture(t)
	f.settings.row.CompanyName = "Northwind Ltd"
	f.settings.row.CurrencySymbol = "$"
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/invoices", scenarioA).Code)

	rr := f.do(t, http.MethodGet, "/invoices/1/pdf", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), `filename="invoice-INV-0001.pdf"`)
	doc := rr.Body.Bytes()
	require.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))

	conf := model.NewDefaultConfiguration()
	n, err := api.PageCount(bytes.NewReader(doc), conf)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	dir := t.TempDir()
	require.NoError(t, api.ExtractContent(bytes.NewReader(doc), dir, "invoice", nil, conf))
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	var content strings.Builder
	for _, file := range files {
		b, err := os.ReadFile(filepath.Join(dir, file.Name()))
		require.NoError(t, err)
		content.Write(b)
	}
	for _, want := range []string{"Northwind Ltd", "INV-0001", "Consulting", "$120.00"} {
		require.Contains(t, content.String(), want)
	}

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/invoices/9/pdf", "").Code)
}
