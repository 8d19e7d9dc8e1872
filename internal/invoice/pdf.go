package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// A4 portrait in points, origin top left.
const (
	pageWidth   = 595.0
	pageHeight  = 842.0
	pageMargin  = 56.0
	rowHeight   = 14.0
	tableBottom = pageHeight - pageMargin - 40
)

const defaultCurrency = "£"

var disableConfigDir sync.Once

// pdfDoc is the layout document understood by pdfcpu's create command.
type pdfDoc struct {
	Paper  string             `json:"paper"`
	Origin string             `json:"origin"`
	Pages  map[string]pdfPage `json:"pages"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfContent struct {
	Text []pdfText `json:"text"`
}

type pdfText struct {
	Value string     `json:"value"`
	Pos   [2]float64 `json:"pos"`
	Align string     `json:"align,omitempty"`
	Font  pdfFont    `json:"font"`
}

type pdfFont struct {
	Name  string `json:"name"`
	Size  int    `json:"size"`
	Color string `json:"color,omitempty"`
}

var (
	fontTitle = pdfFont{Name: "Helvetica-Bold", Size: 16, Color: "#111827"}
	fontBrand = pdfFont{Name: "Helvetica-Bold", Size: 18, Color: "#111827"}
	fontLabel = pdfFont{Name: "Helvetica-Bold", Size: 10, Color: "#111827"}
	fontBody  = pdfFont{Name: "Helvetica", Size: 9, Color: "#374151"}
	fontMuted = pdfFont{Name: "Helvetica", Size: 8, Color: "#6b7280"}
	fontTotal = pdfFont{Name: "Helvetica-Bold", Size: 10, Color: "#c2410c"}
)

type page struct {
	text []pdfText
}

func (p *page) put(value, align string, x, y float64, font pdfFont) {
	if strings.TrimSpace(value) == "" {
		return
	}
	p.text = append(p.text, pdfText{Value: value, Pos: [2]float64{x, y}, Align: align, Font: font})
}

func (p *page) add(value string, x, y float64, font pdfFont) { p.put(value, "", x, y, font) }

// addRight ends the text at x.
func (p *page) addRight(value string, x, y float64, font pdfFont) { p.put(value, "right", x, y, font) }

// formatAmount prefixes the currency symbol, keeping the sign in front.
func formatAmount(symbol string, a money.Amount) string {
	s := a.Round2().String()
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		return "-" + symbol + rest
	}
	return symbol + s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// layoutPages places the invoice on as many A4 pages as its lines need.
func layoutPages(v View, st store.Settings) []page {
	currency := st.CurrencySymbol
	if currency == "" {
		currency = defaultCurrency
	}
	left := pageMargin
	right := pageWidth - pageMargin

	first := &page{}
	pages := []*page{first}

	y := pageMargin + 18
	brand := st.CompanyName
	if brand == "" {
		brand = st.BrandName
	}
	if brand == "" {
		brand = "Invoice Manager"
	}
	first.add(brand, left, y, fontBrand)
	y += 18
	for _, line := range strings.Split(st.CompanyAddress, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		first.add(strings.TrimSpace(line), left, y, fontMuted)
		y += 12
	}
	for _, kv := range [][2]string{{"Tel: ", st.CompanyPhone}, {"Email: ", st.CompanyEmail}, {"VAT: ", st.CompanyVATNumber}} {
		if kv[1] == "" {
			continue
		}
		first.add(kv[0]+kv[1], left, y, fontMuted)
		y += 12
	}

	hy := pageMargin + 18
	first.addRight("INVOICE", right, hy, fontTitle)
	hy += 16
	first.addRight("Invoice #: "+v.InvoiceNumber, right, hy, fontBody)
	hy += 14
	first.addRight("Issue date: "+v.IssueDate.Format(common.DateLayout), right, hy, fontBody)
	hy += 14
	if v.DueDate != nil {
		first.addRight("Due date: "+v.DueDate.Format(common.DateLayout), right, hy, fontBody)
		hy += 14
	}
	first.addRight("Status: "+v.Status, right, hy, fontBody)

	y += 28
	first.add("Bill to", left, y, fontLabel)
	y += 14
	first.add(v.CustomerName, left, y, fontBody)

	y += 30
	header := func(p *page, y float64) {
		p.add("Description", left, y, fontMuted)
		p.addRight("Qty", left+300, y, fontMuted)
		p.addRight("Unit price", left+390, y, fontMuted)
		p.addRight("Line total", right, y, fontMuted)
	}
	cur := first
	header(cur, y)
	y += 16
	for _, item := range v.Items {
		if y > tableBottom {
			cur = &page{}
			pages = append(pages, cur)
			y = pageMargin + 18
			header(cur, y)
			y += 16
		}
		cur.add(truncate(item.Description, 55), left, y, fontBody)
		cur.addRight(item.Quantity.String(), left+300, y, fontBody)
		cur.addRight(formatAmount(currency, item.UnitPrice), left+390, y, fontBody)
		cur.addRight(formatAmount(currency, item.LineTotal), right, y, fontBody)
		y += rowHeight
	}

	totals := [][2]string{
		{"Subtotal", formatAmount(currency, v.SubtotalAmount)},
		{"VAT (" + v.TaxRate.String() + "%)", formatAmount(currency, v.TaxAmount)},
		{"Total", formatAmount(currency, v.TotalAmount)},
		{"Balance due", formatAmount(currency, v.BalanceDue)},
	}
	if y+rowHeight*float64(len(totals)+1) > pageHeight-pageMargin {
		cur = &page{}
		pages = append(pages, cur)
		y = pageMargin
	}
	y += 20
	for _, row := range totals {
		font := fontBody
		if row[0] == "Total" {
			font = fontTotal
		}
		cur.add(row[0], right-180, y, font)
		cur.addRight(row[1], right, y, font)
		y += rowHeight
	}

	if notes := strings.TrimSpace(v.Notes); notes != "" {
		y += 16
		cur.add("Notes", left, y, fontLabel)
		y += 14
		for _, line := range strings.Split(notes, "\n") {
			if y > pageHeight-pageMargin {
				cur = &page{}
				pages = append(pages, cur)
				y = pageMargin
			}
			cur.add(truncate(line, 90), left, y, fontMuted)
			y += 12
		}
	}

	out := make([]page, len(pages))
	for i, p := range pages {
		out[i] = *p
	}
	return out
}

// RenderPDF writes v as an A4 PDF document.
func RenderPDF(w io.Writer, v View, st store.Settings) error {
	doc := pdfDoc{Paper: "A4P", Origin: "UpperLeft", Pages: map[string]pdfPage{}}
	for i, p := range layoutPages(v, st) {
		doc.Pages[strconv.Itoa(i+1)] = pdfPage{Content: pdfContent{Text: p.text}}
	}
	layout, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode pdf layout: %w", err)
	}
	disableConfigDir.Do(api.DisableConfigDir)
	if err := api.Create(nil, bytes.NewReader(layout), w, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// PDF renders the invoice with the current company settings.
func (s *Service) PDF(ctx context.Context, id int64) ([]byte, View, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, View{}, err
	}
	st, err := s.Settings.GetSettings(ctx)
	if err != nil {
		return nil, View{}, fmt.Errorf("load settings: %w", err)
	}
	var buf bytes.Buffer
	if err := RenderPDF(&buf, v, st); err != nil {
		return nil, View{}, err
	}
	return buf.Bytes(), v, nil
}
