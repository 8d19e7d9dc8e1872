// Package importer loads customers and invoices from CSV files. Bad rows are
// reported and skipped; they never abort the batch.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/customer"
	"github.com/noah-isme/invoice-manager/internal/invoice"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/obs"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// Kinds label import metrics.
const (
	KindCustomers = "customers"
	KindInvoices  = "invoices"
)

// CustomerWriter finds or creates customers by name.
type CustomerWriter interface {
	FindOrCreate(ctx context.Context, in customer.Input) (store.Customer, bool, error)
}

// InvoiceWriter creates invoices.
type InvoiceWriter interface {
	Create(ctx context.Context, in invoice.CreateInput, source string) (invoice.View, error)
}

// Importer runs CSV imports.
type Importer struct {
	Customers CustomerWriter
	Invoices  InvoiceWriter
	Logger    zerolog.Logger
}

// Result summarises one import run.
type Result struct {
	Imported int       `json:"imported"`
	Skipped  int       `json:"skipped"`
	Errors   int       `json:"errors"`
	Failures []Failure `json:"failures"`
}

// Failure describes one rejected row. Row is the 1-based line in the file,
// the header being line 1.
type Failure struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

func (r *Result) fail(kind string, row int, err error) {
	r.Errors++
	r.Failures = append(r.Failures, Failure{Row: row, Error: message(err)})
	count(kind, "failed", 1)
}

func message(err error) string {
	if appErr, ok := common.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}

func count(kind, result string, n int) {
	if obs.CSVImportRowsTotal != nil && n > 0 {
		obs.CSVImportRowsTotal.WithLabelValues(kind, result).Add(float64(n))
	}
}

// sheet is a CSV reader addressed by header name.
type sheet struct {
	r       *csv.Reader
	columns map[string]int
}

type record struct {
	line   int
	fields []string
	cols   map[string]int
}

func (rec record) get(name string) string {
	i, ok := rec.cols[name]
	if !ok || i >= len(rec.fields) {
		return ""
	}
	return strings.TrimSpace(rec.fields[i])
}

func openSheet(src io.Reader, required ...string) (*sheet, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, common.Validation("csv file is empty")
		}
		return nil, common.Validation(fmt.Sprintf("csv header: %v", err))
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup && name != "" {
			cols[name] = i
		}
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, common.Validation("csv is missing required columns: " + strings.Join(missing, ", "))
	}
	return &sheet{r: r, columns: cols}, nil
}

// next returns the following non-blank record. A malformed line is returned
// as a *csv.ParseError and reading may continue.
func (s *sheet) next() (record, error) {
	for {
		fields, err := s.r.Read()
		if err != nil {
			return record{}, err
		}
		line, _ := s.r.FieldPos(0)
		if blank(fields) {
			continue
		}
		return record{line: line, fields: fields, cols: s.columns}, nil
	}
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ImportCustomers reads name,email,phone,address_line1,address_line2,city,
// postcode,country,tax_rate,uses_default_tax. Existing names are skipped.
func (im *Importer) ImportCustomers(ctx context.Context, src io.Reader) (Result, error) {
	if im.Customers == nil {
		return Result{}, errors.New("importer: customers not configured")
	}
	sh, err := openSheet(src, "name")
	if err != nil {
		return Result{}, err
	}
	res := Result{Failures: []Failure{}}
	for {
		rec, err := sh.next()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.fail(KindCustomers, perr.StartLine, perr.Err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("read csv: %w", err)
		}
		in, err := customerInput(rec)
		if err != nil {
			res.fail(KindCustomers, rec.line, err)
			continue
		}
		_, created, err := im.Customers.FindOrCreate(ctx, in)
		if err != nil {
			res.fail(KindCustomers, rec.line, err)
			continue
		}
		if created {
			res.Imported++
			count(KindCustomers, "imported", 1)
		} else {
			res.Skipped++
			count(KindCustomers, "skipped", 1)
		}
	}
	im.Logger.Info().Int("imported", res.Imported).Int("skipped", res.Skipped).Int("errors", res.Errors).Msg("customer import finished")
	return res, nil
}

func customerInput(rec record) (customer.Input, error) {
	var in customer.Input
	name := rec.get("name")
	if name == "" {
		return in, common.Validation("name is required")
	}
	in.Name = &name
	for col, dst := range map[string]**string{
		"email":         &in.Email,
		"phone":         &in.Phone,
		"address_line1": &in.AddressLine1,
		"address_line2": &in.AddressLine2,
		"city":          &in.City,
		"postcode":      &in.Postcode,
		"country":       &in.Country,
	} {
		if v := rec.get(col); v != "" {
			*dst = &v
		}
	}
	if raw := rec.get("tax_rate"); raw != "" {
		rate, err := money.Parse(raw)
		if err != nil {
			return in, common.Validation("tax_rate is not a number")
		}
		in.TaxRate = &rate
	}
	if raw := rec.get("uses_default_tax"); raw != "" {
		v, err := parseBool(raw)
		if err != nil {
			return in, err
		}
		in.UsesDefaultTax = &v
	}
	return in, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, common.Validation(fmt.Sprintf("uses_default_tax: %q is not a boolean", raw))
	}
	return v, nil
}

type invoiceGroup struct {
	firstLine int
	input     invoice.CreateInput
	failed    bool
}

// ImportInvoices reads one line item per row, grouped by invoice_number:
// invoice_number,customer_name,issue_date,due_date,status,description,
// quantity,unit_price. Header fields come from the first row of a group.
// A group with any rejected row is not created at all.
func (im *Importer) ImportInvoices(ctx context.Context, src io.Reader) (Result, error) {
	if im.Invoices == nil {
		return Result{}, errors.New("importer: invoices not configured")
	}
	sh, err := openSheet(src, "invoice_number", "customer_name")
	if err != nil {
		return Result{}, err
	}
	res := Result{Failures: []Failure{}}
	var order []string
	groups := map[string]*invoiceGroup{}
	for {
		rec, err := sh.next()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.fail(KindInvoices, perr.StartLine, perr.Err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("read csv: %w", err)
		}
		number := rec.get("invoice_number")
		if number == "" {
			res.fail(KindInvoices, rec.line, common.Validation("invoice_number is required"))
			continue
		}
		g, ok := groups[number]
		if !ok {
			g, err = newGroup(rec, number)
			if err != nil {
				groups[number] = &invoiceGroup{firstLine: rec.line, failed: true}
				res.fail(KindInvoices, rec.line, fmt.Errorf("%s: %s", number, message(err)))
				continue
			}
			groups[number] = g
			order = append(order, number)
		}
		if g.failed {
			continue
		}
		item, err := itemInput(rec)
		if err != nil {
			g.failed = true
			res.fail(KindInvoices, rec.line, fmt.Errorf("%s: %s", number, message(err)))
			continue
		}
		g.input.Items = append(g.input.Items, item)
	}

	for _, number := range order {
		g := groups[number]
		if g.failed {
			continue
		}
		if _, err := im.Invoices.Create(ctx, g.input, invoice.SourceImport); err != nil {
			res.fail(KindInvoices, g.firstLine, fmt.Errorf("%s: %s", number, message(err)))
			continue
		}
		res.Imported++
		count(KindInvoices, "imported", 1)
	}
	im.Logger.Info().Int("imported", res.Imported).Int("errors", res.Errors).Msg("invoice import finished")
	return res, nil
}

func newGroup(rec record, number string) (*invoiceGroup, error) {
	name := rec.get("customer_name")
	if name == "" {
		return nil, common.Validation("customer_name is required")
	}
	in := invoice.CreateInput{
		InvoiceNumber: number,
		Customer:      &customer.Input{Name: &name},
		Status:        rec.get("status"),
	}
	for col, dst := range map[string]**common.Date{"issue_date": &in.IssueDate, "due_date": &in.DueDate} {
		raw := rec.get(col)
		if raw == "" {
			continue
		}
		t, err := common.ParseDate(raw)
		if err != nil {
			return nil, common.Validation(fmt.Sprintf("%s: %v", col, err))
		}
		*dst = &common.Date{Time: t}
	}
	return &invoiceGroup{firstLine: rec.line, input: in}, nil
}

func itemInput(rec record) (invoice.ItemInput, error) {
	item := invoice.ItemInput{Description: rec.get("description")}
	for col, dst := range map[string]**money.Amount{"quantity": &item.Quantity, "unit_price": &item.UnitPrice} {
		raw := rec.get(col)
		if raw == "" {
			continue
		}
		v, err := money.Parse(raw)
		if err != nil {
			return item, common.Validation(col + " is not a number")
		}
		*dst = &v
	}
	return item, nil
}
