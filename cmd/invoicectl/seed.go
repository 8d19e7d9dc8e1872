package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/customer"
	"github.com/noah-isme/invoice-manager/internal/invoice"
	"github.com/noah-isme/invoice-manager/internal/money"
	"github.com/noah-isme/invoice-manager/internal/pricing"
	"github.com/noah-isme/invoice-manager/internal/product"
	"github.com/noah-isme/invoice-manager/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo customers, products and invoices",
	Long: `seed creates a small demo data set through the same services the API uses,
so totals, numbering and statuses are computed normally. It does nothing when
the demo customers already exist.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedCustomers interface {
	FindOrCreate(ctx context.Context, in customer.Input) (store.Customer, bool, error)
}

type seedProducts interface {
	Create(ctx context.Context, in product.Input) (store.Product, error)
}

type seedInvoices interface {
	Create(ctx context.Context, in invoice.CreateInput, source string) (invoice.View, error)
}

func ptr[T any](v T) *T { return &v }

func seedDemo(ctx context.Context, cs seedCustomers, ps seedProducts, is seedInvoices, today time.Time, out io.Writer) error {
	acme, created, err := cs.FindOrCreate(ctx, customer.Input{
		Name:  ptr("Acme Trading Ltd"),
		Email: ptr("accounts@acme.example"),
		City:  ptr("Leeds"),
	})
	if err != nil {
		return fmt.Errorf("seed customer: %w", err)
	}
	if !created {
		fmt.Fprintln(out, "Demo data already present.")
		return nil
	}
	export, _, err := cs.FindOrCreate(ctx, customer.Input{
		Name:           ptr("Export Partners GmbH"),
		Country:        ptr("Germany"),
		TaxRate:        ptr(money.FromInt(0)),
		UsesDefaultTax: ptr(false),
	})
	if err != nil {
		return fmt.Errorf("seed customer: %w", err)
	}

	var products []store.Product
	for _, p := range []struct{ name, price string }{
		{"Consulting hour", "85.00"},
		{"Website hosting (monthly)", "12.50"},
		{"Design retainer", "450.00"},
	} {
		row, err := ps.Create(ctx, product.Input{Name: ptr(p.name), UnitPrice: ptr(money.MustParse(p.price))})
		if err != nil {
			return fmt.Errorf("seed product %s: %w", p.name, err)
		}
		products = append(products, row)
	}

	day := func(offset int) *common.Date {
		return &common.Date{Time: common.DateOf(today.AddDate(0, 0, offset))}
	}
	invoices := []invoice.CreateInput{
		{
			CustomerID: &acme.ID,
			Status:     string(pricing.StatusSent),
			IssueDate:  day(-10),
			Items: []invoice.ItemInput{
				{ProductID: &products[0].ID, Quantity: ptr(money.FromInt(6))},
				{ProductID: &products[1].ID},
			},
		},
		{
			CustomerID: &acme.ID,
			Status:     string(pricing.StatusSent),
			IssueDate:  day(-45),
			DueDate:    day(-15),
			Items:      []invoice.ItemInput{{ProductID: &products[2].ID}},
			Payments:   []invoice.PaymentInput{{Amount: money.MustParse("200.00"), PaymentDate: day(-20), Method: "bank transfer"}},
		},
		{
			CustomerID: &export.ID,
			Items: []invoice.ItemInput{
				{Description: "Localisation review", Quantity: ptr(money.MustParse("2.5")), UnitPrice: ptr(money.MustParse("120.00"))},
			},
		},
	}
	for _, in := range invoices {
		v, err := is.Create(ctx, in, invoice.SourceImport)
		if err != nil {
			return fmt.Errorf("seed invoice: %w", err)
		}
		fmt.Fprintf(out, "%s  %-22s %-9s total %s  balance %s\n", v.InvoiceNumber, v.CustomerName, v.Status, v.TotalAmount, v.BalanceDue)
	}
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	log := loggerFor(cmd)
	_, deps, err := openDeps(cmd.Context(), log)
	if err != nil {
		return err
	}
	defer deps.Close()
	return seedDemo(cmd.Context(), deps.Customers, deps.Products, deps.Invoices, time.Now(), cmd.OutOrStdout())
}
