package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/invoice-manager/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import customers|invoices <file.csv>",
	Short: "Import customers or invoices from a CSV file",
	Long: `import loads a CSV file. Bad rows are reported with their line number and
skipped; the rest of the file is still imported.

Customers: name,email,phone,address_line1,address_line2,city,postcode,country,
tax_rate,uses_default_tax

Invoices (one line item per row, grouped by invoice_number):
invoice_number,customer_name,issue_date,due_date,status,description,quantity,
unit_price`,
	Example: `  invoicectl import customers customers.csv
  invoicectl import invoices invoices.csv --json`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{importer.KindCustomers, importer.KindInvoices},
	RunE:      runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Bool("json", false, "Print the result as JSON")
}

type csvImporter interface {
	ImportCustomers(ctx context.Context, src io.Reader) (importer.Result, error)
	ImportInvoices(ctx context.Context, src io.Reader) (importer.Result, error)
}

func importFile(ctx context.Context, im csvImporter, kind, path string, asJSON bool, out io.Writer) (importer.Result, error) {
	var run func(context.Context, io.Reader) (importer.Result, error)
	switch kind {
	case importer.KindCustomers:
		run = im.ImportCustomers
	case importer.KindInvoices:
		run = im.ImportInvoices
	default:
		return importer.Result{}, fmt.Errorf("unknown import kind %q (want customers or invoices)", kind)
	}
	f, err := os.Open(path)
	if err != nil {
		return importer.Result{}, err
	}
	defer f.Close()

	res, err := run(ctx, f)
	if err != nil {
		return res, err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return res, enc.Encode(res)
	}
	fmt.Fprintf(out, "Imported: %d  Skipped: %d  Errors: %d\n", res.Imported, res.Skipped, res.Errors)
	for _, fail := range res.Failures {
		fmt.Fprintf(out, "  row %d: %s\n", fail.Row, fail.Error)
	}
	return res, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	log := loggerFor(cmd)
	asJSON, _ := cmd.Flags().GetBool("json")

	_, deps, err := openDeps(cmd.Context(), log)
	if err != nil {
		return err
	}
	defer deps.Close()
	_, err = importFile(cmd.Context(), deps.Importer, args[0], args[1], asJSON, cmd.OutOrStdout())
	return err
}
