package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/noah-isme/invoice-manager/internal/apikey"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Mint a new API key and print it once",
	Example: `  invoicectl apikey create --name billing-bot --read --write`,
	RunE:    runAPIKeyCreate,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd)
	apikeyCreateCmd.Flags().String("name", "", "Key name")
	apikeyCreateCmd.Flags().Bool("read", true, "Allow read access")
	apikeyCreateCmd.Flags().Bool("write", false, "Allow write access")
	_ = apikeyCreateCmd.MarkFlagRequired("name")
}

type keyCreator interface {
	Create(ctx context.Context, name string, canRead, canWrite bool) (apikey.Created, error)
}

func createKey(ctx context.Context, keys keyCreator, name string, read, write bool, out io.Writer) error {
	c, err := keys.Create(ctx, name, read, write)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Key id:  %s\n", c.Key.KeyID)
	fmt.Fprintf(out, "Raw key: %s\n", c.RawKey)
	fmt.Fprintln(out, "Store the raw key now; it cannot be shown again.")
	return nil
}

func runAPIKeyCreate(cmd *cobra.Command, _ []string) error {
	log := loggerFor(cmd)
	name, _ := cmd.Flags().GetString("name")
	read, _ := cmd.Flags().GetBool("read")
	write, _ := cmd.Flags().GetBool("write")

	_, deps, err := openDeps(cmd.Context(), log)
	if err != nil {
		return err
	}
	defer deps.Close()
	return createKey(cmd.Context(), deps.APIKeys, name, read, write, cmd.OutOrStdout())
}
