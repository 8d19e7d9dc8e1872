// Command invoicectl performs one-shot administration: schema setup, API key
// minting and CSV imports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/invoice-manager/internal/app"
	"github.com/noah-isme/invoice-manager/internal/auth"
	"github.com/noah-isme/invoice-manager/internal/config"
	"github.com/noah-isme/invoice-manager/internal/obs"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "invoicectl",
	Short: "Administer the invoice manager database",
	Long: `invoicectl prepares and maintains an invoice manager installation.

Configuration is read from the environment (and .env) exactly like the API
server; DATABASE_URL is required, REDIS_URL is optional.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console or json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loggerFor(cmd *cobra.Command) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return obs.NewLoggerTo(cmd.ErrOrStderr(), format, level).With().Str("component", cmd.Name()).Logger()
}

// openDeps loads configuration and connects. Redis is used when configured so
// imports share the API's numbering lock.
func openDeps(ctx context.Context, log zerolog.Logger) (*config.Config, *app.Dependencies, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	deps, err := app.Open(ctx, cfg, log, app.Options{ApplicationName: "invoicectl"})
	if err != nil {
		return nil, nil, err
	}
	if deps.Auth == nil {
		// The CLI never issues tokens; any signing secret will do.
		deps.Auth, err = auth.NewService(auth.Config{Users: deps.Queries, Secret: uuid.NewString()})
		if err != nil {
			deps.Close()
			return nil, nil, err
		}
	}
	return cfg, deps, nil
}
