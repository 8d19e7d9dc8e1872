package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/invoice-manager/internal/apikey"
	"github.com/noah-isme/invoice-manager/internal/migrations"
	"github.com/noah-isme/invoice-manager/internal/store"
)

const (
	defaultAdminUser     = "admin"
	defaultAdminPassword = "admin123"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create tables, default settings, the first admin and an API key",
	Long: `init applies pending migrations, makes sure the settings row exists
(default tax rate 20.00), creates the user admin/admin123 when no user exists
and mints a read/write API key when no key exists. The raw key is printed once.

Running init again changes nothing.`,
	Example: `  invoicectl init
  invoicectl init --skip-migrate`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("skip-migrate", false, "Do not apply migrations")
}

type settingsEnsurer interface {
	GetSettings(ctx context.Context) (store.Settings, error)
}

type adminEnsurer interface {
	EnsureAdmin(ctx context.Context, username, password string) (bool, error)
}

type keyEnsurer interface {
	EnsureDefault(ctx context.Context) (apikey.Created, bool, error)
}

// bootstrap seeds an empty installation. Each step is a no-op once done.
func bootstrap(ctx context.Context, s settingsEnsurer, a adminEnsurer, k keyEnsurer, out io.Writer, log zerolog.Logger) error {
	st, err := s.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	log.Info().Str("default_tax_rate", st.DefaultTaxRate.String()).Msg("settings ready")

	created, err := a.EnsureAdmin(ctx, defaultAdminUser, defaultAdminPassword)
	if err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}
	if created {
		log.Warn().Str("username", defaultAdminUser).Msg("created admin user with the default password; change it before exposing the server")
		fmt.Fprintf(out, "Admin user: %s / %s (insecure default, change it)\n", defaultAdminUser, defaultAdminPassword)
	}

	key, minted, err := k.EnsureDefault(ctx)
	if err != nil {
		return fmt.Errorf("ensure api key: %w", err)
	}
	if minted {
		fmt.Fprintf(out, "API key (shown once): %s\n", key.RawKey)
	} else {
		log.Info().Msg("api key already present")
	}
	return nil
}

func runInit(cmd *cobra.Command, _ []string) error {
	log := loggerFor(cmd)
	ctx := cmd.Context()
	skip, _ := cmd.Flags().GetBool("skip-migrate")

	cfg, deps, err := openDeps(ctx, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	if !skip {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			return err
		}
		version, dirty, err := migrations.Version(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema migrated")
	}
	return bootstrap(ctx, deps.Settings, deps.Auth, deps.APIKeys, cmd.OutOrStdout(), log)
}
