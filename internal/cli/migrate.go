package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/splitlab/internal/adapters/turso"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
	"github.com/emiliopalmerini/splitlab/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [version]",
		Short: "Run database migrations",
		Long: `Run database migrations.

Without arguments, runs all pending migrations (up).
With a version number, migrates to that specific version (up or down as needed).

Examples:
  splitlab migrate      # Run all pending migrations
  splitlab migrate 2    # Migrate to version 2
  splitlab migrate 0    # Rollback all migrations`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	var target *int
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version %q", args[0])
		}
		target = &v
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store != config.StoreLibSQL {
		return fmt.Errorf("migrations need the %s store, got %s", config.StoreLibSQL, cfg.Store)
	}

	db, err := turso.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrate.Run(cmd.Context(), db.DB, cmd.OutOrStdout(), target)
}
