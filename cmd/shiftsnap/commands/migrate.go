package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PantaKoda/shiftsnap/internal/logger"
	"github.com/PantaKoda/shiftsnap/pkg/config"
	"github.com/PantaKoda/shiftsnap/pkg/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply pending schema migrations to the configured PostgreSQL database.

Required once before first start and after upgrading when schema changes
have been made. The service can also migrate at startup when
database.auto_migrate is enabled.

Examples:
  # Run migrations with default config
  shiftsnap migrate

  # Run migrations with custom config
  shiftsnap migrate --config /etc/shiftsnap/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	if !cfg.Database.Enabled() {
		return fmt.Errorf("database.url is not configured")
	}

	log := logger.With(logger.KeyComponent, "migrate")
	if err := postgres.RunMigrations(context.Background(), &cfg.Database, log); err != nil {
		return err
	}

	fmt.Println("Migrations completed successfully")
	return nil
}
