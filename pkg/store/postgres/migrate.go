package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql

	"github.com/PantaKoda/shiftsnap/pkg/store/postgres/migrations"
)

// runMigrations executes database migrations using golang-migrate.
// golang-migrate takes a PostgreSQL advisory lock, so concurrent instances
// starting at once do not race each other.
func runMigrations(ctx context.Context, connString string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	// golang-migrate drives database/sql, not pgx native.
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to apply (database is up to date)")
	} else {
		logger.Info("Migrations completed successfully")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("No migrations applied yet")
	} else {
		logger.Info("Current schema version", "version", version, "dirty", dirty)
		if dirty {
			logger.Warn("Database schema is in dirty state - manual intervention may be required")
		}
	}

	return nil
}

// RunMigrations applies all pending migrations. Public entry point for the
// 'shiftsnap migrate' command.
func RunMigrations(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return runMigrations(ctx, cfg.URL, logger)
}
