// Package postgres implements the capture store on PostgreSQL: session and
// image repositories with trigger-enforced lifecycle guards, and the
// notification queue drained with skip-locked batch claims.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PantaKoda/shiftsnap/internal/logger"
	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/PantaKoda/shiftsnap/pkg/metrics"
	"github.com/PantaKoda/shiftsnap/pkg/notify"
)

// Store owns the connection pool and exposes the three repositories built on
// it. The pool is the only shared mutable resource in the process; every
// writer either auto-commits a single statement or brackets an explicit
// transaction.
type Store struct {
	pool    *pgxpool.Pool
	config  *Config
	logger  *slog.Logger
	metrics metrics.CaptureMetrics

	sessions      *SessionRepository
	images        *ImageRepository
	notifications *NotificationRepository
}

// Option customizes store construction.
type Option func(*Store)

// WithMetrics attaches a metrics sink. A nil sink disables collection with
// zero overhead.
func WithMetrics(m metrics.CaptureMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a PostgreSQL-backed capture store.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Store, error) {
	cfg.ApplyDefaults()

	log := logger.With(logger.KeyComponent, "postgres_store")

	pool, err := createConnectionPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if cfg.AutoMigrate {
		log.Info("AutoMigrate is enabled, running migrations...")
		if err := runMigrations(ctx, cfg.URL, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		log.Info("AutoMigrate is disabled, run 'shiftsnap migrate' to apply migrations manually")
	}

	store := &Store{
		pool:   pool,
		config: cfg,
		logger: log,
	}
	for _, opt := range opts {
		opt(store)
	}

	store.sessions = &SessionRepository{store: store}
	store.images = &ImageRepository{store: store}
	store.notifications = &NotificationRepository{store: store}

	log.Info("PostgreSQL capture store initialized",
		"max_conns", cfg.MaxConns,
		"auto_migrate", cfg.AutoMigrate,
	)
	return store, nil
}

// Sessions returns the capture session repository.
func (s *Store) Sessions() capture.SessionRepository { return s.sessions }

// Images returns the capture image repository.
func (s *Store) Images() capture.ImageRepository { return s.images }

// Notifications returns the outbound notification repository.
func (s *Store) Notifications() notify.Repository { return s.notifications }

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	closeConnectionPool(s.pool, s.logger)
	return nil
}
