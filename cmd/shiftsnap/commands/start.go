package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PantaKoda/shiftsnap/internal/logger"
	"github.com/PantaKoda/shiftsnap/internal/telemetry"
	"github.com/PantaKoda/shiftsnap/pkg/api"
	blobs3 "github.com/PantaKoda/shiftsnap/pkg/blob/s3"
	"github.com/PantaKoda/shiftsnap/pkg/config"
	"github.com/PantaKoda/shiftsnap/pkg/dispatch"
	"github.com/PantaKoda/shiftsnap/pkg/ingest/telegram"
	"github.com/PantaKoda/shiftsnap/pkg/metrics"
	promMetrics "github.com/PantaKoda/shiftsnap/pkg/metrics/prometheus"
	"github.com/PantaKoda/shiftsnap/pkg/notify"
	"github.com/PantaKoda/shiftsnap/pkg/store/postgres"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ShiftSnap service",
	Long: `Start the ShiftSnap service with the specified configuration.

The service runs the Telegram ingress transport, the background
dispatchers, and the operational HTTP server, and stops them all on
SIGINT/SIGTERM with a bounded graceful shutdown.

Without database.url only the health surface runs; without
telegram.token the ingress transport and notification delivery stay
offline while the claim dispatcher keeps working.

Examples:
  # Start with default config location
  shiftsnap start

  # Start with custom config file
  shiftsnap start --config /etc/shiftsnap/config.yaml

  # Override config via environment
  SHIFTSNAP_LOGGING_LEVEL=DEBUG shiftsnap start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "shiftsnap",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("ShiftSnap starting",
		"version", Version,
		"config_source", getConfigSource(GetConfigFile()),
		"log_level", cfg.Logging.Level)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	// Metrics before the store, so repositories see an enabled registry.
	var (
		captureMetrics metrics.CaptureMetrics
		blobMetrics    metrics.BlobMetrics
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		captureMetrics = promMetrics.NewCaptureMetrics()
		blobMetrics = promMetrics.NewBlobMetrics()
		logger.Info("Metrics enabled")
	}

	var store *postgres.Store
	if cfg.Database.Enabled() {
		store, err = postgres.New(ctx, &cfg.Database, postgres.WithMetrics(captureMetrics))
		if err != nil {
			return fmt.Errorf("failed to initialize capture store: %w", err)
		}
		defer func() { _ = store.Close() }()
	} else {
		logger.Warn("database.url not configured; capture core disabled, serving health only")
	}

	var runners []runnable

	var transport *telegram.Transport
	if store != nil && cfg.Telegram.Enabled() {
		blobStore, err := blobs3.NewFromConfig(ctx, cfg.Blob, blobs3.WithMetrics(blobMetrics))
		if err != nil {
			return fmt.Errorf("failed to initialize blob store: %w", err)
		}

		transport, err = telegram.New(cfg.Telegram, store.Sessions(), store.Images(), blobStore)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram transport: %w", err)
		}
		runners = append(runners, named{"telegram", transport.Run})
	} else if cfg.Telegram.Enabled() {
		logger.Warn("Telegram transport configured but database is disabled; transport not started")
	} else {
		logger.Info("Telegram transport disabled (no token configured)")
	}

	if store != nil {
		scopes := func(ctx context.Context) (dispatch.Scope, error) {
			return store.NewScope(ctx)
		}

		sessionDispatcher := dispatch.NewSessionDispatcher(cfg.Dispatchers.Sessions, scopes, captureMetrics)
		runners = append(runners, named{"session_dispatcher", sessionDispatcher.Run})

		send := notificationSender(transport)
		notificationDispatcher := dispatch.NewNotificationDispatcher(cfg.Dispatchers.Notifications, scopes, send, captureMetrics)
		runners = append(runners, named{"notification_dispatcher", notificationDispatcher.Run})
	}

	apiServer := newAPIServer(cfg, store)
	runners = append(runners, named{"api", apiServer.Start})

	return run(ctx, cancel, cfg.ShutdownTimeout, runners)
}

// newAPIServer builds the operational HTTP server; repositories are nil
// when the capture core is disabled.
func newAPIServer(cfg *config.Config, store *postgres.Store) *api.Server {
	if store == nil {
		return api.NewServer(cfg.API, nil, nil, nil)
	}
	return api.NewServer(cfg.API, store, store.Sessions(), store.Images())
}

// notificationSender returns the delivery callback. Without a transport
// the dispatcher still drains the queue; deliveries fail and stay
// observable instead of silently piling up.
func notificationSender(transport *telegram.Transport) notify.SendFunc {
	if transport != nil {
		return transport.Send
	}
	return func(ctx context.Context, n *notify.Notification) error {
		return fmt.Errorf("no delivery transport configured")
	}
}

type runnable interface {
	Name() string
	Run(ctx context.Context) error
}

type named struct {
	name string
	run  func(ctx context.Context) error
}

func (n named) Name() string                  { return n.name }
func (n named) Run(ctx context.Context) error { return n.run(ctx) }

// run starts every component and blocks until shutdown. The first
// component failure cancels all the others; plain context cancellation is
// a normal stop, not an error.
func run(ctx context.Context, cancel context.CancelFunc, shutdownTimeout time.Duration, runners []runnable) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(runners))

	for _, r := range runners {
		wg.Add(1)
		go func(r runnable) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", r.Name(), err)
			}
		}(r)
	}

	logger.Info("ShiftSnap is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case runErr = <-errCh:
		logger.Error("Component failed, shutting down", logger.KeyError, runErr)
		cancel()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("ShiftSnap stopped gracefully")
	case <-time.After(shutdownTimeout):
		logger.Error("Graceful shutdown timed out", "timeout", shutdownTimeout.String())
		if runErr == nil {
			runErr = fmt.Errorf("graceful shutdown timed out after %s", shutdownTimeout)
		}
	}

	return runErr
}
