package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/PantaKoda/shiftsnap/internal/logger"
	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/PantaKoda/shiftsnap/pkg/metrics"
	"github.com/PantaKoda/shiftsnap/pkg/notify"
)

// NotificationDispatcherConfig configures the delivery poller.
type NotificationDispatcherConfig struct {
	// Enabled gates the loop entirely. Default: true (via config defaults).
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// PollInterval is the sleep between drain attempts.
	// Default: 3s, floor: 1s.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// BatchSize is the maximum rows claimed per cycle.
	// Default: 20, clamped to [1, 100].
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// ApplyDefaults clamps the poll interval and batch size.
func (c *NotificationDispatcherConfig) ApplyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.PollInterval < time.Second {
		c.PollInterval = time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 20
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.BatchSize > 100 {
		c.BatchSize = 100
	}
}

// NotificationDispatcher drains the pending notification queue through the
// injected send callback. Delivery is at-least-once, the status commit is
// at-most-once; both properties come from the repository's transaction
// shape, this loop only provides cadence.
type NotificationDispatcher struct {
	cfg     NotificationDispatcherConfig
	scopes  ScopeFactory
	send    notify.SendFunc
	metrics metrics.CaptureMetrics
	logger  *slog.Logger
}

// NewNotificationDispatcher creates the delivery poller. send delegates to
// the external chat-API client; the metrics sink may be nil.
func NewNotificationDispatcher(cfg NotificationDispatcherConfig, scopes ScopeFactory, send notify.SendFunc, m metrics.CaptureMetrics) *NotificationDispatcher {
	cfg.ApplyDefaults()
	return &NotificationDispatcher{
		cfg:     cfg,
		scopes:  scopes,
		send:    send,
		metrics: m,
		logger:  logger.With(logger.KeyDispatcher, "notifications"),
	}
}

// Run executes the poll loop until ctx is cancelled. Errors inside a cycle
// are logged and swallowed except cancellation, which exits immediately.
func (d *NotificationDispatcher) Run(ctx context.Context) error {
	if !d.cfg.Enabled {
		d.logger.Info("Notification dispatcher disabled by configuration")
		return nil
	}

	d.logger.Info("Notification dispatcher started",
		logger.KeyPollInterval, d.cfg.PollInterval,
		logger.KeyBatchSize, d.cfg.BatchSize)

	for {
		start := time.Now()
		err := d.cycle(ctx)
		if m := d.metrics; m != nil {
			m.RecordDispatchCycle("notifications", time.Since(start), err != nil)
		}
		if err != nil {
			if ctx.Err() != nil || capture.IsKind(err, capture.KindCancelled) {
				d.logger.Info("Notification dispatcher stopping")
				return ctx.Err()
			}
			d.logger.Error("Notification dispatch cycle failed", logger.KeyError, err)
		}

		if err := sleep(ctx, d.cfg.PollInterval); err != nil {
			d.logger.Info("Notification dispatcher stopping")
			return err
		}
	}
}

func (d *NotificationDispatcher) cycle(ctx context.Context) error {
	scope, err := d.scopes(ctx)
	if err != nil {
		return err
	}
	defer scope.Close()

	res, err := scope.Notifications().DispatchPending(ctx, d.send, d.cfg.BatchSize)
	if err != nil {
		return err
	}
	if res.Claimed > 0 {
		d.logger.Info("Dispatched notifications",
			logger.KeyClaimed, res.Claimed,
			logger.KeySent, res.Sent,
			logger.KeyFailed, res.Failed)
	}
	return nil
}
