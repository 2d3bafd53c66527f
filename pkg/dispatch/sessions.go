package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/PantaKoda/shiftsnap/internal/logger"
	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/PantaKoda/shiftsnap/pkg/metrics"
)

// SessionDispatcherConfig configures the claim poller.
type SessionDispatcherConfig struct {
	// Enabled gates the loop entirely. Default: true (set via config
	// defaults; the zero value here means disabled).
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// PollInterval is the sleep between claim attempts.
	// Default: 5s, floor: 1s.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ApplyDefaults clamps the poll interval.
func (c *SessionDispatcherConfig) ApplyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollInterval < time.Second {
		c.PollInterval = time.Second
	}
}

// SessionDispatcher periodically claims one closed capture session for
// processing. The claim itself is the contract: the downstream OCR worker
// picks up sessions in processing state, this loop only guarantees that
// each closed session is handed out at most once at a time.
type SessionDispatcher struct {
	cfg     SessionDispatcherConfig
	scopes  ScopeFactory
	metrics metrics.CaptureMetrics
	logger  *slog.Logger
}

// NewSessionDispatcher creates the claim poller. The metrics sink may be
// nil.
func NewSessionDispatcher(cfg SessionDispatcherConfig, scopes ScopeFactory, m metrics.CaptureMetrics) *SessionDispatcher {
	cfg.ApplyDefaults()
	return &SessionDispatcher{
		cfg:     cfg,
		scopes:  scopes,
		metrics: m,
		logger:  logger.With(logger.KeyDispatcher, "sessions"),
	}
}

// Run executes the poll loop until ctx is cancelled. Errors inside a cycle
// are logged and swallowed; the loop continues on the next tick.
func (d *SessionDispatcher) Run(ctx context.Context) error {
	if !d.cfg.Enabled {
		d.logger.Info("Session claim dispatcher disabled by configuration")
		return nil
	}

	d.logger.Info("Session claim dispatcher started",
		logger.KeyPollInterval, d.cfg.PollInterval)

	for {
		start := time.Now()
		err := d.cycle(ctx)
		if m := d.metrics; m != nil {
			m.RecordDispatchCycle("sessions", time.Since(start), err != nil)
		}
		if err != nil {
			if ctx.Err() != nil || capture.IsKind(err, capture.KindCancelled) {
				d.logger.Info("Session claim dispatcher stopping")
				return ctx.Err()
			}
			d.logger.Error("Session claim cycle failed", logger.KeyError, err)
		}

		if err := sleep(ctx, d.cfg.PollInterval); err != nil {
			d.logger.Info("Session claim dispatcher stopping")
			return err
		}
	}
}

// cycle opens a fresh scope, claims at most one session, and discards the
// scope.
func (d *SessionDispatcher) cycle(ctx context.Context) error {
	scope, err := d.scopes(ctx)
	if err != nil {
		return err
	}
	defer scope.Close()

	session, err := scope.Sessions().ClaimNextClosedForProcessing(ctx)
	if err != nil {
		return err
	}
	if session != nil {
		d.logger.Info("Claimed session for processing",
			logger.KeySessionID, session.ID,
			logger.KeyUserID, session.UserID,
			logger.KeyState, session.State)
	}
	return nil
}
