// Package telegram is the chat transport: it long-polls the Bot API,
// routes commands and screenshot uploads into the ingest adapter, and
// sends the adapter's replies back to the user.
//
// Every update is acknowledged exactly once by the long-poll offset
// advancing; handler failures are answered in-chat, never re-delivered.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PantaKoda/shiftsnap/internal/logger"
	"github.com/PantaKoda/shiftsnap/pkg/blob"
	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/PantaKoda/shiftsnap/pkg/ingest"
	"github.com/PantaKoda/shiftsnap/pkg/notify"
)

// maxDownloadBytes caps a single screenshot download. Telegram's own photo
// limit is lower; this guards document uploads.
const maxDownloadBytes = 20 << 20

// Config holds the Telegram transport configuration.
type Config struct {
	// Token is the bot API token. The transport is disabled when empty.
	Token string `mapstructure:"token" yaml:"token"`

	// PollTimeout is the long-poll timeout. Default: 30s.
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`

	// DownloadTimeout bounds a single file download. Default: 30s.
	DownloadTimeout time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
}

// Enabled reports whether a token is configured.
func (c *Config) Enabled() bool {
	return c.Token != ""
}

// ApplyDefaults fills in timeouts.
func (c *Config) ApplyDefaults() {
	if c.PollTimeout == 0 {
		c.PollTimeout = 30 * time.Second
	}
	if c.DownloadTimeout == 0 {
		c.DownloadTimeout = 30 * time.Second
	}
}

// Transport drives one bot over long polling.
type Transport struct {
	cfg     Config
	bot     *tgbotapi.BotAPI
	adapter *ingest.Adapter
	blobs   blob.Store
	http    *http.Client
	logger  *slog.Logger
}

// New authenticates against the Bot API and wires the ingest adapter. The
// transport itself is the adapter's Replier.
func New(cfg Config, sessions capture.SessionRepository, images capture.ImageRepository, blobs blob.Store) (*Transport, error) {
	cfg.ApplyDefaults()

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram authentication failed: %w", err)
	}

	t := &Transport{
		cfg:    cfg,
		bot:    bot,
		blobs:  blobs,
		http:   &http.Client{Timeout: cfg.DownloadTimeout},
		logger: logger.With(logger.KeyComponent, "telegram"),
	}
	t.adapter = ingest.NewAdapter(sessions, images, t)

	t.logger.Info("Telegram transport authenticated", "bot", bot.Self.UserName)
	return t, nil
}

// Run consumes updates until ctx is cancelled. The update channel is
// drained sequentially: per-user ordering is what makes "append to my open
// session" behave the way users expect.
func (t *Transport) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(t.cfg.PollTimeout / time.Second)
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("Telegram transport started", logger.KeyPollInterval, t.cfg.PollTimeout)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.logger.Info("Telegram transport stopping")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Transport) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}

	uc := logger.NewUpdateContext(update.UpdateID, msg.Chat.ID).WithMessageID(int64(msg.MessageID))
	uctx := logger.WithContext(ctx, uc)

	var err error
	switch {
	case msg.Text != "" && strings.HasPrefix(strings.TrimSpace(msg.Text), "/"):
		cmd, ok := ingest.ParseCommand(msg.Text)
		if !ok {
			return
		}
		err = t.adapter.HandleCommand(uctx, msg.Chat.ID, cmd)

	case len(msg.Photo) > 0:
		// The largest rendition is last in the photo size list.
		photo := msg.Photo[len(msg.Photo)-1]
		err = t.handleFile(uctx, msg, photo.FileID, "jpg", "image/jpeg")

	case msg.Document != nil:
		doc := msg.Document
		if !strings.HasPrefix(doc.MimeType, "image/") {
			err = t.adapter.HandleInvalidUpload(uctx, msg.Chat.ID)
			break
		}
		ext := strings.TrimPrefix(path.Ext(doc.FileName), ".")
		err = t.handleFile(uctx, msg, doc.FileID, ext, doc.MimeType)

	case msg.Video != nil || msg.Sticker != nil || msg.Audio != nil || msg.Voice != nil:
		err = t.adapter.HandleInvalidUpload(uctx, msg.Chat.ID)

	default:
		// Plain text without a command: nothing to do.
		return
	}

	if err != nil && ctx.Err() == nil {
		t.logger.Error("Update handling failed",
			logger.KeyUpdateID, update.UpdateID,
			logger.KeyUserID, msg.Chat.ID,
			logger.KeyError, err)
	}
}

// handleFile downloads the upload, stores it in the blob store under its
// content hash, and hands the key to the adapter.
func (t *Transport) handleFile(ctx context.Context, msg *tgbotapi.Message, fileID, ext, contentType string) error {
	data, err := t.download(ctx, fileID)
	if err != nil {
		t.logger.Error("Screenshot download failed",
			logger.KeyUserID, msg.Chat.ID, logger.KeyError, err)
		return t.Reply(ctx, msg.Chat.ID, "Could not fetch that screenshot, please send it again.")
	}

	key := blob.KeyFor(data, ext)
	if err := t.blobs.Put(ctx, key, data, contentType); err != nil {
		t.logger.Error("Screenshot upload to blob store failed",
			logger.KeyUserID, msg.Chat.ID, logger.KeyObjectKey, key, logger.KeyError, err)
		return t.Reply(ctx, msg.Chat.ID, "Could not store that screenshot, please send it again.")
	}

	return t.adapter.HandleUpload(ctx, ingest.Upload{
		UserID:    msg.Chat.ID,
		MessageID: int64(msg.MessageID),
		ObjectKey: key,
	})
}

func (t *Transport) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxDownloadBytes)
	}
	return data, nil
}

// Reply sends a plain text message to the user's chat.
func (t *Transport) Reply(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// Send delivers a dispatcher notification. Satisfies notify.SendFunc.
func (t *Transport) Send(ctx context.Context, n *notify.Notification) error {
	return t.Reply(ctx, n.UserID, n.Message)
}
