// Package ingest translates chat commands and uploads into capture
// repository calls. The adapter is deliberately stateless: all grouping
// truth lives in the store, so any number of concurrent webhook handlers
// can run against the same adapter instance.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PantaKoda/shiftsnap/internal/logger"
	"github.com/PantaKoda/shiftsnap/pkg/capture"
)

// Replier sends a text reply back to a chat user. Implemented by the
// Telegram transport.
type Replier interface {
	Reply(ctx context.Context, userID int64, text string) error
}

// Upload is a validated screenshot upload, already persisted to the blob
// store by the transport.
type Upload struct {
	UserID    int64
	MessageID int64
	ObjectKey string
}

// User-facing reply texts.
const (
	replySessionOpened   = "Capture session %s is open. Send your schedule screenshots, then /close."
	replySessionReused   = "You already have an open session %s. Send your screenshots, then /close."
	replyNoOpenSession   = "You have no open capture session. Send a screenshot or /start_session to begin."
	replySessionClosed   = "Session %s closed with %d image(s). Processing will begin shortly."
	replyImageStored     = "Stored screenshot %d in session %s."
	replySingleUpload    = "Stored screenshot 1 in session %s and closed it (single-upload mode)."
	replyDuplicateImage  = "This screenshot is already stored."
	replySessionGone     = "Your capture session just closed. Start a new one with /start_session."
	replyInvalidMedia    = "That doesn't look like a schedule screenshot. Please send it as a photo."
	replyGenericFailure  = "Something went wrong, please try again."
)

// Adapter is the thin ingress boundary between the chat transport and the
// capture repositories.
type Adapter struct {
	sessions capture.SessionRepository
	images   capture.ImageRepository
	replier  Replier
	logger   *slog.Logger
}

// NewAdapter wires the ingress boundary.
func NewAdapter(sessions capture.SessionRepository, images capture.ImageRepository, replier Replier) *Adapter {
	return &Adapter{
		sessions: sessions,
		images:   images,
		replier:  replier,
		logger:   logger.With(logger.KeyComponent, "ingest"),
	}
}

// HandleCommand processes a recognized bot command. Unexpected repository
// failures are logged and answered with a generic failure reply; the
// returned error is only ever a reply-delivery failure, so the transport
// can ack the update either way and never re-deliver.
func (a *Adapter) HandleCommand(ctx context.Context, userID int64, cmd Command) error {
	switch cmd {
	case CommandStartSession:
		return a.startSession(ctx, userID)
	case CommandClose, CommandDone:
		return a.closeSession(ctx, userID)
	default:
		return nil
	}
}

// startSession opens a session for the user, reusing the existing open one
// when a concurrent (or earlier) start already created it.
func (a *Adapter) startSession(ctx context.Context, userID int64) error {
	session, err := a.sessions.Create(ctx, userID)
	if capture.IsKind(err, capture.KindUniquenessConflict) {
		// Lost the race or the user already has a session; reuse it.
		session, err = a.sessions.GetOpen(ctx, userID)
		if err == nil && session != nil {
			return a.reply(ctx, userID, fmt.Sprintf(replySessionReused, session.ID))
		}
	}
	if err != nil {
		return a.replyFailure(ctx, userID, "start_session", err)
	}
	if session == nil {
		return a.replyFailure(ctx, userID, "start_session",
			capture.NewError(capture.KindInternal, "ingest.startSession", "no session after create", nil))
	}
	return a.reply(ctx, userID, fmt.Sprintf(replySessionOpened, session.ID))
}

// closeSession closes the user's open session and reports its image count.
func (a *Adapter) closeSession(ctx context.Context, userID int64) error {
	session, err := a.sessions.CloseOpen(ctx, userID)
	if err != nil {
		return a.replyFailure(ctx, userID, "close", err)
	}
	if session == nil {
		return a.reply(ctx, userID, replyNoOpenSession)
	}

	count, err := a.images.CountBySession(ctx, session.ID)
	if err != nil {
		a.logger.Error("Counting images for closed session failed",
			logger.KeySessionID, session.ID, logger.KeyError, err)
		count = 0
	}
	return a.reply(ctx, userID, fmt.Sprintf(replySessionClosed, session.ID, count))
}

// HandleUpload stores a validated upload. With an open session this is a
// plain append (explicit multi mode); without one, a session is created,
// the image appended, and the session closed again in the same handler
// (implicit single mode).
func (a *Adapter) HandleUpload(ctx context.Context, up Upload) error {
	open, err := a.sessions.GetOpen(ctx, up.UserID)
	if err != nil {
		return a.replyFailure(ctx, up.UserID, "upload", err)
	}
	if open != nil {
		return a.appendToOpen(ctx, open, up)
	}
	return a.implicitSingle(ctx, up)
}

// HandleInvalidUpload rejects media the transport could not validate.
// Nothing is persisted.
func (a *Adapter) HandleInvalidUpload(ctx context.Context, userID int64) error {
	return a.reply(ctx, userID, replyInvalidMedia)
}

func (a *Adapter) appendToOpen(ctx context.Context, session *capture.Session, up Upload) error {
	img, err := a.images.AppendNext(ctx, session.ID, up.ObjectKey, messageID(up))
	switch capture.KindOf(err) {
	case capture.KindUnknown:
		if err != nil {
			return a.replyFailure(ctx, up.UserID, "append", err)
		}
	case capture.KindUniquenessConflict:
		// Same object key or message id again: a replayed upload.
		return a.reply(ctx, up.UserID, replyDuplicateImage)
	case capture.KindIllegalState, capture.KindNotFound:
		// Session closed between GetOpen and the append.
		return a.reply(ctx, up.UserID, replySessionGone)
	default:
		return a.replyFailure(ctx, up.UserID, "append", err)
	}

	return a.reply(ctx, up.UserID, fmt.Sprintf(replyImageStored, img.Sequence, session.ID))
}

// implicitSingle runs create -> append -> close for a lone upload with no
// open session. If the create loses to a concurrent upload, fall through to
// the multi-upload path against the winner's session.
func (a *Adapter) implicitSingle(ctx context.Context, up Upload) error {
	session, err := a.sessions.Create(ctx, up.UserID)
	if capture.IsKind(err, capture.KindUniquenessConflict) {
		open, gerr := a.sessions.GetOpen(ctx, up.UserID)
		if gerr != nil {
			return a.replyFailure(ctx, up.UserID, "upload", gerr)
		}
		if open == nil {
			// The concurrent session closed already; surface as gone.
			return a.reply(ctx, up.UserID, replySessionGone)
		}
		return a.appendToOpen(ctx, open, up)
	}
	if err != nil {
		return a.replyFailure(ctx, up.UserID, "upload", err)
	}

	if _, err := a.images.AppendNext(ctx, session.ID, up.ObjectKey, messageID(up)); err != nil {
		if capture.IsKind(err, capture.KindUniquenessConflict) {
			return a.reply(ctx, up.UserID, replyDuplicateImage)
		}
		return a.replyFailure(ctx, up.UserID, "upload", err)
	}

	if _, err := a.sessions.UpdateState(ctx, session.ID, capture.StateClosed, nil); err != nil {
		return a.replyFailure(ctx, up.UserID, "upload", err)
	}

	return a.reply(ctx, up.UserID, fmt.Sprintf(replySingleUpload, session.ID))
}

func (a *Adapter) reply(ctx context.Context, userID int64, text string) error {
	return a.replier.Reply(ctx, userID, text)
}

// replyFailure logs the failure and sends the generic reply. Cancellation
// is propagated instead so shutdown does not produce half-sent replies.
func (a *Adapter) replyFailure(ctx context.Context, userID int64, op string, err error) error {
	if capture.IsKind(err, capture.KindCancelled) || ctx.Err() != nil {
		return err
	}
	a.logger.Error("Ingress operation failed",
		logger.KeyUserID, userID, "op", op, logger.KeyError, err)
	return a.reply(ctx, userID, replyGenericFailure)
}

func messageID(up Upload) *int64 {
	if up.MessageID == 0 {
		return nil
	}
	id := up.MessageID
	return &id
}
