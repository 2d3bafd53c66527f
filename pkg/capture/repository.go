package capture

import (
	"context"

	"github.com/google/uuid"
)

// SessionRepository persists capture sessions and hands closed ones to
// competing workers.
//
// Lookups that may legitimately find nothing (GetOpen, CloseOpen,
// ClaimNextClosedForProcessing) return (nil, nil) rather than a NotFound
// error; GetByID returns KindNotFound because a missing id there is a caller
// bug.
type SessionRepository interface {
	// Create inserts a new Open session for the user. Fails with
	// KindUniquenessConflict if the user already has an open session; the
	// caller recovers via GetOpen.
	Create(ctx context.Context, userID int64) (*Session, error)

	// GetOrCreateOpen returns the user's open session, creating one if
	// needed. Losing the insert race to a concurrent creator is resolved by
	// rereading; if neither branch yields a row the call fails with
	// KindInternal.
	GetOrCreateOpen(ctx context.Context, userID int64) (*Session, error)

	// GetOpen returns the user's most recent open session, or nil.
	GetOpen(ctx context.Context, userID int64) (*Session, error)

	// CloseOpen atomically locks and closes the user's most recent open
	// session, returning the updated row, or nil if the user has none.
	CloseOpen(ctx context.Context, userID int64) (*Session, error)

	// ClaimNextClosedForProcessing promotes at most one Closed session with
	// at least one image to Processing, using a skip-locked read so two
	// concurrent claimers never return the same session. Oldest closed_at
	// wins, then oldest created_at. Returns nil when nothing is claimable.
	ClaimNextClosedForProcessing(ctx context.Context) (*Session, error)

	// GetByID returns the session or fails with KindNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// UpdateState applies a direct transition. The store's transition
	// trigger rejects illegal moves with KindIllegalTransition. errorMsg is
	// required when transitioning to Failed and ignored otherwise.
	UpdateState(ctx context.Context, id uuid.UUID, state State, errorMsg *string) (*Session, error)
}

// ImageRepository appends screenshots to open sessions.
type ImageRepository interface {
	// AppendNext inserts the next image for the session, assigning
	// MAX(sequence)+1 under the session's row lock so concurrent appenders
	// serialize and the sequence stays gap-free. Fails with KindNotFound if
	// the session does not exist, KindIllegalState if it is not open, and
	// KindUniquenessConflict if the object key was already stored.
	AppendNext(ctx context.Context, sessionID uuid.UUID, objectKey string, externalMessageID *int64) (*Image, error)

	// CountBySession returns the number of images in the session.
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)

	// ListBySession returns the session's images ordered by ascending
	// sequence.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Image, error)
}
