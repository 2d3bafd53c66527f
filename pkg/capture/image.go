package capture

import (
	"time"

	"github.com/google/uuid"
)

// Image is a single screenshot stored within a capture session.
//
// Images are append-only: they are never mutated after insert and disappear
// only through a cascading delete of the parent session. Sequence values
// within a session form a contiguous 1..N prefix with no gaps or duplicates.
type Image struct {
	ID        uuid.UUID
	SessionID uuid.UUID

	// Sequence is the 1-based position of this image within its session,
	// assigned under the per-session row lock at insert time.
	Sequence int

	// ObjectKey is the content-addressed blob store key. Globally unique;
	// a duplicate key is the idempotency signal for a replayed upload.
	ObjectKey string

	// ExternalMessageID is the chat transport's message id, when known.
	// Unique within a session so duplicate webhook deliveries of the same
	// message cannot produce two sequences.
	ExternalMessageID *int64

	CreatedAt time.Time
}
