// Package notify defines the outbound schedule-notification queue: pending
// rows inserted by upstream producers, drained by the delivery dispatcher
// with at-least-once delivery and at-most-once status commit.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the delivery status of a notification. Rows are terminal after
// sent or failed; the core never retries.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is one outbound message for a user.
//
// The schedule payload fields (date, source session, type, event ids) are
// opaque to the core: producers write them, the chat transport may render
// them, the dispatcher only moves status.
type Notification struct {
	ID        string
	UserID    int64
	Message   string
	Status    Status
	CreatedAt time.Time

	// SentAt is set exactly when Status is sent.
	SentAt *time.Time

	ScheduleDate    *time.Time
	SourceSessionID *uuid.UUID
	Type            *string
	EventIDs        []string
}

// SendFunc delivers one notification through the external chat transport.
// A cancellation error propagates out of DispatchPending without any status
// write; any other error marks the row failed.
type SendFunc func(ctx context.Context, n *Notification) error

// DispatchResult reports one drain cycle. Sent+Failed == Claimed unless the
// cycle was cancelled mid-batch.
type DispatchResult struct {
	Claimed int
	Sent    int
	Failed  int
}

// Repository is the persistence contract for the notification queue.
type Repository interface {
	// Insert enqueues a pending notification. Used by upstream producers
	// (the OCR worker) and by tests.
	Insert(ctx context.Context, n *Notification) error

	// GetByID returns the notification or a capture.KindNotFound error.
	GetByID(ctx context.Context, id string) (*Notification, error)

	// DispatchPending claims up to batchSize pending rows with a
	// skip-locked read, invokes send for each in (created_at, id) order,
	// writes per-row sent/failed statuses inside the same transaction, and
	// commits once. Concurrent dispatchers never observe the same row.
	DispatchPending(ctx context.Context, send SendFunc, batchSize int) (DispatchResult, error)
}
