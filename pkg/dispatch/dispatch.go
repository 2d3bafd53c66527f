// Package dispatch implements the two background pollers: the session claim
// dispatcher, which promotes closed capture sessions to processing, and the
// notification dispatcher, which drains the pending outbound queue.
//
// Both are single-threaded cooperative loops. All coordination between
// concurrent dispatcher instances happens in the store (skip-locked reads),
// never in process memory.
package dispatch

import (
	"context"
	"time"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/PantaKoda/shiftsnap/pkg/notify"
)

// Scope is a short-lived dependency scope opened for one dispatcher cycle
// and discarded at its end.
type Scope interface {
	Sessions() capture.SessionRepository
	Notifications() notify.Repository
	Close()
}

// ScopeFactory opens a fresh scope. Each dispatcher owns one factory,
// provided at start; no global registry.
type ScopeFactory func(ctx context.Context) (Scope, error)

// sleep waits for d or until ctx is cancelled, whichever comes first.
// Returns ctx.Err() when cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
