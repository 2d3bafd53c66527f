package postgres

import (
	"context"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/PantaKoda/shiftsnap/pkg/notify"
)

// Scope is a short-lived dependency scope handed to one dispatcher cycle.
// It borrows the store's pool rather than opening connections of its own, so
// creating and discarding one per cycle is cheap. Close is where a future
// per-scope resource (a pinned connection, a tracing span) would be
// released.
type Scope struct {
	store *Store
}

// NewScope opens a dependency scope for a single unit of work.
func (s *Store) NewScope(ctx context.Context) (*Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, capture.NewError(capture.KindCancelled, "store.NewScope", "context cancelled", err)
	}
	return &Scope{store: s}, nil
}

// Sessions returns the session repository bound to this scope.
func (sc *Scope) Sessions() capture.SessionRepository { return sc.store.Sessions() }

// Notifications returns the notification repository bound to this scope.
func (sc *Scope) Notifications() notify.Repository { return sc.store.Notifications() }

// Close discards the scope.
func (sc *Scope) Close() {}
