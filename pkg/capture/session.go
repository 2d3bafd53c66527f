// Package capture defines the capture-session domain model: user-scoped
// groupings of schedule screenshots, their lifecycle states, and the
// repository contracts the persistence layer implements.
package capture

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a capture session.
//
// Sessions move along a directed graph:
//
//	Open -> {Closed, Failed}
//	Closed -> {Processing, Failed}
//	Processing -> {Done, Failed}
//
// Self-transitions are no-ops. Every other move is rejected by the store's
// transition trigger.
type State string

const (
	StateOpen       State = "open"
	StateClosed     State = "closed"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Valid reports whether s is one of the known session states.
func (s State) Valid() bool {
	switch s {
	case StateOpen, StateClosed, StateProcessing, StateDone, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransitionTo reports whether the move s -> next is allowed by the
// session lifecycle graph. Self-transitions are allowed (the store treats
// them as no-ops).
func (s State) CanTransitionTo(next State) bool {
	if s == next {
		return true
	}
	switch s {
	case StateOpen:
		return next == StateClosed || next == StateFailed
	case StateClosed:
		return next == StateProcessing || next == StateFailed
	case StateProcessing:
		return next == StateDone || next == StateFailed
	}
	return false
}

func (s State) String() string {
	return string(s)
}

// Session is a user-scoped grouping of one or more screenshot uploads.
//
// Invariants (enforced by the store):
//   - at most one Open session per user at any time;
//   - ClosedAt is nil exactly when the session is Open;
//   - Error is non-nil exactly when the session is Failed.
type Session struct {
	ID        uuid.UUID
	UserID    int64
	State     State
	CreatedAt time.Time
	ClosedAt  *time.Time
	Error     *string
}

// IsOpen reports whether the session still accepts image appends.
func (s *Session) IsOpen() bool {
	return s.State == StateOpen
}
