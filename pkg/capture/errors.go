package capture

import (
	"errors"
	"fmt"
)

// Kind classifies store and domain failures into the categories callers
// actually branch on. Repositories translate driver errors into kinds and
// never leak pgx or pgconn types.
type Kind int

const (
	// KindUnknown is the zero value; KindOf returns it for errors that did
	// not originate in this package.
	KindUnknown Kind = iota

	// KindUniquenessConflict means a store uniqueness constraint fired.
	// Callers treat it as a signal to reconcile (reread state), not as a
	// fatal error.
	KindUniquenessConflict

	// KindNotFound means the targeted row does not exist.
	KindNotFound

	// KindIllegalState means a domain trigger rejected the write, e.g. an
	// append on a session that is no longer open. Surfaced to the user as a
	// benign reply and never retried.
	KindIllegalState

	// KindIllegalTransition means the session transition trigger rejected
	// the state change. Fatal for the current operation.
	KindIllegalTransition

	// KindTransient covers connection resets, timeouts, serialization
	// failures and deadlocks. Dispatchers swallow these and retry on the
	// next tick.
	KindTransient

	// KindCancelled is cooperative cancellation. Never written as a status.
	KindCancelled

	// KindInternal is an invariant violation, e.g. RETURNING produced no
	// row where one was guaranteed.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindUniquenessConflict:
		return "uniqueness_conflict"
	case KindNotFound:
		return "not_found"
	case KindIllegalState:
		return "illegal_state"
	case KindIllegalTransition:
		return "illegal_transition"
	case KindTransient:
		return "transient"
	case KindCancelled:
		return "cancelled"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the domain error carried across the repository boundary.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "sessions.Create"
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on kind when the target is an *Error with no
// operation or cause, so sentinel-style comparisons work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a domain error.
func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown if err is not a domain
// error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
