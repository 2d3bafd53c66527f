package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
)

// Messages raised by the schema triggers. The repositories match on these
// prefixes to classify P0001 (raise_exception) errors; they must stay in
// sync with the migration SQL.
const (
	raiseIllegalTransition = "illegal session transition"
	raiseSessionNotOpen    = "session not open"
	raiseSessionNotFound   = "session not found"
)

// mapError translates driver errors into the domain taxonomy. Callers that
// treat pgx.ErrNoRows as "none" must check for it before calling.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var domainErr *capture.Error
	if errors.As(err, &domainErr) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return capture.NewError(capture.KindCancelled, op, "operation cancelled", err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return capture.NewError(capture.KindNotFound, op, "row not found", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(op, pgErr)
	}

	return capture.NewError(capture.KindInternal, op, err.Error(), err)
}

// mapPgError maps PostgreSQL error codes to domain error kinds.
// Codes: https://www.postgresql.org/docs/current/errcodes-appendix.html
func mapPgError(op string, pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	// 23505: unique_violation — single-open index, sequence index, or
	// object_key anchor fired. Callers reconcile by rereading.
	case "23505":
		return capture.NewError(capture.KindUniquenessConflict, op, pgErr.Message, pgErr)

	// P0001: raise_exception — one of our trigger guards.
	case "P0001":
		switch {
		case strings.HasPrefix(pgErr.Message, raiseIllegalTransition):
			return capture.NewError(capture.KindIllegalTransition, op, pgErr.Message, pgErr)
		case strings.HasPrefix(pgErr.Message, raiseSessionNotOpen):
			return capture.NewError(capture.KindIllegalState, op, pgErr.Message, pgErr)
		case strings.HasPrefix(pgErr.Message, raiseSessionNotFound):
			return capture.NewError(capture.KindNotFound, op, pgErr.Message, pgErr)
		}
		return capture.NewError(capture.KindInternal, op, pgErr.Message, pgErr)

	// 23503: foreign_key_violation — referenced session is gone.
	case "23503":
		return capture.NewError(capture.KindNotFound, op, pgErr.Message, pgErr)

	// 40001: serialization_failure, 40P01: deadlock_detected,
	// 57014: query_canceled (statement timeout) — retry on next tick.
	case "40001", "40P01", "57014":
		return capture.NewError(capture.KindTransient, op, pgErr.Message, pgErr)
	}

	// 08xxx: connection exceptions
	if strings.HasPrefix(pgErr.Code, "08") {
		return capture.NewError(capture.KindTransient, op, pgErr.Message, pgErr)
	}

	return capture.NewError(capture.KindInternal, op, pgErr.Message, pgErr)
}
