package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
)

// sessionColumns is the canonical column list for capture_session scans.
const sessionColumns = "id, user_id, state, created_at, closed_at, error"

// SessionRepository implements capture.SessionRepository on PostgreSQL.
//
// The single-open invariant lives in the partial unique index, the
// transition graph lives in the capture_session_transition trigger; this
// repository only translates their failures into domain errors.
type SessionRepository struct {
	store *Store
}

var _ capture.SessionRepository = (*SessionRepository)(nil)

func scanSession(row pgx.Row) (*capture.Session, error) {
	var s capture.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.State, &s.CreatedAt, &s.ClosedAt, &s.Error); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new Open session for the user. The partial unique index
// turns a concurrent second open into KindUniquenessConflict.
func (r *SessionRepository) Create(ctx context.Context, userID int64) (*capture.Session, error) {
	const op = "sessions.Create"
	query := `
		INSERT INTO shiftsnap.capture_session (user_id)
		VALUES ($1)
		RETURNING ` + sessionColumns

	s, err := scanSession(r.store.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, mapError(op, err)
	}
	if m := r.store.metrics; m != nil {
		m.RecordSessionOpened()
	}
	return s, nil
}

// GetOpen returns the user's most recent open session, or nil.
func (r *SessionRepository) GetOpen(ctx context.Context, userID int64) (*capture.Session, error) {
	const op = "sessions.GetOpen"
	query := `
		SELECT ` + sessionColumns + `
		FROM shiftsnap.capture_session
		WHERE user_id = $1 AND state = 'open'
		ORDER BY created_at DESC
		LIMIT 1`

	s, err := scanSession(r.store.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(op, err)
	}
	return s, nil
}

// GetOrCreateOpen returns the user's open session, inserting one when none
// exists. The insert uses DO NOTHING against the single-open index; losing
// that race is resolved with one reread. A second miss means something is
// deleting sessions underneath us and is treated as fatal.
func (r *SessionRepository) GetOrCreateOpen(ctx context.Context, userID int64) (*capture.Session, error) {
	const op = "sessions.GetOrCreateOpen"

	s, err := r.GetOpen(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	query := `
		INSERT INTO shiftsnap.capture_session (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) WHERE state = 'open' DO NOTHING
		RETURNING ` + sessionColumns

	s, err = scanSession(r.store.pool.QueryRow(ctx, query, userID))
	if err == nil {
		if m := r.store.metrics; m != nil {
			m.RecordSessionOpened()
		}
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapError(op, err)
	}

	// Conflict: a concurrent writer created the open session. Reread.
	s, err = r.GetOpen(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, capture.NewError(capture.KindInternal, op,
			"open session vanished between conflicting insert and reread", nil)
	}
	return s, nil
}

// CloseOpen atomically closes the user's most recent open session in a
// single statement: the CTE locks the row, the update fires the transition
// trigger which stamps closed_at. Returns nil when the user has no open
// session.
func (r *SessionRepository) CloseOpen(ctx context.Context, userID int64) (*capture.Session, error) {
	const op = "sessions.CloseOpen"
	query := `
		WITH open_session AS (
			SELECT id
			FROM shiftsnap.capture_session
			WHERE user_id = $1 AND state = 'open'
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE
		)
		UPDATE shiftsnap.capture_session s
		SET state = 'closed'
		FROM open_session
		WHERE s.id = open_session.id
		RETURNING s.id, s.user_id, s.state, s.created_at, s.closed_at, s.error`

	s, err := scanSession(r.store.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(op, err)
	}
	if m := r.store.metrics; m != nil {
		m.RecordSessionClosed()
	}
	return s, nil
}

// ClaimNextClosedForProcessing promotes at most one closed session with at
// least one image to processing. SKIP LOCKED makes concurrent claimers pass
// over each other's rows, so two workers never return the same session;
// empty closed sessions are never claimed. Commit (auto, single statement)
// releases the lock.
func (r *SessionRepository) ClaimNextClosedForProcessing(ctx context.Context) (*capture.Session, error) {
	const op = "sessions.ClaimNextClosedForProcessing"
	query := `
		WITH next_session AS (
			SELECT s.id
			FROM shiftsnap.capture_session s
			WHERE s.state = 'closed'
			  AND EXISTS (
				SELECT 1 FROM shiftsnap.capture_image i
				WHERE i.session_id = s.id
			  )
			ORDER BY s.closed_at ASC, s.created_at ASC
			LIMIT 1
			FOR UPDATE OF s SKIP LOCKED
		)
		UPDATE shiftsnap.capture_session s
		SET state = 'processing'
		FROM next_session
		WHERE s.id = next_session.id
		RETURNING s.id, s.user_id, s.state, s.created_at, s.closed_at, s.error`

	s, err := scanSession(r.store.pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(op, err)
	}
	if m := r.store.metrics; m != nil {
		m.RecordSessionClaimed()
	}
	return s, nil
}

// GetByID returns the session or KindNotFound.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*capture.Session, error) {
	const op = "sessions.GetByID"
	query := `
		SELECT ` + sessionColumns + `
		FROM shiftsnap.capture_session
		WHERE id = $1`

	s, err := scanSession(r.store.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return s, nil
}

// UpdateState applies a direct transition; the trigger validates the move
// and maintains closed_at/error stamping. Transitioning to Failed requires
// errorMsg (the error/state check constraint would reject it otherwise).
func (r *SessionRepository) UpdateState(ctx context.Context, id uuid.UUID, state capture.State, errorMsg *string) (*capture.Session, error) {
	const op = "sessions.UpdateState"
	if !state.Valid() {
		return nil, capture.NewError(capture.KindInternal, op, "unknown session state: "+state.String(), nil)
	}
	if state == capture.StateFailed && errorMsg == nil {
		return nil, capture.NewError(capture.KindInternal, op, "transition to failed requires an error message", nil)
	}

	query := `
		UPDATE shiftsnap.capture_session
		SET state = $2, error = $3
		WHERE id = $1
		RETURNING ` + sessionColumns

	s, err := scanSession(r.store.pool.QueryRow(ctx, query, id, state, errorMsg))
	if err != nil {
		return nil, mapError(op, err)
	}
	if m := r.store.metrics; m != nil && state == capture.StateClosed {
		m.RecordSessionClosed()
	}
	return s, nil
}
