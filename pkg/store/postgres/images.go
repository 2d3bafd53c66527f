package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
)

const imageColumns = "id, session_id, sequence, object_key, external_message_id, created_at"

// ImageRepository implements capture.ImageRepository on PostgreSQL.
type ImageRepository struct {
	store *Store
}

var _ capture.ImageRepository = (*ImageRepository)(nil)

func scanImage(row pgx.Row) (*capture.Image, error) {
	var img capture.Image
	if err := row.Scan(&img.ID, &img.SessionID, &img.Sequence, &img.ObjectKey, &img.ExternalMessageID, &img.CreatedAt); err != nil {
		return nil, err
	}
	return &img, nil
}

// AppendNext assigns the next sequence and inserts the image, all under the
// session's row lock.
//
// The lock serializes every writer for one session, so no two appends can
// observe the same MAX(sequence); writes to different sessions proceed in
// parallel. A database-side sequence would leak gaps on rollback, which is
// why the sequence is computed here instead. The UNIQUE(session_id,
// sequence) index turns any violation of that reasoning into a hard error
// rather than silent corruption, and the BEFORE INSERT trigger rejects the
// row unless the session is still open.
func (r *ImageRepository) AppendNext(ctx context.Context, sessionID uuid.UUID, objectKey string, externalMessageID *int64) (*capture.Image, error) {
	const op = "images.AppendNext"

	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	// Lock the session row; all appenders for this session queue here.
	var state capture.State
	err = tx.QueryRow(ctx,
		`SELECT state FROM shiftsnap.capture_session WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, capture.NewError(capture.KindNotFound, op, "session does not exist", err)
	}
	if err != nil {
		return nil, mapError(op, err)
	}

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM shiftsnap.capture_image WHERE session_id = $1`,
		sessionID,
	).Scan(&next)
	if err != nil {
		return nil, mapError(op, err)
	}

	img, err := scanImage(tx.QueryRow(ctx, `
		INSERT INTO shiftsnap.capture_image (session_id, sequence, object_key, external_message_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+imageColumns,
		sessionID, next, objectKey, externalMessageID,
	))
	if err != nil {
		return nil, mapError(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(op, err)
	}
	if m := r.store.metrics; m != nil {
		m.RecordImageAppended()
	}
	return img, nil
}

// CountBySession returns the number of images in the session.
func (r *ImageRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	const op = "images.CountBySession"
	var count int
	err := r.store.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM shiftsnap.capture_image WHERE session_id = $1`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, mapError(op, err)
	}
	return count, nil
}

// ListBySession returns the session's images ordered by ascending sequence.
func (r *ImageRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]capture.Image, error) {
	const op = "images.ListBySession"
	rows, err := r.store.pool.Query(ctx, `
		SELECT `+imageColumns+`
		FROM shiftsnap.capture_image
		WHERE session_id = $1
		ORDER BY sequence ASC`,
		sessionID,
	)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var images []capture.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return images, nil
}
