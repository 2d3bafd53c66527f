package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/PantaKoda/shiftsnap/pkg/notify"
)

const notificationColumns = `notification_id, user_id, message, status, created_at, sent_at,
		schedule_date, source_session_id, notification_type, event_ids`

// NotificationRepository implements notify.Repository on PostgreSQL.
type NotificationRepository struct {
	store *Store
}

var _ notify.Repository = (*NotificationRepository)(nil)

func scanNotification(row pgx.Row) (*notify.Notification, error) {
	var n notify.Notification
	if err := row.Scan(
		&n.ID, &n.UserID, &n.Message, &n.Status, &n.CreatedAt, &n.SentAt,
		&n.ScheduleDate, &n.SourceSessionID, &n.Type, &n.EventIDs,
	); err != nil {
		return nil, err
	}
	return &n, nil
}

// Insert enqueues a pending notification.
func (r *NotificationRepository) Insert(ctx context.Context, n *notify.Notification) error {
	const op = "notifications.Insert"
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO shiftsnap.schedule_notification
			(notification_id, user_id, message, schedule_date, source_session_id, notification_type, event_ids)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'))`,
		n.ID, n.UserID, n.Message, n.ScheduleDate, n.SourceSessionID, n.Type, n.EventIDs,
	)
	if err != nil {
		return mapError(op, err)
	}
	return nil
}

// GetByID returns the notification or KindNotFound.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*notify.Notification, error) {
	const op = "notifications.GetByID"
	n, err := scanNotification(r.store.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM shiftsnap.schedule_notification
		WHERE notification_id = $1`,
		id,
	))
	if err != nil {
		return nil, mapError(op, err)
	}
	return n, nil
}

// DispatchPending drains up to batchSize pending notifications in one
// transaction.
//
// Semantics: at-least-once delivery, at-most-once status commit. A crash
// after send but before commit leaves the row pending and it is redelivered
// on the next poll; the per-row status updates only become visible with the
// single commit at the end. SKIP LOCKED keeps concurrent dispatchers from
// ever claiming overlapping rows.
//
// A cancellation surfacing from send (or the ambient context) propagates
// immediately with no further writes; the deferred rollback returns every
// claimed row to pending.
func (r *NotificationRepository) DispatchPending(ctx context.Context, send notify.SendFunc, batchSize int) (notify.DispatchResult, error) {
	const op = "notifications.DispatchPending"
	var res notify.DispatchResult

	if batchSize < 1 {
		batchSize = 1
	}

	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return res, mapError(op, err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	rows, err := tx.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM shiftsnap.schedule_notification
		WHERE status = 'pending'
		ORDER BY created_at ASC, notification_id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		batchSize,
	)
	if err != nil {
		return res, mapError(op, err)
	}

	var batch []notify.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			rows.Close()
			return res, mapError(op, err)
		}
		batch = append(batch, *n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, mapError(op, err)
	}

	res.Claimed = len(batch)

	for i := range batch {
		n := &batch[i]

		sendErr := send(ctx, n)
		if sendErr != nil && isCancellation(ctx, sendErr) {
			// Propagate without marking anything; rollback leaves the
			// whole batch pending.
			return res, capture.NewError(capture.KindCancelled, op, "dispatch cancelled during send", sendErr)
		}

		if sendErr != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE shiftsnap.schedule_notification
				SET status = 'failed'
				WHERE notification_id = $1`,
				n.ID,
			); err != nil {
				return res, mapError(op, err)
			}
			res.Failed++
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE shiftsnap.schedule_notification
			SET status = 'sent', sent_at = $2
			WHERE notification_id = $1`,
			n.ID, time.Now().UTC(),
		); err != nil {
			return res, mapError(op, err)
		}
		res.Sent++
	}

	if err := tx.Commit(ctx); err != nil {
		return res, mapError(op, err)
	}
	if m := r.store.metrics; m != nil && res.Claimed > 0 {
		m.RecordNotificationDispatch(res.Claimed, res.Sent, res.Failed)
	}
	return res, nil
}

// isCancellation reports whether a send failure is cooperative cancellation
// rather than a delivery failure.
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
