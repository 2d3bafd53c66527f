package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/PantaKoda/shiftsnap/pkg/notify"
)

// insertNotification enqueues a minimal pending notification and returns it.
func insertNotification(t *testing.T, store *Store, userID int64, message string) *notify.Notification {
	t.Helper()
	n := &notify.Notification{
		ID:      uuid.NewString(),
		UserID:  userID,
		Message: message,
	}
	require.NoError(t, store.Notifications().Insert(context.Background(), n))
	return n
}

func TestNotificationInsertAndGetByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	s := createClosedSession(t, store, 1)
	scheduleDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	nType := "schedule_published"

	n := &notify.Notification{
		ID:              uuid.NewString(),
		UserID:          s.UserID,
		Message:         "Your schedule for 2026-03-14 is ready.",
		ScheduleDate:    &scheduleDate,
		SourceSessionID: &s.ID,
		Type:            &nType,
		EventIDs:        []string{"evt-1", "evt-2"},
	}
	require.NoError(t, store.Notifications().Insert(ctx, n))

	got, err := store.Notifications().GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.UserID, got.UserID)
	assert.Equal(t, n.Message, got.Message)
	assert.Equal(t, notify.StatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Nil(t, got.SentAt)
	require.NotNil(t, got.ScheduleDate)
	assert.Equal(t, "2026-03-14", got.ScheduleDate.Format("2006-01-02"))
	require.NotNil(t, got.SourceSessionID)
	assert.Equal(t, s.ID, *got.SourceSessionID)
	require.NotNil(t, got.Type)
	assert.Equal(t, nType, *got.Type)
	assert.Equal(t, []string{"evt-1", "evt-2"}, got.EventIDs)
}

func TestNotificationGetByIDNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Notifications().GetByID(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindNotFound))
}

func TestDispatchPendingMixedResults(t *testing.T) {
	store := setupTestStore(t)
	truncateAll(t, store)
	ctx := context.Background()

	ok1 := insertNotification(t, store, nextUserID(), "first")
	bad := insertNotification(t, store, nextUserID(), "second")
	ok2 := insertNotification(t, store, nextUserID(), "third")

	send := func(ctx context.Context, n *notify.Notification) error {
		if n.ID == bad.ID {
			return fmt.Errorf("user blocked the bot")
		}
		return nil
	}

	res, err := store.Notifications().DispatchPending(ctx, send, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Claimed)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)

	for _, id := range []string{ok1.ID, ok2.ID} {
		got, err := store.Notifications().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusSent, got.Status)
		require.NotNil(t, got.SentAt)
	}

	got, err := store.Notifications().GetByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, notify.StatusFailed, got.Status)
	assert.Nil(t, got.SentAt)

	// Terminal rows are never redelivered.
	res, err = store.Notifications().DispatchPending(ctx, send, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Claimed)
}

func TestDispatchPendingDeliversInInsertionOrder(t *testing.T) {
	store := setupTestStore(t)
	truncateAll(t, store)
	ctx := context.Background()

	var inserted []string
	for i := 0; i < 4; i++ {
		n := insertNotification(t, store, nextUserID(), fmt.Sprintf("message %d", i))
		inserted = append(inserted, n.ID)
		time.Sleep(5 * time.Millisecond)
	}

	var delivered []string
	send := func(ctx context.Context, n *notify.Notification) error {
		delivered = append(delivered, n.ID)
		return nil
	}

	res, err := store.Notifications().DispatchPending(ctx, send, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Sent)
	assert.Equal(t, inserted, delivered)
}

func TestDispatchPendingHonorsBatchSize(t *testing.T) {
	store := setupTestStore(t)
	truncateAll(t, store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		insertNotification(t, store, nextUserID(), fmt.Sprintf("message %d", i))
	}

	send := func(ctx context.Context, n *notify.Notification) error { return nil }

	res, err := store.Notifications().DispatchPending(ctx, send, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Claimed)
	assert.Equal(t, 2, res.Sent)

	res, err = store.Notifications().DispatchPending(ctx, send, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Claimed)
}

func TestDispatchPendingCancellationLeavesBatchPending(t *testing.T) {
	store := setupTestStore(t)
	truncateAll(t, store)

	first := insertNotification(t, store, nextUserID(), "first")
	second := insertNotification(t, store, nextUserID(), "second")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first send succeeds, then shutdown hits before the second.
	calls := 0
	send := func(ctx context.Context, n *notify.Notification) error {
		calls++
		if calls == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	_, err := store.Notifications().DispatchPending(ctx, send, 10)
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindCancelled),
		"expected cancellation, got: %v", err)

	// Rollback returned every claimed row to pending, including the one
	// whose send already succeeded (at-least-once delivery).
	for _, id := range []string{first.ID, second.ID} {
		got, err := store.Notifications().GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, notify.StatusPending, got.Status)
	}
}

func TestDispatchPendingConcurrentDispatchersNeverOverlap(t *testing.T) {
	store := setupTestStore(t)
	truncateAll(t, store)
	ctx := context.Background()

	const total = 10
	for i := 0; i < total; i++ {
		insertNotification(t, store, nextUserID(), fmt.Sprintf("message %d", i))
	}

	// Slow sends keep both transactions open long enough to overlap.
	claimedBy := make([][]string, 2)
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			send := func(ctx context.Context, n *notify.Notification) error {
				claimedBy[w] = append(claimedBy[w], n.ID)
				time.Sleep(20 * time.Millisecond)
				return nil
			}
			_, err := store.Notifications().DispatchPending(ctx, send, total/2)
			assert.NoError(t, err)
		}(w)
	}
	wg.Wait()

	seen := make(map[string]int)
	for _, ids := range claimedBy {
		for _, id := range ids {
			seen[id]++
		}
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "notification %s dispatched by both workers", id)
	}
	assert.Len(t, seen, total)
}
