package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
)

func TestSessionCreateAndGetOpen(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	s, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, s.UserID)
	assert.Equal(t, capture.StateOpen, s.State)
	assert.Nil(t, s.ClosedAt)
	assert.Nil(t, s.Error)
	assert.False(t, s.CreatedAt.IsZero())

	open, err := store.Sessions().GetOpen(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, s.ID, open.ID)
}

func TestSessionGetOpenReturnsNilWhenNone(t *testing.T) {
	store := setupTestStore(t)

	open, err := store.Sessions().GetOpen(context.Background(), nextUserID())
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestSessionSecondOpenConflicts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	_, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)

	_, err = store.Sessions().Create(ctx, userID)
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindUniquenessConflict),
		"expected uniqueness conflict, got: %v", err)
}

func TestSessionConcurrentCreateSingleWinner(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Sessions().Create(ctx, userID)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case capture.IsKind(err, capture.KindUniquenessConflict):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
}

func TestSessionGetOrCreateOpen(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	first, err := store.Sessions().GetOrCreateOpen(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, capture.StateOpen, first.State)

	second, err := store.Sessions().GetOrCreateOpen(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSessionCloseOpen(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	s, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)

	closed, err := store.Sessions().CloseOpen(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, s.ID, closed.ID)
	assert.Equal(t, capture.StateClosed, closed.State)
	require.NotNil(t, closed.ClosedAt)
	assert.False(t, closed.ClosedAt.Before(closed.CreatedAt))

	// Nothing open anymore.
	again, err := store.Sessions().CloseOpen(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestSessionCloseAllowsReopen(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	first, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)
	_, err = store.Sessions().CloseOpen(ctx, userID)
	require.NoError(t, err)

	second, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, capture.StateOpen, second.State)
}

func TestSessionGetByIDNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Sessions().GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindNotFound))
}

func TestSessionUpdateStateWalksLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	s := createClosedSession(t, store, 1)

	processing, err := store.Sessions().UpdateState(ctx, s.ID, capture.StateProcessing, nil)
	require.NoError(t, err)
	assert.Equal(t, capture.StateProcessing, processing.State)

	done, err := store.Sessions().UpdateState(ctx, s.ID, capture.StateDone, nil)
	require.NoError(t, err)
	assert.Equal(t, capture.StateDone, done.State)
	assert.Nil(t, done.Error)
}

func TestSessionUpdateStateRejectsIllegalTransition(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	s, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)

	// open -> done skips closed and processing.
	_, err = store.Sessions().UpdateState(ctx, s.ID, capture.StateDone, nil)
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindIllegalTransition),
		"expected illegal transition, got: %v", err)

	// The row is untouched.
	got, err := store.Sessions().GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, capture.StateOpen, got.State)
}

func TestSessionUpdateStateSelfTransitionIsNoop(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	s := createClosedSession(t, store, 1)

	again, err := store.Sessions().UpdateState(ctx, s.ID, capture.StateClosed, nil)
	require.NoError(t, err)
	assert.Equal(t, capture.StateClosed, again.State)
	assert.Equal(t, s.ClosedAt.UTC(), again.ClosedAt.UTC())
}

func TestSessionUpdateStateFailedRequiresError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	s := createClosedSession(t, store, 1)

	_, err := store.Sessions().UpdateState(ctx, s.ID, capture.StateFailed, nil)
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindInternal))

	msg := "ocr exploded"
	failed, err := store.Sessions().UpdateState(ctx, s.ID, capture.StateFailed, &msg)
	require.NoError(t, err)
	assert.Equal(t, capture.StateFailed, failed.State)
	require.NotNil(t, failed.Error)
	assert.Equal(t, msg, *failed.Error)
}

func TestClaimNextClosedOrdersByClosedAt(t *testing.T) {
	store := setupTestStore(t)
	truncateAll(t, store)
	ctx := context.Background()

	first := createClosedSession(t, store, 1)
	time.Sleep(20 * time.Millisecond)
	second := createClosedSession(t, store, 1)

	claimed, err := store.Sessions().ClaimNextClosedForProcessing(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, capture.StateProcessing, claimed.State)

	claimed, err = store.Sessions().ClaimNextClosedForProcessing(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, second.ID, claimed.ID)

	// Queue drained.
	claimed, err = store.Sessions().ClaimNextClosedForProcessing(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimSkipsEmptySessions(t *testing.T) {
	store := setupTestStore(t)
	truncateAll(t, store)
	ctx := context.Background()

	// Closed but without a single image: never claimable.
	empty := createClosedSession(t, store, 0)
	withImages := createClosedSession(t, store, 2)

	claimed, err := store.Sessions().ClaimNextClosedForProcessing(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, withImages.ID, claimed.ID)

	claimed, err = store.Sessions().ClaimNextClosedForProcessing(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	got, err := store.Sessions().GetByID(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, capture.StateClosed, got.State)
}

func TestClaimConcurrentNoDoubleHandOut(t *testing.T) {
	store := setupTestStore(t)
	truncateAll(t, store)
	ctx := context.Background()

	const sessions = 6
	for i := 0; i < sessions; i++ {
		createClosedSession(t, store, 1)
	}

	var (
		mu      sync.Mutex
		claimed []uuid.UUID
		wg      sync.WaitGroup
	)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := store.Sessions().ClaimNextClosedForProcessing(ctx)
			assert.NoError(t, err)
			if s != nil {
				mu.Lock()
				claimed = append(claimed, s.ID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	seen := make(map[uuid.UUID]bool, len(claimed))
	for _, id := range claimed {
		assert.False(t, seen[id], "session %s claimed twice", id)
		seen[id] = true
	}
	assert.Len(t, claimed, sessions)
}
