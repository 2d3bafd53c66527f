package postgres

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
)

func TestImageAppendAssignsContiguousSequence(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	s, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)

	msgID := int64(1001)
	for i := 1; i <= 3; i++ {
		img, err := store.Images().AppendNext(ctx, s.ID, uniqueObjectKey(t), &msgID)
		require.NoError(t, err)
		assert.Equal(t, i, img.Sequence)
		assert.Equal(t, s.ID, img.SessionID)
		msgID++
	}

	images, err := store.Images().ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, images, 3)
	for i, img := range images {
		assert.Equal(t, i+1, img.Sequence)
	}

	count, err := store.Images().CountBySession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestImageAppendConcurrentStaysGapFree(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	s, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)

	const appends = 10
	var wg sync.WaitGroup
	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Images().AppendNext(ctx, s.ID, uniqueObjectKey(t), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	images, err := store.Images().ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, images, appends)

	// Sequences are exactly 1..N with no gaps and no duplicates.
	for i, img := range images {
		assert.Equal(t, i+1, img.Sequence)
	}
}

func TestImageAppendToClosedSessionFails(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	s := createClosedSession(t, store, 1)

	_, err := store.Images().AppendNext(ctx, s.ID, uniqueObjectKey(t), nil)
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindIllegalState),
		"expected illegal state, got: %v", err)

	count, err := store.Images().CountBySession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImageAppendToMissingSessionFails(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Images().AppendNext(context.Background(), uuid.New(), uniqueObjectKey(t), nil)
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindNotFound))
}

func TestImageDuplicateObjectKeyConflicts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	s, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)

	key := uniqueObjectKey(t)
	_, err = store.Images().AppendNext(ctx, s.ID, key, nil)
	require.NoError(t, err)

	// Same content hash resent: the object_key anchor rejects it.
	_, err = store.Images().AppendNext(ctx, s.ID, key, nil)
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindUniquenessConflict))

	// The failed append leaves no sequence gap behind.
	img, err := store.Images().AppendNext(ctx, s.ID, uniqueObjectKey(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Sequence)
}

func TestImageDuplicateMessageIDConflicts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	s, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)

	msgID := int64(4242)
	_, err = store.Images().AppendNext(ctx, s.ID, uniqueObjectKey(t), &msgID)
	require.NoError(t, err)

	// Same chat message delivered twice maps to one image.
	_, err = store.Images().AppendNext(ctx, s.ID, uniqueObjectKey(t), &msgID)
	require.Error(t, err)
	assert.True(t, capture.IsKind(err, capture.KindUniquenessConflict))
}

func TestImageListEmptySession(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	userID := nextUserID()

	s, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)

	images, err := store.Images().ListBySession(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, images)

	count, err := store.Images().CountBySession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
