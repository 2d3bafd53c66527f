package postgres

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
	"github.com/google/uuid"
)

// userIDCounter hands out unique user ids so tests sharing the container
// never trip over each other's single-open index.
var userIDCounter atomic.Int64

func init() {
	userIDCounter.Store(time.Now().UnixNano() % 1_000_000_000)
}

func nextUserID() int64 {
	return userIDCounter.Add(1)
}

// setupTestStore creates a store against the shared container. Migrations
// are idempotent, so every test can request them.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	cfg := &Config{
		URL:         sharedTestContainer.connStr,
		AutoMigrate: true,
	}

	store, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// truncateAll wipes every table. Needed by tests that assert over global
// queues (claiming, dispatching) rather than per-user state.
func truncateAll(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.pool.Exec(context.Background(), `
		TRUNCATE shiftsnap.capture_session,
		         shiftsnap.capture_image,
		         shiftsnap.schedule_notification,
		         shiftsnap.day_schedule_version
		CASCADE`)
	require.NoError(t, err)
}

func uniqueObjectKey(t *testing.T) string {
	t.Helper()
	return "test/" + uuid.NewString() + ".jpg"
}

// createClosedSession creates a session for a fresh user, appends the given
// number of images and closes it.
func createClosedSession(t *testing.T, store *Store, imageCount int) *capture.Session {
	t.Helper()
	ctx := context.Background()

	userID := nextUserID()
	s, err := store.Sessions().Create(ctx, userID)
	require.NoError(t, err)

	for i := 0; i < imageCount; i++ {
		_, err := store.Images().AppendNext(ctx, s.ID, uniqueObjectKey(t), nil)
		require.NoError(t, err)
	}

	closed, err := store.Sessions().CloseOpen(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	return closed
}
