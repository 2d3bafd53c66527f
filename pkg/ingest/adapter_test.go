package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PantaKoda/shiftsnap/pkg/capture"
)

// fakeSessions is an in-memory SessionRepository holding at most one open
// session per user, enough to drive the adapter paths.
type fakeSessions struct {
	open       map[int64]*capture.Session
	createErr  error
	updateErr  error
	transition []capture.State

	// hideOpenOnce makes the next GetOpen miss, simulating a session that a
	// concurrent handler creates between the caller's read and its create.
	hideOpenOnce bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{open: make(map[int64]*capture.Session)}
}

func (f *fakeSessions) Create(_ context.Context, userID int64) (*capture.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.open[userID]; ok {
		return nil, capture.NewError(capture.KindUniquenessConflict, "fake.Create", "open session exists", nil)
	}
	s := &capture.Session{ID: uuid.New(), UserID: userID, State: capture.StateOpen}
	f.open[userID] = s
	return s, nil
}

func (f *fakeSessions) GetOrCreateOpen(ctx context.Context, userID int64) (*capture.Session, error) {
	if s, ok := f.open[userID]; ok {
		return s, nil
	}
	return f.Create(ctx, userID)
}

func (f *fakeSessions) GetOpen(_ context.Context, userID int64) (*capture.Session, error) {
	if f.hideOpenOnce {
		f.hideOpenOnce = false
		return nil, nil
	}
	s, ok := f.open[userID]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (f *fakeSessions) CloseOpen(_ context.Context, userID int64) (*capture.Session, error) {
	s, ok := f.open[userID]
	if !ok {
		return nil, nil
	}
	delete(f.open, userID)
	s.State = capture.StateClosed
	return s, nil
}

func (f *fakeSessions) ClaimNextClosedForProcessing(context.Context) (*capture.Session, error) {
	return nil, nil
}

func (f *fakeSessions) GetByID(context.Context, uuid.UUID) (*capture.Session, error) {
	return nil, capture.NewError(capture.KindNotFound, "fake.GetByID", "not found", nil)
}

func (f *fakeSessions) UpdateState(_ context.Context, id uuid.UUID, state capture.State, _ *string) (*capture.Session, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.transition = append(f.transition, state)
	for userID, s := range f.open {
		if s.ID == id {
			s.State = state
			if state != capture.StateOpen {
				delete(f.open, userID)
			}
			return s, nil
		}
	}
	return &capture.Session{ID: id, State: state}, nil
}

// fakeImages assigns sequences per session and can be primed to fail.
type fakeImages struct {
	bySession map[uuid.UUID]int
	appendErr error
}

func newFakeImages() *fakeImages {
	return &fakeImages{bySession: make(map[uuid.UUID]int)}
}

func (f *fakeImages) AppendNext(_ context.Context, sessionID uuid.UUID, objectKey string, msgID *int64) (*capture.Image, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	f.bySession[sessionID]++
	return &capture.Image{
		ID:                uuid.New(),
		SessionID:         sessionID,
		Sequence:          f.bySession[sessionID],
		ObjectKey:         objectKey,
		ExternalMessageID: msgID,
	}, nil
}

func (f *fakeImages) CountBySession(_ context.Context, sessionID uuid.UUID) (int, error) {
	return f.bySession[sessionID], nil
}

func (f *fakeImages) ListBySession(context.Context, uuid.UUID) ([]capture.Image, error) {
	return nil, nil
}

// replyRecorder captures outbound replies.
type replyRecorder struct {
	replies []string
}

func (r *replyRecorder) Reply(_ context.Context, _ int64, text string) error {
	r.replies = append(r.replies, text)
	return nil
}

func (r *replyRecorder) last(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.replies, "expected at least one reply")
	return r.replies[len(r.replies)-1]
}

func newTestAdapter() (*Adapter, *fakeSessions, *fakeImages, *replyRecorder) {
	sessions := newFakeSessions()
	images := newFakeImages()
	replies := &replyRecorder{}
	return NewAdapter(sessions, images, replies), sessions, images, replies
}

func TestHandleCommandStartSession(t *testing.T) {
	adapter, sessions, _, replies := newTestAdapter()
	ctx := context.Background()

	require.NoError(t, adapter.HandleCommand(ctx, 42, CommandStartSession))

	open, err := sessions.GetOpen(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, capture.StateOpen, open.State)
	assert.Contains(t, replies.last(t), open.ID.String())
	assert.Contains(t, replies.last(t), "/close")
}

func TestHandleCommandStartSessionReusesOpen(t *testing.T) {
	adapter, sessions, _, replies := newTestAdapter()
	ctx := context.Background()

	first, err := sessions.Create(ctx, 42)
	require.NoError(t, err)

	require.NoError(t, adapter.HandleCommand(ctx, 42, CommandStartSession))

	assert.Len(t, sessions.open, 1, "second start must not open a second session")
	assert.Contains(t, replies.last(t), "already have an open session")
	assert.Contains(t, replies.last(t), first.ID.String())
}

func TestHandleCommandCloseReportsImageCount(t *testing.T) {
	adapter, sessions, images, replies := newTestAdapter()
	ctx := context.Background()

	session, err := sessions.Create(ctx, 7)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := images.AppendNext(ctx, session.ID, fmt.Sprintf("key-%d", i), nil)
		require.NoError(t, err)
	}

	require.NoError(t, adapter.HandleCommand(ctx, 7, CommandClose))

	assert.Equal(t, capture.StateClosed, session.State)
	assert.Contains(t, replies.last(t), "3 image(s)")
	assert.Contains(t, replies.last(t), session.ID.String())
}

func TestHandleCommandCloseWithoutSession(t *testing.T) {
	adapter, _, _, replies := newTestAdapter()

	require.NoError(t, adapter.HandleCommand(context.Background(), 7, CommandDone))

	assert.Contains(t, replies.last(t), "no open capture session")
}

func TestHandleUploadAppendsToOpenSession(t *testing.T) {
	adapter, sessions, images, replies := newTestAdapter()
	ctx := context.Background()

	session, err := sessions.Create(ctx, 9)
	require.NoError(t, err)
	_, err = images.AppendNext(ctx, session.ID, "key-1", nil)
	require.NoError(t, err)

	err = adapter.HandleUpload(ctx, Upload{UserID: 9, MessageID: 100, ObjectKey: "key-2"})
	require.NoError(t, err)

	assert.Equal(t, capture.StateOpen, session.State, "explicit mode must leave the session open")
	assert.Equal(t, 2, images.bySession[session.ID])
	assert.Contains(t, replies.last(t), "Stored screenshot 2")
	assert.NotContains(t, replies.last(t), "single-upload mode")
}

func TestHandleUploadImplicitSingleMode(t *testing.T) {
	adapter, sessions, images, replies := newTestAdapter()
	ctx := context.Background()

	err := adapter.HandleUpload(ctx, Upload{UserID: 9, MessageID: 100, ObjectKey: "key-1"})
	require.NoError(t, err)

	assert.Empty(t, sessions.open, "implicit mode must close the session it created")
	assert.Equal(t, []capture.State{capture.StateClosed}, sessions.transition)
	assert.Len(t, images.bySession, 1)
	assert.Contains(t, replies.last(t), "single-upload mode")
}

func TestHandleUploadImplicitFallsThroughOnConflict(t *testing.T) {
	// A concurrent upload won the session create; this upload must append to
	// the winner's session instead of failing.
	adapter, sessions, images, replies := newTestAdapter()
	ctx := context.Background()

	winner, err := sessions.Create(ctx, 9)
	require.NoError(t, err)
	sessions.hideOpenOnce = true

	err = adapter.HandleUpload(ctx, Upload{UserID: 9, MessageID: 101, ObjectKey: "key-2"})
	require.NoError(t, err)

	assert.Equal(t, capture.StateOpen, winner.State, "fall-through must not close the winner's session")
	assert.Equal(t, 1, images.bySession[winner.ID])
	assert.NotContains(t, replies.last(t), "single-upload mode")
}

func TestHandleUploadDuplicateObjectKey(t *testing.T) {
	adapter, sessions, images, replies := newTestAdapter()
	ctx := context.Background()

	_, err := sessions.Create(ctx, 9)
	require.NoError(t, err)
	images.appendErr = capture.NewError(capture.KindUniquenessConflict, "fake.AppendNext", "object key exists", nil)

	err = adapter.HandleUpload(ctx, Upload{UserID: 9, ObjectKey: "dup"})
	require.NoError(t, err)

	assert.Contains(t, replies.last(t), "already stored")
}

func TestHandleUploadSessionClosedUnderneath(t *testing.T) {
	adapter, sessions, images, replies := newTestAdapter()
	ctx := context.Background()

	_, err := sessions.Create(ctx, 9)
	require.NoError(t, err)
	images.appendErr = capture.NewError(capture.KindIllegalState, "fake.AppendNext", "session not open", nil)

	err = adapter.HandleUpload(ctx, Upload{UserID: 9, ObjectKey: "late"})
	require.NoError(t, err)

	assert.Contains(t, replies.last(t), "/start_session")
}

func TestHandleUploadInternalErrorRepliesGeneric(t *testing.T) {
	adapter, sessions, _, replies := newTestAdapter()
	sessions.createErr = capture.NewError(capture.KindInternal, "fake.Create", "boom", nil)

	err := adapter.HandleUpload(context.Background(), Upload{UserID: 9, ObjectKey: "key"})
	require.NoError(t, err, "internal failures are answered, not propagated")

	assert.Contains(t, replies.last(t), "try again")
}

func TestHandleInvalidUpload(t *testing.T) {
	adapter, sessions, images, replies := newTestAdapter()

	require.NoError(t, adapter.HandleInvalidUpload(context.Background(), 9))

	assert.Empty(t, sessions.open)
	assert.Empty(t, images.bySession)
	assert.Contains(t, replies.last(t), "photo")
}
