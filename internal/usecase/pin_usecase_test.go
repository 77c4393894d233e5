package usecase

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPinBoard(t *testing.T) (*PinBoard, *fakeChatRepo) {
	rows := peerRows(3)
	repo := newFakeChatRepo(rows)
	store := NewMessageStore(testRoom)
	store.ReplaceAll(rows)
	b := NewPinBoard(context.Background(), testRoom, store, repo, &recordingNotifier{})
	require.NoError(t, b.Load(context.Background(), repo.room))
	return b, repo
}

func TestPinAndUnpin(t *testing.T) {
	b, repo := newPinBoard(t)
	ctx := context.Background()

	require.NoError(t, b.Pin(ctx, "srv-002"))
	require.NoError(t, b.Pin(ctx, "srv-001"))
	require.NoError(t, b.Pin(ctx, "srv-002"))
	assert.Equal(t, []string{"srv-002", "srv-001"}, b.Room().PinnedMessageIDs)

	require.NoError(t, b.Unpin(ctx, "srv-002"))
	assert.Equal(t, []string{"srv-001"}, b.Room().PinnedMessageIDs)
	assert.Len(t, b.Pinned(), 1)
	assert.Len(t, repo.pinnedUpdates, 3, "no-op pins skip the backend")
}

func TestPin_FailureRestoresPins(t *testing.T) {
	b, repo := newPinBoard(t)
	repo.pinErr = stderrors.New("denied")

	err := b.Pin(context.Background(), "srv-003")

	assert.True(t, errors.IsAlert(err))
	assert.Empty(t, b.Room().PinnedMessageIDs)
	assert.Empty(t, b.Pinned())
}

func TestPin_UnknownMessage(t *testing.T) {
	b, _ := newPinBoard(t)
	err := b.Pin(context.Background(), "nope")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}
