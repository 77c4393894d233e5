package usecase

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendFixture struct {
	repo     *fakeChatRepo
	store    *MessageStore
	notifier *recordingNotifier
	uploader *fakeUploader
	pipeline *SendPipeline
}

func newSendFixture(rows []*entity.Message) *sendFixture {
	f := &sendFixture{
		repo:     newFakeChatRepo(rows),
		store:    NewMessageStore(testRoom),
		notifier: &recordingNotifier{},
		uploader: &fakeUploader{},
	}
	f.store.ReplaceAll(rows)
	f.pipeline = NewSendPipeline(testRoom, me, f.store, f.repo, f.uploader, f.notifier)
	return f
}

func TestSendText_OptimisticThenConfirmed(t *testing.T) {
	f := newSendFixture(peerRows(2))

	var seenDuringPersist *entity.Message
	f.repo.onInsert = func(msg *entity.Message) {
		seenDuringPersist = f.store.Get(entity.PendingKey(msg.ClientID))
	}

	msg, err := f.pipeline.Submit(context.Background(), SubmitInput{Content: "  hello  "})
	require.NoError(t, err)

	require.NotNil(t, seenDuringPersist, "optimistic entry must exist before persistence returns")
	assert.Equal(t, entity.StatusSending, seenDuringPersist.Status)
	assert.Equal(t, "", seenDuringPersist.ID)

	assert.Equal(t, "hello", *msg.Content)
	assert.Equal(t, entity.StatusSent, msg.Status)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, seenDuringPersist.ClientID, msg.ClientID)
	assert.Equal(t, 3, f.store.Len())
	assert.Equal(t, msg.ID, f.store.Snapshot()[0].ID)
	assert.Equal(t, 1, f.notifier.sentCount())
}

func TestSendText_EchoBeforeAckDoesNotDuplicate(t *testing.T) {
	f := newSendFixture(nil)
	reconciler := NewRealtimeReconciler(testRoom, me, f.store,
		NewTypingIndicator(0, nil), NewReadReceiptCoordinator(context.Background(), testRoom, me, f.store, f.repo, nil),
		NewPinBoard(context.Background(), testRoom, f.store, f.repo, f.notifier), f.notifier)

	f.repo.onInsert = func(msg *entity.Message) {
		f.repo.mu.Lock()
		echo := f.repo.rows[0].Clone()
		f.repo.mu.Unlock()
		reconciler.HandleInsert(echo)
	}

	_, err := f.pipeline.SendText(context.Background(), SubmitInput{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, 0, f.notifier.receivedCount())
}

func TestSendText_FailureRollsBack(t *testing.T) {
	f := newSendFixture(peerRows(1))
	f.repo.insertErr = stderrors.New("503")

	msg, err := f.pipeline.SendText(context.Background(), SubmitInput{Content: "hello"})

	assert.Nil(t, msg)
	assert.True(t, errors.Is(err, "SEND_FAILED"))
	assert.True(t, errors.IsAlert(err))
	assert.Equal(t, 1, f.store.Len())
}

func TestSendText_RejectsInvalidInput(t *testing.T) {
	f := newSendFixture(nil)

	_, err := f.pipeline.SendText(context.Background(), SubmitInput{Content: "   "})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = f.pipeline.SendText(context.Background(), SubmitInput{Content: strings.Repeat("a", entity.MaxContentLength+1)})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 0, f.repo.inserts)
}

func TestSendImage_UploadsThenPersists(t *testing.T) {
	f := newSendFixture(nil)
	var duringUpload *entity.Message
	f.uploader.during = func() {
		snap := f.store.Snapshot()
		if len(snap) == 1 {
			duringUpload = snap[0]
		}
	}

	msg, err := f.pipeline.SendImage(context.Background(), ImageInput{
		File:        strings.NewReader("jpegbytes"),
		ContentType: "image/jpeg",
		LocalURI:    "file:///photos/1.jpg",
		Blurhash:    "LEHV6nWB2yk8",
	})
	require.NoError(t, err)

	require.NotNil(t, duringUpload)
	assert.Equal(t, entity.StatusUploading, duringUpload.Status)
	assert.Equal(t, "file:///photos/1.jpg", duringUpload.Attachment.Image.LocalURI)

	assert.Equal(t, entity.StatusSent, msg.Status)
	assert.Equal(t, entity.AttachmentImage, msg.Attachment.Kind)
	assert.Equal(t, f.uploader.uploaded[0], msg.Attachment.Image.URL)
	assert.Equal(t, 1, f.store.Len())

	stored := f.repo.rows[0]
	assert.Empty(t, stored.Attachment.Image.LocalURI, "local placeholder is never persisted")
}

func TestSendImage_UploadFailureRemovesPlaceholder(t *testing.T) {
	f := newSendFixture(nil)
	f.uploader.uploadErr = stderrors.New("quota")

	_, err := f.pipeline.SendImage(context.Background(), ImageInput{File: strings.NewReader("x"), ContentType: "image/png"})

	assert.True(t, errors.Is(err, "UPLOAD_FAILED"))
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 0, f.repo.inserts)
}

func TestSendImage_PersistFailureDeletesUpload(t *testing.T) {
	f := newSendFixture(nil)
	f.repo.insertErr = stderrors.New("503")

	_, err := f.pipeline.SendImage(context.Background(), ImageInput{File: strings.NewReader("x"), ContentType: "image/png"})

	assert.True(t, errors.Is(err, "SEND_FAILED"))
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, f.uploader.uploaded, f.uploader.deleted)
}

func TestSendLocation(t *testing.T) {
	f := newSendFixture(nil)

	msg, err := f.pipeline.SendLocation(context.Background(), LocationInput{Lat: 50.45, Lng: 30.52})
	require.NoError(t, err)
	assert.Equal(t, entity.AttachmentLocation, msg.Attachment.Kind)
	assert.Equal(t, 50.45, msg.Attachment.Location.Lat)

	_, err = f.pipeline.SendLocation(context.Background(), LocationInput{Lat: 120, Lng: 0})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
	assert.Equal(t, 1, f.store.Len())
}

func TestEdit_SubmitUpdatesInPlace(t *testing.T) {
	f := newSendFixture(nil)
	sent, err := f.pipeline.SendText(context.Background(), SubmitInput{Content: "helo"})
	require.NoError(t, err)

	_, err = f.pipeline.BeginEdit(sent.ID)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, f.pipeline.Editing())

	edited, err := f.pipeline.Submit(context.Background(), SubmitInput{Content: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "hello", *edited.Content)
	assert.NotNil(t, edited.EditedAt)
	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, 1, f.repo.inserts, "an edit never inserts")
	assert.Len(t, f.repo.updates, 1)
	assert.Empty(t, f.pipeline.Editing())
}

func TestEdit_FailureRestoresContent(t *testing.T) {
	f := newSendFixture(nil)
	sent, err := f.pipeline.SendText(context.Background(), SubmitInput{Content: "original"})
	require.NoError(t, err)
	f.repo.updateErr = stderrors.New("timeout")

	_, err = f.pipeline.BeginEdit(sent.ID)
	require.NoError(t, err)
	_, err = f.pipeline.Submit(context.Background(), SubmitInput{Content: "changed"})

	assert.True(t, errors.IsAlert(err))
	restored := f.store.Get(entity.IDKey(sent.ID))
	assert.Equal(t, "original", *restored.Content)
	assert.Nil(t, restored.EditedAt)
}

func TestBeginEdit_OnlyOwnTextMessages(t *testing.T) {
	f := newSendFixture(peerRows(1))

	_, err := f.pipeline.BeginEdit("srv-001")
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = f.pipeline.BeginEdit("unknown")
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}
