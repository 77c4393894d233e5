package usecase

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/metrics"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"

	"github.com/google/uuid"
)

type SubmitInput struct {
	Content   string
	ReplyToID string
}

type ImageInput struct {
	File        io.Reader
	ContentType string
	LocalURI    string
	Blurhash    string
	ReplyToID   string
}

type LocationInput struct {
	Lat       float64
	Lng       float64
	ReplyToID string
}

// SendPipeline turns user input into messages: optimistic insert first,
// then persistence, then reconciliation or rollback.
type SendPipeline struct {
	roomID   string
	userID   string
	store    *MessageStore
	chatRepo repository.ChatRepository
	uploader service.FileUploadService
	notifier service.Notifier

	now      func() time.Time
	clientID func() string

	mu      sync.Mutex
	editing *entity.Message
}

func NewSendPipeline(
	roomID, userID string,
	store *MessageStore,
	chatRepo repository.ChatRepository,
	uploader service.FileUploadService,
	notifier service.Notifier,
) *SendPipeline {
	return &SendPipeline{
		roomID:   roomID,
		userID:   userID,
		store:    store,
		chatRepo: chatRepo,
		uploader: uploader,
		notifier: notifier,
		now:      time.Now,
		clientID: func() string { return uuid.New().String() },
	}
}

// Submit sends text, or saves an edit when one is in progress.
func (p *SendPipeline) Submit(ctx context.Context, input SubmitInput) (*entity.Message, error) {
	p.mu.Lock()
	editing := p.editing
	p.mu.Unlock()

	if editing != nil {
		return p.saveEdit(ctx, editing, input.Content)
	}
	return p.SendText(ctx, input)
}

func (p *SendPipeline) SendText(ctx context.Context, input SubmitInput) (*entity.Message, error) {
	content := strings.TrimSpace(input.Content)
	msg := p.newMessage(input.ReplyToID)
	msg.Content = &content
	return p.send(ctx, msg)
}

func (p *SendPipeline) SendLocation(ctx context.Context, input LocationInput) (*entity.Message, error) {
	msg := p.newMessage(input.ReplyToID)
	msg.Attachment = entity.NewLocationAttachment(input.Lat, input.Lng)
	return p.send(ctx, msg)
}

// SendImage shows the local placeholder while the upload runs, then sends
// the message with the remote URL.
func (p *SendPipeline) SendImage(ctx context.Context, input ImageInput) (*entity.Message, error) {
	if p.uploader == nil {
		return nil, errors.BadRequest("image attachments are not configured", nil)
	}
	if input.File == nil {
		return nil, errors.BadRequest("image file is required", nil)
	}

	msg := p.newMessage(input.ReplyToID)
	localURI := input.LocalURI
	if localURI == "" {
		localURI = "upload://" + msg.ClientID
	}
	msg.Status = entity.StatusUploading
	msg.Attachment = entity.NewImageAttachment("", input.Blurhash, localURI)

	if err := p.insert(msg); err != nil {
		return nil, err
	}

	url, err := p.uploader.UploadFile(ctx, input.File, input.ContentType, "rooms/"+p.roomID)
	if err != nil {
		logger.Error("SendImage upload error: room=%s clientId=%s: %v", p.roomID, msg.ClientID, err)
		p.store.Remove(msg.Key())
		metrics.SendFailures.WithLabelValues("upload").Inc()
		return nil, errors.UploadFailed(err)
	}

	sending := entity.StatusSending
	p.store.ApplyUpdate(msg.Key(), entity.MessagePatch{
		Status:     &sending,
		Attachment: entity.NewImageAttachment(url, input.Blurhash, ""),
	})
	msg.Status = sending
	msg.Attachment = entity.NewImageAttachment(url, input.Blurhash, localURI)

	row, err := p.persist(ctx, msg)
	if err != nil {
		if delErr := p.uploader.DeleteFile(ctx, url); delErr != nil {
			logger.Warn("SendImage cleanup of %s failed: %v", url, delErr)
		}
		return nil, err
	}
	return row, nil
}

// BeginEdit puts the pipeline in edit mode for one of the user's own
// confirmed text messages.
func (p *SendPipeline) BeginEdit(messageID string) (*entity.Message, error) {
	msg := p.store.Get(entity.IDKey(messageID))
	if msg == nil {
		return nil, errors.NotFound("Message", nil)
	}
	if !msg.IsMine(p.userID) {
		return nil, errors.Forbidden("only your own messages can be edited", nil)
	}
	if msg.Content == nil || msg.Attachment != nil {
		return nil, errors.BadRequest("only text messages can be edited", nil)
	}

	p.mu.Lock()
	p.editing = msg
	p.mu.Unlock()
	return msg, nil
}

func (p *SendPipeline) CancelEdit() {
	p.mu.Lock()
	p.editing = nil
	p.mu.Unlock()
}

// Editing returns the id of the message being edited, if any.
func (p *SendPipeline) Editing() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.editing == nil {
		return ""
	}
	return p.editing.ID
}

func (p *SendPipeline) saveEdit(ctx context.Context, target *entity.Message, content string) (*entity.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.BadRequest("message content is empty", nil)
	}
	if len([]rune(content)) > entity.MaxContentLength {
		return nil, errors.BadRequest("message content is too long", nil)
	}

	prev := p.store.Get(entity.IDKey(target.ID))
	if prev == nil {
		p.CancelEdit()
		return nil, errors.NotFound("Message", nil)
	}

	editedAt := p.now().UTC()
	patch := entity.MessagePatch{Content: &content, EditedAt: &editedAt}
	p.store.ApplyUpdate(prev.Key(), patch)

	if err := p.chatRepo.UpdateMessage(ctx, p.roomID, prev.ID, patch); err != nil {
		logger.Error("SaveEdit Error: room=%s message=%s: %v", p.roomID, prev.ID, err)
		p.store.Restore(prev)
		return nil, errors.ActionFailed("edit", err)
	}

	p.CancelEdit()
	return p.store.Get(prev.Key()), nil
}

func (p *SendPipeline) newMessage(replyToID string) *entity.Message {
	return &entity.Message{
		ClientID:  p.clientID(),
		RoomID:    p.roomID,
		SenderID:  p.userID,
		Status:    entity.StatusSending,
		ReplyToID: strings.TrimSpace(replyToID),
		Reactions: []entity.Reaction{},
		CreatedAt: p.now().UTC(),
	}
}

func (p *SendPipeline) send(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	if err := p.insert(msg); err != nil {
		return nil, err
	}
	return p.persist(ctx, msg)
}

func (p *SendPipeline) insert(msg *entity.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := p.store.InsertOptimistic(msg); err != nil {
		return err
	}
	p.notifier.MessageSent(p.roomID)
	return nil
}

func (p *SendPipeline) persist(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	payload := msg.Clone()
	if payload.Attachment != nil && payload.Attachment.Image != nil {
		payload.Attachment.Image.LocalURI = ""
	}

	row, err := p.chatRepo.InsertMessage(ctx, payload)
	if err != nil {
		logger.Error("SendMessage Error: room=%s clientId=%s: %v", p.roomID, msg.ClientID, err)
		p.store.Remove(msg.Key())
		metrics.SendFailures.WithLabelValues("persist").Inc()
		return nil, errors.SendFailed(err)
	}
	if row.ClientID == "" {
		row.ClientID = msg.ClientID
	}

	p.store.Reconcile(row)
	return p.store.Get(row.Key()), nil
}
