package usecase

import (
	"context"
	"sync"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/ratelimit"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

// ChatUseCase is the engine root. At most one room is open at a time.
type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	stream      repository.ChangeStream
	broadcaster repository.Broadcaster
	uploader    service.FileUploadService
	notifier    service.Notifier
	identity    service.Identity
	presence    *PresenceUseCase
	rateLimiter *ratelimit.RateLimiter
	cfg         SessionConfig

	// openMu serializes OpenRoom; mu only guards current and openSeq.
	openMu  sync.Mutex
	mu      sync.Mutex
	current *RoomSession
	openSeq uint64
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	stream repository.ChangeStream,
	broadcaster repository.Broadcaster,
	uploader service.FileUploadService,
	notifier service.Notifier,
	identity service.Identity,
	presence *PresenceUseCase,
	rateLimiter *ratelimit.RateLimiter,
	cfg SessionConfig,
) *ChatUseCase {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ChatUseCase{
		chatRepo:    chatRepo,
		stream:      stream,
		broadcaster: broadcaster,
		uploader:    uploader,
		notifier:    notifier,
		identity:    identity,
		presence:    presence,
		rateLimiter: rateLimiter,
		cfg:         cfg,
	}
}

// OpenRoom closes whatever room is open and opens roomID. The returned
// session stays current until CloseRoom or the next OpenRoom.
func (uc *ChatUseCase) OpenRoom(ctx context.Context, roomID string) (*RoomSession, error) {
	if roomID == "" {
		return nil, errors.BadRequest("room id is required", nil)
	}
	userID := uc.identity.CurrentUserID()
	if userID == "" {
		return nil, errors.Unauthorized("no signed in user", nil)
	}

	uc.openMu.Lock()
	defer uc.openMu.Unlock()

	uc.mu.Lock()
	prev := uc.current
	uc.current = nil
	uc.openSeq++
	seq := uc.openSeq
	uc.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	session := newRoomSession(roomID, userID, uc.cfg, sessionDeps{
		chatRepo:    uc.chatRepo,
		stream:      uc.stream,
		broadcaster: uc.broadcaster,
		uploader:    uc.uploader,
		notifier:    uc.notifier,
		presence:    uc.presence,
		limiter:     uc.rateLimiter,
	})
	if err := session.start(ctx); err != nil {
		logger.Error("OpenRoom Error: room=%s: %v", roomID, err)
		session.Close()
		if errors.Is(err, "NOT_FOUND") || errors.Is(err, "FORBIDDEN") || errors.Is(err, "PAGE_FETCH_FAILED") {
			return nil, err
		}
		return nil, errors.Internal("failed to open room", err)
	}

	uc.mu.Lock()
	if uc.openSeq != seq {
		// closed while opening
		uc.mu.Unlock()
		session.Close()
		return nil, errors.Conflict("room was closed while opening")
	}
	uc.current = session
	uc.mu.Unlock()
	return session, nil
}

func (uc *ChatUseCase) CloseRoom() {
	uc.mu.Lock()
	session := uc.current
	uc.current = nil
	uc.openSeq++
	uc.mu.Unlock()

	if session != nil {
		session.Close()
	}
}

// Current returns the open session or NO_ACTIVE_ROOM.
func (uc *ChatUseCase) Current() (*RoomSession, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.current == nil {
		return nil, errors.NoActiveRoom()
	}
	return uc.current, nil
}

// Foreground resumes presence and re-sends read receipts for the open room.
func (uc *ChatUseCase) Foreground(ctx context.Context) {
	if uc.presence != nil {
		uc.presence.Foreground(ctx)
	}
	if session, err := uc.Current(); err == nil {
		session.MarkRead()
	}
}

// Typing broadcasts a typing signal in the open room.
func (uc *ChatUseCase) Typing(ctx context.Context) error {
	session, err := uc.Current()
	if err != nil {
		return err
	}
	session.NotifyTyping(ctx)
	return nil
}

func (uc *ChatUseCase) MarkRead(ctx context.Context) error {
	session, err := uc.Current()
	if err != nil {
		return err
	}
	session.MarkRead()
	return nil
}

func (uc *ChatUseCase) Background(ctx context.Context) {
	if uc.presence != nil {
		uc.presence.Background(ctx)
	}
}

func (uc *ChatUseCase) OnlineUsers() []string {
	if uc.presence == nil {
		return []string{}
	}
	return uc.presence.Online()
}

// PresenceStatus reports whether the local user is tracked on the presence
// channel. It drops to offline when the channel disconnects.
func (uc *ChatUseCase) PresenceStatus() entity.PresenceStatus {
	if uc.presence == nil {
		return entity.PresenceOffline
	}
	return uc.presence.Status()
}

// RefreshBadge recomputes the unread total across all rooms.
func (uc *ChatUseCase) RefreshBadge(ctx context.Context) {
	NewUnreadCounter(uc.identity.CurrentUserID(), uc.chatRepo, uc.notifier).Recompute(ctx)
}

func (uc *ChatUseCase) Shutdown(ctx context.Context) {
	uc.CloseRoom()
	if uc.presence != nil {
		uc.presence.Close(ctx)
	}
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) MessageSent(string) {}
func (NopNotifier) MessageReceived(*entity.Message) {}
func (NopNotifier) ListChanged(string, []*entity.Message) {}
func (NopNotifier) TypingChanged(string, bool) {}
func (NopNotifier) PresenceChanged([]string) {}
func (NopNotifier) RoomUpdated(*entity.Room, []*entity.Message) {}
func (NopNotifier) BadgeCount(int) {}
