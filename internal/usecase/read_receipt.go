package usecase

import (
	"context"
	"sync"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

// ReadReceiptCoordinator marks the peer's messages read in one bulk call.
// A message is requested at most once; the local status only turns read when
// the server echoes the update back.
type ReadReceiptCoordinator struct {
	ctx      context.Context
	roomID   string
	userID   string
	store    *MessageStore
	chatRepo repository.ChatRepository
	unread   *UnreadCounter

	mu        sync.Mutex
	requested map[string]struct{}
	wg        sync.WaitGroup
}

func NewReadReceiptCoordinator(
	ctx context.Context,
	roomID, userID string,
	store *MessageStore,
	chatRepo repository.ChatRepository,
	unread *UnreadCounter,
) *ReadReceiptCoordinator {
	return &ReadReceiptCoordinator{
		ctx:       ctx,
		roomID:    roomID,
		userID:    userID,
		store:     store,
		chatRepo:  chatRepo,
		unread:    unread,
		requested: make(map[string]struct{}),
	}
}

// Trigger fires a bulk mark-read in the background when there is at least
// one unread peer message not already requested.
func (rc *ReadReceiptCoordinator) Trigger() {
	unread := rc.store.UnreadFrom(rc.userID)

	rc.mu.Lock()
	fresh := make([]string, 0, len(unread))
	for _, id := range unread {
		if _, done := rc.requested[id]; !done {
			fresh = append(fresh, id)
			rc.requested[id] = struct{}{}
		}
	}
	rc.mu.Unlock()

	if len(fresh) == 0 {
		return
	}

	rc.wg.Add(1)
	go func() {
		defer rc.wg.Done()

		if err := rc.chatRepo.BulkMarkRead(rc.ctx, rc.roomID, rc.userID); err != nil {
			logger.Warn("BulkMarkRead Error: room=%s: %v", rc.roomID, err)
			rc.mu.Lock()
			for _, id := range fresh {
				delete(rc.requested, id)
			}
			rc.mu.Unlock()
			return
		}
		if rc.unread != nil {
			rc.unread.Recompute(rc.ctx)
		}
	}()
}

// Wait blocks until every triggered call has finished.
func (rc *ReadReceiptCoordinator) Wait() {
	rc.wg.Wait()
}

// UnreadCounter pushes the user's total unread count to the badge.
type UnreadCounter struct {
	userID   string
	chatRepo repository.ChatRepository
	notifier service.Notifier
}

func NewUnreadCounter(userID string, chatRepo repository.ChatRepository, notifier service.Notifier) *UnreadCounter {
	return &UnreadCounter{userID: userID, chatRepo: chatRepo, notifier: notifier}
}

func (u *UnreadCounter) Recompute(ctx context.Context) {
	total, err := u.chatRepo.UnreadTotal(ctx, u.userID)
	if err != nil {
		logger.Warn("UnreadTotal Error: user=%s: %v", u.userID, err)
		return
	}
	u.notifier.BadgeCount(total)
}
