package usecase

import (
	"context"
	"sync"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

// PinBoard owns the room record and the bodies of its pinned messages.
type PinBoard struct {
	ctx      context.Context
	roomID   string
	store    *MessageStore
	chatRepo repository.ChatRepository
	notifier service.Notifier

	mu         sync.Mutex
	room       *entity.Room
	pinned     []*entity.Message
	generation uint64
	wg         sync.WaitGroup
}

func NewPinBoard(ctx context.Context, roomID string, store *MessageStore, chatRepo repository.ChatRepository, notifier service.Notifier) *PinBoard {
	return &PinBoard{
		ctx:      ctx,
		roomID:   roomID,
		store:    store,
		chatRepo: chatRepo,
		notifier: notifier,
	}
}

// Load installs the room and fetches its pinned bodies synchronously.
func (b *PinBoard) Load(ctx context.Context, room *entity.Room) error {
	bodies, err := b.fetch(ctx, room.PinnedMessageIDs)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.generation++
	b.room = cloneRoom(room)
	b.pinned = bodies
	b.mu.Unlock()
	return nil
}

// Sync applies a room update from the change stream. A changed pin set
// triggers a refetch of the pinned bodies; results of an older refetch are
// discarded.
func (b *PinBoard) Sync(room *entity.Room) {
	b.mu.Lock()
	samePins := b.room != nil && entity.SamePins(b.room.PinnedMessageIDs, room.PinnedMessageIDs)
	b.room = cloneRoom(room)
	if samePins {
		snapshotRoom, pinned := b.snapshotLocked()
		b.mu.Unlock()
		b.notifier.RoomUpdated(snapshotRoom, pinned)
		return
	}
	b.generation++
	gen := b.generation
	ids := append([]string(nil), room.PinnedMessageIDs...)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		bodies, err := b.fetch(b.ctx, ids)
		if err != nil {
			logger.Warn("Pinned refetch Error: room=%s: %v", b.roomID, err)
			return
		}

		b.mu.Lock()
		if gen != b.generation {
			b.mu.Unlock()
			return
		}
		b.pinned = bodies
		snapshotRoom, pinned := b.snapshotLocked()
		b.mu.Unlock()

		b.notifier.RoomUpdated(snapshotRoom, pinned)
	}()
}

func (b *PinBoard) Pin(ctx context.Context, messageID string) error {
	return b.change(ctx, messageID, true)
}

func (b *PinBoard) Unpin(ctx context.Context, messageID string) error {
	return b.change(ctx, messageID, false)
}

func (b *PinBoard) change(ctx context.Context, messageID string, pin bool) error {
	var msg *entity.Message
	if pin {
		msg = b.store.Get(entity.IDKey(messageID))
		if msg == nil || !msg.IsConfirmed() {
			return errors.NotFound("Message", nil)
		}
	}

	b.mu.Lock()
	if b.room == nil {
		b.mu.Unlock()
		return errors.NoActiveRoom()
	}
	prevIDs := append([]string(nil), b.room.PinnedMessageIDs...)
	prevBodies := b.pinned

	var changed bool
	if pin {
		changed = b.room.Pin(messageID)
		if changed {
			b.pinned = append(append([]*entity.Message(nil), b.pinned...), msg)
		}
	} else {
		changed = b.room.Unpin(messageID)
		if changed {
			b.pinned = withoutMessage(b.pinned, messageID)
		}
	}
	if !changed {
		b.mu.Unlock()
		return nil
	}
	b.generation++
	ids := append([]string(nil), b.room.PinnedMessageIDs...)
	b.mu.Unlock()

	if err := b.chatRepo.UpdatePinned(ctx, b.roomID, ids); err != nil {
		logger.Error("UpdatePinned Error: room=%s message=%s: %v", b.roomID, messageID, err)
		b.mu.Lock()
		b.room.PinnedMessageIDs = prevIDs
		b.pinned = prevBodies
		b.mu.Unlock()
		if pin {
			return errors.ActionFailed("pin", err)
		}
		return errors.ActionFailed("unpin", err)
	}
	return nil
}

func (b *PinBoard) Pinned() []*entity.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, pinned := b.snapshotLocked()
	return pinned
}

func (b *PinBoard) Room() *entity.Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	room, _ := b.snapshotLocked()
	return room
}

func (b *PinBoard) Wait() {
	b.wg.Wait()
}

func (b *PinBoard) fetch(ctx context.Context, ids []string) ([]*entity.Message, error) {
	if len(ids) == 0 {
		return []*entity.Message{}, nil
	}
	bodies, err := b.chatRepo.GetMessagesByIDs(ctx, b.roomID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entity.Message, len(bodies))
	for _, m := range bodies {
		byID[m.ID] = m
	}
	ordered := make([]*entity.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}

func (b *PinBoard) snapshotLocked() (*entity.Room, []*entity.Message) {
	pinned := make([]*entity.Message, len(b.pinned))
	for i, m := range b.pinned {
		pinned[i] = m.Clone()
	}
	if b.room == nil {
		return nil, pinned
	}
	return cloneRoom(b.room), pinned
}

func cloneRoom(r *entity.Room) *entity.Room {
	c := *r
	c.ParticipantIDs = append([]string(nil), r.ParticipantIDs...)
	c.PinnedMessageIDs = append([]string(nil), r.PinnedMessageIDs...)
	if r.UnreadCount != nil {
		c.UnreadCount = make(map[string]int, len(r.UnreadCount))
		for k, v := range r.UnreadCount {
			c.UnreadCount[k] = v
		}
	}
	return &c
}

func withoutMessage(messages []*entity.Message, id string) []*entity.Message {
	out := make([]*entity.Message, 0, len(messages))
	for _, m := range messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
