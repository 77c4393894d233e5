package service

import "github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"

// Notifier receives UI side effects produced by the engine. Implementations
// must not block.
type Notifier interface {
	MessageSent(roomID string)
	MessageReceived(msg *entity.Message)
	ListChanged(roomID string, messages []*entity.Message)
	TypingChanged(roomID string, typing bool)
	PresenceChanged(online []string)
	RoomUpdated(room *entity.Room, pinned []*entity.Message)
	BadgeCount(total int)
}

// Identity resolves the signed-in user.
type Identity interface {
	CurrentUserID() string
}
