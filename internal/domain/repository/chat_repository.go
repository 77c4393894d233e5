package repository

import (
	"context"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
)

type ChatRepository interface {
	// Room methods
	GetByID(ctx context.Context, roomID string) (*entity.Room, error)
	UpdatePinned(ctx context.Context, roomID string, pinnedMessageIDs []string) error
	UnreadTotal(ctx context.Context, userID string) (int, error)

	// FetchPage returns messages newest first starting at offset.
	FetchPage(ctx context.Context, roomID string, offset, limit int) ([]*entity.Message, error)
	// InsertMessage persists msg (carrying its ClientID) and returns the
	// authoritative row with the server id.
	InsertMessage(ctx context.Context, msg *entity.Message) (*entity.Message, error)
	UpdateMessage(ctx context.Context, roomID, messageID string, patch entity.MessagePatch) error
	DeleteMessage(ctx context.Context, roomID, messageID string) error
	GetMessagesByIDs(ctx context.Context, roomID string, ids []string) ([]*entity.Message, error)

	// BulkMarkRead marks every message in the room not sent by readerID as
	// read and resets the reader's unread counter.
	BulkMarkRead(ctx context.Context, roomID, readerID string) error
	// ToggleReaction flips (emoji, userID) on the stored message atomically.
	ToggleReaction(ctx context.Context, roomID, messageID, emoji, userID string) error
}
