package usecase

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

const maxEmojiRunes = 16

type ReactionUseCase struct {
	roomID   string
	userID   string
	store    *MessageStore
	chatRepo repository.ChatRepository
	now      func() time.Time
}

func NewReactionUseCase(roomID, userID string, store *MessageStore, chatRepo repository.ChatRepository) *ReactionUseCase {
	return &ReactionUseCase{
		roomID:   roomID,
		userID:   userID,
		store:    store,
		chatRepo: chatRepo,
		now:      time.Now,
	}
}

// Toggle flips the user's emoji on a message locally, then persists it.
// Persistence is best effort: the change stream carries the server's full
// reaction set and overwrites whatever was applied here.
func (uc *ReactionUseCase) Toggle(ctx context.Context, messageID, emoji string) ([]entity.Reaction, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return nil, errors.BadRequest("invalid emoji", nil)
	}

	var notSent bool
	msg := uc.store.Mutate(entity.IDKey(messageID), func(m *entity.Message) bool {
		if !m.IsConfirmed() {
			notSent = true
			return false
		}
		m.Reactions = entity.ToggleReaction(m.Reactions, emoji, uc.userID, uc.now().UTC())
		return true
	})
	if msg == nil {
		return nil, errors.NotFound("Message", nil)
	}
	if notSent {
		return nil, errors.BadRequest("message is not sent yet", nil)
	}
	next := msg.Reactions

	if err := uc.chatRepo.ToggleReaction(ctx, uc.roomID, messageID, emoji, uc.userID); err != nil {
		logger.Warn("ToggleReaction Error: room=%s message=%s emoji=%s: %v", uc.roomID, messageID, emoji, err)
	}
	return next, nil
}

func (uc *ReactionUseCase) Summary(messageID string) ([]entity.ReactionSummary, error) {
	msg := uc.store.Get(entity.IDKey(messageID))
	if msg == nil {
		return nil, errors.NotFound("Message", nil)
	}
	return entity.Summarize(msg.Reactions, uc.userID), nil
}
