package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

const (
	roomsCollection    = "rooms"
	messagesCollection = "messages"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) rooms() *firestore.CollectionRef {
	return r.client.Collection(roomsCollection)
}

func (r *firestoreChatRepository) messages(roomID string) *firestore.CollectionRef {
	return r.rooms().Doc(roomID).Collection(messagesCollection)
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, roomID string) (*entity.Room, error) {
	doc, err := r.rooms().Doc(roomID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Room", nil)
		}
		return nil, errors.Internal("Failed to get room", err)
	}

	room, err := roomFromDoc(doc)
	if err != nil {
		return nil, errors.Internal("Failed to parse room data", err)
	}
	return room, nil
}

func (r *firestoreChatRepository) UpdatePinned(ctx context.Context, roomID string, pinnedMessageIDs []string) error {
	if pinnedMessageIDs == nil {
		pinnedMessageIDs = []string{}
	}
	_, err := r.rooms().Doc(roomID).Update(ctx, []firestore.Update{
		{Path: "pinnedMessageIds", Value: pinnedMessageIDs},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Room", err)
		}
		return errors.Internal("Failed to update pinned messages", err)
	}
	return nil
}

// UnreadTotal sums the user's unread counter over every room they are in.
func (r *firestoreChatRepository) UnreadTotal(ctx context.Context, userID string) (int, error) {
	iter := r.rooms().Where("participantIds", "array-contains", userID).Documents(ctx)
	defer iter.Stop()

	total := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while counting unread for user %s: %v", userID, err)
			return 0, errors.Internal("Failed to count unread messages", err)
		}

		var room entity.Room
		if err := doc.DataTo(&room); err != nil {
			logger.Warn("Error parsing room %s: %v", doc.Ref.ID, err)
			continue
		}
		total += room.UnreadCount[userID]
	}
	return total, nil
}

func (r *firestoreChatRepository) FetchPage(ctx context.Context, roomID string, offset, limit int) ([]*entity.Message, error) {
	query := r.messages(roomID).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	messages := make([]*entity.Message, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for room %s: %v", roomID, err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		msg, err := messageFromDoc(doc)
		if err != nil {
			logger.Error("Error parsing message data for room %s: %v", roomID, err)
			return nil, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// InsertMessage writes the message with a server timestamp and bumps the
// room preview and the peers' unread counters in the same transaction.
func (r *firestoreChatRepository) InsertMessage(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	id := uuid.New().String()
	roomRef := r.rooms().Doc(msg.RoomID)
	msgRef := r.messages(msg.RoomID).Doc(id)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		roomDoc, err := tx.Get(roomRef)
		if err != nil {
			return err
		}
		var room entity.Room
		if err := roomDoc.DataTo(&room); err != nil {
			return err
		}

		if err := tx.Set(msgRef, messageToDoc(msg, id)); err != nil {
			return err
		}

		updates := []firestore.Update{
			{Path: "lastMessage", Value: msg.Preview()},
			{Path: "lastMessageAt", Value: firestore.ServerTimestamp},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		}
		for _, participant := range room.ParticipantIDs {
			if participant == msg.SenderID {
				continue
			}
			updates = append(updates, firestore.Update{
				FieldPath: firestore.FieldPath{"unreadCount", participant},
				Value:     firestore.Increment(1),
			})
		}
		return tx.Update(roomRef, updates)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Room", err)
		}
		return nil, errors.Internal("Failed to create message", err)
	}

	doc, err := msgRef.Get(ctx)
	if err != nil {
		return nil, errors.Internal("Failed to read back message", err)
	}
	row, err := messageFromDoc(doc)
	if err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return row, nil
}

func (r *firestoreChatRepository) UpdateMessage(ctx context.Context, roomID, messageID string, patch entity.MessagePatch) error {
	updates := patchUpdates(patch)
	if len(updates) == 0 {
		return nil
	}

	_, err := r.messages(roomID).Doc(messageID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to update message", err)
	}
	return nil
}

func (r *firestoreChatRepository) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	_, err := r.messages(roomID).Doc(messageID).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}

// GetMessagesByIDs skips ids whose documents no longer exist.
func (r *firestoreChatRepository) GetMessagesByIDs(ctx context.Context, roomID string, ids []string) ([]*entity.Message, error) {
	if len(ids) == 0 {
		return []*entity.Message{}, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.messages(roomID).Doc(id))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Internal("Failed to get messages", err)
	}

	messages := make([]*entity.Message, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		msg, err := messageFromDoc(doc)
		if err != nil {
			logger.Warn("Error parsing message %s in room %s: %v", doc.Ref.ID, roomID, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// BulkMarkRead flips every sent peer message to read and resets the reader's
// unread counter.
func (r *firestoreChatRepository) BulkMarkRead(ctx context.Context, roomID, readerID string) error {
	docs, err := r.messages(roomID).
		Where("status", "==", string(entity.StatusSent)).
		Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while listing unread messages for room %s: %v", roomID, err)
		return errors.Internal("Failed to list unread messages", err)
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs)+1)
	for _, doc := range docs {
		senderID, _ := doc.Data()["senderId"].(string)
		if senderID == readerID {
			continue
		}
		job, err := bw.Update(doc.Ref, []firestore.Update{
			{Path: "status", Value: string(entity.StatusRead)},
		})
		if err != nil {
			bw.End()
			return errors.Internal("Failed to queue read receipt", err)
		}
		jobs = append(jobs, job)
	}

	job, err := bw.Update(r.rooms().Doc(roomID), []firestore.Update{
		{FieldPath: firestore.FieldPath{"unreadCount", readerID}, Value: 0},
	})
	if err != nil {
		bw.End()
		return errors.Internal("Failed to queue unread reset", err)
	}
	jobs = append(jobs, job)
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return errors.Internal("Failed to mark messages read", err)
		}
	}
	return nil
}

func (r *firestoreChatRepository) ToggleReaction(ctx context.Context, roomID, messageID, emoji, userID string) error {
	ref := r.messages(roomID).Doc(messageID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		msg, err := messageFromDoc(doc)
		if err != nil {
			return err
		}
		reactions := entity.ToggleReaction(msg.Reactions, emoji, userID, time.Now().UTC())
		return tx.Update(ref, []firestore.Update{{Path: "reactions", Value: reactions}})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to toggle reaction", err)
	}
	return nil
}

func roomFromDoc(doc *firestore.DocumentSnapshot) (*entity.Room, error) {
	var room entity.Room
	if err := doc.DataTo(&room); err != nil {
		return nil, err
	}
	room.ID = doc.Ref.ID
	if room.PinnedMessageIDs == nil {
		room.PinnedMessageIDs = []string{}
	}
	if room.UnreadCount == nil {
		room.UnreadCount = map[string]int{}
	}
	return &room, nil
}

func messageFromDoc(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var msg entity.Message
	if err := doc.DataTo(&msg); err != nil {
		return nil, err
	}
	msg.ID = doc.Ref.ID
	if msg.Reactions == nil {
		msg.Reactions = []entity.Reaction{}
	}
	return &msg, nil
}

// messageToDoc maps an outgoing message to its stored form. The server
// assigns the id and the timestamp, and a pending status is stored as sent.
func messageToDoc(msg *entity.Message, id string) map[string]interface{} {
	doc := map[string]interface{}{
		"id":        id,
		"clientId":  msg.ClientID,
		"roomId":    msg.RoomID,
		"senderId":  msg.SenderID,
		"status":    string(entity.StatusSent),
		"reactions": []entity.Reaction{},
		"createdAt": firestore.ServerTimestamp,
	}
	if msg.Content != nil {
		doc["content"] = *msg.Content
	}
	if msg.Attachment != nil {
		doc["attachment"] = msg.Attachment
	}
	if msg.ReplyToID != "" {
		doc["replyToId"] = msg.ReplyToID
	}
	return doc
}

func patchUpdates(p entity.MessagePatch) []firestore.Update {
	updates := make([]firestore.Update, 0, 5)
	if p.Status != nil {
		updates = append(updates, firestore.Update{Path: "status", Value: string(*p.Status)})
	}
	if p.Content != nil {
		updates = append(updates, firestore.Update{Path: "content", Value: *p.Content})
	}
	if p.EditedAt != nil {
		updates = append(updates, firestore.Update{Path: "editedAt", Value: *p.EditedAt})
	}
	if p.Attachment != nil {
		updates = append(updates, firestore.Update{Path: "attachment", Value: p.Attachment})
	}
	if p.Reactions != nil {
		updates = append(updates, firestore.Update{Path: "reactions", Value: *p.Reactions})
	}
	return updates
}
