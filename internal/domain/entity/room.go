package entity

import "time"

type Room struct {
	ID               string         `json:"id" firestore:"id"`
	ParticipantIDs   []string       `json:"participantIds" firestore:"participantIds"`
	PinnedMessageIDs []string       `json:"pinnedMessageIds" firestore:"pinnedMessageIds"`
	LastMessage      string         `json:"lastMessage,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt    time.Time      `json:"lastMessageAt" firestore:"lastMessageAt"`
	UnreadCount      map[string]int `json:"unreadCount" firestore:"unreadCount"` // userID -> unread
	CreatedAt        time.Time      `json:"createdAt" firestore:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt" firestore:"updatedAt"`
}

func (r *Room) HasParticipant(userID string) bool {
	for _, id := range r.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Peer returns the other participant of a direct room.
func (r *Room) Peer(userID string) string {
	for _, id := range r.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

func (r *Room) IsPinned(messageID string) bool {
	for _, id := range r.PinnedMessageIDs {
		if id == messageID {
			return true
		}
	}
	return false
}

// Pin appends messageID if it is not pinned yet.
func (r *Room) Pin(messageID string) bool {
	if r.IsPinned(messageID) {
		return false
	}
	r.PinnedMessageIDs = append(r.PinnedMessageIDs, messageID)
	return true
}

// Unpin removes messageID by value.
func (r *Room) Unpin(messageID string) bool {
	for i, id := range r.PinnedMessageIDs {
		if id == messageID {
			r.PinnedMessageIDs = append(r.PinnedMessageIDs[:i:i], r.PinnedMessageIDs[i+1:]...)
			return true
		}
	}
	return false
}

func SamePins(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
