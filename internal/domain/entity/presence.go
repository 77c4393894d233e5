package entity

import "time"

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceState is what a client tracks on the shared presence channel.
type PresenceState struct {
	UserID   string    `json:"userId"`
	OnlineAt time.Time `json:"onlineAt"`
}

// TypingSignal is the ephemeral broadcast sent while a user types.
type TypingSignal struct {
	RoomID string    `json:"roomId"`
	UserID string    `json:"userId"`
	SentAt time.Time `json:"sentAt"`
}
