package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

// Event types pushed to UI clients
const (
	EventPong            = "pong"
	EventError           = "error"
	EventMessageList     = "message_list"
	EventMessageSent     = "message_sent"
	EventMessageReceived = "message_received"
	EventTyping          = "typing"
	EventPresence        = "presence"
	EventRoomUpdated     = "room_updated"
	EventBadge           = "badge"
)

// Commands accepted from UI clients
const (
	CommandPing     = "ping"
	CommandTyping   = "typing"
	CommandMarkRead = "mark_read"
)

const actionTimeout = 10 * time.Second

// Event is the frame written to UI clients.
type Event struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"roomId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Command is the frame read from UI clients.
type Command struct {
	Type string `json:"type"`
}

// ActionHandler runs UI commands against the open room.
type ActionHandler interface {
	Typing(ctx context.Context) error
	MarkRead(ctx context.Context) error
}

type TypingData struct {
	Typing bool `json:"typing"`
}

type PresenceData struct {
	Online []string `json:"online"`
}

type RoomData struct {
	Room   *entity.Room      `json:"room"`
	Pinned []*entity.Message `json:"pinned"`
}

type BadgeData struct {
	Total int `json:"total"`
}

var _ service.Notifier = (*Manager)(nil)

func (m *Manager) MessageSent(roomID string) {
	m.Publish(EventMessageSent, roomID, nil)
}

func (m *Manager) MessageReceived(msg *entity.Message) {
	m.Publish(EventMessageReceived, msg.RoomID, msg)
}

func (m *Manager) ListChanged(roomID string, messages []*entity.Message) {
	m.Publish(EventMessageList, roomID, messages)
}

func (m *Manager) TypingChanged(roomID string, typing bool) {
	m.Publish(EventTyping, roomID, TypingData{Typing: typing})
}

func (m *Manager) PresenceChanged(online []string) {
	m.Publish(EventPresence, "", PresenceData{Online: online})
}

func (m *Manager) RoomUpdated(room *entity.Room, pinned []*entity.Message) {
	roomID := ""
	if room != nil {
		roomID = room.ID
	}
	m.Publish(EventRoomUpdated, roomID, RoomData{Room: room, Pinned: pinned})
}

func (m *Manager) BadgeCount(total int) {
	m.Publish(EventBadge, "", BadgeData{Total: total})
}

// HandleClientMessage processes one command frame from a UI client.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		logger.Warn("WebSocket: bad frame from client %s: %v", client.ID, err)
		m.sendToClient(client, EventError, map[string]string{"message": "Invalid message format"})
		return
	}

	switch cmd.Type {
	case CommandPing:
		m.sendToClient(client, EventPong, map[string]string{"status": "alive"})

	case CommandTyping, CommandMarkRead:
		if m.actions == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		var err error
		if cmd.Type == CommandTyping {
			err = m.actions.Typing(ctx)
		} else {
			err = m.actions.MarkRead(ctx)
		}
		if err != nil {
			m.sendToClient(client, EventError, map[string]string{"message": err.Error()})
		}

	default:
		logger.Warn("WebSocket: unknown command '%s' from client %s", cmd.Type, client.ID)
		m.sendToClient(client, EventError, map[string]string{"message": "Unknown message type"})
	}
}

func (m *Manager) sendToClient(client *Client, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.clients[client] {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}
