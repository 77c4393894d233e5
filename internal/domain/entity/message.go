package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
)

const MaxContentLength = 4000

type MessageStatus string

const (
	// StatusUploading sits under sending while an attachment is in flight.
	StatusUploading MessageStatus = "uploading"
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

func (s MessageStatus) rank() int {
	switch s {
	case StatusUploading:
		return 0
	case StatusSending, StatusFailed:
		return 1
	case StatusSent:
		return 2
	case StatusRead:
		return 3
	}
	return -1
}

// Advances reports whether moving from s to next is forward progress.
// Stale events that would move a message backwards are rejected.
func (s MessageStatus) Advances(next MessageStatus) bool {
	if next == StatusFailed {
		return s == StatusUploading || s == StatusSending
	}
	return next.rank() > s.rank()
}

func (s MessageStatus) IsPending() bool {
	return s == StatusUploading || s == StatusSending
}

func (s MessageStatus) Valid() bool {
	return s.rank() >= 0
}

type Message struct {
	ID         string        `json:"id,omitempty" firestore:"id"`
	ClientID   string        `json:"clientId" firestore:"clientId"`
	RoomID     string        `json:"roomId" firestore:"roomId"`
	SenderID   string        `json:"senderId" firestore:"senderId"`
	Content    *string       `json:"content,omitempty" firestore:"content,omitempty"`
	Attachment *Attachment   `json:"attachment,omitempty" firestore:"attachment,omitempty"`
	Status     MessageStatus `json:"status" firestore:"status"`
	ReplyToID  string        `json:"replyToId,omitempty" firestore:"replyToId,omitempty"`
	Reactions  []Reaction    `json:"reactions" firestore:"reactions"`
	EditedAt   *time.Time    `json:"editedAt,omitempty" firestore:"editedAt,omitempty"`
	CreatedAt  time.Time     `json:"createdAt" firestore:"createdAt"`
}

func (m *Message) Key() MessageKey {
	if m.ID == "" {
		return PendingKey(m.ClientID)
	}
	return ConfirmedKey(m.ID, m.ClientID)
}

func (m *Message) IsConfirmed() bool {
	return m.ID != ""
}

func (m *Message) IsMine(userID string) bool {
	return m.SenderID == userID
}

// NewerThan orders messages newest first. Equal timestamps fall back to the
// key so the order is total and stable across devices.
func (m *Message) NewerThan(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.After(other.CreatedAt)
	}
	return m.Key().sortValue() > other.Key().sortValue()
}

// Clone returns a deep copy so snapshots handed out never alias store state.
func (m *Message) Clone() *Message {
	c := *m
	if m.Content != nil {
		content := *m.Content
		c.Content = &content
	}
	if m.Attachment != nil {
		c.Attachment = m.Attachment.clone()
	}
	if m.EditedAt != nil {
		editedAt := *m.EditedAt
		c.EditedAt = &editedAt
	}
	if m.Reactions != nil {
		c.Reactions = append([]Reaction(nil), m.Reactions...)
	}
	return &c
}

// Preview is the short text used for room list previews.
func (m *Message) Preview() string {
	if m.Content != nil && *m.Content != "" {
		return *m.Content
	}
	if m.Attachment != nil {
		switch m.Attachment.Kind {
		case AttachmentImage:
			return "[image]"
		case AttachmentLocation:
			return "[location]"
		}
	}
	return ""
}

// Validate checks an outgoing message before it enters the store.
func (m *Message) Validate() error {
	if m.ClientID == "" {
		return errors.BadRequest("client id is required", nil)
	}
	if m.RoomID == "" || m.SenderID == "" {
		return errors.BadRequest("room and sender are required", nil)
	}
	hasContent := m.Content != nil && strings.TrimSpace(*m.Content) != ""
	if !hasContent && m.Attachment == nil {
		return errors.BadRequest("message has neither content nor attachment", nil)
	}
	if m.Content != nil && utf8.RuneCountInString(*m.Content) > MaxContentLength {
		return errors.BadRequest("message content is too long", nil)
	}
	if m.Attachment != nil {
		if err := m.Attachment.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MessagePatch is a partial update. Nil fields are left untouched.
type MessagePatch struct {
	Status     *MessageStatus
	Content    *string
	EditedAt   *time.Time
	Attachment *Attachment
	Reactions  *[]Reaction
}

func (p MessagePatch) IsEmpty() bool {
	return p.Status == nil && p.Content == nil && p.EditedAt == nil && p.Attachment == nil && p.Reactions == nil
}

// PatchFromRow builds the patch carried by a server row update. The server
// row is authoritative for the mutable fields.
func PatchFromRow(row *Message) MessagePatch {
	status := row.Status
	reactions := append([]Reaction{}, row.Reactions...)
	patch := MessagePatch{
		Status:    &status,
		Reactions: &reactions,
	}
	if row.Content != nil {
		content := *row.Content
		patch.Content = &content
	}
	if row.EditedAt != nil {
		editedAt := *row.EditedAt
		patch.EditedAt = &editedAt
	}
	if row.Attachment != nil {
		patch.Attachment = row.Attachment.clone()
	}
	return patch
}

// Apply merges p into m and reports whether anything changed. Status only
// moves forward.
func (m *Message) Apply(p MessagePatch) bool {
	changed := false
	if p.Status != nil && *p.Status != m.Status && m.Status.Advances(*p.Status) {
		m.Status = *p.Status
		changed = true
	}
	if p.Content != nil && (m.Content == nil || *m.Content != *p.Content) {
		content := *p.Content
		m.Content = &content
		changed = true
	}
	if p.EditedAt != nil && (m.EditedAt == nil || !m.EditedAt.Equal(*p.EditedAt)) {
		editedAt := *p.EditedAt
		m.EditedAt = &editedAt
		changed = true
	}
	if p.Attachment != nil {
		next := p.Attachment.clone()
		if m.Attachment != nil && next.Image != nil && m.Attachment.Image != nil && next.Image.LocalURI == "" {
			next.Image.LocalURI = m.Attachment.Image.LocalURI
		}
		if !m.Attachment.Equal(next) {
			m.Attachment = next
			changed = true
		}
	}
	if p.Reactions != nil && !sameReactions(m.Reactions, *p.Reactions) {
		m.Reactions = append([]Reaction{}, (*p.Reactions)...)
		changed = true
	}
	return changed
}
