package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) *string { return &s }

func TestMessageKey(t *testing.T) {
	pending := &Message{ClientID: "c1"}
	assert.True(t, pending.Key().IsPending())
	assert.Equal(t, "c1", pending.Key().ClientID())

	confirmed := &Message{ID: "m1", ClientID: "c1"}
	assert.False(t, confirmed.Key().IsPending())
	assert.Equal(t, "m1", confirmed.Key().ID())
	assert.Equal(t, "c1", confirmed.Key().ClientID())
}

func TestNewerThan_TieBreak(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := &Message{ID: "b", CreatedAt: ts}
	b := &Message{ID: "a", CreatedAt: ts}
	older := &Message{ID: "z", CreatedAt: ts.Add(-time.Second)}

	assert.True(t, a.NewerThan(b))
	assert.False(t, b.NewerThan(a))
	assert.True(t, b.NewerThan(older))
}

func TestStatusAdvances(t *testing.T) {
	assert.True(t, StatusUploading.Advances(StatusSending))
	assert.True(t, StatusSending.Advances(StatusSent))
	assert.True(t, StatusSent.Advances(StatusRead))
	assert.False(t, StatusRead.Advances(StatusSent))
	assert.False(t, StatusSent.Advances(StatusSending))
	assert.True(t, StatusSending.Advances(StatusFailed))
	assert.False(t, StatusSent.Advances(StatusFailed))
}

func TestApply_DoesNotRegressStatus(t *testing.T) {
	m := &Message{ID: "m1", Status: StatusRead}
	sent := StatusSent
	assert.False(t, m.Apply(MessagePatch{Status: &sent}))
	assert.Equal(t, StatusRead, m.Status)
}

func TestApply_KeepsLocalPlaceholder(t *testing.T) {
	m := &Message{ClientID: "c1", Attachment: NewImageAttachment("", "", "file:///tmp/a.jpg")}
	changed := m.Apply(MessagePatch{Attachment: NewImageAttachment("https://cdn/a.jpg", "LKO2", "")})

	require.True(t, changed)
	assert.Equal(t, "https://cdn/a.jpg", m.Attachment.Image.URL)
	assert.Equal(t, "file:///tmp/a.jpg", m.Attachment.Image.LocalURI)
}

func TestValidate(t *testing.T) {
	base := func() *Message {
		return &Message{ClientID: "c1", RoomID: "r1", SenderID: "me"}
	}

	empty := base()
	assert.Error(t, empty.Validate())

	blank := base()
	blank.Content = text("   ")
	assert.Error(t, blank.Validate())

	ok := base()
	ok.Content = text("hi")
	assert.NoError(t, ok.Validate())

	mismatched := base()
	mismatched.Attachment = &Attachment{Kind: AttachmentImage, Location: &LocationAttachment{}}
	assert.Error(t, mismatched.Validate())

	outOfRange := base()
	outOfRange.Attachment = NewLocationAttachment(91, 0)
	assert.Error(t, outOfRange.Validate())

	location := base()
	location.Attachment = NewLocationAttachment(-6.2, 106.8)
	assert.NoError(t, location.Validate())
}

func TestClone_IsDeep(t *testing.T) {
	m := &Message{ID: "m1", Content: text("a"), Reactions: []Reaction{{Emoji: "👍", UserID: "me"}}}
	c := m.Clone()
	*c.Content = "b"
	c.Reactions[0].Emoji = "🔥"

	assert.Equal(t, "a", *m.Content)
	assert.Equal(t, "👍", m.Reactions[0].Emoji)
}

func TestRoomPins(t *testing.T) {
	r := &Room{ID: "r1", ParticipantIDs: []string{"me", "peer"}}
	assert.True(t, r.Pin("m1"))
	assert.True(t, r.Pin("m2"))
	assert.False(t, r.Pin("m1"))
	assert.True(t, r.Unpin("m1"))
	assert.False(t, r.Unpin("m1"))
	assert.Equal(t, []string{"m2"}, r.PinnedMessageIDs)
	assert.Equal(t, "peer", r.Peer("me"))
}
