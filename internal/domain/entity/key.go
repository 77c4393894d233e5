package entity

import "fmt"

type keyKind uint8

const (
	keyPending keyKind = iota + 1
	keyConfirmed
)

// MessageKey identifies a message either by its client id alone (pending)
// or by its server id plus the client id it was created with (confirmed).
type MessageKey struct {
	kind     keyKind
	id       string
	clientID string
}

func PendingKey(clientID string) MessageKey {
	return MessageKey{kind: keyPending, clientID: clientID}
}

func ConfirmedKey(id, clientID string) MessageKey {
	return MessageKey{kind: keyConfirmed, id: id, clientID: clientID}
}

// IDKey addresses a confirmed message when the client id is unknown.
func IDKey(id string) MessageKey {
	return MessageKey{kind: keyConfirmed, id: id}
}

func (k MessageKey) IsPending() bool {
	return k.kind == keyPending
}

func (k MessageKey) ID() string {
	return k.id
}

func (k MessageKey) ClientID() string {
	return k.clientID
}

func (k MessageKey) IsZero() bool {
	return k.id == "" && k.clientID == ""
}

func (k MessageKey) sortValue() string {
	if k.kind == keyConfirmed && k.id != "" {
		return k.id
	}
	return k.clientID
}

func (k MessageKey) String() string {
	if k.IsPending() {
		return fmt.Sprintf("pending(%s)", k.clientID)
	}
	return fmt.Sprintf("confirmed(%s)", k.id)
}
