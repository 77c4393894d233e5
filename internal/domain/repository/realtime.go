package repository

import (
	"context"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
)

// ChangeHandlers receive row-level changes for one room. Callbacks may be
// invoked from any goroutine.
type ChangeHandlers struct {
	OnInsert     func(row *entity.Message)
	OnUpdate     func(row *entity.Message)
	OnDelete     func(row *entity.Message)
	OnRoomUpdate func(room *entity.Room)
	// OnError reports that the subscription is gone. No further callbacks
	// follow for this subscription.
	OnError func(err error)
}

type Unsubscribe func()

type ChangeStream interface {
	Subscribe(ctx context.Context, roomID string, handlers ChangeHandlers) (Unsubscribe, error)
}

// Broadcaster carries ephemeral events that are never stored, such as typing.
type Broadcaster interface {
	Send(ctx context.Context, event string, payload interface{}) error
	OnBroadcast(event string, handler func(payload []byte)) Unsubscribe
}

// PresenceChannel is the shared channel tracking which users are online.
type PresenceChannel interface {
	Track(ctx context.Context, state entity.PresenceState) error
	Untrack(ctx context.Context) error
	OnSync(handler func(online []entity.PresenceState)) Unsubscribe
	// OnDisconnect fires when the channel connection is torn down. Tracked
	// state is gone server side until the next Track.
	OnDisconnect(handler func()) Unsubscribe
}
