package usecase

import (
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/metrics"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

// RealtimeReconciler applies change stream events and typing broadcasts
// for one room. It is the only path through which the peer's writes reach
// the store. Callers serialize calls.
type RealtimeReconciler struct {
	roomID   string
	userID   string
	store    *MessageStore
	typing   *TypingIndicator
	receipts *ReadReceiptCoordinator
	pins     *PinBoard
	notifier service.Notifier
	log      *logger.Scoped
}

func NewRealtimeReconciler(
	roomID, userID string,
	store *MessageStore,
	typing *TypingIndicator,
	receipts *ReadReceiptCoordinator,
	pins *PinBoard,
	notifier service.Notifier,
) *RealtimeReconciler {
	return &RealtimeReconciler{
		roomID:   roomID,
		userID:   userID,
		store:    store,
		typing:   typing,
		receipts: receipts,
		pins:     pins,
		notifier: notifier,
		log:      logger.WithRoom(roomID),
	}
}

func (r *RealtimeReconciler) HandleInsert(row *entity.Message) {
	if row.RoomID != "" && row.RoomID != r.roomID {
		return
	}
	result := r.store.Reconcile(row)
	if row.IsMine(r.userID) {
		// echo of our own send, already folded in by Reconcile
		return
	}
	if result != ReconcileInserted {
		return
	}

	r.notifier.MessageReceived(row.Clone())
	r.typing.PeerStopped()
	r.receipts.Trigger()
}

func (r *RealtimeReconciler) HandleUpdate(row *entity.Message) {
	if row.RoomID != "" && row.RoomID != r.roomID {
		return
	}
	if !r.store.ApplyUpdate(row.Key(), entity.PatchFromRow(row)) {
		metrics.StaleUpdates.Inc()
		r.log.Debug("dropped update for unloaded message %s", row.ID)
	}
}

func (r *RealtimeReconciler) HandleDelete(row *entity.Message) {
	if row.RoomID != "" && row.RoomID != r.roomID {
		return
	}
	r.store.Remove(row.Key())
}

func (r *RealtimeReconciler) HandleRoomUpdate(room *entity.Room) {
	if room.ID != r.roomID {
		return
	}
	r.pins.Sync(room)
}

func (r *RealtimeReconciler) HandleTyping(signal entity.TypingSignal) {
	if signal.RoomID != r.roomID || signal.UserID == r.userID {
		return
	}
	r.typing.PeerTyped()
}
