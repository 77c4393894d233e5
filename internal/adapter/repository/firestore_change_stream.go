package repository

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

type firestoreChangeStream struct {
	client *firestore.Client
}

// NewFirestoreChangeStream listens to a room's message collection and room
// document. The first snapshot of each listener is the current state and is
// skipped, so only changes after Subscribe are delivered.
func NewFirestoreChangeStream(client *firestore.Client) repository.ChangeStream {
	return &firestoreChangeStream{client: client}
}

func (s *firestoreChangeStream) Subscribe(ctx context.Context, roomID string, h repository.ChangeHandlers) (repository.Unsubscribe, error) {
	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	roomRef := s.client.Collection(roomsCollection).Doc(roomID)

	messages := roomRef.Collection(messagesCollection).Snapshots(listenCtx)
	room := roomRef.Snapshots(listenCtx)

	sub := &subscription{roomID: roomID, handlers: h, cancel: cancel}
	sub.wg.Add(2)
	go sub.watchMessages(messages)
	go sub.watchRoom(room)

	return sub.stop, nil
}

type subscription struct {
	roomID   string
	handlers repository.ChangeHandlers
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	failed  bool
}

func (s *subscription) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// fail reports the first error only, then tears the other listener down.
func (s *subscription) fail(err error) {
	s.mu.Lock()
	if s.stopped || s.failed {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.mu.Unlock()

	s.cancel()
	if s.handlers.OnError != nil {
		s.handlers.OnError(err)
	}
}

func (s *subscription) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && !s.failed
}

func isStopped(err error) bool {
	return err == iterator.Done || status.Code(err) == codes.Canceled
}

func (s *subscription) watchMessages(iter *firestore.QuerySnapshotIterator) {
	defer s.wg.Done()
	defer iter.Stop()

	first := true
	for {
		snap, err := iter.Next()
		if err != nil {
			if isStopped(err) && !s.active() {
				return
			}
			logger.Warn("Message listener error: room=%s: %v", s.roomID, err)
			s.fail(err)
			return
		}
		if first {
			first = false
			continue
		}

		for _, change := range snap.Changes {
			if !s.active() {
				return
			}
			msg, err := messageFromDoc(change.Doc)
			if err != nil {
				logger.Warn("Error parsing message change %s: %v", change.Doc.Ref.ID, err)
				continue
			}
			switch change.Kind {
			case firestore.DocumentAdded:
				if s.handlers.OnInsert != nil {
					s.handlers.OnInsert(msg)
				}
			case firestore.DocumentModified:
				if s.handlers.OnUpdate != nil {
					s.handlers.OnUpdate(msg)
				}
			case firestore.DocumentRemoved:
				if s.handlers.OnDelete != nil {
					s.handlers.OnDelete(msg)
				}
			}
		}
	}
}

func (s *subscription) watchRoom(iter *firestore.DocumentSnapshotIterator) {
	defer s.wg.Done()
	defer iter.Stop()

	first := true
	for {
		snap, err := iter.Next()
		if err != nil {
			if isStopped(err) && !s.active() {
				return
			}
			logger.Warn("Room listener error: room=%s: %v", s.roomID, err)
			s.fail(err)
			return
		}
		if first {
			first = false
			continue
		}
		if !snap.Exists() || !s.active() {
			continue
		}

		room, err := roomFromDoc(snap)
		if err != nil {
			logger.Warn("Error parsing room %s: %v", s.roomID, err)
			continue
		}
		if s.handlers.OnRoomUpdate != nil {
			s.handlers.OnRoomUpdate(room)
		}
	}
}
