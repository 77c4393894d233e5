package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/metrics"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/ratelimit"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// TypingEvent is the broadcast event name for typing signals.
const TypingEvent = "typing"

const eventQueueSize = 256

type SessionConfig struct {
	PageSize              int
	TypingTimeout         time.Duration
	ResubscribeBaseDelay  time.Duration
	ResubscribeMaxBackoff time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = DefaultTypingTimeout
	}
	if c.ResubscribeBaseDelay <= 0 {
		c.ResubscribeBaseDelay = time.Second
	}
	if c.ResubscribeMaxBackoff <= 0 {
		c.ResubscribeMaxBackoff = 30 * time.Second
	}
	return c
}

// SessionState is the UI-facing state of an open room besides its messages.
type SessionState struct {
	RoomID     string       `json:"roomId"`
	PeerID     string       `json:"peerId"`
	PeerOnline bool         `json:"peerOnline"`
	PeerTyping bool         `json:"peerTyping"`
	AllLoaded  bool         `json:"allLoaded"`
	Loading    bool         `json:"loading"`
	EditingID  string       `json:"editingId,omitempty"`
	Room       *entity.Room `json:"room,omitempty"`
}

// RoomSession is the owned handle for one open room. It holds the room's
// store and subscription, and must be closed to release them. All change
// stream callbacks are applied by a single goroutine in arrival order.
type RoomSession struct {
	roomID string
	userID string
	cfg    SessionConfig
	log    *logger.Scoped

	store      *MessageStore
	pagination *Pagination
	sender     *SendPipeline
	reactions  *ReactionUseCase
	receipts   *ReadReceiptCoordinator
	pins       *PinBoard
	typing     *TypingIndicator
	reconciler *RealtimeReconciler
	presence   *PresenceUseCase

	chatRepo    repository.ChatRepository
	stream      repository.ChangeStream
	broadcaster repository.Broadcaster
	limiter     *ratelimit.RateLimiter

	ctx    context.Context
	cancel context.CancelFunc
	events chan func()
	wg     sync.WaitGroup

	mu            sync.Mutex
	unsubscribe   repository.Unsubscribe
	unsubTyping   repository.Unsubscribe
	resubscribing bool
	started       bool
	closed        bool
}

type sessionDeps struct {
	chatRepo    repository.ChatRepository
	stream      repository.ChangeStream
	broadcaster repository.Broadcaster
	uploader    service.FileUploadService
	notifier    service.Notifier
	presence    *PresenceUseCase
	limiter     *ratelimit.RateLimiter
}

func newRoomSession(roomID, userID string, cfg SessionConfig, deps sessionDeps) *RoomSession {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &RoomSession{
		roomID:      roomID,
		userID:      userID,
		cfg:         cfg,
		log:         logger.WithRoom(roomID),
		chatRepo:    deps.chatRepo,
		stream:      deps.stream,
		broadcaster: deps.broadcaster,
		limiter:     deps.limiter,
		presence:    deps.presence,
		ctx:         ctx,
		cancel:      cancel,
		events:      make(chan func(), eventQueueSize),
	}

	notifier := deps.notifier
	s.store = NewMessageStore(roomID)
	s.store.OnChange(func(messages []*entity.Message) {
		notifier.ListChanged(roomID, messages)
	})
	s.pagination = NewPagination(roomID, cfg.PageSize, s.store, deps.chatRepo)
	s.sender = NewSendPipeline(roomID, userID, s.store, deps.chatRepo, deps.uploader, notifier)
	s.reactions = NewReactionUseCase(roomID, userID, s.store, deps.chatRepo)
	s.receipts = NewReadReceiptCoordinator(ctx, roomID, userID, s.store, deps.chatRepo, NewUnreadCounter(userID, deps.chatRepo, notifier))
	s.pins = NewPinBoard(ctx, roomID, s.store, deps.chatRepo, notifier)
	s.typing = NewTypingIndicator(cfg.TypingTimeout, func(typing bool) {
		notifier.TypingChanged(roomID, typing)
	})
	s.reconciler = NewRealtimeReconciler(roomID, userID, s.store, s.typing, s.receipts, s.pins, notifier)
	return s
}

// start subscribes first so no change is missed, then loads the first page
// and the room record concurrently.
func (s *RoomSession) start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	metrics.OpenRooms.Inc()

	s.wg.Add(1)
	go s.run()

	if s.broadcaster != nil {
		unsub := s.broadcaster.OnBroadcast(TypingEvent, s.onTypingPayload)
		s.mu.Lock()
		s.unsubTyping = unsub
		s.mu.Unlock()
	}

	if err := s.subscribe(); err != nil {
		return errors.Internal("failed to subscribe to room changes", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.pagination.LoadInitial(gctx)
	})
	g.Go(func() error {
		room, err := s.chatRepo.GetByID(gctx, s.roomID)
		if err != nil {
			return err
		}
		if !room.HasParticipant(s.userID) {
			return errors.Forbidden("you are not a participant of this room", nil)
		}
		return s.pins.Load(gctx, room)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.log.Info("room opened for user %s", s.userID)
	s.receipts.Trigger()
	return nil
}

func (s *RoomSession) subscribe() error {
	unsub, err := s.stream.Subscribe(s.ctx, s.roomID, repository.ChangeHandlers{
		OnInsert: func(row *entity.Message) {
			s.enqueue(func() { s.reconciler.HandleInsert(row) })
		},
		OnUpdate: func(row *entity.Message) {
			s.enqueue(func() { s.reconciler.HandleUpdate(row) })
		},
		OnDelete: func(row *entity.Message) {
			s.enqueue(func() { s.reconciler.HandleDelete(row) })
		},
		OnRoomUpdate: func(room *entity.Room) {
			s.enqueue(func() { s.reconciler.HandleRoomUpdate(room) })
		},
		OnError: func(err error) {
			s.enqueue(func() { s.handleStreamError(err) })
		},
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsubscribe = unsub
	s.mu.Unlock()
	return nil
}

func (s *RoomSession) enqueue(fn func()) {
	select {
	case s.events <- fn:
	case <-s.ctx.Done():
	}
}

func (s *RoomSession) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.events:
			fn()
		}
	}
}

func (s *RoomSession) onTypingPayload(payload []byte) {
	var signal entity.TypingSignal
	if err := json.Unmarshal(payload, &signal); err != nil {
		s.log.Warn("bad typing payload: %v", err)
		return
	}
	s.enqueue(func() { s.reconciler.HandleTyping(signal) })
}

// handleStreamError drops the dead subscription and reconnects in the
// background. After resubscribing the first page is reloaded to cover any
// changes missed while disconnected.
func (s *RoomSession) handleStreamError(err error) {
	s.log.Warn("change stream error: %v", err)

	s.mu.Lock()
	if s.closed || s.resubscribing {
		s.mu.Unlock()
		return
	}
	s.resubscribing = true
	old := s.unsubscribe
	s.unsubscribe = nil
	s.wg.Add(1)
	s.mu.Unlock()

	if old != nil {
		old()
	}
	metrics.Resubscribes.Inc()
	go s.resubscribeLoop()
}

func (s *RoomSession) resubscribeLoop() {
	defer s.wg.Done()

	delay := s.cfg.ResubscribeBaseDelay
	for {
		timer := time.NewTimer(delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := s.subscribe(); err != nil {
			s.log.Warn("resubscribe failed, retrying in %s: %v", delay, err)
			delay *= 2
			if delay > s.cfg.ResubscribeMaxBackoff {
				delay = s.cfg.ResubscribeMaxBackoff
			}
			continue
		}
		break
	}

	s.mu.Lock()
	s.resubscribing = false
	s.mu.Unlock()

	if err := s.pagination.LoadInitial(s.ctx); err != nil {
		s.log.Warn("reload after resubscribe failed: %v", err)
		return
	}
	s.log.Info("resubscribed")
	s.receipts.Trigger()
}

// Close tears the session down: unsubscribes, cancels the typing timer and
// waits for background work. It is safe to call more than once.
func (s *RoomSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	unsub := s.unsubscribe
	unsubTyping := s.unsubTyping
	s.unsubscribe = nil
	s.unsubTyping = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if unsubTyping != nil {
		unsubTyping()
	}
	s.typing.Stop()
	s.cancel()
	s.wg.Wait()
	s.receipts.Wait()
	s.pins.Wait()

	if started {
		metrics.OpenRooms.Dec()
		s.log.Info("room closed")
	}
}

func (s *RoomSession) RoomID() string {
	return s.roomID
}

// Messages returns the ordered message list, newest first.
func (s *RoomSession) Messages() []*entity.Message {
	return s.store.Snapshot()
}

func (s *RoomSession) LoadMore(ctx context.Context) (bool, error) {
	return s.pagination.LoadMore(ctx)
}

func (s *RoomSession) Reload(ctx context.Context) error {
	return s.pagination.LoadInitial(ctx)
}

func (s *RoomSession) Submit(ctx context.Context, input SubmitInput) (*entity.Message, error) {
	return s.sender.Submit(ctx, input)
}

func (s *RoomSession) SendImage(ctx context.Context, input ImageInput) (*entity.Message, error) {
	return s.sender.SendImage(ctx, input)
}

func (s *RoomSession) SendLocation(ctx context.Context, input LocationInput) (*entity.Message, error) {
	return s.sender.SendLocation(ctx, input)
}

func (s *RoomSession) BeginEdit(messageID string) (*entity.Message, error) {
	return s.sender.BeginEdit(messageID)
}

func (s *RoomSession) CancelEdit() {
	s.sender.CancelEdit()
}

// Delete removes one of the user's own messages on the server, then locally.
func (s *RoomSession) Delete(ctx context.Context, messageID string) error {
	msg := s.store.Get(entity.IDKey(messageID))
	if msg == nil {
		return errors.NotFound("Message", nil)
	}
	if !msg.IsMine(s.userID) {
		return errors.Forbidden("only your own messages can be deleted", nil)
	}

	if err := s.chatRepo.DeleteMessage(ctx, s.roomID, messageID); err != nil {
		s.log.Error("DeleteMessage Error: message=%s: %v", messageID, err)
		return errors.ActionFailed("delete", err)
	}
	if s.sender.Editing() == messageID {
		s.sender.CancelEdit()
	}
	s.store.Remove(msg.Key())
	return nil
}

func (s *RoomSession) ToggleReaction(ctx context.Context, messageID, emoji string) ([]entity.ReactionSummary, error) {
	if _, err := s.reactions.Toggle(ctx, messageID, emoji); err != nil {
		return nil, err
	}
	return s.reactions.Summary(messageID)
}

func (s *RoomSession) ReactionSummary(messageID string) ([]entity.ReactionSummary, error) {
	return s.reactions.Summary(messageID)
}

func (s *RoomSession) Pin(ctx context.Context, messageID string) error {
	return s.pins.Pin(ctx, messageID)
}

func (s *RoomSession) Unpin(ctx context.Context, messageID string) error {
	return s.pins.Unpin(ctx, messageID)
}

func (s *RoomSession) Pinned() []*entity.Message {
	return s.pins.Pinned()
}

// MarkRead requests read receipts for any unread peer messages.
func (s *RoomSession) MarkRead() {
	s.receipts.Trigger()
}

// NotifyTyping broadcasts that the local user is typing. Calls faster than
// the typing throttle are dropped.
func (s *RoomSession) NotifyTyping(ctx context.Context) {
	if s.broadcaster == nil {
		return
	}
	if s.limiter != nil {
		if ok, _ := s.limiter.Allow(s.userID, ratelimit.ActionTyping); !ok {
			return
		}
	}
	signal := entity.TypingSignal{RoomID: s.roomID, UserID: s.userID, SentAt: time.Now().UTC()}
	if err := s.broadcaster.Send(ctx, TypingEvent, signal); err != nil {
		s.log.Warn("typing broadcast failed: %v", err)
	}
}

func (s *RoomSession) State() SessionState {
	room := s.pins.Room()
	state := SessionState{
		RoomID:     s.roomID,
		PeerTyping: s.typing.IsTyping(),
		AllLoaded:  s.pagination.AllLoaded(),
		Loading:    s.pagination.Loading(),
		EditingID:  s.sender.Editing(),
		Room:       room,
	}
	if room != nil {
		state.PeerID = room.Peer(s.userID)
		if s.presence != nil && state.PeerID != "" {
			state.PeerOnline = s.presence.IsOnline(state.PeerID)
		}
	}
	return state
}
