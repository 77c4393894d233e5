package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

const (
	testRoom = "room-1"
	me       = "user-me"
	peer     = "user-peer"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func init() {
	logger.SetOutput(io.Discard)
}

func strPtr(s string) *string { return &s }

// peerRows builds n confirmed peer messages, newest first, one second apart.
func peerRows(n int) []*entity.Message {
	rows := make([]*entity.Message, n)
	for i := 0; i < n; i++ {
		rows[i] = &entity.Message{
			ID:        fmt.Sprintf("srv-%03d", n-i),
			ClientID:  fmt.Sprintf("cli-%03d", n-i),
			RoomID:    testRoom,
			SenderID:  peer,
			Content:   strPtr(fmt.Sprintf("hello %d", n-i)),
			Status:    entity.StatusSent,
			Reactions: []entity.Reaction{},
			CreatedAt: baseTime.Add(-time.Duration(i) * time.Second),
		}
	}
	return rows
}

type fakeChatRepo struct {
	mu     sync.Mutex
	rows   []*entity.Message
	room   *entity.Room
	nextID int
	unread int

	insertErr error
	fetchErr  error
	updateErr error
	deleteErr error
	markErr   error
	pinErr    error
	toggleErr error
	roomErr   error

	// onInsert runs inside InsertMessage before it returns.
	onInsert func(msg *entity.Message)
	// fetchGate, when set, blocks FetchPage until it is closed or receives.
	fetchGate chan struct{}

	fetchOffsets  []int
	inserts       int
	updates       []entity.MessagePatch
	deletes       []string
	markCalls     int
	toggleCalls   int
	pinnedUpdates [][]string
	unreadCalls   int
	byIDsCalls    int
}

func newFakeChatRepo(rows []*entity.Message) *fakeChatRepo {
	return &fakeChatRepo{
		rows: rows,
		room: &entity.Room{
			ID:               testRoom,
			ParticipantIDs:   []string{me, peer},
			PinnedMessageIDs: []string{},
			UnreadCount:      map[string]int{},
		},
	}
}

func (r *fakeChatRepo) GetByID(ctx context.Context, roomID string) (*entity.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roomErr != nil {
		return nil, r.roomErr
	}
	if r.room == nil || r.room.ID != roomID {
		return nil, errors.NotFound("Room", nil)
	}
	return cloneRoom(r.room), nil
}

func (r *fakeChatRepo) UpdatePinned(ctx context.Context, roomID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinnedUpdates = append(r.pinnedUpdates, append([]string(nil), ids...))
	if r.pinErr != nil {
		return r.pinErr
	}
	r.room.PinnedMessageIDs = append([]string(nil), ids...)
	return nil
}

func (r *fakeChatRepo) UnreadTotal(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreadCalls++
	return r.unread, nil
}

func (r *fakeChatRepo) FetchPage(ctx context.Context, roomID string, offset, limit int) ([]*entity.Message, error) {
	r.mu.Lock()
	gate := r.fetchGate
	r.fetchOffsets = append(r.fetchOffsets, offset)
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if offset >= len(r.rows) {
		return []*entity.Message{}, nil
	}
	end := offset + limit
	if end > len(r.rows) {
		end = len(r.rows)
	}
	page := make([]*entity.Message, 0, end-offset)
	for _, m := range r.rows[offset:end] {
		page = append(page, m.Clone())
	}
	return page, nil
}

func (r *fakeChatRepo) InsertMessage(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	r.mu.Lock()
	r.inserts++
	err := r.insertErr
	hook := r.onInsert
	var row *entity.Message
	if err == nil {
		r.nextID++
		row = msg.Clone()
		row.ID = fmt.Sprintf("new-%03d", r.nextID)
		row.Status = entity.StatusSent
		r.rows = append([]*entity.Message{row.Clone()}, r.rows...)
	}
	r.mu.Unlock()

	if hook != nil {
		hook(msg.Clone())
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *fakeChatRepo) UpdateMessage(ctx context.Context, roomID, messageID string, patch entity.MessagePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, patch)
	return r.updateErr
}

func (r *fakeChatRepo) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, messageID)
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for i, m := range r.rows {
		if m.ID == messageID {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeChatRepo) GetMessagesByIDs(ctx context.Context, roomID string, ids []string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byIDsCalls++
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]*entity.Message, 0, len(ids))
	for _, m := range r.rows {
		if want[m.ID] {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (r *fakeChatRepo) BulkMarkRead(ctx context.Context, roomID, readerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	return r.markErr
}

func (r *fakeChatRepo) ToggleReaction(ctx context.Context, roomID, messageID, emoji, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toggleCalls++
	return r.toggleErr
}

func (r *fakeChatRepo) counts() (marks, fetches, inserts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.markCalls, len(r.fetchOffsets), r.inserts
}

func (r *fakeChatRepo) set(fn func(r *fakeChatRepo)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

type fakeStream struct {
	mu            sync.Mutex
	handlers      *repository.ChangeHandlers
	subscribes    int
	unsubscribes  int
	subscribeErrs []error
}

func (s *fakeStream) Subscribe(ctx context.Context, roomID string, h repository.ChangeHandlers) (repository.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribes++
	if len(s.subscribeErrs) > 0 {
		err := s.subscribeErrs[0]
		s.subscribeErrs = s.subscribeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	handlers := h
	s.handlers = &handlers
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubscribes++
		if s.handlers == &handlers {
			s.handlers = nil
		}
	}, nil
}

func (s *fakeStream) current() *repository.ChangeHandlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers
}

func (s *fakeStream) insert(row *entity.Message) {
	if h := s.current(); h != nil {
		h.OnInsert(row)
	}
}

func (s *fakeStream) update(row *entity.Message) {
	if h := s.current(); h != nil {
		h.OnUpdate(row)
	}
}

func (s *fakeStream) fail(err error) {
	if h := s.current(); h != nil {
		h.OnError(err)
	}
}

func (s *fakeStream) stats() (subscribes, unsubscribes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes, s.unsubscribes
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	sent     []interface{}
	handlers map[string][]func([]byte)
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{handlers: make(map[string][]func([]byte))}
}

func (b *fakeBroadcaster) Send(ctx context.Context, event string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, payload)
	return nil
}

func (b *fakeBroadcaster) OnBroadcast(event string, handler func([]byte)) repository.Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
	idx := len(b.handlers[event]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[event][idx] = nil
	}
}

func (b *fakeBroadcaster) deliver(event string, payload []byte) {
	b.mu.Lock()
	handlers := append([]func([]byte){}, b.handlers[event]...)
	b.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(payload)
		}
	}
}

func (b *fakeBroadcaster) sentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

type fakePresence struct {
	mu       sync.Mutex
	tracks   int
	untracks int
	trackErr error
	onSync   func([]entity.PresenceState)
	onDrop   func()
}

func (p *fakePresence) Track(ctx context.Context, state entity.PresenceState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks++
	return p.trackErr
}

func (p *fakePresence) Untrack(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.untracks++
	return nil
}

func (p *fakePresence) OnSync(handler func([]entity.PresenceState)) repository.Unsubscribe {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSync = handler
	return func() {}
}

func (p *fakePresence) OnDisconnect(handler func()) repository.Unsubscribe {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDrop = handler
	return func() {}
}

func (p *fakePresence) setTrackErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trackErr = err
}

func (p *fakePresence) sync(states []entity.PresenceState) {
	p.mu.Lock()
	h := p.onSync
	p.mu.Unlock()
	if h != nil {
		h(states)
	}
}

func (p *fakePresence) drop() {
	p.mu.Lock()
	h := p.onDrop
	p.mu.Unlock()
	if h != nil {
		h()
	}
}

func (p *fakePresence) counts() (tracks, untracks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracks, p.untracks
}

type recordingNotifier struct {
	mu       sync.Mutex
	sent     int
	received []*entity.Message
	lists    int
	typing   []bool
	online   [][]string
	rooms    []*entity.Room
	pinned   [][]*entity.Message
	badges   []int
}

func (n *recordingNotifier) MessageSent(string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
}

func (n *recordingNotifier) MessageReceived(msg *entity.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.received = append(n.received, msg)
}

func (n *recordingNotifier) ListChanged(string, []*entity.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lists++
}

func (n *recordingNotifier) TypingChanged(_ string, typing bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.typing = append(n.typing, typing)
}

func (n *recordingNotifier) PresenceChanged(online []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.online = append(n.online, online)
}

func (n *recordingNotifier) RoomUpdated(room *entity.Room, pinned []*entity.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, room)
	n.pinned = append(n.pinned, pinned)
}

func (n *recordingNotifier) BadgeCount(total int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.badges = append(n.badges, total)
}

func (n *recordingNotifier) receivedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.received)
}

func (n *recordingNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

func (n *recordingNotifier) badgeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.badges)
}

func (n *recordingNotifier) roomUpdates() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.rooms)
}

type fakeUploader struct {
	mu        sync.Mutex
	uploadErr error
	uploaded  []string
	deleted   []string
	// during runs while the upload is in progress.
	during func()
}

func (u *fakeUploader) UploadFile(ctx context.Context, file io.Reader, contentType, folder string) (string, error) {
	if u.during != nil {
		u.during()
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.uploadErr != nil {
		return "", u.uploadErr
	}
	url := fmt.Sprintf("https://storage.googleapis.com/bucket/%s/%d.jpg", folder, len(u.uploaded)+1)
	u.uploaded = append(u.uploaded, url)
	return url, nil
}

func (u *fakeUploader) DeleteFile(ctx context.Context, fileURL string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, fileURL)
	return nil
}

type staticIdentity string

func (i staticIdentity) CurrentUserID() string { return string(i) }
