package usecase

import (
	"sort"
	"sync"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/metrics"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

type ReconcileResult int

const (
	ReconcileUnchanged ReconcileResult = iota
	ReconcileInserted
	ReconcileReplaced
)

func (r ReconcileResult) String() string {
	switch r {
	case ReconcileInserted:
		return "inserted"
	case ReconcileReplaced:
		return "replaced"
	}
	return "unchanged"
}

// MessageStore is the ordered list of messages for one open room. Entries
// are kept newest first and are unique by both server id and client id.
type MessageStore struct {
	roomID string

	mu         sync.RWMutex
	messages   []*entity.Message
	byID       map[string]*entity.Message
	byClientID map[string]*entity.Message
	reload     *reloadMarks

	listenersMu sync.Mutex
	listeners   []func([]*entity.Message)
}

// reloadMarks records what changed while a first-page fetch was in flight,
// so ReplaceAll does not undo it with an older page.
type reloadMarks struct {
	touched map[*entity.Message]bool
	removed map[string]bool
}

func NewMessageStore(roomID string) *MessageStore {
	return &MessageStore{
		roomID:     roomID,
		byID:       make(map[string]*entity.Message),
		byClientID: make(map[string]*entity.Message),
	}
}

// OnChange registers fn to receive a snapshot after every effective mutation.
func (s *MessageStore) OnChange(fn func([]*entity.Message)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// notify runs listeners under listenersMu so they observe snapshots in
// mutation order. Listeners must not mutate the store.
func (s *MessageStore) notify() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	if len(s.listeners) == 0 {
		return
	}
	snapshot := s.Snapshot()
	for _, fn := range s.listeners {
		fn(snapshot)
	}
}

// InsertOptimistic adds a locally created message at its sorted position,
// normally the head. The client id must be new to the store.
func (s *MessageStore) InsertOptimistic(msg *entity.Message) error {
	s.mu.Lock()
	if msg.ClientID == "" {
		s.mu.Unlock()
		return errors.BadRequest("client id is required", nil)
	}
	if _, exists := s.byClientID[msg.ClientID]; exists {
		s.mu.Unlock()
		return errors.Conflict("client id already in store")
	}
	if msg.ID != "" {
		if _, exists := s.byID[msg.ID]; exists {
			s.mu.Unlock()
			return errors.Conflict("message id already in store")
		}
	}
	s.insertLocked(msg.Clone())
	s.mu.Unlock()

	s.notify()
	return nil
}

// Reconcile folds an authoritative server row into the store. A row matching
// an existing entry by client id or id replaces it in place; otherwise it is
// inserted in order. Calling it again with the same row changes nothing.
func (s *MessageStore) Reconcile(row *entity.Message) ReconcileResult {
	s.mu.Lock()
	existing := s.lookupLocked(row.ID, row.ClientID)

	var result ReconcileResult
	switch {
	case existing == nil:
		inserted := row.Clone()
		s.insertLocked(inserted)
		s.touchLocked(inserted)
		result = ReconcileInserted
	default:
		if dup, ok := s.byID[row.ID]; ok && row.ID != "" && dup != existing {
			s.removeLocked(dup)
		}
		if row.ClientID != "" && existing.ClientID != "" && existing.ClientID != row.ClientID &&
			s.byClientID[existing.ClientID] == existing {
			delete(s.byClientID, existing.ClientID)
		}
		wasPending := !existing.IsConfirmed()
		changed := mergeRow(existing, row)
		s.touchLocked(existing)
		if row.ID != "" {
			s.byID[row.ID] = existing
		}
		if existing.ClientID != "" {
			s.byClientID[existing.ClientID] = existing
		}
		if changed {
			s.reorderLocked(existing)
		}
		if wasPending || changed {
			result = ReconcileReplaced
		}
	}
	s.mu.Unlock()

	metrics.Reconciles.WithLabelValues(result.String()).Inc()
	if result != ReconcileUnchanged {
		s.notify()
	}
	return result
}

// ApplyUpdate merges patch into the entry addressed by key. It returns false
// when the entry is not loaded.
func (s *MessageStore) ApplyUpdate(key entity.MessageKey, patch entity.MessagePatch) bool {
	s.mu.Lock()
	existing := s.lookupLocked(key.ID(), key.ClientID())
	if existing == nil {
		s.mu.Unlock()
		logger.Debug("message store %s: update for unknown message %s", s.roomID, key)
		return false
	}
	changed := existing.Apply(patch)
	if changed {
		s.touchLocked(existing)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return true
}

// Mutate runs fn on the entry addressed by key under the store lock. fn
// reports whether it changed the entry. It returns a copy of the entry after
// fn, or nil when the entry is not loaded.
func (s *MessageStore) Mutate(key entity.MessageKey, fn func(m *entity.Message) bool) *entity.Message {
	s.mu.Lock()
	existing := s.lookupLocked(key.ID(), key.ClientID())
	if existing == nil {
		s.mu.Unlock()
		return nil
	}
	changed := fn(existing)
	if changed {
		s.touchLocked(existing)
	}
	out := existing.Clone()
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return out
}

// Restore overwrites the entry matching prev with prev itself. Used to roll
// back an optimistic update.
func (s *MessageStore) Restore(prev *entity.Message) bool {
	s.mu.Lock()
	existing := s.lookupLocked(prev.ID, prev.ClientID)
	if existing == nil {
		s.mu.Unlock()
		return false
	}
	*existing = *prev.Clone()
	s.touchLocked(existing)
	s.reorderLocked(existing)
	s.mu.Unlock()

	s.notify()
	return true
}

// Remove deletes the entry addressed by key. Absent keys are a no-op.
func (s *MessageStore) Remove(key entity.MessageKey) bool {
	s.mu.Lock()
	existing := s.lookupLocked(key.ID(), key.ClientID())
	if existing == nil {
		s.mu.Unlock()
		return false
	}
	s.removeLocked(existing)
	if s.reload != nil && existing.ID != "" {
		s.reload.removed[existing.ID] = true
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// PageAppend adds an older page at the tail, skipping rows already present.
// It returns how many rows were added.
func (s *MessageStore) PageAppend(older []*entity.Message) int {
	s.mu.Lock()
	added := 0
	for _, row := range older {
		if s.lookupLocked(row.ID, row.ClientID) != nil {
			continue
		}
		s.insertLocked(row.Clone())
		added++
	}
	s.mu.Unlock()

	if added > 0 {
		s.notify()
	}
	return added
}

// BeginReload starts recording changes for the next ReplaceAll. Rows that
// are reconciled, updated or removed from now on win over the fetched page.
func (s *MessageStore) BeginReload() {
	s.mu.Lock()
	s.reload = &reloadMarks{
		touched: make(map[*entity.Message]bool),
		removed: make(map[string]bool),
	}
	s.mu.Unlock()
}

// CancelReload drops the marks of a reload whose fetch failed.
func (s *MessageStore) CancelReload() {
	s.mu.Lock()
	s.reload = nil
	s.mu.Unlock()
}

// ReplaceAll swaps the contents for a freshly fetched first page. Local
// entries still in flight are kept unless the page already contains them.
// After BeginReload, entries changed during the fetch are kept as they are
// and rows removed during the fetch stay removed.
func (s *MessageStore) ReplaceAll(page []*entity.Message) {
	s.mu.Lock()
	marks := s.reload
	s.reload = nil

	pending := make([]*entity.Message, 0)
	carried := make([]*entity.Message, 0)
	carriedIDs := make(map[string]bool)
	carriedClientIDs := make(map[string]bool)
	for _, m := range s.messages {
		switch {
		case marks != nil && marks.touched[m] && m.IsConfirmed() && !m.Status.IsPending():
			carried = append(carried, m)
			if m.ID != "" {
				carriedIDs[m.ID] = true
			}
			if m.ClientID != "" {
				carriedClientIDs[m.ClientID] = true
			}
		case m.Status.IsPending() || !m.IsConfirmed():
			pending = append(pending, m)
		}
	}

	s.messages = s.messages[:0:0]
	s.byID = make(map[string]*entity.Message, len(page))
	s.byClientID = make(map[string]*entity.Message, len(page))
	for _, row := range page {
		if carriedIDs[row.ID] || (row.ClientID != "" && carriedClientIDs[row.ClientID]) {
			continue
		}
		if marks != nil && marks.removed[row.ID] {
			continue
		}
		if s.lookupLocked(row.ID, row.ClientID) != nil {
			continue
		}
		s.appendLocked(row.Clone())
	}
	for _, m := range carried {
		s.appendLocked(m)
	}
	for _, m := range pending {
		if existing := s.lookupLocked(m.ID, m.ClientID); existing != nil {
			continue
		}
		s.appendLocked(m)
	}
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].NewerThan(s.messages[j])
	})
	s.mu.Unlock()

	s.notify()
}

// Snapshot returns deep copies of all entries, newest first.
func (s *MessageStore) Snapshot() []*entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

func (s *MessageStore) Get(key entity.MessageKey) *entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m := s.lookupLocked(key.ID(), key.ClientID()); m != nil {
		return m.Clone()
	}
	return nil
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// ConfirmedCount is the number of server rows the store holds. Because the
// store tracks every insert and delete at the head, it is also the offset of
// the next history page.
func (s *MessageStore) ConfirmedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// UnreadFrom lists confirmed messages sent by someone other than userID that
// are not read yet.
func (s *MessageStore) UnreadFrom(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for _, m := range s.messages {
		if m.IsConfirmed() && !m.IsMine(userID) && m.Status != entity.StatusRead {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (s *MessageStore) lookupLocked(id, clientID string) *entity.Message {
	if clientID != "" {
		if m, ok := s.byClientID[clientID]; ok {
			return m
		}
	}
	if id != "" {
		if m, ok := s.byID[id]; ok {
			return m
		}
	}
	return nil
}

func (s *MessageStore) touchLocked(m *entity.Message) {
	if s.reload != nil {
		s.reload.touched[m] = true
	}
}

func (s *MessageStore) indexLocked(m *entity.Message) {
	if m.ID != "" {
		s.byID[m.ID] = m
	}
	if m.ClientID != "" {
		s.byClientID[m.ClientID] = m
	}
}

func (s *MessageStore) appendLocked(m *entity.Message) {
	s.messages = append(s.messages, m)
	s.indexLocked(m)
}

func (s *MessageStore) insertLocked(m *entity.Message) {
	i := sort.Search(len(s.messages), func(i int) bool {
		return !s.messages[i].NewerThan(m)
	})
	s.messages = append(s.messages, nil)
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = m
	s.indexLocked(m)
}

func (s *MessageStore) removeLocked(m *entity.Message) {
	for i, candidate := range s.messages {
		if candidate == m {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	if m.ID != "" && s.byID[m.ID] == m {
		delete(s.byID, m.ID)
	}
	if m.ClientID != "" && s.byClientID[m.ClientID] == m {
		delete(s.byClientID, m.ClientID)
	}
}

// reorderLocked moves m if its neighbours no longer bracket it.
func (s *MessageStore) reorderLocked(m *entity.Message) {
	for i, candidate := range s.messages {
		if candidate != m {
			continue
		}
		inOrder := (i == 0 || s.messages[i-1].NewerThan(m)) &&
			(i == len(s.messages)-1 || m.NewerThan(s.messages[i+1]))
		if inOrder {
			return
		}
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
		s.insertLocked(m)
		return
	}
}

// mergeRow copies the server-owned fields of row onto existing and reports
// whether anything visible changed. Status never moves backwards and the
// local image placeholder survives confirmation.
func mergeRow(existing, row *entity.Message) bool {
	before := existing.Clone()

	if row.ID != "" {
		existing.ID = row.ID
	}
	if row.ClientID != "" {
		existing.ClientID = row.ClientID
	}
	existing.RoomID = row.RoomID
	existing.SenderID = row.SenderID
	existing.CreatedAt = row.CreatedAt
	existing.ReplyToID = row.ReplyToID
	if existing.Status.Advances(row.Status) {
		existing.Status = row.Status
	}

	patch := entity.PatchFromRow(row)
	patch.Status = nil
	existing.Apply(patch)

	return !sameMessage(before, existing)
}

func sameMessage(a, b *entity.Message) bool {
	if a.ID != b.ID || a.ClientID != b.ClientID || a.Status != b.Status ||
		!a.CreatedAt.Equal(b.CreatedAt) || a.ReplyToID != b.ReplyToID || a.SenderID != b.SenderID {
		return false
	}
	if (a.Content == nil) != (b.Content == nil) || (a.Content != nil && *a.Content != *b.Content) {
		return false
	}
	if (a.EditedAt == nil) != (b.EditedAt == nil) || (a.EditedAt != nil && !a.EditedAt.Equal(*b.EditedAt)) {
		return false
	}
	if !a.Attachment.Equal(b.Attachment) {
		return false
	}
	if len(a.Reactions) != len(b.Reactions) {
		return false
	}
	for i := range a.Reactions {
		if a.Reactions[i].Emoji != b.Reactions[i].Emoji || a.Reactions[i].UserID != b.Reactions[i].UserID {
			return false
		}
	}
	return true
}
