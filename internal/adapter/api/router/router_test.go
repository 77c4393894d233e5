package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/handler"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/middleware"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/entity"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/repository"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/ratelimit"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/websocket"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/usecase"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
)

const (
	me    = "user-me"
	peer  = "user-peer"
	room1 = "room-1"
)

func init() {
	logger.SetOutput(io.Discard)
}

// memoryRepo is a minimal in-memory ChatRepository.
type memoryRepo struct {
	mu     sync.Mutex
	room   *entity.Room
	rows   []*entity.Message
	nextID int
}

func newMemoryRepo(n int) *memoryRepo {
	r := &memoryRepo{
		room: &entity.Room{ID: room1, ParticipantIDs: []string{me, peer}, PinnedMessageIDs: []string{}, UnreadCount: map[string]int{}},
	}
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		content := fmt.Sprintf("hello %d", n-i)
		r.rows = append(r.rows, &entity.Message{
			ID: fmt.Sprintf("srv-%03d", n-i), ClientID: fmt.Sprintf("cli-%03d", n-i), RoomID: room1, SenderID: peer,
			Content: &content, Status: entity.StatusSent, Reactions: []entity.Reaction{},
			CreatedAt: base.Add(-time.Duration(i) * time.Second),
		})
	}
	return r
}

func (r *memoryRepo) GetByID(ctx context.Context, roomID string) (*entity.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if roomID != r.room.ID {
		return nil, errors.NotFound("Room", nil)
	}
	c := *r.room
	c.PinnedMessageIDs = append([]string{}, r.room.PinnedMessageIDs...)
	return &c, nil
}

func (r *memoryRepo) UpdatePinned(ctx context.Context, roomID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room.PinnedMessageIDs = append([]string{}, ids...)
	return nil
}

func (r *memoryRepo) UnreadTotal(ctx context.Context, userID string) (int, error) { return 0, nil }

func (r *memoryRepo) FetchPage(ctx context.Context, roomID string, offset, limit int) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := []*entity.Message{}
	for i := offset; i < len(r.rows) && i < offset+limit; i++ {
		page = append(page, r.rows[i].Clone())
	}
	return page, nil
}

func (r *memoryRepo) InsertMessage(ctx context.Context, msg *entity.Message) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	row := msg.Clone()
	row.ID = fmt.Sprintf("new-%03d", r.nextID)
	row.Status = entity.StatusSent
	r.rows = append([]*entity.Message{row.Clone()}, r.rows...)
	return row, nil
}

func (r *memoryRepo) UpdateMessage(ctx context.Context, roomID, messageID string, patch entity.MessagePatch) error {
	return nil
}

func (r *memoryRepo) DeleteMessage(ctx context.Context, roomID, messageID string) error { return nil }

func (r *memoryRepo) GetMessagesByIDs(ctx context.Context, roomID string, ids []string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entity.Message{}
	for _, id := range ids {
		for _, m := range r.rows {
			if m.ID == id {
				out = append(out, m.Clone())
			}
		}
	}
	return out, nil
}

func (r *memoryRepo) BulkMarkRead(ctx context.Context, roomID, readerID string) error { return nil }

func (r *memoryRepo) ToggleReaction(ctx context.Context, roomID, messageID, emoji, userID string) error {
	return nil
}

type idleStream struct{}

func (idleStream) Subscribe(ctx context.Context, roomID string, h repository.ChangeHandlers) (repository.Unsubscribe, error) {
	return func() {}, nil
}

type staticIdentity string

func (i staticIdentity) CurrentUserID() string { return string(i) }

type tokenAuthorizer map[string]string

func (t tokenAuthorizer) Authorize(ctx context.Context, idToken string) (string, error) {
	uid, ok := t[idToken]
	if !ok || uid != me {
		return "", fmt.Errorf("rejected")
	}
	return uid, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code  string `json:"code"`
		Alert bool   `json:"alert"`
	} `json:"error"`
}

func newTestServer(t *testing.T, rows int, bridgeLimit ratelimit.Limit) *echo.Echo {
	chatUseCase := usecase.NewChatUseCase(newMemoryRepo(rows), idleStream{}, nil, nil, nil, staticIdentity(me), nil,
		ratelimit.NewRateLimiter(map[string]ratelimit.Limit{ratelimit.ActionTyping: {Every: time.Hour, Burst: 1}}),
		usecase.SessionConfig{PageSize: 25})
	t.Cleanup(func() { chatUseCase.Shutdown(context.Background()) })

	handler.Setup(chatUseCase, staticIdentity(me), nil, websocket.NewManager(), time.Second)

	e := echo.New()
	e.Validator = api.NewValidator()
	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Limit{ratelimit.ActionBridge: bridgeLimit})
	Setup(e, middleware.NewAuthMiddleware(tokenAuthorizer{"good": me, "other": peer}), middleware.RateLimitMiddleware(limiter))
	return e
}

func do(e *echo.Echo, method, path, body, token string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

var generous = ratelimit.Limit{Every: time.Millisecond, Burst: 1000}

func TestBridge_OpenSendAndPage(t *testing.T) {
	e := newTestServer(t, 30, generous)

	rec, env := do(e, http.MethodPost, "/v1/rooms/room-1/open", "", "good")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var opened struct {
		State    usecase.SessionState `json:"state"`
		Messages []*entity.Message    `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &opened))
	assert.Len(t, opened.Messages, 25)
	assert.False(t, opened.State.AllLoaded)
	assert.Equal(t, peer, opened.State.PeerID)

	rec, _ = do(e, http.MethodPost, "/v1/rooms/current/messages", `{"type":"text","content":"hi there"}`, "good")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = do(e, http.MethodPost, "/v1/rooms/current/messages/more", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"fetched":true,"allLoaded":true}`, string(env.Data))

	rec, env = do(e, http.MethodGet, "/v1/rooms/current/messages?offset=0&limit=10", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	var window struct {
		Items     []*entity.Message `json:"items"`
		Total     int               `json:"total"`
		AllLoaded bool              `json:"allLoaded"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &window))
	assert.Equal(t, 31, window.Total)
	assert.Len(t, window.Items, 10)
	assert.Equal(t, "hi there", *window.Items[0].Content)
	assert.True(t, window.AllLoaded)

	rec, env = do(e, http.MethodPost, "/v1/rooms/current/pins/srv-030", "", "good")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pinned []*entity.Message
	require.NoError(t, json.Unmarshal(env.Data, &pinned))
	require.Len(t, pinned, 1)
	assert.Equal(t, "srv-030", pinned[0].ID)

	rec, _ = do(e, http.MethodDelete, "/v1/rooms/current", "", "good")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env = do(e, http.MethodGet, "/v1/rooms/current/state", "", "good")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_ACTIVE_ROOM", env.Error.Code)
}

func TestBridge_ValidatesMessages(t *testing.T) {
	e := newTestServer(t, 1, generous)
	rec, _ := do(e, http.MethodPost, "/v1/rooms/room-1/open", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)

	cases := []string{
		`{"type":"video","content":"x"}`,
		`{"type":"location"}`,
		`{"type":"location","location":{"lat":91,"lng":0}}`,
		`{"type":"text"}`,
	}
	for _, body := range cases {
		rec, env := do(e, http.MethodPost, "/v1/rooms/current/messages", body, "good")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code, body)
	}

	rec, _ = do(e, http.MethodPost, "/v1/rooms/current/messages", `{"type":"location","location":{"lat":50.45,"lng":30.52}}`, "good")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(e, http.MethodPut, "/v1/rooms/current/messages/srv-001/edit", "", "good")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestBridge_RequiresSessionUser(t *testing.T) {
	e := newTestServer(t, 1, generous)

	rec, _ := do(e, http.MethodGet, "/v1/rooms/current/state", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(e, http.MethodGet, "/v1/rooms/current/state", "", "other")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBridge_RateLimited(t *testing.T) {
	e := newTestServer(t, 1, ratelimit.Limit{Every: time.Hour, Burst: 2})

	for i := 0; i < 2; i++ {
		rec, _ := do(e, http.MethodGet, "/v1/presence", "", "good")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := do(e, http.MethodGet, "/v1/presence", "", "good")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TOO_MANY_REQUESTS", env.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestBridge_PresenceReportsStatus(t *testing.T) {
	e := newTestServer(t, 1, generous)

	rec, env := do(e, http.MethodGet, "/v1/presence", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string   `json:"status"`
		Online []string `json:"online"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "offline", body.Status)
	assert.Empty(t, body.Online)
}

func TestBridge_TypingWithoutRoom(t *testing.T) {
	e := newTestServer(t, 1, generous)

	rec, env := do(e, http.MethodPost, "/v1/rooms/current/typing", "", "good")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_ACTIVE_ROOM", env.Error.Code)
}
