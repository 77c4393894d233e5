package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/usecase"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/response"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/utils"
)

const maxImageSize = 10 << 20

type ChatHandler struct {
	chatUseCase    *usecase.ChatUseCase
	requestTimeout time.Duration
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase, requestTimeout time.Duration) *ChatHandler {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &ChatHandler{
		chatUseCase:    chatUseCase,
		requestTimeout: requestTimeout,
	}
}

type sendMessageRequest struct {
	Type      string           `json:"type" validate:"required,oneof=text location"`
	Content   string           `json:"content" validate:"required_if=Type text,max=4000"`
	Location  *locationRequest `json:"location" validate:"required_if=Type location"`
	ReplyToID string           `json:"replyToId"`
}

type locationRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

type openRoomResponse struct {
	State    usecase.SessionState `json:"state"`
	Messages interface{}          `json:"messages"`
}

type loadMoreResponse struct {
	Fetched   bool `json:"fetched"`
	AllLoaded bool `json:"allLoaded"`
}

func (h *ChatHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.requestTimeout)
}

// OpenRoom opens a room, replacing whatever room was open.
func (h *ChatHandler) OpenRoom(c echo.Context) error {
	roomID := c.Param("id")
	if roomID == "" {
		return response.Error(c, errors.BadRequest("Room ID is required", nil))
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	session, err := h.chatUseCase.OpenRoom(ctx, roomID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, openRoomResponse{
		State:    session.State(),
		Messages: session.Messages(),
	})
}

func (h *ChatHandler) CloseRoom(c echo.Context) error {
	h.chatUseCase.CloseRoom()
	return response.Success(c, map[string]string{"message": "Room closed"})
}

func (h *ChatHandler) GetState(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, session.State())
}

// GetMessages returns a window of the loaded message list, newest first.
func (h *ChatHandler) GetMessages(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	messages := session.Messages()
	params := utils.GetWindowParams(c)
	start, end := params.Bounds(len(messages))

	return response.Window(c, messages[start:end], len(messages), start, params.Limit, session.State().AllLoaded)
}

func (h *ChatHandler) LoadMore(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	fetched, err := session.LoadMore(ctx)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, loadMoreResponse{
		Fetched:   fetched,
		AllLoaded: session.State().AllLoaded,
	})
}

// SendMessage sends text or a location. While an edit is in progress a text
// submission saves the edit instead.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	if req.Type == "location" {
		msg, err := session.SendLocation(ctx, usecase.LocationInput{
			Lat:       req.Location.Lat,
			Lng:       req.Location.Lng,
			ReplyToID: req.ReplyToID,
		})
		if err != nil {
			return response.Error(c, err)
		}
		return response.Created(c, msg)
	}

	editing := session.State().EditingID != ""
	msg, err := session.Submit(ctx, usecase.SubmitInput{
		Content:   req.Content,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		return response.Error(c, err)
	}
	if editing {
		return response.Success(c, msg)
	}
	return response.Created(c, msg)
}

// SendImage takes a multipart upload in the "file" field.
func (h *ChatHandler) SendImage(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("Image file is required", err))
	}
	if fileHeader.Size > maxImageSize {
		return response.Error(c, errors.BadRequest("Image is larger than 10MB", nil))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.BadRequest("Failed to read image", err))
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	msg, err := session.SendImage(ctx, usecase.ImageInput{
		File:        file,
		ContentType: contentType,
		LocalURI:    c.FormValue("localUri"),
		Blurhash:    c.FormValue("blurhash"),
		ReplyToID:   c.FormValue("replyToId"),
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

func (h *ChatHandler) BeginEdit(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	msg, err := session.BeginEdit(c.Param("messageId"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, msg)
}

func (h *ChatHandler) CancelEdit(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	session.CancelEdit()
	return response.Success(c, map[string]string{"message": "Edit cancelled"})
}

func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := session.Delete(ctx, c.Param("messageId")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Message deleted"})
}

func (h *ChatHandler) ToggleReaction(c echo.Context) error {
	var req reactionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	summary, err := session.ToggleReaction(ctx, c.Param("messageId"), req.Emoji)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, summary)
}

func (h *ChatHandler) GetReactions(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	summary, err := session.ReactionSummary(c.Param("messageId"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, summary)
}

func (h *ChatHandler) GetPins(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, session.Pinned())
}

func (h *ChatHandler) Pin(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := session.Pin(ctx, c.Param("messageId")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, session.Pinned())
}

func (h *ChatHandler) Unpin(c echo.Context) error {
	session, err := h.chatUseCase.Current()
	if err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := session.Unpin(ctx, c.Param("messageId")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, session.Pinned())
}

func (h *ChatHandler) Typing(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.chatUseCase.Typing(ctx); err != nil {
		return response.Error(c, err)
	}
	return response.Accepted(c, nil)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	if err := h.chatUseCase.MarkRead(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}
	return response.Accepted(c, nil)
}
