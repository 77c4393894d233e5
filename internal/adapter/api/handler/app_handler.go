package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/usecase"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/response"
)

// AppHandler reports app lifecycle changes from the rendering layer.
type AppHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewAppHandler(chatUseCase *usecase.ChatUseCase) *AppHandler {
	return &AppHandler{
		chatUseCase: chatUseCase,
	}
}

func (h *AppHandler) Foreground(c echo.Context) error {
	h.chatUseCase.Foreground(context.WithoutCancel(c.Request().Context()))
	return response.Success(c, map[string]string{"status": "foreground"})
}

func (h *AppHandler) Background(c echo.Context) error {
	h.chatUseCase.Background(context.WithoutCancel(c.Request().Context()))
	return response.Success(c, map[string]string{"status": "background"})
}

func (h *AppHandler) GetPresence(c echo.Context) error {
	return response.Success(c, map[string]interface{}{
		"status": h.chatUseCase.PresenceStatus(),
		"online": h.chatUseCase.OnlineUsers(),
	})
}

// RefreshBadge recomputes the unread total; the result is pushed on /ws.
func (h *AppHandler) RefreshBadge(c echo.Context) error {
	go h.chatUseCase.RefreshBadge(context.WithoutCancel(c.Request().Context()))
	return response.Accepted(c, nil)
}
