package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
)

// ConnectionStatus reports whether the realtime channel is up.
type ConnectionStatus interface {
	Connected() bool
}

type HealthHandler struct {
	identity service.Identity
	realtime ConnectionStatus
}

func NewHealthHandler(identity service.Identity, realtime ConnectionStatus) *HealthHandler {
	return &HealthHandler{
		identity: identity,
		realtime: realtime,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// CheckSession reports the signed-in user and the realtime channel state.
func (h *HealthHandler) CheckSession(c echo.Context) error {
	status := http.StatusOK
	userID := h.identity.CurrentUserID()
	connected := h.realtime != nil && h.realtime.Connected()
	if userID == "" || !connected {
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, map[string]interface{}{
		"userId":            userID,
		"realtimeConnected": connected,
	})
}
