package router

import (
	"github.com/labstack/echo/v4"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/handler"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/middleware"
)

// SetupWebSocketRouter sets up the UI event stream
func SetupWebSocketRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	e.GET("/ws", handler.GetWebSocketHandler().HandleWebSocket, authMiddleware.Authenticate)
}
