package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/middleware"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimit echo.MiddlewareFunc) {
	SetupHealthRouter(e)
	SetupChatRouter(e, authMiddleware, rateLimit)
	SetupAppRouter(e, authMiddleware, rateLimit)
	SetupWebSocketRouter(e, authMiddleware)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
