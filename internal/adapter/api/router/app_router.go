package router

import (
	"github.com/labstack/echo/v4"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/handler"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/middleware"
)

// SetupAppRouter sets up lifecycle, presence and badge routes
func SetupAppRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimit echo.MiddlewareFunc) {
	appHandler := handler.GetAppHandler()

	app := e.Group("/v1")
	app.Use(authMiddleware.Authenticate)
	app.Use(rateLimit)

	app.POST("/app/foreground", appHandler.Foreground)
	app.POST("/app/background", appHandler.Background)
	app.GET("/presence", appHandler.GetPresence)
	app.POST("/badge/refresh", appHandler.RefreshBadge)
}
