package router

import (
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/handler"

	"github.com/labstack/echo/v4"
)

func SetupHealthRouter(e *echo.Echo) {
	healthHandler := handler.GetHealthHandler()
	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/health/session", healthHandler.CheckSession)
}
