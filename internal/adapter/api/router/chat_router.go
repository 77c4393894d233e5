package router

import (
	"github.com/labstack/echo/v4"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/handler"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/adapter/api/middleware"
)

// SetupChatRouter sets up the open-room routes
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimit echo.MiddlewareFunc) {
	chatHandler := handler.GetChatHandler()

	rooms := e.Group("/v1/rooms")
	rooms.Use(authMiddleware.Authenticate)
	rooms.Use(rateLimit)

	rooms.POST("/:id/open", chatHandler.OpenRoom)

	current := rooms.Group("/current")
	current.DELETE("", chatHandler.CloseRoom)
	current.GET("/state", chatHandler.GetState)
	current.POST("/typing", chatHandler.Typing)
	current.POST("/read", chatHandler.MarkRead)
	current.DELETE("/edit", chatHandler.CancelEdit)

	// Messages
	current.GET("/messages", chatHandler.GetMessages)
	current.POST("/messages", chatHandler.SendMessage)
	current.POST("/messages/more", chatHandler.LoadMore)
	current.POST("/messages/image", chatHandler.SendImage)
	current.PUT("/messages/:messageId/edit", chatHandler.BeginEdit)
	current.DELETE("/messages/:messageId", chatHandler.DeleteMessage)

	// Reactions
	current.GET("/messages/:messageId/reactions", chatHandler.GetReactions)
	current.POST("/messages/:messageId/reactions", chatHandler.ToggleReaction)

	// Pins
	current.GET("/pins", chatHandler.GetPins)
	current.POST("/pins/:messageId", chatHandler.Pin)
	current.DELETE("/pins/:messageId", chatHandler.Unpin)
}
