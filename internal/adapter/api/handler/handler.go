package handler

import (
	"time"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/domain/service"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/websocket"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/usecase"
)

var (
	chatHandler      *ChatHandler
	appHandler       *AppHandler
	healthHandler    *HealthHandler
	websocketHandler *WebSocketHandler
)

func Setup(
	chatUseCase *usecase.ChatUseCase,
	identity service.Identity,
	realtime ConnectionStatus,
	wsManager *websocket.Manager,
	requestTimeout time.Duration,
) {
	chatHandler = NewChatHandler(chatUseCase, requestTimeout)
	appHandler = NewAppHandler(chatUseCase)
	healthHandler = NewHealthHandler(identity, realtime)
	websocketHandler = NewWebSocketHandler(wsManager)
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetAppHandler() *AppHandler {
	return appHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return websocketHandler
}
