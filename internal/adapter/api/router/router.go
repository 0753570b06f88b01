package router

import (
	"github.com/labstack/echo/v4"

	"consultchat/internal/adapter/api/handler"
	"consultchat/internal/adapter/api/middleware"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Chat         *handler.ChatHandler
	Notification *handler.NotificationHandler
	Admin        *handler.AdminHandler
	WebSocket    *handler.WebSocketHandler
	Health       *handler.HealthHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware) {
	SetupChatRouter(e, h.Conversation, h.Chat, authMiddleware)
	SetupNotificationRouter(e, h.Notification, authMiddleware)
	SetupAdminRouter(e, h.Admin, authMiddleware)
	SetupWebSocketRouter(e, h.WebSocket)
	SetupHealthRouter(e, h.Health)
}
