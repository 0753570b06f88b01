package router

import (
	"github.com/labstack/echo/v4"

	"consultchat/internal/adapter/api/handler"
	"consultchat/internal/adapter/api/middleware"
)

// SetupChatRouter sets up conversation and message routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	conversationGroup := e.Group("/v1/conversations")
	conversationGroup.Use(authMiddleware.Authenticate)

	// Conversation management
	conversationGroup.POST("", conversationHandler.CreateConversation)
	conversationGroup.POST("/direct", conversationHandler.GetOrCreateDirect)
	conversationGroup.GET("", conversationHandler.ListConversations)
	conversationGroup.GET("/:id", conversationHandler.GetConversation)
	conversationGroup.PUT("/:id/archive", conversationHandler.ArchiveConversation)
	conversationGroup.PUT("/:id/read", chatHandler.MarkConversationAsRead)

	// Messages within a conversation
	conversationGroup.GET("/:id/messages", chatHandler.GetMessages)
	conversationGroup.POST("/:id/messages", chatHandler.SendMessage)
	conversationGroup.GET("/:id/messages/search", chatHandler.SearchMessages)
	conversationGroup.POST("/:id/files", chatHandler.UploadFile)

	messageGroup := e.Group("/v1/messages")
	messageGroup.Use(authMiddleware.Authenticate)

	messageGroup.PUT("/:id/read", chatHandler.MarkMessageAsRead)
	messageGroup.DELETE("/:id", chatHandler.DeleteMessage)
}
