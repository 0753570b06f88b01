package router

import (
	"github.com/labstack/echo/v4"

	"consultchat/internal/adapter/api/handler"
	"consultchat/internal/adapter/api/middleware"
)

func SetupNotificationRouter(e *echo.Echo, notificationHandler *handler.NotificationHandler, authMiddleware *middleware.AuthMiddleware) {
	notificationGroup := e.Group("/v1/notifications")
	notificationGroup.Use(authMiddleware.Authenticate)

	notificationGroup.GET("", notificationHandler.ListNotifications)
	notificationGroup.GET("/unread-count", notificationHandler.UnreadCount)
	notificationGroup.PUT("/read-all", notificationHandler.MarkAllAsRead)
	notificationGroup.PUT("/:id/read", notificationHandler.MarkAsRead)
	notificationGroup.DELETE("/read", notificationHandler.DeleteAllRead)
	notificationGroup.DELETE("/:id", notificationHandler.DeleteNotification)
}
