package router

import (
	"github.com/labstack/echo/v4"

	"consultchat/internal/adapter/api/handler"
	"consultchat/internal/adapter/api/middleware"
)

// SetupAdminRouter exposes the notification producers to trusted callers
func SetupAdminRouter(e *echo.Echo, adminHandler *handler.AdminHandler, authMiddleware *middleware.AuthMiddleware) {
	adminGroup := e.Group("/v1/admin")
	adminGroup.Use(authMiddleware.Authenticate)
	adminGroup.Use(middleware.AdminOnly)

	adminGroup.POST("/notifications", adminHandler.CreateNotification)
}
