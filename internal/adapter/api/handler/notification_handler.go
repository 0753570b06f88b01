package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"consultchat/internal/domain/entity"
	"consultchat/internal/usecase"
	"consultchat/pkg/response"
)

type NotificationService interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]*entity.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, id, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
	DeleteNotification(ctx context.Context, id, userID string) error
	DeleteAllRead(ctx context.Context, userID string) (int, error)
}

type NotificationHandler struct {
	notifications NotificationService
	now           func() time.Time
}

func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		now:           time.Now,
	}
}

// notificationView adds client display hints to a notification.
type notificationView struct {
	*entity.Notification
	Icon    string `json:"icon"`
	Color   string `json:"color"`
	TimeAgo string `json:"time_ago"`
}

func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	user := currentUser(c)

	notifications, err := h.notifications.ListNotifications(c.Request().Context(), user.UID, queryLimit(c, usecase.DefaultNotificationLimit))
	if err != nil {
		return response.Error(c, err)
	}

	now := h.now()
	views := make([]notificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, notificationView{
			Notification: n,
			Icon:         usecase.NotificationIcon(n.Type),
			Color:        usecase.NotificationColor(n.Type),
			TimeAgo:      usecase.FormatNotificationTime(n.CreatedAt, now),
		})
	}

	return response.Success(c, views)
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	user := currentUser(c)

	count, err := h.notifications.UnreadCount(c.Request().Context(), user.UID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{"count": count})
}

func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	user := currentUser(c)

	if err := h.notifications.MarkAsRead(c.Request().Context(), c.Param("id"), user.UID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	user := currentUser(c)

	count, err := h.notifications.MarkAllAsRead(c.Request().Context(), user.UID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{"updated": count})
}

func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	user := currentUser(c)

	if err := h.notifications.DeleteNotification(c.Request().Context(), c.Param("id"), user.UID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Notification deleted"})
}

func (h *NotificationHandler) DeleteAllRead(c echo.Context) error {
	user := currentUser(c)

	count, err := h.notifications.DeleteAllRead(c.Request().Context(), user.UID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{"deleted": count})
}
