package repository

import (
	"context"
	"time"

	"consultchat/internal/domain/entity"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, userID string, now time.Time) (int, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	Expire(ctx context.Context, id string, at time.Time) error
	ExpireAllRead(ctx context.Context, userID string, at time.Time) (int, error)

	// WatchUnreadCount blocks until ctx is done, calling fn with the number
	// of unread, unexpired notifications whenever it may have changed.
	WatchUnreadCount(ctx context.Context, userID string, fn func(int)) error
}
