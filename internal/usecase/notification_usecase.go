package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"consultchat/internal/domain/entity"
	"consultchat/internal/domain/repository"
	"consultchat/pkg/errors"
	"consultchat/pkg/logger"
)

const (
	DefaultNotificationTTL   = 30 * 24 * time.Hour
	DefaultNotificationLimit = 50
)

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	ttl              time.Duration
	now              func() time.Time
}

func NewNotificationUseCase(notificationRepo repository.NotificationRepository, ttl time.Duration) *NotificationUseCase {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		ttl:              ttl,
		now:              time.Now,
	}
}

func (uc *NotificationUseCase) CreateNotification(ctx context.Context, userID string, notificationType entity.NotificationType, title, message string, data map[string]string) (string, error) {
	if userID == "" {
		return "", errors.BadRequest("User ID is required", nil)
	}
	if !notificationType.Valid() {
		return "", errors.BadRequest(fmt.Sprintf("Invalid notification type: %s", notificationType), nil)
	}
	if strings.TrimSpace(title) == "" {
		return "", errors.BadRequest("Notification title is required", nil)
	}

	now := uc.now().UTC()
	expiresAt := now.Add(uc.ttl)
	notification := &entity.Notification{
		UserID:    userID,
		Type:      notificationType,
		Title:     title,
		Message:   message,
		Data:      data,
		Read:      false,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
	}

	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		logger.Error("CreateNotification Error: Failed to create %s notification for user %s: %v", notificationType, userID, err)
		return "", errors.Collapse(err, "Failed to create notification")
	}

	return notification.ID, nil
}

// Booking statuses accepted by CreateBookingNotification.
const (
	BookingConfirmed = "confirmed"
	BookingReminder  = "reminder"
	BookingCancelled = "cancelled"
)

func (uc *NotificationUseCase) CreateBookingNotification(ctx context.Context, userID, bookingID, status, consultantName, dateTime string) (string, error) {
	var (
		notificationType entity.NotificationType
		title, message   string
	)

	switch status {
	case BookingConfirmed:
		notificationType = entity.NotificationBookingConfirmed
		title = "Booking Confirmed"
		message = fmt.Sprintf("Your session with %s on %s has been confirmed.", consultantName, dateTime)
	case BookingReminder:
		notificationType = entity.NotificationBookingReminder
		title = "Upcoming Session"
		message = fmt.Sprintf("Reminder: your session with %s is scheduled for %s.", consultantName, dateTime)
	case BookingCancelled:
		notificationType = entity.NotificationBookingCancelled
		title = "Booking Cancelled"
		message = fmt.Sprintf("Your session with %s on %s has been cancelled.", consultantName, dateTime)
	default:
		return "", errors.BadRequest(fmt.Sprintf("Invalid booking status: %s", status), nil)
	}

	return uc.CreateNotification(ctx, userID, notificationType, title, message, map[string]string{
		"bookingId":      bookingID,
		"status":         status,
		"consultantName": consultantName,
		"dateTime":       dateTime,
	})
}

func (uc *NotificationUseCase) CreateMessageNotification(ctx context.Context, userID, conversationID, senderName, preview string) (string, error) {
	return uc.CreateNotification(ctx, userID, entity.NotificationMessageReceived,
		fmt.Sprintf("New message from %s", senderName),
		preview,
		map[string]string{
			"conversationId": conversationID,
			"senderName":     senderName,
		})
}

// Session statuses accepted by CreateSessionNotification.
const (
	SessionStarted = "started"
	SessionEnded   = "ended"
)

func (uc *NotificationUseCase) CreateSessionNotification(ctx context.Context, userID, sessionID, status, consultantName string) (string, error) {
	var (
		notificationType entity.NotificationType
		title, message   string
	)

	switch status {
	case SessionStarted:
		notificationType = entity.NotificationSessionStarted
		title = "Session Started"
		message = fmt.Sprintf("Your session with %s has started.", consultantName)
	case SessionEnded:
		notificationType = entity.NotificationSessionEnded
		title = "Session Ended"
		message = fmt.Sprintf("Your session with %s has ended.", consultantName)
	default:
		return "", errors.BadRequest(fmt.Sprintf("Invalid session status: %s", status), nil)
	}

	return uc.CreateNotification(ctx, userID, notificationType, title, message, map[string]string{
		"sessionId":      sessionID,
		"status":         status,
		"consultantName": consultantName,
	})
}

func (uc *NotificationUseCase) CreatePaymentNotification(ctx context.Context, userID, paymentID string, amount float64, currency string) (string, error) {
	currency = strings.ToUpper(currency)
	return uc.CreateNotification(ctx, userID, entity.NotificationPaymentReceived,
		"Payment Received",
		fmt.Sprintf("We received your payment of %.2f %s.", amount, currency),
		map[string]string{
			"paymentId": paymentID,
			"amount":    strconv.FormatFloat(amount, 'f', 2, 64),
			"currency":  currency,
		})
}

func (uc *NotificationUseCase) CreateSystemNotification(ctx context.Context, userID, title, message string) (string, error) {
	return uc.CreateNotification(ctx, userID, entity.NotificationSystem, title, message, nil)
}

// owned loads a notification the caller may act on. Other users'
// notifications read as not found.
func (uc *NotificationUseCase) owned(ctx context.Context, id, userID, failure string) (*entity.Notification, error) {
	notification, err := uc.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Collapse(err, failure)
	}
	if notification.UserID != userID {
		logger.Warn("User %s attempted to access notification %s owned by %s", userID, id, notification.UserID)
		return nil, errors.NotFound("Notification", nil)
	}
	return notification, nil
}

func (uc *NotificationUseCase) MarkAsRead(ctx context.Context, id, userID string) error {
	notification, err := uc.owned(ctx, id, userID, "Failed to mark notification as read")
	if err != nil {
		return err
	}
	if notification.Read {
		return nil
	}

	if err := uc.notificationRepo.MarkRead(ctx, id, uc.now().UTC()); err != nil {
		logger.Error("MarkAsRead Error: Failed to update notification %s: %v", id, err)
		return errors.Collapse(err, "Failed to mark notification as read")
	}

	return nil
}

func (uc *NotificationUseCase) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	updated, err := uc.notificationRepo.MarkAllRead(ctx, userID, uc.now().UTC())
	if err != nil {
		logger.Error("MarkAllAsRead Error: user %s, %d updated before failure: %v", userID, updated, err)
		return updated, errors.Collapse(err, "Failed to mark notifications as read")
	}

	logger.Info("Marked %d notifications as read for user %s", updated, userID)
	return updated, nil
}

// DeleteNotification hides a notification by expiring it now.
func (uc *NotificationUseCase) DeleteNotification(ctx context.Context, id, userID string) error {
	notification, err := uc.owned(ctx, id, userID, "Failed to delete notification")
	if err != nil {
		return err
	}

	now := uc.now().UTC()
	if !notification.Visible(now) {
		return nil
	}

	if err := uc.notificationRepo.Expire(ctx, id, now); err != nil {
		logger.Error("DeleteNotification Error: Failed to expire notification %s: %v", id, err)
		return errors.Collapse(err, "Failed to delete notification")
	}

	return nil
}

func (uc *NotificationUseCase) DeleteAllRead(ctx context.Context, userID string) (int, error) {
	expired, err := uc.notificationRepo.ExpireAllRead(ctx, userID, uc.now().UTC())
	if err != nil {
		logger.Error("DeleteAllRead Error: user %s, %d expired before failure: %v", userID, expired, err)
		return expired, errors.Collapse(err, "Failed to delete notifications")
	}

	logger.Info("Deleted %d read notifications for user %s", expired, userID)
	return expired, nil
}

// ListNotifications returns the newest unexpired notifications first.
func (uc *NotificationUseCase) ListNotifications(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	all, err := uc.notificationRepo.ListByUser(ctx, userID, 0)
	if err != nil {
		logger.Error("ListNotifications Error: user %s: %v", userID, err)
		return nil, errors.Collapse(err, "Failed to fetch notifications")
	}

	now := uc.now()
	visible := make([]*entity.Notification, 0, limit)
	for _, n := range all {
		if !n.Visible(now) {
			continue
		}
		visible = append(visible, n)
		if len(visible) == limit {
			break
		}
	}

	return visible, nil
}

func (uc *NotificationUseCase) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := uc.notificationRepo.CountUnread(ctx, userID, uc.now())
	if err != nil {
		logger.Error("UnreadCount Error: user %s: %v", userID, err)
		return 0, errors.Collapse(err, "Failed to count notifications")
	}
	return count, nil
}
