package usecase

import (
	"fmt"
	"time"

	"consultchat/internal/domain/entity"
)

// NotificationIcon returns the icon token the client renders for t.
func NotificationIcon(t entity.NotificationType) string {
	switch t {
	case entity.NotificationBookingConfirmed:
		return "calendar-check"
	case entity.NotificationBookingReminder:
		return "clock"
	case entity.NotificationBookingCancelled:
		return "calendar-x"
	case entity.NotificationMessageReceived:
		return "message-circle"
	case entity.NotificationSessionStarted:
		return "video"
	case entity.NotificationSessionEnded:
		return "video-off"
	case entity.NotificationPaymentReceived:
		return "credit-card"
	default:
		return "bell"
	}
}

// NotificationColor returns the accent color token for t.
func NotificationColor(t entity.NotificationType) string {
	switch t {
	case entity.NotificationBookingConfirmed, entity.NotificationSessionStarted:
		return "green"
	case entity.NotificationBookingReminder:
		return "yellow"
	case entity.NotificationBookingCancelled:
		return "red"
	case entity.NotificationMessageReceived:
		return "blue"
	case entity.NotificationSessionEnded:
		return "gray"
	case entity.NotificationPaymentReceived:
		return "purple"
	default:
		return "gray"
	}
}

// FormatNotificationTime renders t relative to now, falling back to a date
// after a week.
func FormatNotificationTime(t, now time.Time) string {
	elapsed := now.Sub(t)

	switch {
	case elapsed < time.Minute:
		return "Just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed/time.Minute))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed/time.Hour))
	case elapsed < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(elapsed/(24*time.Hour)))
	default:
		return t.Format("Jan 2, 2006")
	}
}
