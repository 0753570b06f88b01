package entity

import "time"

type NotificationType string

const (
	NotificationBookingConfirmed NotificationType = "booking_confirmed"
	NotificationBookingReminder  NotificationType = "booking_reminder"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
	NotificationMessageReceived  NotificationType = "message_received"
	NotificationSessionStarted   NotificationType = "session_started"
	NotificationSessionEnded     NotificationType = "session_ended"
	NotificationPaymentReceived  NotificationType = "payment_received"
	NotificationSystem           NotificationType = "system"
)

var NotificationTypes = []NotificationType{
	NotificationBookingConfirmed,
	NotificationBookingReminder,
	NotificationBookingCancelled,
	NotificationMessageReceived,
	NotificationSessionStarted,
	NotificationSessionEnded,
	NotificationPaymentReceived,
	NotificationSystem,
}

func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Notification struct {
	ID        string            `json:"id" firestore:"id"`
	UserID    string            `json:"user_id" firestore:"userId"`
	Type      NotificationType  `json:"type" firestore:"type"`
	Title     string            `json:"title" firestore:"title"`
	Message   string            `json:"message" firestore:"message"`
	Data      map[string]string `json:"data,omitempty" firestore:"data,omitempty"`
	Read      bool              `json:"read" firestore:"read"`
	ReadAt    *time.Time        `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	CreatedAt time.Time         `json:"created_at" firestore:"createdAt"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty" firestore:"expiresAt,omitempty"`
}

// Visible reports whether the notification has not expired at now.
func (n *Notification) Visible(now time.Time) bool {
	return n.ExpiresAt == nil || n.ExpiresAt.After(now)
}
