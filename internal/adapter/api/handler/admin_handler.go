package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"consultchat/pkg/errors"
	"consultchat/pkg/response"
)

// NotificationProducer emits the typed notifications other services trigger.
type NotificationProducer interface {
	CreateBookingNotification(ctx context.Context, userID, bookingID, status, consultantName, dateTime string) (string, error)
	CreateSessionNotification(ctx context.Context, userID, sessionID, status, consultantName string) (string, error)
	CreatePaymentNotification(ctx context.Context, userID, paymentID string, amount float64, currency string) (string, error)
	CreateSystemNotification(ctx context.Context, userID, title, message string) (string, error)
}

type AdminHandler struct {
	producer NotificationProducer
}

func NewAdminHandler(producer NotificationProducer) *AdminHandler {
	return &AdminHandler{
		producer: producer,
	}
}

type createNotificationRequest struct {
	Kind           string  `json:"kind" validate:"required,oneof=booking session payment system"`
	UserID         string  `json:"user_id" validate:"required"`
	Status         string  `json:"status" validate:"required_if=Kind booking,required_if=Kind session"`
	BookingID      string  `json:"booking_id" validate:"required_if=Kind booking"`
	SessionID      string  `json:"session_id" validate:"required_if=Kind session"`
	PaymentID      string  `json:"payment_id" validate:"required_if=Kind payment"`
	ConsultantName string  `json:"consultant_name"`
	DateTime       string  `json:"date_time"`
	Amount         float64 `json:"amount" validate:"gte=0"`
	Currency       string  `json:"currency" validate:"required_if=Kind payment"`
	Title          string  `json:"title" validate:"required_if=Kind system"`
	Message        string  `json:"message"`
}

// CreateNotification emits a booking, session, payment or system notification
func (h *AdminHandler) CreateNotification(c echo.Context) error {
	var req createNotificationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	var (
		id  string
		err error
	)

	switch req.Kind {
	case "booking":
		id, err = h.producer.CreateBookingNotification(ctx, req.UserID, req.BookingID, req.Status, req.ConsultantName, req.DateTime)
	case "session":
		id, err = h.producer.CreateSessionNotification(ctx, req.UserID, req.SessionID, req.Status, req.ConsultantName)
	case "payment":
		id, err = h.producer.CreatePaymentNotification(ctx, req.UserID, req.PaymentID, req.Amount, req.Currency)
	case "system":
		id, err = h.producer.CreateSystemNotification(ctx, req.UserID, req.Title, req.Message)
	default:
		err = errors.BadRequest("Unknown notification kind", nil)
	}
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, map[string]string{"id": id})
}
