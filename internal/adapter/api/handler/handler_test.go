package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultchat/internal/adapter/api"
	"consultchat/internal/adapter/api/middleware"
	"consultchat/internal/domain/entity"
	"consultchat/internal/usecase"
	"consultchat/pkg/errors"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newContext(method, target string, body []byte, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = api.NewValidator()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.ContextUID, "u1")
	c.Set(middleware.ContextName, "Ana")
	return c, rec
}

func jsonContext(method, target string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	payload, _ := json.Marshal(body)
	return newContext(method, target, payload, echo.MIMEApplicationJSON)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

type stubChat struct {
	sent     usecase.SendMessageInput
	uploaded usecase.UploadFileInput
	upload   []byte
	limit    int
	term     string
}

func (s *stubChat) SendMessage(ctx context.Context, input usecase.SendMessageInput) (*entity.ChatMessage, error) {
	s.sent = input
	msg := entity.NewChatMessage(input.ConversationID, input.SenderID, input.SenderName, input.Body)
	msg.ID = "m1"
	return msg, nil
}

func (s *stubChat) UploadFile(ctx context.Context, input usecase.UploadFileInput) (*entity.ChatMessage, error) {
	s.uploaded = input
	buf := new(bytes.Buffer)
	buf.ReadFrom(input.Reader)
	s.upload = buf.Bytes()
	return &entity.ChatMessage{ID: "m2", Type: entity.MessageTypeFile}, nil
}

func (s *stubChat) MarkMessageAsRead(ctx context.Context, messageID, userID string) error {
	return errors.NotFound("Message", nil)
}

func (s *stubChat) MarkConversationAsRead(ctx context.Context, conversationID, userID string) (int, error) {
	return 4, nil
}

func (s *stubChat) GetMessages(ctx context.Context, conversationID, userID string, limit int) ([]*entity.ChatMessage, error) {
	s.limit = limit
	return []*entity.ChatMessage{}, nil
}

func (s *stubChat) SearchMessages(ctx context.Context, conversationID, userID, term string, limit int) ([]*entity.ChatMessage, error) {
	s.term, s.limit = term, limit
	return []*entity.ChatMessage{}, nil
}

func (s *stubChat) DeleteMessage(ctx context.Context, messageID, userID string) error {
	return errors.Forbidden("Only the sender can delete a message", nil)
}

func TestSendMessage(t *testing.T) {
	chat := &stubChat{}
	h := NewChatHandler(chat)

	c, rec := jsonContext(http.MethodPost, "/", map[string]string{"content": "hello"})
	c.SetParamNames("id")
	c.SetParamValues("conv1")
	c.Set(middleware.ContextPicture, "https://img/ana.png")

	require.NoError(t, h.SendMessage(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "conv1", chat.sent.ConversationID)
	assert.Equal(t, "u1", chat.sent.SenderID)
	assert.Equal(t, "Ana", chat.sent.SenderName)
	assert.Equal(t, "https://img/ana.png", chat.sent.SenderAvatar)
	assert.Equal(t, entity.TextBody{Text: "hello"}, chat.sent.Body)
}

func TestSendMessageValidation(t *testing.T) {
	h := NewChatHandler(&stubChat{})

	c, rec := jsonContext(http.MethodPost, "/", map[string]string{"content": ""})
	require.NoError(t, h.SendMessage(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestUploadFile(t *testing.T) {
	chat := &stubChat{}
	h := NewChatHandler(chat)

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "notes.pdf")
	require.NoError(t, err)
	part.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, writer.Close())

	c, rec := newContext(http.MethodPost, "/", body.Bytes(), writer.FormDataContentType())
	c.SetParamNames("id")
	c.SetParamValues("conv1")

	require.NoError(t, h.UploadFile(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "notes.pdf", chat.uploaded.FileName)
	assert.Equal(t, int64(len("%PDF-1.4 test")), chat.uploaded.Size)
	assert.Equal(t, "%PDF-1.4 test", string(chat.upload))
}

func TestUploadFileMissingField(t *testing.T) {
	h := NewChatHandler(&stubChat{})

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("note", "no file here"))
	require.NoError(t, writer.Close())

	c, rec := newContext(http.MethodPost, "/", body.Bytes(), writer.FormDataContentType())
	require.NoError(t, h.UploadFile(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageQueriesUseLimits(t *testing.T) {
	chat := &stubChat{}
	h := NewChatHandler(chat)

	c, _ := newContext(http.MethodGet, "/", nil, "")
	require.NoError(t, h.GetMessages(c))
	assert.Equal(t, usecase.DefaultMessageLimit, chat.limit)

	c, _ = newContext(http.MethodGet, "/?q=invoice&limit=5", nil, "")
	require.NoError(t, h.SearchMessages(c))
	assert.Equal(t, "invoice", chat.term)
	assert.Equal(t, 5, chat.limit)

	c, _ = newContext(http.MethodGet, "/?limit=-3", nil, "")
	require.NoError(t, h.SearchMessages(c))
	assert.Equal(t, usecase.DefaultSearchLimit, chat.limit)
}

func TestChatErrorsMapToStatus(t *testing.T) {
	h := NewChatHandler(&stubChat{})

	c, rec := newContext(http.MethodPut, "/", nil, "")
	require.NoError(t, h.MarkMessageAsRead(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newContext(http.MethodDelete, "/", nil, "")
	require.NoError(t, h.DeleteMessage(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newContext(http.MethodPut, "/", nil, "")
	require.NoError(t, h.MarkConversationAsRead(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"marked":4}`, string(decode(t, rec).Data))
}

type stubConversationService struct {
	created       usecase.CreateConversationInput
	direct        []string
	conversations []*entity.ChatConversation
}

func (s *stubConversationService) CreateConversation(ctx context.Context, input usecase.CreateConversationInput) (string, error) {
	s.created = input
	return "c-new", nil
}

func (s *stubConversationService) GetOrCreateConversation(ctx context.Context, currentUserID, otherUserID, currentUserName, otherUserName string, metadata *entity.ConversationMetadata) (string, error) {
	s.direct = []string{currentUserID, otherUserID, currentUserName, otherUserName}
	return "c-direct", nil
}

func (s *stubConversationService) ListConversations(ctx context.Context, userID string) ([]*entity.ChatConversation, error) {
	return s.conversations, nil
}

func (s *stubConversationService) GetConversation(ctx context.Context, conversationID, userID string) (*entity.ChatConversation, error) {
	return nil, errors.Forbidden("User is not a participant in this conversation", nil)
}

func (s *stubConversationService) ArchiveConversation(ctx context.Context, conversationID, userID string) error {
	return nil
}

func TestCreateConversationHandler(t *testing.T) {
	svc := &stubConversationService{}
	h := NewConversationHandler(svc)

	c, rec := jsonContext(http.MethodPost, "/", map[string]interface{}{
		"participants": []string{"consultant"},
		"metadata":     map[string]string{"booking_id": "b1"},
	})
	require.NoError(t, h.CreateConversation(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", svc.created.CreatorID)
	assert.Equal(t, "Ana", svc.created.ParticipantNames["u1"])
	require.NotNil(t, svc.created.Metadata)
	assert.Equal(t, "b1", svc.created.Metadata.BookingID)

	c, rec = jsonContext(http.MethodPost, "/", map[string]interface{}{"participants": []string{}})
	require.NoError(t, h.CreateConversation(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrCreateDirectHandler(t *testing.T) {
	svc := &stubConversationService{}
	h := NewConversationHandler(svc)

	c, rec := jsonContext(http.MethodPost, "/", map[string]string{"other_user_id": "consultant", "other_user_name": "Dr. Smith"})
	require.NoError(t, h.GetOrCreateDirect(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u1", "consultant", "Ana", "Dr. Smith"}, svc.direct)
	assert.JSONEq(t, `{"id":"c-direct"}`, string(decode(t, rec).Data))
}

func TestListConversationsPaginates(t *testing.T) {
	svc := &stubConversationService{}
	for _, id := range []string{"a", "b", "c"} {
		svc.conversations = append(svc.conversations, &entity.ChatConversation{ID: id})
	}
	h := NewConversationHandler(svc)

	c, rec := newContext(http.MethodGet, "/?page=2&limit=2", nil, "")
	require.NoError(t, h.ListConversations(c))

	var page struct {
		Items []entity.ChatConversation `json:"items"`
		Total int64                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &page))
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c", page.Items[0].ID)
}

func TestGetConversationForbidden(t *testing.T) {
	h := NewConversationHandler(&stubConversationService{})

	c, rec := newContext(http.MethodGet, "/", nil, "")
	require.NoError(t, h.GetConversation(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type stubNotifications struct {
	list []*entity.Notification
}

func (s *stubNotifications) ListNotifications(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	return s.list, nil
}

func (s *stubNotifications) UnreadCount(ctx context.Context, userID string) (int, error) {
	return 2, nil
}

func (s *stubNotifications) MarkAsRead(ctx context.Context, id, userID string) error {
	return nil
}

func (s *stubNotifications) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	return 2, nil
}

func (s *stubNotifications) DeleteNotification(ctx context.Context, id, userID string) error {
	return errors.NotFound("Notification", nil)
}

func (s *stubNotifications) DeleteAllRead(ctx context.Context, userID string) (int, error) {
	return 1, nil
}

func TestListNotificationsAddsDisplayHints(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewNotificationHandler(&stubNotifications{list: []*entity.Notification{{
		ID:        "n1",
		UserID:    "u1",
		Type:      entity.NotificationBookingCancelled,
		Title:     "Booking Cancelled",
		CreatedAt: now.Add(-5 * time.Minute),
	}}})
	h.now = func() time.Time { return now }

	c, rec := newContext(http.MethodGet, "/", nil, "")
	require.NoError(t, h.ListNotifications(c))

	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "n1", views[0]["id"])
	assert.Equal(t, "calendar-x", views[0]["icon"])
	assert.Equal(t, "red", views[0]["color"])
	assert.Equal(t, "5m ago", views[0]["time_ago"])
}

func TestNotificationCounts(t *testing.T) {
	h := NewNotificationHandler(&stubNotifications{})

	c, rec := newContext(http.MethodGet, "/", nil, "")
	require.NoError(t, h.UnreadCount(c))
	assert.JSONEq(t, `{"count":2}`, string(decode(t, rec).Data))

	c, rec = newContext(http.MethodPut, "/", nil, "")
	require.NoError(t, h.MarkAllAsRead(c))
	assert.JSONEq(t, `{"updated":2}`, string(decode(t, rec).Data))

	c, rec = newContext(http.MethodDelete, "/", nil, "")
	require.NoError(t, h.DeleteAllRead(c))
	assert.JSONEq(t, `{"deleted":1}`, string(decode(t, rec).Data))

	c, rec = newContext(http.MethodDelete, "/", nil, "")
	require.NoError(t, h.DeleteNotification(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubProducer struct {
	calls []string
}

func (s *stubProducer) CreateBookingNotification(ctx context.Context, userID, bookingID, status, consultantName, dateTime string) (string, error) {
	s.calls = append(s.calls, strings.Join([]string{"booking", userID, bookingID, status, consultantName, dateTime}, "|"))
	return "n-booking", nil
}

func (s *stubProducer) CreateSessionNotification(ctx context.Context, userID, sessionID, status, consultantName string) (string, error) {
	s.calls = append(s.calls, strings.Join([]string{"session", userID, sessionID, status}, "|"))
	return "n-session", nil
}

func (s *stubProducer) CreatePaymentNotification(ctx context.Context, userID, paymentID string, amount float64, currency string) (string, error) {
	s.calls = append(s.calls, strings.Join([]string{"payment", userID, paymentID, currency}, "|"))
	return "n-payment", nil
}

func (s *stubProducer) CreateSystemNotification(ctx context.Context, userID, title, message string) (string, error) {
	s.calls = append(s.calls, strings.Join([]string{"system", userID, title}, "|"))
	return "n-system", nil
}

func TestAdminCreateNotification(t *testing.T) {
	producer := &stubProducer{}
	h := NewAdminHandler(producer)

	c, rec := jsonContext(http.MethodPost, "/", map[string]interface{}{
		"kind":            "booking",
		"user_id":         "client",
		"status":          "confirmed",
		"booking_id":      "b1",
		"consultant_name": "Dr. Smith",
		"date_time":       "2024-01-01 10:00",
	})
	require.NoError(t, h.CreateNotification(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"n-booking"}`, string(decode(t, rec).Data))

	c, rec = jsonContext(http.MethodPost, "/", map[string]interface{}{
		"kind":       "payment",
		"user_id":    "client",
		"payment_id": "p1",
		"amount":     25,
		"currency":   "usd",
	})
	require.NoError(t, h.CreateNotification(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, []string{
		"booking|client|b1|confirmed|Dr. Smith|2024-01-01 10:00",
		"payment|client|p1|usd",
	}, producer.calls)
}

func TestAdminCreateNotificationValidation(t *testing.T) {
	producer := &stubProducer{}
	h := NewAdminHandler(producer)

	for _, body := range []map[string]interface{}{
		{"kind": "promo", "user_id": "client"},
		{"kind": "booking", "user_id": "client", "status": "confirmed"},
		{"kind": "system", "user_id": "client"},
		{"kind": "session", "session_id": "s1", "status": "started"},
	} {
		c, rec := jsonContext(http.MethodPost, "/", body)
		require.NoError(t, h.CreateNotification(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, producer.calls)
}

type fixedCount int

func (f fixedCount) ConnectionCount() int { return int(f) }

func TestHealth(t *testing.T) {
	h := NewHealthHandler(fixedCount(3))

	c, rec := newContext(http.MethodGet, "/health", nil, "")
	require.NoError(t, h.CheckHealth(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connections":3`)
}
