package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"consultchat/internal/domain/entity"
	"consultchat/internal/usecase"
	"consultchat/pkg/errors"
	"consultchat/pkg/response"
)

type ChatService interface {
	SendMessage(ctx context.Context, input usecase.SendMessageInput) (*entity.ChatMessage, error)
	UploadFile(ctx context.Context, input usecase.UploadFileInput) (*entity.ChatMessage, error)
	MarkMessageAsRead(ctx context.Context, messageID, userID string) error
	MarkConversationAsRead(ctx context.Context, conversationID, userID string) (int, error)
	GetMessages(ctx context.Context, conversationID, userID string, limit int) ([]*entity.ChatMessage, error)
	SearchMessages(ctx context.Context, conversationID, userID, term string, limit int) ([]*entity.ChatMessage, error)
	DeleteMessage(ctx context.Context, messageID, userID string) error
}

type ChatHandler struct {
	chat ChatService
}

func NewChatHandler(chat ChatService) *ChatHandler {
	return &ChatHandler{
		chat: chat,
	}
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// SendMessage sends a text message to a conversation
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user := currentUser(c)
	message, err := h.chat.SendMessage(c.Request().Context(), usecase.SendMessageInput{
		ConversationID: c.Param("id"),
		SenderID:       user.UID,
		SenderName:     user.Name,
		SenderAvatar:   user.Picture,
		Body:           entity.TextBody{Text: req.Content},
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// UploadFile stores a multipart "file" field and posts it as an image or file message
func (h *ChatHandler) UploadFile(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("Missing or invalid file", err))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to open uploaded file", err))
	}
	defer src.Close()

	user := currentUser(c)
	message, err := h.chat.UploadFile(c.Request().Context(), usecase.UploadFileInput{
		ConversationID: c.Param("id"),
		SenderID:       user.UID,
		SenderName:     user.Name,
		SenderAvatar:   user.Picture,
		FileName:       fileHeader.Filename,
		Reader:         src,
		Size:           fileHeader.Size,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// GetMessages returns the most recent messages of a conversation, oldest first
func (h *ChatHandler) GetMessages(c echo.Context) error {
	user := currentUser(c)

	messages, err := h.chat.GetMessages(c.Request().Context(), c.Param("id"), user.UID, queryLimit(c, usecase.DefaultMessageLimit))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

func (h *ChatHandler) SearchMessages(c echo.Context) error {
	user := currentUser(c)

	messages, err := h.chat.SearchMessages(c.Request().Context(), c.Param("id"), user.UID, c.QueryParam("q"), queryLimit(c, usecase.DefaultSearchLimit))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

// MarkConversationAsRead marks every unread message in a conversation as read
func (h *ChatHandler) MarkConversationAsRead(c echo.Context) error {
	user := currentUser(c)

	count, err := h.chat.MarkConversationAsRead(c.Request().Context(), c.Param("id"), user.UID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{"marked": count})
}

func (h *ChatHandler) MarkMessageAsRead(c echo.Context) error {
	user := currentUser(c)

	if err := h.chat.MarkMessageAsRead(c.Request().Context(), c.Param("id"), user.UID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Message marked as read"})
}

func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	user := currentUser(c)

	if err := h.chat.DeleteMessage(c.Request().Context(), c.Param("id"), user.UID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Message deleted"})
}
