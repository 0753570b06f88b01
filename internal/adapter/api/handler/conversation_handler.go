package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"consultchat/internal/domain/entity"
	"consultchat/internal/usecase"
	"consultchat/pkg/response"
	"consultchat/pkg/utils"
)

type ConversationService interface {
	CreateConversation(ctx context.Context, input usecase.CreateConversationInput) (string, error)
	GetOrCreateConversation(ctx context.Context, currentUserID, otherUserID, currentUserName, otherUserName string, metadata *entity.ConversationMetadata) (string, error)
	ListConversations(ctx context.Context, userID string) ([]*entity.ChatConversation, error)
	GetConversation(ctx context.Context, conversationID, userID string) (*entity.ChatConversation, error)
	ArchiveConversation(ctx context.Context, conversationID, userID string) error
}

type ConversationHandler struct {
	conversations ConversationService
}

func NewConversationHandler(conversations ConversationService) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
	}
}

type conversationMetadataRequest struct {
	BookingID string `json:"booking_id"`
	SessionID string `json:"session_id"`
}

func (r *conversationMetadataRequest) toEntity() *entity.ConversationMetadata {
	if r == nil || (r.BookingID == "" && r.SessionID == "") {
		return nil
	}
	return &entity.ConversationMetadata{BookingID: r.BookingID, SessionID: r.SessionID}
}

type createConversationRequest struct {
	Participants       []string                     `json:"participants" validate:"required,min=1,dive,required"`
	ParticipantNames   map[string]string            `json:"participant_names"`
	ParticipantAvatars map[string]string            `json:"participant_avatars"`
	Metadata           *conversationMetadataRequest `json:"metadata"`
}

type directConversationRequest struct {
	OtherUserID   string                       `json:"other_user_id" validate:"required"`
	OtherUserName string                       `json:"other_user_name"`
	Metadata      *conversationMetadataRequest `json:"metadata"`
}

// CreateConversation creates a conversation among an explicit participant set
func (h *ConversationHandler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user := currentUser(c)
	names := req.ParticipantNames
	if names == nil {
		names = make(map[string]string)
	}
	if _, ok := names[user.UID]; !ok && user.Name != "" {
		names[user.UID] = user.Name
	}

	id, err := h.conversations.CreateConversation(c.Request().Context(), usecase.CreateConversationInput{
		CreatorID:          user.UID,
		Participants:       req.Participants,
		ParticipantNames:   names,
		ParticipantAvatars: req.ParticipantAvatars,
		Metadata:           req.Metadata.toEntity(),
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, map[string]string{"id": id})
}

// GetOrCreateDirect returns the two-party conversation with another user
func (h *ConversationHandler) GetOrCreateDirect(c echo.Context) error {
	var req directConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user := currentUser(c)
	id, err := h.conversations.GetOrCreateConversation(c.Request().Context(), user.UID, req.OtherUserID, user.Name, req.OtherUserName, req.Metadata.toEntity())
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"id": id})
}

// ListConversations lists the caller's conversations, most recent first
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	user := currentUser(c)

	conversations, err := h.conversations.ListConversations(c.Request().Context(), user.UID)
	if err != nil {
		return response.Error(c, err)
	}

	p := utils.GetPaginationParams(c, 20, 100)
	return response.Paginated(c, utils.Window(conversations, p), int64(len(conversations)), p.Page, p.PageSize)
}

func (h *ConversationHandler) GetConversation(c echo.Context) error {
	user := currentUser(c)

	conversation, err := h.conversations.GetConversation(c.Request().Context(), c.Param("id"), user.UID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversation)
}

func (h *ConversationHandler) ArchiveConversation(c echo.Context) error {
	user := currentUser(c)

	if err := h.conversations.ArchiveConversation(c.Request().Context(), c.Param("id"), user.UID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Conversation archived"})
}
