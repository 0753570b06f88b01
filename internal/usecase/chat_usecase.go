package usecase

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"consultchat/internal/domain/entity"
	"consultchat/internal/domain/repository"
	"consultchat/internal/domain/service"
	"consultchat/internal/infrastructure/ratelimit"
	"consultchat/pkg/errors"
	"consultchat/pkg/logger"
)

const (
	DefaultSearchLimit  = 50
	DefaultMessageLimit = 100
)

type ChatUseCase struct {
	chatRepo       repository.ChatRepository
	fileService    service.FileUploadService
	notifications  *NotificationUseCase
	presence       PresenceChecker
	limiter        ActionLimiter
	maxUploadBytes int64
	now            func() time.Time
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	fileService service.FileUploadService,
	notifications *NotificationUseCase,
	presence PresenceChecker,
	limiter ActionLimiter,
	maxUploadBytes int64,
) *ChatUseCase {
	return &ChatUseCase{
		chatRepo:       chatRepo,
		fileService:    fileService,
		notifications:  notifications,
		presence:       presence,
		limiter:        limiter,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

type SendMessageInput struct {
	ConversationID string
	SenderID       string
	SenderName     string
	SenderAvatar   string
	Body           entity.MessageBody
}

type UploadFileInput struct {
	ConversationID string
	SenderID       string
	SenderName     string
	SenderAvatar   string
	FileName       string
	Reader         io.Reader
	// Size is the declared size, if known. The content itself is still
	// checked against the upload limit.
	Size int64
}

func (uc *ChatUseCase) allow(userID, action string) error {
	if uc.limiter == nil {
		return nil
	}
	allowed, wait := uc.limiter.Allow(userID, action)
	if !allowed {
		logger.Warn("%s Rate Limited: User %s must wait %v", action, userID, wait)
		return errors.TooManyRequests("Rate limit exceeded. Please slow down", wait)
	}
	return nil
}

func (uc *ChatUseCase) SendMessage(ctx context.Context, input SendMessageInput) (*entity.ChatMessage, error) {
	if err := uc.allow(input.SenderID, ratelimit.ActionSendMessage); err != nil {
		return nil, err
	}

	if input.Body == nil {
		return nil, errors.BadRequest("Message body is required", nil)
	}
	if text, ok := input.Body.(entity.TextBody); ok && strings.TrimSpace(text.Text) == "" {
		return nil, errors.BadRequest("Message content is required", nil)
	}

	return uc.send(ctx, input)
}

func (uc *ChatUseCase) send(ctx context.Context, input SendMessageInput) (*entity.ChatMessage, error) {
	conversation, err := uc.chatRepo.GetConversation(ctx, input.ConversationID)
	if err != nil {
		logger.Error("SendMessage Error: Conversation %s not found: %v", input.ConversationID, err)
		return nil, errors.Collapse(err, "Failed to send message")
	}

	message := entity.NewChatMessage(input.ConversationID, input.SenderID, input.SenderName, input.Body)
	message.SenderAvatar = input.SenderAvatar
	message.Timestamp = uc.now().UTC()

	if err := uc.chatRepo.AppendMessage(ctx, message); err != nil {
		logger.Error("SendMessage Error: Failed to create message for conversation %s: %v", input.ConversationID, err)
		return nil, errors.Collapse(err, "Failed to send message")
	}

	uc.notifyOffline(ctx, conversation, message)

	return message, nil
}

// notifyOffline leaves a message_received notification for every other
// participant without a live connection.
func (uc *ChatUseCase) notifyOffline(ctx context.Context, conversation *entity.ChatConversation, message *entity.ChatMessage) {
	if uc.notifications == nil || message.Type == entity.MessageTypeSystem {
		return
	}

	for _, participantID := range conversation.OtherParticipants(message.SenderID) {
		if uc.presence != nil && uc.presence.IsOnline(participantID) {
			continue
		}
		_, err := uc.notifications.CreateMessageNotification(ctx, participantID, message.ConversationID, message.SenderName, message.Preview())
		if err != nil {
			logger.Warn("SendMessage: failed to notify %s about message %s: %v", participantID, message.ID, err)
		}
	}
}

func (uc *ChatUseCase) UploadFile(ctx context.Context, input UploadFileInput) (*entity.ChatMessage, error) {
	if err := uc.allow(input.SenderID, ratelimit.ActionUploadFile); err != nil {
		return nil, err
	}

	if input.Reader == nil {
		return nil, errors.BadRequest("Missing or invalid file", nil)
	}
	if uc.maxUploadBytes > 0 && input.Size > uc.maxUploadBytes {
		return nil, errors.BadRequest(fmt.Sprintf("File size exceeds maximum allowed (%d bytes)", uc.maxUploadBytes), nil)
	}

	conversation, err := uc.chatRepo.GetConversation(ctx, input.ConversationID)
	if err != nil {
		logger.Error("UploadFile Error: Conversation %s not found: %v", input.ConversationID, err)
		return nil, errors.Collapse(err, "Failed to upload file")
	}
	if !conversation.HasParticipant(input.SenderID) {
		return nil, errors.Forbidden("User is not a participant in this conversation", nil)
	}
	if !conversation.AcceptsMessages() {
		return nil, errors.BadRequest("Conversation is not active", nil)
	}

	reader := input.Reader
	if uc.maxUploadBytes > 0 {
		reader = io.LimitReader(reader, uc.maxUploadBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		logger.Error("UploadFile Error: Unable to read file %s: %v", input.FileName, err)
		return nil, errors.Internal("Failed to upload file", err)
	}
	if len(data) == 0 {
		return nil, errors.BadRequest("File is empty", nil)
	}
	if uc.maxUploadBytes > 0 && int64(len(data)) > uc.maxUploadBytes {
		return nil, errors.BadRequest(fmt.Sprintf("File size exceeds maximum allowed (%d bytes)", uc.maxUploadBytes), nil)
	}

	fileName := SanitizeFileName(input.FileName)
	contentType := mimetype.Detect(data).String()
	objectName := ObjectName(input.ConversationID, uc.now(), fileName)

	url, err := uc.fileService.UploadObject(ctx, bytes.NewReader(data), objectName, contentType)
	if err != nil {
		logger.Error("UploadFile Error: Storage upload of %s failed: %v", objectName, err)
		return nil, errors.Internal("Failed to upload file", err)
	}

	message, err := uc.send(ctx, SendMessageInput{
		ConversationID: input.ConversationID,
		SenderID:       input.SenderID,
		SenderName:     input.SenderName,
		SenderAvatar:   input.SenderAvatar,
		Body:           attachmentBody(data, url, fileName, contentType),
	})
	if err != nil {
		if delErr := uc.fileService.DeleteObject(ctx, objectName); delErr != nil {
			logger.Warn("UploadFile: failed to remove orphaned object %s: %v", objectName, delErr)
		}
		return nil, errors.Collapse(err, "Failed to upload file")
	}

	return message, nil
}

// attachmentBody picks an image or file body from the sniffed content type.
// Image dimensions are decoded from the header only.
func attachmentBody(data []byte, url, fileName, contentType string) entity.MessageBody {
	if strings.HasPrefix(contentType, "image/") {
		body := entity.ImageBody{
			URL:      url,
			FileName: fileName,
			FileSize: int64(len(data)),
			MimeType: contentType,
		}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			body.Width = cfg.Width
			body.Height = cfg.Height
		}
		return body
	}

	return entity.FileBody{
		URL:      url,
		FileName: fileName,
		FileSize: int64(len(data)),
		MimeType: contentType,
	}
}

// ObjectName is the storage key of an attachment.
func ObjectName(conversationID string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%d_%s", conversationID, at.UnixMilli(), fileName)
}

// SanitizeFileName strips directories and anything outside [A-Za-z0-9._-].
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	valid := make([]rune, 0, len(name))
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' || char == '.' {
			valid = append(valid, char)
		} else {
			valid = append(valid, '_')
		}
	}

	sanitized := strings.Trim(string(valid), ".")
	if sanitized == "" {
		return "file"
	}
	return sanitized
}

func (uc *ChatUseCase) MarkMessageAsRead(ctx context.Context, messageID, userID string) error {
	message, err := uc.chatRepo.GetMessage(ctx, messageID)
	if err != nil {
		logger.Error("MarkMessageAsRead Error: Message %s not found: %v", messageID, err)
		return errors.Collapse(err, "Failed to mark message as read")
	}

	conversation, err := uc.chatRepo.GetConversation(ctx, message.ConversationID)
	if err != nil {
		return errors.Collapse(err, "Failed to mark message as read")
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this conversation", nil)
	}

	if message.SenderID == userID || message.IsReadBy(userID) {
		return nil
	}

	if _, err := uc.chatRepo.MarkMessageRead(ctx, messageID, userID); err != nil {
		logger.Error("MarkMessageAsRead Error: Failed to update message %s: %v", messageID, err)
		return errors.Collapse(err, "Failed to mark message as read")
	}

	return nil
}

func (uc *ChatUseCase) MarkConversationAsRead(ctx context.Context, conversationID, userID string) (int, error) {
	conversation, err := uc.chatRepo.GetConversation(ctx, conversationID)
	if err != nil {
		logger.Error("MarkConversationAsRead Error: Conversation %s not found: %v", conversationID, err)
		return 0, errors.Collapse(err, "Failed to mark conversation as read")
	}
	if !conversation.HasParticipant(userID) {
		return 0, errors.Forbidden("User is not a participant in this conversation", nil)
	}

	marked, err := uc.chatRepo.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		logger.Error("MarkConversationAsRead Error: Failed for conversation %s: %v", conversationID, err)
		return 0, errors.Collapse(err, "Failed to mark conversation as read")
	}

	return marked, nil
}

func (uc *ChatUseCase) GetMessages(ctx context.Context, conversationID, userID string, limit int) ([]*entity.ChatMessage, error) {
	if err := uc.authorize(ctx, conversationID, userID, "Failed to fetch messages"); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	messages, err := uc.chatRepo.ListMessages(ctx, conversationID, limit)
	if err != nil {
		logger.Error("GetMessages Error: Failed to fetch messages for conversation %s: %v", conversationID, err)
		return nil, errors.Collapse(err, "Failed to fetch messages")
	}

	return messages, nil
}

// SearchMessages returns the most recent text messages containing term,
// oldest first.
func (uc *ChatUseCase) SearchMessages(ctx context.Context, conversationID, userID, term string, limit int) ([]*entity.ChatMessage, error) {
	if strings.TrimSpace(term) == "" {
		return nil, errors.BadRequest("Search term is required", nil)
	}
	if err := uc.authorize(ctx, conversationID, userID, "Failed to search messages"); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	candidates, err := uc.chatRepo.ListMessagesByType(ctx, conversationID, entity.MessageTypeText)
	if err != nil {
		logger.Error("SearchMessages Error: Failed to fetch messages for conversation %s: %v", conversationID, err)
		return nil, errors.Collapse(err, "Failed to search messages")
	}

	matches := make([]*entity.ChatMessage, 0)
	for _, message := range candidates {
		if message.MatchesSearch(term) {
			matches = append(matches, message)
		}
	}
	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}

	return matches, nil
}

// DeleteMessage replaces the sender's own message with a deletion marker.
// If it was the conversation's latest message the list preview follows.
func (uc *ChatUseCase) DeleteMessage(ctx context.Context, messageID, userID string) error {
	message, err := uc.chatRepo.GetMessage(ctx, messageID)
	if err != nil {
		logger.Error("DeleteMessage Error: Message %s not found: %v", messageID, err)
		return errors.Collapse(err, "Failed to delete message")
	}
	if message.SenderID != userID {
		return errors.Forbidden("Only the sender can delete this message", nil)
	}
	if message.Type == entity.MessageTypeSystem && message.Content == entity.DeletedMessageContent {
		return nil
	}

	if err := uc.chatRepo.SoftDeleteMessage(ctx, messageID); err != nil {
		logger.Error("DeleteMessage Error: Failed to delete message %s: %v", messageID, err)
		return errors.Collapse(err, "Failed to delete message")
	}

	conversation, err := uc.chatRepo.GetConversation(ctx, message.ConversationID)
	if err != nil {
		logger.Warn("DeleteMessage: conversation %s unavailable for preview update: %v", message.ConversationID, err)
		return nil
	}
	if conversation.LastMessage != nil && conversation.LastMessage.ID == messageID {
		message.Type = entity.MessageTypeSystem
		message.Content = entity.DeletedMessageContent
		message.Metadata = nil
		if err := uc.chatRepo.UpdateConversationLastMessage(ctx, conversation.ID, entity.SnapshotOf(message)); err != nil {
			logger.Warn("DeleteMessage: failed to update preview of conversation %s: %v", conversation.ID, err)
		}
	}

	return nil
}

func (uc *ChatUseCase) authorize(ctx context.Context, conversationID, userID, failure string) error {
	conversation, err := uc.chatRepo.GetConversation(ctx, conversationID)
	if err != nil {
		logger.Error("Conversation %s lookup failed: %v", conversationID, err)
		return errors.Collapse(err, failure)
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this conversation", nil)
	}
	return nil
}
