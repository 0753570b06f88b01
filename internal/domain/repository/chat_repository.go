package repository

import (
	"context"

	"consultchat/internal/domain/entity"
)

type ChatRepository interface {
	// Conversations
	CreateConversation(ctx context.Context, conversation *entity.ChatConversation) error
	// CreateConversationIfAbsent stores conversation under its preset ID
	// unless a document with that ID exists. created is false when the
	// existing document was kept.
	CreateConversationIfAbsent(ctx context.Context, conversation *entity.ChatConversation) (created bool, err error)
	GetConversation(ctx context.Context, id string) (*entity.ChatConversation, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]*entity.ChatConversation, error)
	UpdateConversationStatus(ctx context.Context, id string, status entity.ConversationStatus) error
	UpdateConversationLastMessage(ctx context.Context, id string, snapshot *entity.MessageSnapshot) error

	// Messages
	// AppendMessage writes the message, the conversation's last-message
	// snapshot and the unread increments for every participant except the
	// sender as one atomic unit.
	AppendMessage(ctx context.Context, message *entity.ChatMessage) error
	GetMessage(ctx context.Context, id string) (*entity.ChatMessage, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*entity.ChatMessage, error)
	ListMessagesByType(ctx context.Context, conversationID string, messageType entity.MessageType) ([]*entity.ChatMessage, error)
	// MarkMessageRead adds userID to the message's readBy and decrements the
	// user's unread counter, never below zero. It reports false without
	// writing when userID sent the message or has already read it.
	MarkMessageRead(ctx context.Context, messageID, userID string) (bool, error)
	// MarkConversationRead adds userID to readBy on every message in the
	// conversation that userID neither sent nor read, zeroes the user's
	// unread counter and returns how many messages changed.
	MarkConversationRead(ctx context.Context, conversationID, userID string) (int, error)
	SoftDeleteMessage(ctx context.Context, messageID string) error

	// Live queries. Both block until ctx is done or the watch fails, calling
	// fn with the complete ordered result on every change.
	WatchMessages(ctx context.Context, conversationID string, fn func([]*entity.ChatMessage)) error
	WatchConversations(ctx context.Context, userID string, fn func([]*entity.ChatConversation)) error
}
