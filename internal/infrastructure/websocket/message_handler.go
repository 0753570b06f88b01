package websocket

import (
	"context"
	"encoding/json"
	"time"

	"consultchat/internal/domain/entity"
	"consultchat/internal/infrastructure/ratelimit"
	"consultchat/internal/usecase"
	"consultchat/pkg/logger"
)

// WebSocket Message Types
const (
	MessageTypePing                   = "ping"
	MessageTypePong                   = "pong"
	MessageTypeSubscribeMessages      = "subscribe_messages"
	MessageTypeUnsubscribeMessages    = "unsubscribe_messages"
	MessageTypeSubscribeConversations = "subscribe_conversations"
	MessageTypeSubscribeUnreadCount   = "subscribe_unread_count"
	MessageTypeTypingStart            = "typing_start"
	MessageTypeTypingStop             = "typing_stop"

	MessageTypeMessagesSnapshot      = "messages_snapshot"
	MessageTypeConversationsSnapshot = "conversations_snapshot"
	MessageTypeUnreadCount           = "unread_count"
	MessageTypeTypingIndicator       = "typing_indicator"
	MessageTypeError                 = "error"
)

const typingTTL = 5 * time.Second

// Inbound frame from a client
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocket Message Structure
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

type ConversationData struct {
	ConversationID string `json:"conversation_id"`
}

type MessagesSnapshotData struct {
	ConversationID string                `json:"conversation_id"`
	Messages       []*entity.ChatMessage `json:"messages"`
}

type UnreadCountData struct {
	Count int `json:"count"`
}

type TypingData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	Typing         bool   `json:"typing"`
	ExpiresAt      string `json:"expires_at"`
}

type ErrorData struct {
	Error  string `json:"error"`
	UserID string `json:"user_id"`
}

// Subscriber opens and closes live snapshot feeds.
type Subscriber interface {
	SubscribeToMessages(key, conversationID string, callback func([]*entity.ChatMessage)) usecase.Unsubscribe
	SubscribeToConversations(key, userID string, callback func([]*entity.ChatConversation)) usecase.Unsubscribe
	SubscribeToUnreadCount(key, userID string, callback func(int)) usecase.Unsubscribe
	Unsubscribe(key string)
	UnsubscribePrefix(prefix string) int
}

// ConversationReader resolves a conversation on behalf of a participant.
type ConversationReader interface {
	GetConversation(ctx context.Context, conversationID, userID string) (*entity.ChatConversation, error)
}

// MessageHandler dispatches client frames to the subscription bridge.
type MessageHandler struct {
	manager       *Manager
	subscriptions Subscriber
	conversations ConversationReader
	limiter       usecase.ActionLimiter
	now           func() time.Time
}

// NewMessageHandler wires handler into manager. limiter may be nil.
func NewMessageHandler(manager *Manager, subscriptions Subscriber, conversations ConversationReader, limiter usecase.ActionLimiter) *MessageHandler {
	h := &MessageHandler{
		manager:       manager,
		subscriptions: subscriptions,
		conversations: conversations,
		limiter:       limiter,
		now:           time.Now,
	}
	manager.SetHandler(h.HandleClientMessage, h.handleDisconnect)
	return h
}

func messagesKey(client *Client, conversationID string) string {
	return client.ID + ":messages:" + conversationID
}

func (h *MessageHandler) handleDisconnect(client *Client) {
	if n := h.subscriptions.UnsubscribePrefix(client.ID + ":"); n > 0 {
		logger.Debug("WebSocket: closed %d subscriptions for connection %s", n, client.ID)
	}
}

// HandleClientMessage processes incoming WebSocket messages
func (h *MessageHandler) HandleClientMessage(client *Client, messageBytes []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		logger.Warn("WebSocket: Failed to unmarshal message from client %s: %v", client.UserID, err)
		h.sendError(client, "Invalid message format")
		return
	}

	logger.Debug("WebSocket: Received message type '%s' from client %s", msg.Type, client.UserID)

	switch msg.Type {
	case MessageTypePing:
		h.send(client, MessageTypePong, map[string]string{"status": "alive"})

	case MessageTypeSubscribeMessages:
		h.handleSubscribeMessages(client, msg.Data)

	case MessageTypeUnsubscribeMessages:
		data, ok := h.conversationData(client, msg.Data)
		if ok {
			h.subscriptions.Unsubscribe(messagesKey(client, data.ConversationID))
		}

	case MessageTypeSubscribeConversations:
		h.track(client, h.subscriptions.SubscribeToConversations(client.ID+":conversations", client.UserID, func(conversations []*entity.ChatConversation) {
			h.send(client, MessageTypeConversationsSnapshot, conversations)
		}))

	case MessageTypeSubscribeUnreadCount:
		h.track(client, h.subscriptions.SubscribeToUnreadCount(client.ID+":unread", client.UserID, func(count int) {
			h.send(client, MessageTypeUnreadCount, UnreadCountData{Count: count})
		}))

	case MessageTypeTypingStart, MessageTypeTypingStop:
		h.handleTyping(client, msg.Data, msg.Type == MessageTypeTypingStart)

	default:
		logger.Warn("WebSocket: Unknown message type '%s' from client %s", msg.Type, client.UserID)
		h.sendError(client, "Unknown message type")
	}
}

func (h *MessageHandler) conversationData(client *Client, raw json.RawMessage) (ConversationData, bool) {
	var data ConversationData
	if err := json.Unmarshal(raw, &data); err != nil || data.ConversationID == "" {
		h.sendError(client, "conversation_id is required")
		return data, false
	}
	return data, true
}

func (h *MessageHandler) handleSubscribeMessages(client *Client, raw json.RawMessage) {
	data, ok := h.conversationData(client, raw)
	if !ok {
		return
	}

	if _, err := h.conversations.GetConversation(context.Background(), data.ConversationID, client.UserID); err != nil {
		h.sendError(client, err.Error())
		return
	}

	h.track(client, h.subscriptions.SubscribeToMessages(messagesKey(client, data.ConversationID), data.ConversationID, func(messages []*entity.ChatMessage) {
		h.send(client, MessageTypeMessagesSnapshot, MessagesSnapshotData{
			ConversationID: data.ConversationID,
			Messages:       messages,
		})
	}))
}

// track cancels a subscription opened for a connection that was dropped
// while the subscribe frame was in flight. The disconnect teardown has
// already run by the time Closed reports true.
func (h *MessageHandler) track(client *Client, unsubscribe usecase.Unsubscribe) {
	if client.Closed() && unsubscribe != nil {
		unsubscribe()
	}
}

func (h *MessageHandler) handleTyping(client *Client, raw json.RawMessage, typing bool) {
	data, ok := h.conversationData(client, raw)
	if !ok {
		return
	}

	if h.limiter != nil {
		if allowed, _ := h.limiter.Allow(client.UserID, ratelimit.ActionTyping); !allowed {
			return
		}
	}

	conversation, err := h.conversations.GetConversation(context.Background(), data.ConversationID, client.UserID)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}

	payload, err := h.encode(MessageTypeTypingIndicator, TypingData{
		ConversationID: data.ConversationID,
		UserID:         client.UserID,
		UserName:       client.UserName,
		Typing:         typing,
		ExpiresAt:      h.now().Add(typingTTL).UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	h.manager.SendToUsers(conversation.OtherParticipants(client.UserID), payload)
}

func (h *MessageHandler) encode(messageType string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(WSMessage{
		Type:      messageType,
		Data:      data,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		logger.Error("WebSocket: Failed to marshal %s: %v", messageType, err)
	}
	return payload, err
}

func (h *MessageHandler) send(client *Client, messageType string, data interface{}) {
	payload, err := h.encode(messageType, data)
	if err != nil {
		return
	}
	h.manager.SendToClient(client, payload)
}

func (h *MessageHandler) sendError(client *Client, message string) {
	h.send(client, MessageTypeError, ErrorData{Error: message, UserID: client.UserID})
}
