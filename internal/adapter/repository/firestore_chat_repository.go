package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"consultchat/internal/domain/entity"
	"consultchat/internal/domain/repository"
	"consultchat/pkg/errors"
	"consultchat/pkg/logger"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) conversations() *firestore.CollectionRef {
	return r.client.Collection(conversationsCollection)
}

func (r *firestoreChatRepository) messages() *firestore.CollectionRef {
	return r.client.Collection(messagesCollection)
}

func prepareConversation(conversation *entity.ChatConversation) {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now
	if conversation.LastMessageTime.IsZero() {
		conversation.LastMessageTime = now
	}
}

func (r *firestoreChatRepository) CreateConversation(ctx context.Context, conversation *entity.ChatConversation) error {
	prepareConversation(conversation)

	_, err := r.conversations().Doc(conversation.ID).Set(ctx, conversation)
	if err != nil {
		return errors.Internal("Failed to create conversation", err)
	}

	return nil
}

func (r *firestoreChatRepository) CreateConversationIfAbsent(ctx context.Context, conversation *entity.ChatConversation) (bool, error) {
	prepareConversation(conversation)

	_, err := r.conversations().Doc(conversation.ID).Create(ctx, conversation)
	if err != nil {
		if isAlreadyExists(err) {
			return false, nil
		}
		return false, errors.Internal("Failed to create conversation", err)
	}

	return true, nil
}

func (r *firestoreChatRepository) GetConversation(ctx context.Context, id string) (*entity.ChatConversation, error) {
	doc, err := r.conversations().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	return decodeConversation(doc)
}

func (r *firestoreChatRepository) ListConversationsByUser(ctx context.Context, userID string) ([]*entity.ChatConversation, error) {
	docs, err := r.conversationsByUser(userID).Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching conversations for user %s: %v", userID, err)
		return nil, errors.Internal("Failed to fetch conversations", err)
	}

	return decodeConversations(docs), nil
}

func (r *firestoreChatRepository) conversationsByUser(userID string) firestore.Query {
	return r.conversations().
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageTime", firestore.Desc)
}

func (r *firestoreChatRepository) UpdateConversationStatus(ctx context.Context, id string, status entity.ConversationStatus) error {
	_, err := r.conversations().Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to update conversation status", err)
	}

	return nil
}

func (r *firestoreChatRepository) UpdateConversationLastMessage(ctx context.Context, id string, snapshot *entity.MessageSnapshot) error {
	_, err := r.conversations().Doc(id).Update(ctx, []firestore.Update{
		{Path: "lastMessage", Value: snapshot},
		{Path: "lastMessageTime", Value: snapshot.Timestamp},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to update conversation last message", err)
	}

	return nil
}

func (r *firestoreChatRepository) AppendMessage(ctx context.Context, message *entity.ChatMessage) error {
	convRef := r.conversations().Doc(message.ConversationID)

	var msgRef *firestore.DocumentRef
	if message.ID == "" {
		msgRef = r.messages().NewDoc()
		message.ID = msgRef.ID
	} else {
		msgRef = r.messages().Doc(message.ID)
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(convRef)
		if err != nil {
			if isNotFound(err) {
				return errors.NotFound("Conversation", err)
			}
			return err
		}

		conversation, err := decodeConversation(doc)
		if err != nil {
			return err
		}
		if !conversation.HasParticipant(message.SenderID) {
			return errors.Forbidden("User is not a participant in this conversation", nil)
		}
		if !conversation.AcceptsMessages() {
			return errors.BadRequest("Conversation is not active", nil)
		}

		if err := tx.Create(msgRef, message); err != nil {
			return err
		}

		updates := []firestore.Update{
			{Path: "lastMessage", Value: entity.SnapshotOf(message)},
			{Path: "lastMessageTime", Value: message.Timestamp},
			{Path: "updatedAt", Value: message.Timestamp},
		}
		for _, participantID := range conversation.OtherParticipants(message.SenderID) {
			updates = append(updates, firestore.Update{
				FieldPath: firestore.FieldPath{"unreadCount", participantID},
				Value:     firestore.Increment(1),
			})
		}

		return tx.Update(convRef, updates)
	})
	if err != nil {
		return errors.Collapse(err, "Failed to create message")
	}

	return nil
}

func (r *firestoreChatRepository) GetMessage(ctx context.Context, id string) (*entity.ChatMessage, error) {
	doc, err := r.messages().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	return decodeMessage(doc)
}

func (r *firestoreChatRepository) messagesByConversation(conversationID string) firestore.Query {
	return r.messages().
		Where("conversationId", "==", conversationID).
		OrderBy("timestamp", firestore.Asc)
}

func (r *firestoreChatRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*entity.ChatMessage, error) {
	query := r.messagesByConversation(conversationID)
	if limit > 0 {
		query = query.LimitToLast(limit)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching messages for conversation %s: %v", conversationID, err)
		return nil, errors.Internal("Failed to fetch messages", err)
	}

	return decodeMessages(docs), nil
}

func (r *firestoreChatRepository) ListMessagesByType(ctx context.Context, conversationID string, messageType entity.MessageType) ([]*entity.ChatMessage, error) {
	query := r.messages().
		Where("conversationId", "==", conversationID).
		Where("type", "==", messageType).
		OrderBy("timestamp", firestore.Asc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching %s messages for conversation %s: %v", messageType, conversationID, err)
		return nil, errors.Internal("Failed to fetch messages", err)
	}

	return decodeMessages(docs), nil
}

func (r *firestoreChatRepository) MarkMessageRead(ctx context.Context, messageID, userID string) (bool, error) {
	msgRef := r.messages().Doc(messageID)
	changed := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changed = false

		doc, err := tx.Get(msgRef)
		if err != nil {
			if isNotFound(err) {
				return errors.NotFound("Message", err)
			}
			return err
		}
		message, err := decodeMessage(doc)
		if err != nil {
			return err
		}
		if message.SenderID == userID || message.IsReadBy(userID) {
			return nil
		}

		convRef := r.conversations().Doc(message.ConversationID)
		convDoc, err := tx.Get(convRef)
		if err != nil {
			if isNotFound(err) {
				return errors.NotFound("Conversation", err)
			}
			return err
		}
		conversation, err := decodeConversation(convDoc)
		if err != nil {
			return err
		}

		if err := tx.Update(msgRef, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readBy", Value: firestore.ArrayUnion(userID)},
		}); err != nil {
			return err
		}
		changed = true

		remaining := conversation.UnreadCount[userID] - 1
		if remaining < 0 {
			remaining = 0
		}
		return tx.Update(convRef, []firestore.Update{
			{FieldPath: firestore.FieldPath{"unreadCount", userID}, Value: remaining},
		})
	})
	if err != nil {
		return false, errors.Collapse(err, "Failed to update message read status")
	}

	return changed, nil
}

func (r *firestoreChatRepository) MarkConversationRead(ctx context.Context, conversationID, userID string) (int, error) {
	convRef := r.conversations().Doc(conversationID)
	marked := 0

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		marked = 0

		doc, err := tx.Get(convRef)
		if err != nil {
			if isNotFound(err) {
				return errors.NotFound("Conversation", err)
			}
			return err
		}
		conversation, err := decodeConversation(doc)
		if err != nil {
			return err
		}

		docs, err := tx.Documents(r.messages().Where("conversationId", "==", conversationID)).GetAll()
		if err != nil {
			return err
		}

		var pending []*firestore.DocumentRef
		for _, d := range docs {
			message, err := decodeMessage(d)
			if err != nil {
				logger.Warn("MarkConversationRead: skipping malformed message %s: %v", d.Ref.ID, err)
				continue
			}
			if message.SenderID == userID || message.IsReadBy(userID) {
				continue
			}
			pending = append(pending, d.Ref)
		}

		count, tracked := conversation.UnreadCount[userID]
		if len(pending) == 0 && tracked && count == 0 {
			return nil
		}

		for _, ref := range pending {
			if err := tx.Update(ref, []firestore.Update{
				{Path: "read", Value: true},
				{Path: "readBy", Value: firestore.ArrayUnion(userID)},
			}); err != nil {
				return err
			}
		}
		marked = len(pending)

		return tx.Update(convRef, []firestore.Update{
			{FieldPath: firestore.FieldPath{"unreadCount", userID}, Value: 0},
		})
	})
	if err != nil {
		return 0, errors.Collapse(err, "Failed to mark conversation as read")
	}

	return marked, nil
}

func (r *firestoreChatRepository) SoftDeleteMessage(ctx context.Context, messageID string) error {
	_, err := r.messages().Doc(messageID).Update(ctx, []firestore.Update{
		{Path: "type", Value: entity.MessageTypeSystem},
		{Path: "content", Value: entity.DeletedMessageContent},
		{Path: "metadata", Value: firestore.Delete},
	})
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to delete message", err)
	}

	return nil
}

func (r *firestoreChatRepository) WatchMessages(ctx context.Context, conversationID string, fn func([]*entity.ChatMessage)) error {
	return watchQuery(ctx, r.messagesByConversation(conversationID), "messages", func(docs []*firestore.DocumentSnapshot) error {
		fn(decodeMessages(docs))
		return nil
	})
}

func (r *firestoreChatRepository) WatchConversations(ctx context.Context, userID string, fn func([]*entity.ChatConversation)) error {
	return watchQuery(ctx, r.conversationsByUser(userID), "conversations", func(docs []*firestore.DocumentSnapshot) error {
		fn(decodeConversations(docs))
		return nil
	})
}

func decodeConversation(doc *firestore.DocumentSnapshot) (*entity.ChatConversation, error) {
	var conversation entity.ChatConversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}
	conversation.ID = doc.Ref.ID
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}
	return &conversation, nil
}

func decodeConversations(docs []*firestore.DocumentSnapshot) []*entity.ChatConversation {
	conversations := make([]*entity.ChatConversation, 0, len(docs))
	for _, doc := range docs {
		conversation, err := decodeConversation(doc)
		if err != nil {
			logger.Warn("Error parsing conversation %s: %v", doc.Ref.ID, err)
			continue
		}
		conversations = append(conversations, conversation)
	}
	return conversations
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.ChatMessage, error) {
	var message entity.ChatMessage
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	message.ID = doc.Ref.ID
	if message.ReadBy == nil {
		message.ReadBy = []string{}
	}
	return &message, nil
}

func decodeMessages(docs []*firestore.DocumentSnapshot) []*entity.ChatMessage {
	messages := make([]*entity.ChatMessage, 0, len(docs))
	for _, doc := range docs {
		message, err := decodeMessage(doc)
		if err != nil {
			logger.Warn("Error parsing message %s: %v", doc.Ref.ID, err)
			continue
		}
		messages = append(messages, message)
	}
	return messages
}
