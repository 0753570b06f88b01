package entity

import (
	"sort"
	"time"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
	// ConversationDeleted is part of the stored vocabulary but no operation
	// transitions into it.
	ConversationDeleted ConversationStatus = "deleted"
)

// MessageSnapshot is the copy of the latest message kept on the
// conversation so lists render without reading the messages collection.
type MessageSnapshot struct {
	ID         string      `json:"id" firestore:"id"`
	SenderID   string      `json:"sender_id" firestore:"senderId"`
	SenderName string      `json:"sender_name" firestore:"senderName"`
	Content    string      `json:"content" firestore:"content"`
	Type       MessageType `json:"type" firestore:"type"`
	Timestamp  time.Time   `json:"timestamp" firestore:"timestamp"`
}

type ConversationMetadata struct {
	BookingID string `json:"booking_id,omitempty" firestore:"bookingId,omitempty"`
	SessionID string `json:"session_id,omitempty" firestore:"sessionId,omitempty"`
}

type ChatConversation struct {
	ID                 string                `json:"id" firestore:"id"`
	Participants       []string              `json:"participants" firestore:"participants"`
	ParticipantNames   map[string]string     `json:"participant_names" firestore:"participantNames"`
	ParticipantAvatars map[string]string     `json:"participant_avatars,omitempty" firestore:"participantAvatars,omitempty"`
	LastMessage        *MessageSnapshot      `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageTime    time.Time             `json:"last_message_time" firestore:"lastMessageTime"`
	UnreadCount        map[string]int        `json:"unread_count" firestore:"unreadCount"`
	Status             ConversationStatus    `json:"status" firestore:"status"`
	Metadata           *ConversationMetadata `json:"metadata,omitempty" firestore:"metadata,omitempty"`
	CreatedAt          time.Time             `json:"created_at" firestore:"createdAt"`
	UpdatedAt          time.Time             `json:"updated_at" firestore:"updatedAt"`
}

func SnapshotOf(m *ChatMessage) *MessageSnapshot {
	return &MessageSnapshot{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Preview(),
		Type:       m.Type,
		Timestamp:  m.Timestamp,
	}
}

func (c *ChatConversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns everyone except userID, in stored order.
func (c *ChatConversation) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

func (c *ChatConversation) AcceptsMessages() bool {
	return c.Status == ConversationActive || c.Status == ""
}

// SameParticipants reports whether the conversation is exactly the given
// set of users, ignoring order.
func (c *ChatConversation) SameParticipants(users ...string) bool {
	if len(c.Participants) != len(users) {
		return false
	}
	a := append([]string(nil), c.Participants...)
	b := append([]string(nil), users...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
