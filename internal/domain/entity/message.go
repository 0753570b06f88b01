package entity

import (
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

const DeletedMessageContent = "This message was deleted"

// MessageMetadata is the stored shape of attachment details. Only image and
// file messages carry it; use Body to get a typed view.
type MessageMetadata struct {
	FileName    string `json:"file_name,omitempty" firestore:"fileName,omitempty"`
	FileSize    int64  `json:"file_size,omitempty" firestore:"fileSize,omitempty"`
	MimeType    string `json:"mime_type,omitempty" firestore:"mimeType,omitempty"`
	Width       int    `json:"width,omitempty" firestore:"width,omitempty"`
	Height      int    `json:"height,omitempty" firestore:"height,omitempty"`
	DownloadURL string `json:"download_url,omitempty" firestore:"downloadUrl,omitempty"`
}

type ChatMessage struct {
	ID             string           `json:"id" firestore:"id"`
	ConversationID string           `json:"conversation_id" firestore:"conversationId"`
	SenderID       string           `json:"sender_id" firestore:"senderId"`
	SenderName     string           `json:"sender_name" firestore:"senderName"`
	SenderAvatar   string           `json:"sender_avatar,omitempty" firestore:"senderAvatar,omitempty"`
	Content        string           `json:"content" firestore:"content"`
	Type           MessageType      `json:"type" firestore:"type"`
	Timestamp      time.Time        `json:"timestamp" firestore:"timestamp"`
	Read           bool             `json:"read" firestore:"read"`
	ReadBy         []string         `json:"read_by" firestore:"readBy"`
	Metadata       *MessageMetadata `json:"metadata,omitempty" firestore:"metadata,omitempty"`
}

// MessageBody is the closed set of message payloads. Each variant carries
// only the fields that make sense for its type.
type MessageBody interface {
	Type() MessageType
	apply(m *ChatMessage)
}

type TextBody struct {
	Text string
}

type ImageBody struct {
	URL      string
	FileName string
	FileSize int64
	MimeType string
	Width    int
	Height   int
}

type FileBody struct {
	URL      string
	FileName string
	FileSize int64
	MimeType string
}

type SystemBody struct {
	Text string
}

func (TextBody) Type() MessageType   { return MessageTypeText }
func (ImageBody) Type() MessageType  { return MessageTypeImage }
func (FileBody) Type() MessageType   { return MessageTypeFile }
func (SystemBody) Type() MessageType { return MessageTypeSystem }

func (b TextBody) apply(m *ChatMessage) {
	m.Content = b.Text
	m.Metadata = nil
}

func (b ImageBody) apply(m *ChatMessage) {
	m.Content = b.URL
	m.Metadata = &MessageMetadata{
		FileName:    b.FileName,
		FileSize:    b.FileSize,
		MimeType:    b.MimeType,
		Width:       b.Width,
		Height:      b.Height,
		DownloadURL: b.URL,
	}
}

func (b FileBody) apply(m *ChatMessage) {
	m.Content = b.URL
	m.Metadata = &MessageMetadata{
		FileName:    b.FileName,
		FileSize:    b.FileSize,
		MimeType:    b.MimeType,
		DownloadURL: b.URL,
	}
}

func (b SystemBody) apply(m *ChatMessage) {
	m.Content = b.Text
	m.Metadata = nil
}

// NewChatMessage builds an unread message for body. The timestamp is left
// to the caller.
func NewChatMessage(conversationID, senderID, senderName string, body MessageBody) *ChatMessage {
	m := &ChatMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		Type:           body.Type(),
		Read:           false,
		ReadBy:         []string{},
	}
	body.apply(m)
	return m
}

// Body decodes the stored message into its typed payload.
func (m *ChatMessage) Body() MessageBody {
	meta := MessageMetadata{}
	if m.Metadata != nil {
		meta = *m.Metadata
	}

	switch m.Type {
	case MessageTypeImage:
		return ImageBody{URL: m.Content, FileName: meta.FileName, FileSize: meta.FileSize, MimeType: meta.MimeType, Width: meta.Width, Height: meta.Height}
	case MessageTypeFile:
		return FileBody{URL: m.Content, FileName: meta.FileName, FileSize: meta.FileSize, MimeType: meta.MimeType}
	case MessageTypeSystem:
		return SystemBody{Text: m.Content}
	default:
		return TextBody{Text: m.Content}
	}
}

func (m *ChatMessage) IsReadBy(userID string) bool {
	for _, reader := range m.ReadBy {
		if reader == userID {
			return true
		}
	}
	return false
}

// MatchesSearch reports whether a text message contains term, ignoring case.
func (m *ChatMessage) MatchesSearch(term string) bool {
	if m.Type != MessageTypeText {
		return false
	}
	return strings.Contains(strings.ToLower(m.Content), strings.ToLower(term))
}

// Preview is the short text shown in conversation lists and notifications.
func (m *ChatMessage) Preview() string {
	switch m.Type {
	case MessageTypeImage:
		return "Sent an image"
	case MessageTypeFile:
		if m.Metadata != nil && m.Metadata.FileName != "" {
			return "Sent a file: " + m.Metadata.FileName
		}
		return "Sent a file"
	}

	content := []rune(m.Content)
	if len(content) > 100 {
		return string(content[:100]) + "..."
	}
	return m.Content
}
