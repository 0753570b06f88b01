package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"consultchat/internal/domain/entity"
	"consultchat/pkg/errors"
)

// watchers fans a change signal out to blocked Watch* calls.
type watchers struct {
	mu    sync.Mutex
	chans map[chan struct{}]struct{}
}

func (w *watchers) add() chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.chans == nil {
		w.chans = make(map[chan struct{}]struct{})
	}
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	w.chans[ch] = struct{}{}
	return ch
}

func (w *watchers) remove(ch chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.chans, ch)
}

func (w *watchers) notify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (w *watchers) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.chans)
}

func watchLoop(ctx context.Context, w *watchers, emit func()) error {
	ch := w.add()
	defer w.remove(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			emit()
		}
	}
}

type fakeChatRepository struct {
	mu            sync.Mutex
	conversations map[string]*entity.ChatConversation
	messages      map[string]*entity.ChatMessage
	seq           int
	appendErr     error

	messageWatchers      watchers
	conversationWatchers watchers
}

func newFakeChatRepository() *fakeChatRepository {
	return &fakeChatRepository{
		conversations: make(map[string]*entity.ChatConversation),
		messages:      make(map[string]*entity.ChatMessage),
	}
}

func cloneConversation(c *entity.ChatConversation) *entity.ChatConversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		out.UnreadCount[k] = v
	}
	if c.LastMessage != nil {
		snapshot := *c.LastMessage
		out.LastMessage = &snapshot
	}
	return &out
}

func cloneMessage(m *entity.ChatMessage) *entity.ChatMessage {
	out := *m
	out.ReadBy = append([]string{}, m.ReadBy...)
	if m.Metadata != nil {
		meta := *m.Metadata
		out.Metadata = &meta
	}
	return &out
}

// put stores a conversation directly, bypassing the use cases.
func (r *fakeChatRepository) put(c *entity.ChatConversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.UnreadCount == nil {
		c.UnreadCount = make(map[string]int)
	}
	r.conversations[c.ID] = cloneConversation(c)
}

func (r *fakeChatRepository) conversation(id string) *entity.ChatConversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conversations[id]; ok {
		return cloneConversation(c)
	}
	return nil
}

func (r *fakeChatRepository) message(id string) *entity.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.messages[id]; ok {
		return cloneMessage(m)
	}
	return nil
}

// storeLocked assigns defaults and saves c. r.mu must be held.
func (r *fakeChatRepository) storeLocked(c *entity.ChatConversation) {
	r.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("conv-%d", r.seq)
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.LastMessageTime.IsZero() {
		c.LastMessageTime = now
	}
	r.conversations[c.ID] = cloneConversation(c)
}

func (r *fakeChatRepository) CreateConversation(ctx context.Context, c *entity.ChatConversation) error {
	r.mu.Lock()
	r.storeLocked(c)
	r.mu.Unlock()

	r.conversationWatchers.notify()
	return nil
}

func (r *fakeChatRepository) CreateConversationIfAbsent(ctx context.Context, c *entity.ChatConversation) (bool, error) {
	r.mu.Lock()
	if _, ok := r.conversations[c.ID]; ok {
		r.mu.Unlock()
		return false, nil
	}
	r.storeLocked(c)
	r.mu.Unlock()

	r.conversationWatchers.notify()
	return true, nil
}

func (r *fakeChatRepository) GetConversation(ctx context.Context, id string) (*entity.ChatConversation, error) {
	if c := r.conversation(id); c != nil {
		return c, nil
	}
	return nil, errors.NotFound("Conversation", nil)
}

func (r *fakeChatRepository) ListConversationsByUser(ctx context.Context, userID string) ([]*entity.ChatConversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.ChatConversation, 0)
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, cloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageTime.After(out[j].LastMessageTime) })
	return out, nil
}

func (r *fakeChatRepository) UpdateConversationStatus(ctx context.Context, id string, status entity.ConversationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	c.Status = status
	return nil
}

func (r *fakeChatRepository) UpdateConversationLastMessage(ctx context.Context, id string, snapshot *entity.MessageSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	s := *snapshot
	c.LastMessage = &s
	c.LastMessageTime = snapshot.Timestamp
	return nil
}

func (r *fakeChatRepository) AppendMessage(ctx context.Context, m *entity.ChatMessage) error {
	r.mu.Lock()
	if r.appendErr != nil {
		r.mu.Unlock()
		return r.appendErr
	}
	c, ok := r.conversations[m.ConversationID]
	if !ok {
		r.mu.Unlock()
		return errors.NotFound("Conversation", nil)
	}
	if !c.HasParticipant(m.SenderID) {
		r.mu.Unlock()
		return errors.Forbidden("User is not a participant in this conversation", nil)
	}
	if !c.AcceptsMessages() {
		r.mu.Unlock()
		return errors.BadRequest("Conversation is not active", nil)
	}

	r.seq++
	if m.ID == "" {
		m.ID = fmt.Sprintf("msg-%d", r.seq)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	r.messages[m.ID] = cloneMessage(m)
	c.LastMessage = entity.SnapshotOf(m)
	c.LastMessageTime = m.Timestamp
	for _, p := range c.OtherParticipants(m.SenderID) {
		c.UnreadCount[p]++
	}
	r.mu.Unlock()

	r.messageWatchers.notify()
	r.conversationWatchers.notify()
	return nil
}

func (r *fakeChatRepository) GetMessage(ctx context.Context, id string) (*entity.ChatMessage, error) {
	if m := r.message(id); m != nil {
		return m, nil
	}
	return nil, errors.NotFound("Message", nil)
}

func (r *fakeChatRepository) sortedMessages(conversationID string, keep func(*entity.ChatMessage) bool) []*entity.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.ChatMessage, 0)
	for _, m := range r.messages {
		if m.ConversationID == conversationID && keep(m) {
			out = append(out, cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (r *fakeChatRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*entity.ChatMessage, error) {
	out := r.sortedMessages(conversationID, func(*entity.ChatMessage) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeChatRepository) ListMessagesByType(ctx context.Context, conversationID string, t entity.MessageType) ([]*entity.ChatMessage, error) {
	return r.sortedMessages(conversationID, func(m *entity.ChatMessage) bool { return m.Type == t }), nil
}

func (r *fakeChatRepository) MarkMessageRead(ctx context.Context, messageID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return false, errors.NotFound("Message", nil)
	}
	if m.SenderID == userID || m.IsReadBy(userID) {
		return false, nil
	}
	m.Read = true
	m.ReadBy = append(m.ReadBy, userID)
	if c, ok := r.conversations[m.ConversationID]; ok && c.UnreadCount[userID] > 0 {
		c.UnreadCount[userID]--
	}
	return true, nil
}

func (r *fakeChatRepository) MarkConversationRead(ctx context.Context, conversationID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return 0, errors.NotFound("Conversation", nil)
	}
	marked := 0
	for _, m := range r.messages {
		if m.ConversationID != conversationID || m.SenderID == userID || m.IsReadBy(userID) {
			continue
		}
		m.Read = true
		m.ReadBy = append(m.ReadBy, userID)
		marked++
	}
	c.UnreadCount[userID] = 0
	return marked, nil
}

func (r *fakeChatRepository) SoftDeleteMessage(ctx context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return errors.NotFound("Message", nil)
	}
	m.Type = entity.MessageTypeSystem
	m.Content = entity.DeletedMessageContent
	m.Metadata = nil
	return nil
}

func (r *fakeChatRepository) WatchMessages(ctx context.Context, conversationID string, fn func([]*entity.ChatMessage)) error {
	return watchLoop(ctx, &r.messageWatchers, func() {
		messages, _ := r.ListMessages(ctx, conversationID, 0)
		fn(messages)
	})
}

func (r *fakeChatRepository) WatchConversations(ctx context.Context, userID string, fn func([]*entity.ChatConversation)) error {
	return watchLoop(ctx, &r.conversationWatchers, func() {
		conversations, _ := r.ListConversationsByUser(ctx, userID)
		fn(conversations)
	})
}

type fakeNotificationRepository struct {
	mu            sync.Mutex
	notifications map[string]*entity.Notification
	seq           int
	watchers      watchers
}

func newFakeNotificationRepository() *fakeNotificationRepository {
	return &fakeNotificationRepository{notifications: make(map[string]*entity.Notification)}
}

func (r *fakeNotificationRepository) all() []*entity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Notification, 0, len(r.notifications))
	for _, n := range r.notifications {
		copied := *n
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *fakeNotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	r.mu.Lock()
	r.seq++
	if n.ID == "" {
		n.ID = fmt.Sprintf("n-%03d", r.seq)
	}
	copied := *n
	r.notifications[n.ID] = &copied
	r.mu.Unlock()

	r.watchers.notify()
	return nil
}

func (r *fakeNotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, errors.NotFound("Notification", nil)
	}
	copied := *n
	return &copied, nil
}

func (r *fakeNotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Notification, error) {
	out := make([]*entity.Notification, 0)
	for _, n := range r.all() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepository) CountUnread(ctx context.Context, userID string, now time.Time) (int, error) {
	count := 0
	for _, n := range r.all() {
		if n.UserID == userID && !n.Read && n.Visible(now) {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepository) update(id string, fn func(*entity.Notification)) error {
	r.mu.Lock()
	n, ok := r.notifications[id]
	if ok {
		fn(n)
	}
	r.mu.Unlock()
	if !ok {
		return errors.NotFound("Notification", nil)
	}
	r.watchers.notify()
	return nil
}

func (r *fakeNotificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(n *entity.Notification) {
		n.Read = true
		n.ReadAt = &at
	})
}

func (r *fakeNotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	updated := 0
	for _, n := range r.all() {
		if n.UserID == userID && !n.Read {
			_ = r.MarkRead(ctx, n.ID, at)
			updated++
		}
	}
	return updated, nil
}

func (r *fakeNotificationRepository) Expire(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(n *entity.Notification) { n.ExpiresAt = &at })
}

func (r *fakeNotificationRepository) ExpireAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	expired := 0
	for _, n := range r.all() {
		if n.UserID == userID && n.Read && n.Visible(at) {
			_ = r.Expire(ctx, n.ID, at)
			expired++
		}
	}
	return expired, nil
}

func (r *fakeNotificationRepository) WatchUnreadCount(ctx context.Context, userID string, fn func(int)) error {
	return watchLoop(ctx, &r.watchers, func() {
		count, _ := r.CountUnread(ctx, userID, time.Now())
		fn(count)
	})
}

type fakeFileService struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	deleted   []string
	uploadErr error
}

func newFakeFileService() *fakeFileService {
	return &fakeFileService{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *fakeFileService) UploadObject(ctx context.Context, content io.Reader, objectName, contentType string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = buf.Bytes()
	s.types[objectName] = contentType
	return "https://files.test/" + objectName, nil
}

func (s *fakeFileService) DeleteObject(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	s.deleted = append(s.deleted, objectName)
	return nil
}

func (s *fakeFileService) Close() error { return nil }

type fakePresence map[string]bool

func (p fakePresence) IsOnline(userID string) bool { return p[userID] }

type fakeLimiter struct {
	deny map[string]bool
}

func (l *fakeLimiter) Allow(userID, action string) (bool, time.Duration) {
	if l.deny[action] {
		return false, 5 * time.Second
	}
	return true, 0
}
