package usecase

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"consultchat/internal/domain/entity"
	"consultchat/internal/domain/repository"
	"consultchat/internal/infrastructure/ratelimit"
	"consultchat/pkg/errors"
	"consultchat/pkg/logger"
)

var directConversationNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("consultchat/direct-conversation"))

// DirectConversationID is the stable id of the two-party conversation
// between a and b. Argument order does not matter.
func DirectConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return uuid.NewSHA1(directConversationNamespace, []byte(pair[0]+"\x00"+pair[1])).String()
}

type ConversationUseCase struct {
	chatRepo repository.ChatRepository
	limiter  ActionLimiter
}

func NewConversationUseCase(chatRepo repository.ChatRepository, limiter ActionLimiter) *ConversationUseCase {
	return &ConversationUseCase{
		chatRepo: chatRepo,
		limiter:  limiter,
	}
}

type CreateConversationInput struct {
	// CreatorID is always made a participant.
	CreatorID          string
	Participants       []string
	ParticipantNames   map[string]string
	ParticipantAvatars map[string]string
	Metadata           *entity.ConversationMetadata
}

func (uc *ConversationUseCase) allow(userID string) error {
	if uc.limiter == nil || userID == "" {
		return nil
	}
	allowed, wait := uc.limiter.Allow(userID, ratelimit.ActionCreateConversation)
	if !allowed {
		logger.Warn("CreateConversation Rate Limited: User %s must wait %v", userID, wait)
		return errors.TooManyRequests("Rate limit exceeded. Please wait before creating another conversation", wait)
	}
	return nil
}

func newConversation(participants []string, names, avatars map[string]string, metadata *entity.ConversationMetadata) *entity.ChatConversation {
	unread := make(map[string]int, len(participants))
	for _, p := range participants {
		unread[p] = 0
	}
	if names == nil {
		names = make(map[string]string)
	}

	return &entity.ChatConversation{
		Participants:       participants,
		ParticipantNames:   names,
		ParticipantAvatars: avatars,
		UnreadCount:        unread,
		Status:             entity.ConversationActive,
		Metadata:           metadata,
	}
}

func uniqueParticipants(creatorID string, participants []string) []string {
	seen := make(map[string]bool, len(participants)+1)
	unique := make([]string, 0, len(participants)+1)
	for _, p := range append([]string{creatorID}, participants...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}
	return unique
}

func (uc *ConversationUseCase) CreateConversation(ctx context.Context, input CreateConversationInput) (string, error) {
	participants := uniqueParticipants(input.CreatorID, input.Participants)
	if len(participants) < 2 {
		return "", errors.BadRequest("A conversation needs at least two distinct participants", nil)
	}

	if err := uc.allow(input.CreatorID); err != nil {
		return "", err
	}

	conversation := newConversation(participants, input.ParticipantNames, input.ParticipantAvatars, input.Metadata)
	if err := uc.chatRepo.CreateConversation(ctx, conversation); err != nil {
		logger.Error("CreateConversation Error: Failed to create conversation for %v: %v", participants, err)
		return "", errors.Collapse(err, "Failed to create conversation")
	}

	logger.Info("Created conversation %s with %d participants", conversation.ID, len(participants))
	return conversation.ID, nil
}

// GetOrCreateConversation returns the two-party conversation between the
// users, creating it on first use. Concurrent callers converge on the same
// document because its id is derived from the pair.
func (uc *ConversationUseCase) GetOrCreateConversation(ctx context.Context, currentUserID, otherUserID, currentUserName, otherUserName string, metadata *entity.ConversationMetadata) (string, error) {
	if currentUserID == "" || otherUserID == "" {
		return "", errors.BadRequest("Both participants are required", nil)
	}
	if currentUserID == otherUserID {
		logger.Error("GetOrCreateConversation Error: User %s attempted to create conversation with themselves", currentUserID)
		return "", errors.BadRequest("You cannot create a conversation with yourself", nil)
	}

	id := DirectConversationID(currentUserID, otherUserID)

	_, err := uc.chatRepo.GetConversation(ctx, id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, errors.CodeNotFound) {
		logger.Error("GetOrCreateConversation Error: Failed to look up conversation %s: %v", id, err)
		return "", errors.Collapse(err, "Failed to create conversation")
	}

	if existing := uc.findByParticipants(ctx, currentUserID, otherUserID); existing != "" {
		return existing, nil
	}

	if err := uc.allow(currentUserID); err != nil {
		return "", err
	}

	conversation := newConversation(
		[]string{currentUserID, otherUserID},
		map[string]string{currentUserID: currentUserName, otherUserID: otherUserName},
		nil,
		metadata,
	)
	conversation.ID = id

	created, err := uc.chatRepo.CreateConversationIfAbsent(ctx, conversation)
	if err != nil {
		logger.Error("GetOrCreateConversation Error: Failed to create conversation %s: %v", id, err)
		return "", errors.Collapse(err, "Failed to create conversation")
	}
	if created {
		logger.Info("Created direct conversation %s between %s and %s", id, currentUserID, otherUserID)
	}

	return id, nil
}

// findByParticipants looks for a two-party conversation that was created
// under a random id.
func (uc *ConversationUseCase) findByParticipants(ctx context.Context, a, b string) string {
	conversations, err := uc.chatRepo.ListConversationsByUser(ctx, a)
	if err != nil {
		logger.Warn("GetOrCreateConversation: participant scan for %s failed: %v", a, err)
		return ""
	}
	for _, c := range conversations {
		if c.Status != entity.ConversationDeleted && c.SameParticipants(a, b) {
			return c.ID
		}
	}
	return ""
}

// UpdateConversationLastMessage overwrites the conversation's preview with
// message without touching unread counters.
func (uc *ConversationUseCase) UpdateConversationLastMessage(ctx context.Context, conversationID string, message *entity.ChatMessage) error {
	if message == nil {
		return errors.BadRequest("Message is required", nil)
	}

	if err := uc.chatRepo.UpdateConversationLastMessage(ctx, conversationID, entity.SnapshotOf(message)); err != nil {
		logger.Error("UpdateConversationLastMessage Error: conversation %s: %v", conversationID, err)
		return errors.Collapse(err, "Failed to update conversation")
	}

	return nil
}

func (uc *ConversationUseCase) ArchiveConversation(ctx context.Context, conversationID, userID string) error {
	conversation, err := uc.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	switch conversation.Status {
	case entity.ConversationArchived:
		return nil
	case entity.ConversationDeleted:
		return errors.Conflict("Conversation has been deleted", nil)
	}

	if err := uc.chatRepo.UpdateConversationStatus(ctx, conversationID, entity.ConversationArchived); err != nil {
		logger.Error("ArchiveConversation Error: conversation %s: %v", conversationID, err)
		return errors.Collapse(err, "Failed to archive conversation")
	}

	return nil
}

func (uc *ConversationUseCase) ListConversations(ctx context.Context, userID string) ([]*entity.ChatConversation, error) {
	conversations, err := uc.chatRepo.ListConversationsByUser(ctx, userID)
	if err != nil {
		logger.Error("ListConversations Error: user %s: %v", userID, err)
		return nil, errors.Collapse(err, "Failed to fetch conversations")
	}
	return conversations, nil
}

func (uc *ConversationUseCase) GetConversation(ctx context.Context, conversationID, userID string) (*entity.ChatConversation, error) {
	conversation, err := uc.chatRepo.GetConversation(ctx, conversationID)
	if err != nil {
		logger.Error("GetConversation Error: conversation %s: %v", conversationID, err)
		return nil, errors.Collapse(err, "Failed to fetch conversation")
	}
	if !conversation.HasParticipant(userID) {
		return nil, errors.Forbidden("User is not a participant in this conversation", nil)
	}
	return conversation, nil
}
