package usecase

import (
	"context"
	"strings"
	"sync"

	"consultchat/internal/domain/entity"
	"consultchat/internal/domain/repository"
	"consultchat/pkg/logger"
)

// Unsubscribe stops a live subscription. Calling it more than once is safe.
type Unsubscribe func()

type subscription struct {
	cancel context.CancelFunc
}

// SubscriptionUseCase bridges live store queries to callbacks. Every
// subscription is registered under a caller-chosen key; subscribing again
// with the same key replaces the previous subscription.
type SubscriptionUseCase struct {
	chatRepo         repository.ChatRepository
	notificationRepo repository.NotificationRepository

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

func NewSubscriptionUseCase(chatRepo repository.ChatRepository, notificationRepo repository.NotificationRepository) *SubscriptionUseCase {
	ctx, cancel := context.WithCancel(context.Background())
	return &SubscriptionUseCase{
		chatRepo:         chatRepo,
		notificationRepo: notificationRepo,
		ctx:              ctx,
		cancel:           cancel,
		subs:             make(map[string]*subscription),
	}
}

func (uc *SubscriptionUseCase) SubscribeToMessages(key, conversationID string, callback func([]*entity.ChatMessage)) Unsubscribe {
	return uc.subscribe(key, func(ctx context.Context) error {
		return uc.chatRepo.WatchMessages(ctx, conversationID, func(messages []*entity.ChatMessage) {
			if ctx.Err() == nil {
				callback(messages)
			}
		})
	})
}

func (uc *SubscriptionUseCase) SubscribeToConversations(key, userID string, callback func([]*entity.ChatConversation)) Unsubscribe {
	return uc.subscribe(key, func(ctx context.Context) error {
		return uc.chatRepo.WatchConversations(ctx, userID, func(conversations []*entity.ChatConversation) {
			if ctx.Err() == nil {
				callback(conversations)
			}
		})
	})
}

func (uc *SubscriptionUseCase) SubscribeToUnreadCount(key, userID string, callback func(int)) Unsubscribe {
	return uc.subscribe(key, func(ctx context.Context) error {
		return uc.notificationRepo.WatchUnreadCount(ctx, userID, func(count int) {
			if ctx.Err() == nil {
				callback(count)
			}
		})
	})
}

func (uc *SubscriptionUseCase) subscribe(key string, watch func(ctx context.Context) error) Unsubscribe {
	uc.mu.Lock()
	if uc.closed {
		uc.mu.Unlock()
		logger.Warn("Subscribe %s after close ignored", key)
		return func() {}
	}

	if previous, ok := uc.subs[key]; ok {
		previous.cancel()
	}

	ctx, cancel := context.WithCancel(uc.ctx)
	sub := &subscription{cancel: cancel}
	uc.subs[key] = sub
	uc.wg.Add(1)
	uc.mu.Unlock()

	go func() {
		defer uc.wg.Done()
		if err := watch(ctx); err != nil {
			logger.Error("Subscription %s ended: %v", key, err)
		}
		uc.remove(key, sub)
	}()

	var once sync.Once
	return func() {
		once.Do(func() { uc.remove(key, sub) })
	}
}

// remove cancels sub and drops it from the registry if it still owns key.
func (uc *SubscriptionUseCase) remove(key string, sub *subscription) {
	sub.cancel()

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.subs[key] == sub {
		delete(uc.subs, key)
	}
}

// Unsubscribe stops the subscription registered under key, if any.
func (uc *SubscriptionUseCase) Unsubscribe(key string) {
	uc.mu.Lock()
	sub, ok := uc.subs[key]
	uc.mu.Unlock()

	if ok {
		uc.remove(key, sub)
	}
}

// UnsubscribePrefix stops every subscription whose key starts with prefix
// and returns how many were stopped.
func (uc *SubscriptionUseCase) UnsubscribePrefix(prefix string) int {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	stopped := 0
	for key, sub := range uc.subs {
		if strings.HasPrefix(key, prefix) {
			sub.cancel()
			delete(uc.subs, key)
			stopped++
		}
	}
	return stopped
}

// Active returns the number of registered subscriptions.
func (uc *SubscriptionUseCase) Active() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return len(uc.subs)
}

// Close stops all subscriptions and waits for their watchers to return.
func (uc *SubscriptionUseCase) Close() {
	uc.mu.Lock()
	if uc.closed {
		uc.mu.Unlock()
		return
	}
	uc.closed = true
	uc.subs = make(map[string]*subscription)
	uc.mu.Unlock()

	uc.cancel()
	uc.wg.Wait()
	logger.Info("Subscription bridge closed")
}
