package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Actions limited per user.
const (
	ActionSendMessage        = "send_message"
	ActionUploadFile         = "upload_file"
	ActionCreateConversation = "create_conversation"
	ActionTyping             = "typing"
	ActionHTTP               = "http"
)

// Policy allows Burst events at once, refilling one token every Interval.
type Policy struct {
	Burst    int
	Interval time.Duration
}

// DefaultPolicies returns the per-action limits used by the API.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		// 10 messages per minute
		ActionSendMessage: {Burst: 10, Interval: 6 * time.Second},
		// 5 uploads per minute
		ActionUploadFile: {Burst: 5, Interval: 12 * time.Second},
		// 5 new conversations per hour
		ActionCreateConversation: {Burst: 5, Interval: 12 * time.Minute},
		// 30 typing events per minute
		ActionTyping: {Burst: 30, Interval: 2 * time.Second},
	}
}

var defaultPolicy = Policy{Burst: 20, Interval: 3 * time.Second}

type bucket struct {
	limiter  *rate.Limiter
	burst    int
	lastSeen time.Time
}

// RateLimiter manages rate limiting for different users and actions
type RateLimiter struct {
	policies map[string]Policy
	buckets  map[string]*bucket
	mutex    sync.Mutex
	now      func() time.Time
}

func NewRateLimiter(policies map[string]Policy) *RateLimiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &RateLimiter{
		policies: policies,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// SetPolicy replaces the limit for an action. Existing buckets keep their
// old limit until they are cleaned up.
func (rl *RateLimiter) SetPolicy(action string, p Policy) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.policies[action] = p
}

func (rl *RateLimiter) policy(action string) Policy {
	if p, ok := rl.policies[action]; ok && p.Burst > 0 && p.Interval > 0 {
		return p
	}
	return defaultPolicy
}

// Allow checks if a user action is allowed. When it is not, the returned
// duration is how long the caller has to wait for the next token.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	key := userID + ":" + action
	now := rl.now()

	rl.mutex.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		p := rl.policy(action)
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(p.Interval), p.Burst),
			burst:   p.Burst,
		}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mutex.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// GetStatus returns current rate limit status for a user action
func (rl *RateLimiter) GetStatus(userID, action string) (tokens int, maxTokens int) {
	rl.mutex.Lock()
	b, exists := rl.buckets[userID+":"+action]
	rl.mutex.Unlock()

	if !exists {
		return 0, 0
	}

	return int(b.limiter.TokensAt(rl.now())), b.burst
}

// Cleanup removes buckets that haven't been used for idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	removed := 0
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine drops idle buckets every interval until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			}
		}
	}()
}
