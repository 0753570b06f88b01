package usecase

import "time"

// PresenceChecker reports whether a user has at least one live connection.
type PresenceChecker interface {
	IsOnline(userID string) bool
}

// ActionLimiter throttles user actions such as sending messages.
type ActionLimiter interface {
	Allow(userID, action string) (bool, time.Duration)
}
