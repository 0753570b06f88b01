package service

import "context"

// Identity is the caller behind a verified ID token.
type Identity struct {
	UID     string
	Name    string
	Picture string
	Admin   bool
}

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}
