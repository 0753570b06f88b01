package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"consultchat/internal/domain/service"
)

// AdminClaim is the custom claim that grants access to the admin routes.
const AdminClaim = "admin"

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (*service.Identity, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}

	return identityFromToken(result), nil
}

func identityFromToken(token *auth.Token) *service.Identity {
	identity := &service.Identity{UID: token.UID}

	if name, ok := token.Claims["name"].(string); ok {
		identity.Name = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		identity.Picture = picture
	}
	if admin, ok := token.Claims[AdminClaim].(bool); ok {
		identity.Admin = admin
	}

	return identity
}
