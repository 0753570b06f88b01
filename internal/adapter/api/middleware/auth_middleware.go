package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"consultchat/internal/domain/service"
	"consultchat/pkg/errors"
	"consultchat/pkg/response"
)

// Context keys set by Authenticate.
const (
	ContextUID     = "uid"
	ContextName    = "name"
	ContextPicture = "picture"
	ContextAdmin   = "admin"
)

type AuthMiddleware struct {
	verifier service.TokenVerifier
}

func NewAuthMiddleware(verifier service.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter used by browser WebSocket clients.
func BearerToken(c echo.Context) string {
	if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return ""
		}
		return parts[1]
	}
	return c.QueryParam("token")
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		idToken := BearerToken(c)
		if idToken == "" {
			return response.Error(c, errors.Unauthorized("Authorization token is required", nil))
		}

		identity, err := m.verifier.VerifyToken(c.Request().Context(), idToken)
		if err != nil {
			return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		}

		c.Set(ContextUID, identity.UID)
		c.Set(ContextName, identity.Name)
		c.Set(ContextPicture, identity.Picture)
		c.Set(ContextAdmin, identity.Admin)

		return next(c)
	}
}
