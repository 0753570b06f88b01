package middleware

import (
	"github.com/labstack/echo/v4"

	"consultchat/pkg/errors"
	"consultchat/pkg/response"
)

// AdminOnly requires the admin custom claim. It must run after Authenticate.
func AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Get(ContextUID).(string); !ok {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}

		if admin, _ := c.Get(ContextAdmin).(bool); !admin {
			return response.Error(c, errors.Forbidden("Admin privileges required", nil))
		}

		return next(c)
	}
}
