package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"consultchat/internal/adapter/api/middleware"
)

type caller struct {
	UID     string
	Name    string
	Picture string
}

func currentUser(c echo.Context) caller {
	uid, _ := c.Get(middleware.ContextUID).(string)
	name, _ := c.Get(middleware.ContextName).(string)
	picture, _ := c.Get(middleware.ContextPicture).(string)
	return caller{UID: uid, Name: name, Picture: picture}
}

// queryLimit parses ?limit, falling back to def when absent or not positive.
func queryLimit(c echo.Context, def int) int {
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			return parsedLimit
		}
	}
	return def
}
