package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ConnectionCounter reports the number of live WebSocket connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

type HealthHandler struct {
	connections ConnectionCounter
}

func NewHealthHandler(connections ConnectionCounter) *HealthHandler {
	return &HealthHandler{
		connections: connections,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"time":        time.Now().Format(time.RFC3339),
		"connections": h.connections.ConnectionCount(),
	})
}
