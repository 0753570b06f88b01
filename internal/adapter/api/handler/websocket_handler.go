package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"consultchat/internal/adapter/api/middleware"
	"consultchat/internal/domain/service"
	ws "consultchat/internal/infrastructure/websocket"
	"consultchat/pkg/errors"
	"consultchat/pkg/logger"
	"consultchat/pkg/response"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	verifier  service.TokenVerifier
	upgrader  gorillaws.Upgrader
}

// NewWebSocketHandler accepts connections from any origin when
// allowedOrigins is empty.
func NewWebSocketHandler(wsManager *ws.Manager, verifier service.TokenVerifier, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		verifier:  verifier,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		return set[r.Header.Get("Origin")]
	}
}

// HandleWebSocket authenticates the caller before upgrading; browsers cannot
// set headers on WebSocket requests, so ?token= is accepted too.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := middleware.BearerToken(c)
	if token == "" {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	identity, err := h.verifier.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("WebSocket: upgrade failed for user %s: %v", identity.UID, err)
		return nil
	}

	client := ws.NewClient(identity.UID, identity.Name, conn)
	if !h.wsManager.Add(client) {
		client.Conn.Close()
		return nil
	}

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}
