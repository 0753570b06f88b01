package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"consultchat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client represents a WebSocket connection client
type Client struct {
	ID       string
	UserID   string
	UserName string
	Conn     *websocket.Conn
	Send     chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(userID, userName string, conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		UserName: userName,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
	}
}

// Closed reports whether the connection has been unregistered.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// enqueue queues message for the write pump. It reports false when the
// client is closed or its buffer is full.
func (c *Client) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Manager manages all active WebSocket connections. A user may hold
// several connections at once.
type Manager struct {
	clients    map[string]map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once

	handler      func(*Client, []byte)
	onDisconnect func(*Client)
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetHandler installs the inbound frame handler and the hook run after a
// connection is removed. Call it before Start.
func (m *Manager) SetHandler(handler func(*Client, []byte), onDisconnect func(*Client)) {
	m.handler = handler
	m.onDisconnect = onDisconnect
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.register(client)

			case client := <-m.Unregister:
				m.unregister(client)

			case <-ctx.Done():
				m.Close()
				return

			case <-m.done:
				return
			}
		}
	}()
}

func (m *Manager) register(client *Client) {
	m.mutex.Lock()
	conns, ok := m.clients[client.UserID]
	if !ok {
		conns = make(map[string]*Client)
		m.clients[client.UserID] = conns
	}
	conns[client.ID] = client
	count := len(conns)
	m.mutex.Unlock()

	logger.Info("Client registered: user %s connection %s (%d open)", client.UserID, client.ID, count)
}

func (m *Manager) unregister(client *Client) {
	m.mutex.Lock()
	removed := false
	if conns, ok := m.clients[client.UserID]; ok {
		if _, ok := conns[client.ID]; ok {
			delete(conns, client.ID)
			removed = true
		}
		if len(conns) == 0 {
			delete(m.clients, client.UserID)
		}
	}
	m.mutex.Unlock()

	client.close()
	if removed {
		logger.Info("Client unregistered: user %s connection %s", client.UserID, client.ID)
		if m.onDisconnect != nil {
			m.onDisconnect(client)
		}
	}
}

// Add registers client. It reports false once the manager is closed.
func (m *Manager) Add(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

// Remove unregisters client, directly if the main loop has stopped.
func (m *Manager) Remove(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
		m.unregister(client)
	}
}

// SendToClient queues message for one connection. A client whose buffer is
// full is dropped.
func (m *Manager) SendToClient(client *Client, message []byte) bool {
	if client.enqueue(message) {
		return true
	}
	if client.Closed() {
		return false
	}
	logger.Warn("WebSocket: client %s of user %s is not keeping up, dropping connection", client.ID, client.UserID)
	go m.Remove(client)
	return false
}

// SendToUser sends a message to every connection of a user and returns how
// many accepted it.
func (m *Manager) SendToUser(userID string, message []byte) int {
	m.mutex.RLock()
	targets := make([]*Client, 0, len(m.clients[userID]))
	for _, client := range m.clients[userID] {
		targets = append(targets, client)
	}
	m.mutex.RUnlock()

	sent := 0
	for _, client := range targets {
		if m.SendToClient(client, message) {
			sent++
		}
	}
	return sent
}

func (m *Manager) SendToUsers(userIDs []string, message []byte) {
	for _, userID := range userIDs {
		m.SendToUser(userID, message)
	}
}

func (m *Manager) IsOnline(userID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[userID]) > 0
}

// ConnectionCount returns the number of open connections.
func (m *Manager) ConnectionCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	count := 0
	for _, conns := range m.clients {
		count += len(conns)
	}
	return count
}

// Close stops the main loop and closes every connection.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.done)

		m.mutex.Lock()
		all := make([]*Client, 0)
		for _, conns := range m.clients {
			for _, client := range conns {
				all = append(all, client)
			}
		}
		m.mutex.Unlock()

		for _, client := range all {
			m.unregister(client)
		}
		logger.Info("WebSocket manager closed %d connections", len(all))
	})
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Remove(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: unexpected close for user %s: %v", c.UserID, err)
			}
			return
		}

		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if m.handler != nil {
			m.handler(c, message)
		}
	}
}

// WritePump sends messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: write to user %s failed: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
