package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"chatkit/pkg/logger"
)

// Client represents one connected chat client.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	// OnFrame handles an inbound frame from this client (watch/mark-read
	// commands). Set by the connection handler before the pumps start.
	OnFrame func(client *Client, frame []byte)

	// OnClose runs once when the connection goes away, after the client is
	// unregistered. Used to tear down the user's store subscriptions.
	OnClose func(client *Client)
}

// Manager tracks the active connection per user. A second connection for the
// same user replaces the first, mirroring the one-subscription-per-key rule of
// the listener registry.
type Manager struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				if old, ok := m.clients[client.UserID]; ok {
					close(old.Send)
				}
				m.clients[client.UserID] = client
				m.mutex.Unlock()
				logger.Info("Client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				removed := false
				if current, ok := m.clients[client.UserID]; ok && current == client {
					delete(m.clients, client.UserID)
					close(client.Send)
					removed = true
				}
				m.mutex.Unlock()

				// A superseded connection unregisters itself after a
				// reconnect replaced it. Its teardown must not run: the
				// user's subscriptions now belong to the new connection.
				if removed {
					logger.Info("Client unregistered: %s", client.UserID)
					if client.OnClose != nil {
						client.OnClose(client)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()
}

// SendToUser delivers a frame to a connected user. Frames for absent or slow
// users are dropped; the next snapshot supersedes them anyway.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	client, ok := m.clients[userID]
	m.mutex.RUnlock()

	if !ok {
		return
	}

	select {
	case client.Send <- message:
	default:
		logger.Warn("Dropping frame for slow client: %s", userID)
	}
}

// IsConnected reports whether the user has a live connection.
func (m *Manager) IsConnected(userID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.clients[userID]
	return ok
}

// ReadPump reads frames from the connection until it closes.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error: %v", err)
			}
			break
		}

		if c.OnFrame != nil {
			c.OnFrame(c, frame)
		}
	}
}

// WritePump sends frames to the connection until Send closes.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Error("WebSocket write error: %v", err)
			return
		}
	}
}
