// Package monitor is a live dashboard feed over WebSocket, distinct from
// the EPICS parameter bus (internal/bus): it broadcasts one metadata
// message per channel publication — frame shapes, bin counts, rate,
// frame numbers, and channel events such as shape changes — to connected
// operator consoles, for push-based observability alongside the polling
// parameter bus. Frame-loss and acquisition lifecycle notifications go to
// internal/eventqueue, not to this feed. Adapted from
// maboo/internal/websocket/{manager,handler}.go, trimmed from a
// request/response relay (rooms, PHP forwarding) to outbound-only event
// push: this feed never renders frame pixel data, only metadata about
// it, honoring spec.md's "does not render images" non-goal.
package monitor

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// client is a single connected dashboard console.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Manager tracks connected dashboard clients and broadcasts messages to
// all of them.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *slog.Logger
}

// NewManager creates an empty connection manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{clients: make(map[string]*client), logger: logger}
}

func (m *Manager) addConnection(conn *websocket.Conn) *client {
	c := &client{id: generateConnID(), conn: conn}
	m.mu.Lock()
	m.clients[c.id] = c
	m.mu.Unlock()
	return c
}

func (m *Manager) removeConnection(id string) {
	m.mu.Lock()
	delete(m.clients, id)
	m.mu.Unlock()
}

// Broadcast sends data to every connected dashboard client.
func (m *Manager) Broadcast(data []byte) {
	m.mu.RLock()
	clients := make([]*client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			m.logger.Warn("monitor: broadcast send failed", "conn_id", c.id, "error", err)
		}
	}
}

// ConnectionCount reports how many dashboard clients are attached.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func generateConnID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
