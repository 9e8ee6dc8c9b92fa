package monitor

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades incoming HTTP requests to WebSocket connections and
// registers them with a Manager.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler builds a Handler serving manager's dashboard feed.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("monitor: websocket upgrade failed", "error", err)
		return
	}

	c := h.manager.addConnection(conn)
	h.logger.Debug("monitor: dashboard connected", "conn_id", c.id)
	go h.readPump(c)
}

// readPump only watches for connection close; the dashboard feed is
// outbound-only, so any inbound message is discarded.
func (h *Handler) readPump(c *client) {
	defer func() {
		h.manager.removeConnection(c.id)
		c.conn.Close()
		h.logger.Debug("monitor: dashboard disconnected", "conn_id", c.id)
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("monitor: websocket read error", "conn_id", c.id, "error", err)
			}
			return
		}
	}
}
