package notify

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Live events sent over the hub
const (
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope is the JSON frame written to every socket
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks one live socket per user
type Hub struct {
	clients map[string]*client
	mutex   sync.Mutex
}

// NewHub returns an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// ServeWS upgrades the request and keeps the socket registered for userID until
// it closes. A newer connection for the same user replaces the older one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade error", "error", err)
		return
	}
	c := &client{conn: conn}

	h.mutex.Lock()
	if old, ok := h.clients[userID]; ok {
		old.conn.Close()
	}
	h.clients[userID] = c
	h.mutex.Unlock()
	zap.S().Debugw("user connected to notifications", "userId", userID)

	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	h.remove(userID, c)
	zap.S().Debugw("user disconnected from notifications", "userId", userID)
}

func (h *Hub) remove(userID string, c *client) {
	h.mutex.Lock()
	if cur, ok := h.clients[userID]; ok && cur == c {
		delete(h.clients, userID)
	}
	h.mutex.Unlock()
	c.conn.Close()
}

// Count returns the number of connected users
func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// SendToUser writes an event to one user if connected
func (h *Hub) SendToUser(userID, event string, data interface{}) {
	h.mutex.Lock()
	c, ok := h.clients[userID]
	h.mutex.Unlock()
	if !ok {
		return
	}
	if err := c.write(Envelope{Event: event, Data: data}); err != nil {
		zap.S().Warnw("failed to send websocket event", "userId", userID, "event", event, "error", err)
		h.remove(userID, c)
	}
}

// Broadcast writes an event to every connected user
func (h *Hub) Broadcast(event string, data interface{}) {
	h.mutex.Lock()
	snapshot := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		snapshot[id] = c
	}
	h.mutex.Unlock()

	for id, c := range snapshot {
		if err := c.write(Envelope{Event: event, Data: data}); err != nil {
			zap.S().Warnw("failed to broadcast websocket event", "userId", id, "event", event, "error", err)
			h.remove(id, c)
		}
	}
}
