package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hivechat/internal/realtime"
)

// client serializes writes to one connection; gorilla allows a single
// concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(f realtime.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

// Hub manages active WebSocket connections keyed by user ID and provides
// helper methods to broadcast events to one or more users.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
	log   zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]map[*client]struct{}),
		log:   log,
	}
}

// Register adds a connection for the given user and reports whether it is
// the user's first.
func (h *Hub) Register(userID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	first := len(h.conns[userID]) == 0
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][c] = struct{}{}
	return first
}

// Unregister removes a connection and reports whether the user has no
// connections left.
func (h *Hub) Unregister(userID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.conns[userID]
	if !ok {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.conns, userID)
		return true
	}
	return false
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Emit encodes payload and sends it to every connection of userIDs.
func (h *Hub) Emit(userIDs []string, ev realtime.Event, payload any) {
	f, err := realtime.NewFrame(ev, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(ev)).Msg("encode frame")
		return
	}
	h.BroadcastToUsers(userIDs, f)
}

// BroadcastToUsers sends f to all active connections of the provided user
// IDs. A connection that fails is closed; its read loop unregisters it.
func (h *Hub) BroadcastToUsers(userIDs []string, f realtime.Frame) {
	for _, c := range h.clients(userIDs) {
		if err := c.send(f); err != nil {
			c.conn.Close()
		}
	}
}

// BroadcastAll sends f to all connected users.
func (h *Hub) BroadcastAll(f realtime.Frame) {
	for _, c := range h.allClients() {
		if err := c.send(f); err != nil {
			c.conn.Close()
		}
	}
}

// clients snapshots the connections of userIDs so that writes happen outside
// the lock.
func (h *Hub) clients(userIDs []string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var res []*client
	for _, uid := range userIDs {
		for c := range h.conns[uid] {
			res = append(res, c)
		}
	}
	return res
}

func (h *Hub) allClients() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var res []*client
	for _, conns := range h.conns {
		for c := range conns {
			res = append(res, c)
		}
	}
	return res
}
