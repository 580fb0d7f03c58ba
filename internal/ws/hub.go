package ws

import (
	"log/slog"
	"sync"
)

// Hub tracks every connected client of the room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	slog.Info("ws: client connected", "client", c.ID, "total", len(h.clients))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.ID]; ok && cur == c {
		delete(h.clients, c.ID)
		slog.Info("ws: client disconnected", "client", c.ID, "total", len(h.clients))
	}
	c.close()
}

func (h *Hub) Get(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues evt for every client. A client whose buffer is full is
// disconnected rather than allowed to stall the others.
func (h *Hub) Broadcast(evt Event) {
	data, err := Encode(evt)
	if err != nil {
		slog.Error("ws: marshal error", "type", evt.EventType(), "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if !c.enqueue(data) {
			slog.Warn("ws: dropping slow client", "client", c.ID, "type", evt.EventType())
			c.close()
		}
	}
}

// Send queues evt for a single client and reports whether it was queued.
func (h *Hub) Send(id string, evt Event) bool {
	c, ok := h.Get(id)
	if !ok {
		return false
	}
	return c.Send(evt)
}

// Disconnect closes a client after the messages already queued for it,
// including any just sent with Send, have been written.
func (h *Hub) Disconnect(id string) bool {
	c, ok := h.Get(id)
	if !ok {
		return false
	}
	c.close()
	return true
}

// FindByKey returns the clients that joined under the given participant key.
func (h *Hub) FindByKey(key string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Client
	for _, c := range h.clients {
		if k, _, _, ok := c.Identity(); ok && k == key {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}
