package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/abytech-hub/notification-core/internal/domain"
)

// sendBuffer is the number of frames queued per connection before new frames are dropped.
const sendBuffer = 64

// Client is one live websocket connection of a recipient.
type Client struct {
	Recipient domain.Recipient
	Send      chan []byte

	hub    *Hub
	mu     sync.Mutex
	closed bool
}

// Close unregisters the client and closes Send. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	c.mu.Unlock()
	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// offer queues data without blocking; it reports whether the frame was queued.
func (c *Client) offer(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub routes realtime events to the connections of each recipient.
// One recipient may hold several connections (tabs, devices).
type Hub struct {
	mu          sync.RWMutex
	byRecipient map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byRecipient: make(map[string]map[*Client]struct{})}
}

// Register creates and tracks a new client for rc.
func (h *Hub) Register(rc domain.Recipient) *Client {
	c := &Client{Recipient: rc, Send: make(chan []byte, sendBuffer), hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := rc.Key()
	if h.byRecipient[key] == nil {
		h.byRecipient[key] = make(map[*Client]struct{})
	}
	h.byRecipient[key][c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := c.Recipient.Key()
	if m := h.byRecipient[key]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byRecipient, key)
		}
	}
}

// Emit sends {"event", "data"} to every connection of rc. Slow connections
// whose buffer is full miss the frame.
func (h *Hub) Emit(rc domain.Recipient, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("marshal realtime event", "event", event, "error", err)
		return
	}
	frame, err := json.Marshal(domain.RealtimeFrame{Event: event, Data: payload})
	if err != nil {
		slog.Error("marshal realtime frame", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	m := h.byRecipient[rc.Key()]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.offer(frame) {
			slog.Warn("realtime frame dropped", "recipient", rc.Key(), "event", event)
		}
	}
}

// Total counts live connections across all recipients.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.byRecipient {
		n += len(m)
	}
	return n
}
