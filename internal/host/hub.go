package host

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"squadcore/internal/highlight"
	"squadcore/internal/logging"
	"squadcore/internal/squad"
)

// Event types pushed to websocket clients.
const (
	EventRender    = "render"
	EventNotice    = "notice"
	EventHighlight = "highlight"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
)

// Event is one message on the /ws stream.
type Event struct {
	Type    string                      `json:"type"`
	TokenID string                      `json:"token_id,omitempty"`
	Notice  *squad.Notice               `json:"notice,omitempty"`
	Marks   map[string]highlight.Symbol `json:"marks,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans render, notice and highlight events out to every connected
// websocket client. It satisfies squad.Renderer and squad.Notifier, and its
// Highlight method is a highlight.Observer.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  logging.Logger
}

var (
	_ squad.Renderer = (*Hub)(nil)
	_ squad.Notifier = (*Hub)(nil)
)

// NewHub returns an empty hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{clients: make(map[*client]struct{}), logger: logging.OrNoop(logger)}
}

// Render implements squad.Renderer.
func (h *Hub) Render(_ context.Context, tokenID string) {
	h.Broadcast(Event{Type: EventRender, TokenID: tokenID})
}

// Notify implements squad.Notifier.
func (h *Hub) Notify(_ context.Context, notice squad.Notice) {
	n := notice
	h.Broadcast(Event{Type: EventNotice, TokenID: notice.TokenID, Notice: &n})
}

// Highlight publishes the current overlay marks.
func (h *Hub) Highlight(marks map[string]highlight.Symbol) {
	if marks == nil {
		marks = map[string]highlight.Symbol{}
	}
	h.Broadcast(Event{Type: EventHighlight, Marks: marks})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues ev for every client. Clients whose buffer is full are
// dropped rather than blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", "component", "host", "type", ev.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow websocket client", "component", "host", "remote", c.conn.RemoteAddr().String())
			delete(h.clients, c)
			c.close()
		}
	}
}

// attach registers conn and starts its writer. The returned func detaches it.
func (h *Hub) attach(conn *websocket.Conn) func() {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go h.writeLoop(c)
	return func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			c.close()
		}
		h.mu.Unlock()
	}
}

func (h *Hub) writeLoop(c *client) {
	defer func() { _ = c.conn.Close() }()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("websocket write failed", "component", "host", "error", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
