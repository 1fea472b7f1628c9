// Package status implements the Session Status Publisher (C10): a websocket
// fan-out hub that mirrors session lifecycle events onto any connected
// dashboard. It is a pure publish-side adapter — one subscriber of the
// internal event bus among others (the teacher's audit-log persistence is
// another) — with no inbound routing, auth, or page-serving logic of its
// own.
package status

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/clinictrack/emgcore/internal/telemetry/events"
)

// Message is the JSON payload fanned out to connected dashboards on every
// session status transition.
type Message struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Type      string `json:"type"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub maintains the set of connected dashboard clients and fans out status
// messages pulled from the event bus.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	bus events.Bus
	sub events.Subscription
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub subscribes to bus and returns a Hub ready to run.
func NewHub(bus events.Bus) (*Hub, error) {
	sub, err := bus.Subscribe(256)
	if err != nil {
		return nil, err
	}
	return &Hub{clients: make(map[*client]struct{}), bus: bus, sub: sub}, nil
}

// Run drains the event subscription and broadcasts session events to every
// connected client until the subscription channel closes. Intended to run
// in its own goroutine for the lifetime of the process.
func (h *Hub) Run() {
	for ev := range h.sub.C() {
		if ev.Category != events.CategorySession {
			continue
		}
		msg := Message{SessionID: ev.Labels["session_id"], Status: ev.Type, Type: "session_status"}
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		h.broadcast(payload)
	}
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// slow client: drop this update rather than block the hub.
		}
	}
}

// ServeHTTP upgrades the connection to a websocket and registers it as a
// fan-out target. It performs no auth or routing decisions — callers mount
// it behind whatever access control the deployment requires.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("status: websocket upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 64)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	c.readPump(h)
}

func (c *client) readPump(h *Hub) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		if _, err := w.Write(msg); err != nil {
			return
		}
		if err := w.Close(); err != nil {
			return
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Close unsubscribes from the event bus, ending the Run loop.
func (h *Hub) Close() error {
	return h.bus.Unsubscribe(h.sub)
}

// ClientCount reports the number of connected dashboard clients, for
// diagnostics and tests.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
