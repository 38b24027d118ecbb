// Package broadcast fans stored records out to connected dashboard clients.
//
// Delivery is best-effort while connected: there is no backlog replay, no
// acknowledgment, and a slow client is dropped rather than allowed to stall
// the hub. Clients re-establish state through the read endpoints.
package broadcast

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vigil-ops/vigil/internal/model"
)

const (
	// DefaultSendBuffer is the per-client queue of pending events. A client
	// that falls this far behind is disconnected.
	DefaultSendBuffer = 256

	writeTimeout = 10 * time.Second
)

// EventLog is the single event type the server emits.
const EventLog = "log"

// Event is the wire envelope for broadcast messages.
type Event struct {
	Event string           `json:"event"`
	Data  *model.LogRecord `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub upgrades dashboard connections and broadcasts stored records to all of
// them in publish order.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub that accepts connections from allowedOrigin.
// "*" accepts any origin; requests without an Origin header (non-browser
// clients) are always accepted.
func NewHub(allowedOrigin string) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
		},
	}
	return h
}

// ServeHTTP upgrades one dashboard connection and keeps it registered until
// the peer goes away or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Printf("broadcast: upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Event, DefaultSendBuffer),
	}

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		conn.Close()
		return
	default:
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.wg.Add(2)
	go h.writePump(c)
	go h.readPump(c)
}

// Publish emits a stored record to every connected client. It never blocks
// and never returns an error: broadcast failures must not reach the write
// path that triggered them. Clients whose queue is full are dropped.
func (h *Hub) Publish(record *model.LogRecord) {
	ev := Event{Event: EventLog, Data: record}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("broadcast: dropping slow client %s", c.conn.RemoteAddr())
		h.remove(c)
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients and stops accepting new ones.
func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// remove unregisters a client and closes its send queue exactly once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// writePump drains the client's queue onto the wire. It owns all writes to
// the connection and closes it when the queue is closed or a write fails.
func (h *Hub) writePump(c *client) {
	defer h.wg.Done()
	defer c.conn.Close()

	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			h.remove(c)
			// Drain whatever remains so remove's close doesn't strand events.
			for range c.send {
			}
			return
		}
	}
}

// readPump discards client-to-server frames; none are part of the contract.
// It exists to notice disconnects promptly.
func (h *Hub) readPump(c *client) {
	defer h.wg.Done()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}
