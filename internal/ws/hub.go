// internal/ws/hub.go

// Package ws is the operator boundary: a WebSocket endpoint that turns
// console messages into controller commands and fans controller
// broadcasts out to every connected client. It runs entirely in network
// callback context and never touches the bus; commands reach the tick
// through the controller's queue only.
package ws

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/tamzrod/servo-bridge/internal/controller"
)

// CommandSink is where parsed operator commands go.
type CommandSink interface {
	Submit(cmd controller.Command)
}

type Hub struct {
	sink     CommandSink
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int64]*client
	nextID  int64

	// last successfully broadcast status payload, replayed to clients
	// on connect so the console renders immediately.
	lastStatus atomic.Value // []byte
}

func New(sink CommandSink) *Hub {
	return &Hub{
		sink:    sink,
		clients: make(map[int64]*client),
		upgrader: websocket.Upgrader{
			// The console is served from the bridge itself or from a
			// bench machine; origin checks add nothing here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Broadcast implements controller.Broadcaster. Called from the tick
// goroutine; per-client channels decouple it from slow consumers.
func (h *Hub) Broadcast(payload []byte) {
	if isStatusPayload(payload) {
		h.lastStatus.Store(payload)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.send(payload)
	}
}

// ServeHTTP upgrades one operator connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := h.addClient(conn)
	log.Printf("ws: client %d connected from %s", c.id, r.RemoteAddr)

	// Replay the last status so a reconnecting console is not blank
	// until the next broadcast.
	if last, ok := h.lastStatus.Load().([]byte); ok {
		c.send(last)
	}

	go c.writePump()
	c.readPump() // blocks until the connection closes

	h.removeClient(c)
	log.Printf("ws: client %d disconnected", c.id)
}

func (h *Hub) addClient(conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	c := newClient(h.nextID, conn, h.sink)
	h.clients[c.id] = c
	return c
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
}

// isStatusPayload distinguishes periodic status frames from one-shot
// notifications without decoding the whole message.
func isStatusPayload(p []byte) bool {
	const prefix = `{"type":"status"`
	if len(p) < len(prefix) {
		return false
	}
	return string(p[:len(prefix)]) == prefix
}
