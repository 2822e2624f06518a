// Package ws fans server-side update broadcasts out to spectator
// websocket connections on the debug surface. Spectators are read-only:
// they observe the same update stream the game clients receive, encoded
// as plain JSON text frames.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 3 * time.Second

type Hub struct {
	mu      sync.Mutex
	viewers map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{viewers: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.viewers[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.viewers, conn)
	h.mu.Unlock()
}

// Broadcast writes message to every viewer; slow or dead viewers are
// dropped rather than allowed to stall the loop.
func (h *Hub) Broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dead []*websocket.Conn
	for conn := range h.viewers {
		if err := writeTo(conn, message); err != nil {
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		delete(h.viewers, conn)
	}
}

// writeTo sends one text frame with a bounded timeout.
func writeTo(conn *websocket.Conn, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, message)
}

// Count reports the number of attached viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}
