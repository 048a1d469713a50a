package admin

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/arung-agamani/stationkeeper/internal/notify"
)

// Hub fans out lifecycle events to every connected /events websocket client.
// It implements notify.Publisher so it can be registered alongside (or
// instead of) notify.MQTTPublisher.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan notify.Event
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan notify.Event)}
}

func (h *Hub) Publish(e notify.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- e:
		default:
			slog.Warn("admin event client too slow, dropping connection", "remote", conn.RemoteAddr())
			h.removeLocked(conn)
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) chan notify.Event {
	ch := make(chan notify.Event, 32)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn)
}

func (h *Hub) removeLocked(conn *websocket.Conn) {
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	conn.Close()
}

// serve registers an already-upgraded websocket connection and streams
// events to it until a write fails or the connection falls behind.
func (h *Hub) serve(conn *websocket.Conn) {
	ch := h.add(conn)
	defer h.remove(conn)

	for e := range ch {
		payload, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
