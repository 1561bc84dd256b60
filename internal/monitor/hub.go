package monitor

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// sendBuffer is the per-observer queue depth. An observer that cannot
	// drain it is considered broken and is disconnected.
	sendBuffer = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// observer is one live streaming connection. Outbound pushes go through the
// buffered send channel so a stalled peer never blocks the broadcaster.
type observer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans published payloads out to live observers. A slow or failed
// observer is pruned without affecting delivery to the rest.
type Hub struct {
	mu        sync.Mutex
	observers map[string]*observer

	logger *slog.Logger
}

// NewHub creates an empty observer hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		observers: make(map[string]*observer),
		logger:    logger,
	}
}

// Count returns the number of connected observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Broadcast queues payload for every observer. Observers whose queue is full
// are disconnected on the spot; delivery to the others proceeds.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, obs := range h.observers {
		select {
		case obs.send <- payload:
		default:
			h.logger.Warn("dropping slow observer", slog.String("observer", id))
			close(obs.send)
			delete(h.observers, id)
		}
	}
}

// ServeHTTP upgrades the request to a websocket and registers the observer.
// The connection receives every published payload until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	obs := &observer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.observers[obs.id] = obs
	total := len(h.observers)
	h.mu.Unlock()

	h.logger.Info("observer connected",
		slog.String("observer", obs.id),
		slog.String("remote", r.RemoteAddr),
		slog.Int("total", total))

	go h.writePump(obs)
	go h.readPump(obs)
}

// Close disconnects all observers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, obs := range h.observers {
		close(obs.send)
		delete(h.observers, id)
	}
}

// writePump pushes queued payloads to one observer. A failed write closes
// the connection and removes the observer.
func (h *Hub) writePump(obs *observer) {
	defer obs.conn.Close()

	for payload := range obs.send {
		obs.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := obs.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Info("observer write failed",
				slog.String("observer", obs.id),
				slog.String("error", err.Error()))
			h.remove(obs.id)
			return
		}
	}
}

// readPump drains inbound keep-alive messages; the payload is ignored. A
// read error means the peer is gone.
func (h *Hub) readPump(obs *observer) {
	for {
		if _, _, err := obs.conn.ReadMessage(); err != nil {
			h.remove(obs.id)
			return
		}
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if obs, ok := h.observers[id]; ok {
		close(obs.send)
		delete(h.observers, id)
		h.logger.Info("observer disconnected",
			slog.String("observer", id),
			slog.Int("total", len(h.observers)))
	}
}
