package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insights/internal/logger"
	"github.com/yourusername/stock-insights/internal/models"
)

const streamWriteTimeout = 5 * time.Second

// SnapshotFunc returns the snapshot a new subscriber receives first
type SnapshotFunc func() (*models.DashboardSnapshot, error)

// StreamHub pushes dashboard snapshots to websocket subscribers
type StreamHub struct {
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	current  SnapshotFunc
	logger   *logrus.Entry
}

// NewStreamHub creates a hub. current may be nil, in which case subscribers only see new snapshots.
func NewStreamHub(log *logrus.Logger) *StreamHub {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &StreamHub{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   log.WithField("component", "stream"),
	}
}

// SetSnapshotFunc sets the source of the initial snapshot sent to new subscribers
func (h *StreamHub) SetSnapshotFunc(fn SnapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = fn
}

// Publish sends a snapshot to every subscriber. Clients that fail a write are dropped.
func (h *StreamHub) Publish(snapshot *models.DashboardSnapshot) {
	msg, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal snapshot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := h.write(c, msg); err != nil {
			h.logger.WithError(err).Debug("Dropping websocket subscriber")
			c.Close()
			delete(h.clients, c)
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *StreamHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.Close()
		delete(h.clients, c)
	}
}

// Handler accepts websocket connections
func (h *StreamHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.WithError(err).Warn("Websocket upgrade failed")
			return
		}

		h.mu.Lock()
		if h.current != nil {
			if snapshot, err := h.current(); err == nil {
				if msg, err := json.Marshal(snapshot); err == nil {
					if err := h.write(conn, msg); err != nil {
						h.mu.Unlock()
						conn.Close()
						return
					}
				}
			}
		}
		h.clients[conn] = struct{}{}
		h.mu.Unlock()

		// Read loop detects disconnects; inbound messages are ignored
		go func() {
			defer func() {
				h.mu.Lock()
				delete(h.clients, conn)
				h.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}

// write sends one message. Caller holds the lock.
func (h *StreamHub) write(c *websocket.Conn, msg []byte) error {
	_ = c.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return c.WriteMessage(websocket.TextMessage, msg)
}
