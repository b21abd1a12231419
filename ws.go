package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vehicle-registration-visualizer/pkg/aggregate"
	"vehicle-registration-visualizer/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeWait = 5 * time.Second

// wsHub tells connected pages when the dataset changes so they can re-query.
// All writes happen under mu; a connection has at most one writer.
type wsHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     *logger.Logger
}

func newHub(log *logger.Logger) *wsHub {
	return &wsHub{clients: make(map[*websocket.Conn]struct{}), log: log}
}

func (h *wsHub) handleWebSocket(data *poller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn("ws upgrade error", "error", err)
			return
		}
		h.mu.Lock()
		h.clients[conn] = struct{}{}
		// Send the current summary right away so the page can render.
		if ds := data.Dataset(); ds != nil {
			if err := writeDataset(conn, ds, data.LoadedAt()); err != nil {
				h.log.Debug("ws initial write failed", "error", err)
			}
		}
		h.mu.Unlock()
		go h.readPump(conn)
	}
}

func (h *wsHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *wsHub) broadcast(ds *aggregate.Dataset, loadedAt time.Time) {
	data, err := json.Marshal(datasetMessage(ds, loadedAt))
	if err != nil {
		h.log.Error("ws marshal failed", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			c.Close()
			delete(h.clients, c)
		}
	}
}

func (h *wsHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *wsHub) readPump(c *websocket.Conn) {
	defer func() {
		h.remove(c)
		_ = c.Close()
	}()
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func datasetMessage(ds *aggregate.Dataset, loadedAt time.Time) DatasetMessage {
	return DatasetMessage{Type: "dataset", Summary: ds.Summary(), LoadedAt: loadedAt.UnixMilli()}
}

func writeDataset(c *websocket.Conn, ds *aggregate.Dataset, loadedAt time.Time) error {
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(datasetMessage(ds, loadedAt))
}
