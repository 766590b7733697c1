package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"elasticgrid/kernel"
	"elasticgrid/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsHub fans the ui-data payload out to every connected websocket client
// on each processed tick. It supplements, never replaces, the polling
// /api/ui-data endpoint.
type wsHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	send    chan kernel.Snapshot
}

func newWSHub() *wsHub {
	return &wsHub{
		clients: make(map[*websocket.Conn]struct{}),
		send:    make(chan kernel.Snapshot, 16),
	}
}

func (h *wsHub) run() {
	for snap := range h.send {
		payload, err := json.Marshal(snap)
		if err != nil {
			logger.Warnf("api: failed to marshal ui-stream payload: %v", err)
			continue
		}
		h.mu.Lock()
		for conn := range h.clients {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}

// broadcast enqueues a snapshot for delivery; a full queue drops the
// oldest pending update rather than blocking tick processing.
func (h *wsHub) broadcast(snap kernel.Snapshot) {
	select {
	case h.send <- snap:
	default:
		select {
		case <-h.send:
		default:
		}
		h.send <- snap
	}
}

func (h *wsHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

func (s *Server) handleUIStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("api: websocket upgrade failed: %v", err)
		return
	}
	s.hub.add(conn)

	initial, err := json.Marshal(s.engine.Snapshot())
	if err == nil {
		conn.WriteMessage(websocket.TextMessage, initial)
	}

	// Drain and discard inbound frames so the connection's read deadline
	// logic notices a closed client; this stream is write-only otherwise.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()
}
