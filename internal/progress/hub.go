package progress

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-cli/internal/model"
)

const (
	writeWait      = 10 * time.Second
	clientBuffer   = 64
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The serve command fronts this with its own CORS policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans progress events out to websocket subscribers. Clients subscribe
// to a single company; events for other companies are never delivered to
// them. A client that cannot keep up is dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{} // companyID -> clients
}

type client struct {
	conn *websocket.Conn
	send chan model.ProgressEvent
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

// Publish delivers the event to every subscriber of its company. Never
// blocks; full client buffers cause a drop and disconnect.
func (h *Hub) Publish(event model.ProgressEvent) {
	h.mu.RLock()
	subs := h.clients[event.CompanyID]
	var slow []*client
	for c := range subs {
		select {
		case c.send <- event:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		zap.L().Warn("dropping slow progress subscriber",
			zap.String("company_id", event.CompanyID))
		h.remove(event.CompanyID, c)
	}
}

// ServeWS upgrades the request and subscribes the connection to a company's
// progress stream.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, companyID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan model.ProgressEvent, clientBuffer)}

	h.mu.Lock()
	if h.clients[companyID] == nil {
		h.clients[companyID] = make(map[*client]struct{})
	}
	h.clients[companyID][c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(companyID, c)
	go h.readLoop(companyID, c)
}

// SubscriberCount reports active subscribers for a company.
func (h *Hub) SubscriberCount(companyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[companyID])
}

func (h *Hub) writeLoop(companyID string, c *client) {
	defer h.remove(companyID, c)
	for event := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(event); err != nil {
			return
		}
	}
}

// readLoop drains the connection so pings and close frames are processed;
// subscribers never send application data.
func (h *Hub) readLoop(companyID string, c *client) {
	defer h.remove(companyID, c)
	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(companyID string, c *client) {
	h.mu.Lock()
	subs := h.clients[companyID]
	if _, ok := subs[c]; ok {
		delete(subs, c)
		close(c.send)
		if len(subs) == 0 {
			delete(h.clients, companyID)
		}
	}
	h.mu.Unlock()
	c.conn.Close()
}
