package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Message is what the hub pushes to browsers.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type wsClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub keeps the open websocket connections per user.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]map[*wsClient]struct{}
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewHub accepts upgrades from the given origins; none, or "*", allows any origin.
func NewHub(allowedOrigins []string, logger *logrus.Logger) *Hub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	_, anyOrigin := allowed["*"]

	return &Hub{
		clients: make(map[string]map[*wsClient]struct{}),
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 || anyOrigin {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Serve upgrades the request and keeps the connection until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &wsClient{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(client)

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// SendToUser queues msg on every connection of the user and reports how many got it.
func (h *Hub) SendToUser(userID string, msg Message) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).WithField("type", msg.Type).Warn("websocket message not encodable")
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
			delivered++
		default:
			// too slow; drop it and let it reconnect
			h.removeLocked(client)
		}
	}
	return delivered
}

func (h *Hub) Connected(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for client := range set {
			h.removeLocked(client)
		}
	}
}

func (h *Hub) register(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[client.userID]
	if set == nil {
		set = make(map[*wsClient]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
	h.logger.WithField("user_id", client.userID).Debug("websocket connected")
}

func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *wsClient) {
	set := h.clients[client.userID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
}

// readPump only watches for the close; the browser sends nothing we act on.
func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.unregister(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).WithField("user_id", client.userID).Warn("websocket closed unexpectedly")
			}
			return
		}
	}
}

func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.WithError(err).WithField("user_id", client.userID).Warn("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
