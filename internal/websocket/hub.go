package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/hr-optimizer/internal/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket connection following a session's runs.
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
}

type sessionMessage struct {
	sessionID string
	data      []byte
}

// Hub fans run status events out to the connections watching each session.
// All map mutation happens on the Run goroutine.
type Hub struct {
	clients        map[*Client]bool
	sessionClients map[string]map[*Client]bool
	publish        chan sessionMessage
	register       chan *Client
	unregister     chan *Client
	done           chan struct{}
	upgrader       websocket.Upgrader
	logger         *logrus.Logger

	mutex sync.RWMutex
	count int
}

// NewHub creates a hub. allowedOrigins empty or containing "*" accepts any
// origin.
func NewHub(logger *logrus.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients:        make(map[*Client]bool),
		sessionClients: make(map[string]map[*Client]bool),
		publish:        make(chan sessionMessage, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

// Run services registrations and deliveries until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			if h.sessionClients[client.SessionID] == nil {
				h.sessionClients[client.SessionID] = make(map[*Client]bool)
			}
			h.sessionClients[client.SessionID][client] = true
			h.setCount(len(h.clients))

			h.logger.WithFields(logrus.Fields{
				"session_id":    client.SessionID,
				"total_clients": len(h.clients),
			}).Info("WebSocket client connected")

		case client := <-h.unregister:
			if h.clients[client] {
				h.remove(client)
				h.logger.WithFields(logrus.Fields{
					"session_id":    client.SessionID,
					"total_clients": len(h.clients),
				}).Info("WebSocket client disconnected")
			}

		case msg := <-h.publish:
			for client := range h.sessionClients[msg.sessionID] {
				select {
				case client.Send <- msg.data:
				default:
					h.logger.WithField("session_id", client.SessionID).Warn("Dropping slow WebSocket client")
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	if set := h.sessionClients[client.SessionID]; set != nil {
		delete(set, client)
		if len(set) == 0 {
			delete(h.sessionClients, client.SessionID)
		}
	}
	close(client.Send)
	h.setCount(len(h.clients))
}

func (h *Hub) setCount(n int) {
	h.mutex.Lock()
	h.count = n
	h.mutex.Unlock()
}

// HandleWebSocket upgrades GET /ws/runs/:session_id.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, 64),
		Hub:       h,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// NotifyRunStatus queues event for the session's connections. It never
// blocks; events are dropped if the hub is backed up.
func (h *Hub) NotifyRunStatus(event pipeline.StatusEvent) {
	data, err := json.Marshal(gin.H{"type": "run_status", "data": event})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	select {
	case h.publish <- sessionMessage{sessionID: event.SessionID, data: data}:
	default:
		h.logger.WithField("session_id", event.SessionID).Warn("WebSocket hub backlog full, dropping run event")
	}
}

// GetConnectionCount returns the total number of active connections
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// readPump drains client frames so pongs and close frames are processed.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Error("WebSocket error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.WithError(err).Error("Failed to write WebSocket message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
