package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/your-org/footfall/internal/observability"
	"github.com/your-org/footfall/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client represents a connected WebSocket client.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID uuid.UUID // uuid.Nil receives every session
}

type envelope struct {
	sessionID uuid.UUID
	data      []byte
}

// Hub maintains active WebSocket clients and fans out crossings and live
// track snapshots.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "session_id", client.sessionID)

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				if client.sessionID != uuid.Nil && client.sessionID != msg.sessionID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range slow {
				slog.Warn("ws client too slow, disconnecting", "session_id", client.sessionID)
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	observability.WSConnections.Dec()
	slog.Debug("ws client disconnected", "session_id", client.sessionID)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to every client watching the session.
func (h *Hub) Broadcast(msgType string, sessionID uuid.UUID, payload interface{}) {
	data, err := json.Marshal(dto.WSMessage{Type: msgType, SessionID: sessionID, Data: payload})
	if err != nil {
		slog.Error("marshal ws message", "error", err)
		return
	}
	h.broadcast <- envelope{sessionID: sessionID, data: data}
}

// BroadcastCrossing sends a stored crossing to subscribers.
func (h *Hub) BroadcastCrossing(ev dto.CrossingEventResponse) {
	h.Broadcast(dto.WSTypeCrossing, ev.SessionID, ev)
}

// BroadcastTracks relays a raw snapshot payload without decoding it.
func (h *Hub) BroadcastTracks(sessionID uuid.UUID, snapshot json.RawMessage) {
	h.Broadcast(dto.WSTypeTracks, sessionID, snapshot)
}

// HandleWS handles WebSocket upgrade requests. ?session_id= limits the
// stream to one session.
func (h *Hub) HandleWS(c *gin.Context) {
	var filter uuid.UUID
	if raw := c.Query("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		filter = id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, 64),
		sessionID: filter,
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump only detects disconnection; client messages are ignored.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
