package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/annotate/internal/observability"
	"github.com/your-org/annotate/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client is one connected collaborator. A client may watch a single
// project or, with an empty projectID, every project.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	projectID string
}

// Hub fans project change events out to connected collaborators so
// their views refresh. All client state is owned by the Run loop;
// no locking needed.
type Hub struct {
	clients    map[*Client]struct{}
	events     chan *dto.WSEvent
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		events:     make(chan *dto.WSEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "project_filter", client.projectID)

		case client := <-h.unregister:
			h.drop(client)

		case event := <-h.events:
			h.dispatch(event)
		}
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	observability.WSConnections.Dec()
	slog.Debug("ws client disconnected")
}

func (h *Hub) dispatch(event *dto.WSEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal ws event", "error", err)
		return
	}

	var stalled []*Client
	for client := range h.clients {
		if client.projectID != "" && client.projectID != event.ProjectID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Send buffer full, the client is not keeping up.
			stalled = append(stalled, client)
		}
	}
	for _, client := range stalled {
		h.drop(client)
	}
}

// BroadcastEvent queues a project change event for delivery to every
// client watching that project.
func (h *Hub) BroadcastEvent(event *dto.WSEvent) {
	select {
	case h.events <- event:
	default:
		slog.Warn("ws event queue full, dropping event", "project_id", event.ProjectID)
	}
}

// HandleWS upgrades the connection and registers the client. An
// optional ?project_id= query restricts which events the client sees.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, 64),
		projectID: c.Query("project_id"),
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

// readPump discards client messages; the loop exists to notice
// disconnects.
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
