// internal/eventhub/hub.go
package eventhub

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/agent"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
	// Outbound frames buffered per client before it is considered slow.
	sendBuffer = 256
)

// Inbound message types.
const (
	TypeUserInputDone = "user_input_done"
	TypeConfirmation  = "confirmation"
)

// Message is the wire form of a broadcast event.
type Message struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	TS      int64       `json:"ts"`
}

// ClientMessage is a frame sent by a connected client.
type ClientMessage struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Approved bool   `json:"approved,omitempty"`
}

// InboundHandler receives every well-formed client frame.
type InboundHandler func(ClientMessage)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
}

// ID returns the client's connection id.
func (c *Client) ID() string { return c.id }

// Hub is the registry of live WebSocket connections. The client set is owned
// by the Run goroutine; Add, Remove and Broadcast only send it requests.
type Hub struct {
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	handler    InboundHandler
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
	now        func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithHandler routes inbound client frames to fn.
func WithHandler(fn InboundHandler) Option {
	return func(h *Hub) { h.handler = fn }
}

// WithCheckOrigin replaces the upgrade origin check. The default accepts all origins.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// New creates a hub. Call Run to start it.
func New(logger *zap.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger: logger.Named("event_hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the client set until ctx is canceled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("Event hub started.")
	defer h.logger.Info("Event hub stopped.")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return nil
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.logger.Info("WebSocket client connected.", zap.String("client_id", client.id))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("WebSocket client disconnected.", zap.String("client_id", client.id))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("Dropping slow WebSocket client.", zap.String("client_id", client.id))
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
}

// Add registers a client. It reports false once the hub has stopped.
func (h *Hub) Add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Remove unregisters a client. Removing an unknown client is a no-op.
func (h *Hub) Remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int { return int(h.count.Load()) }

// Broadcast sends msg to every connected client. It is dropped once the hub
// has stopped.
func (h *Hub) Broadcast(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return err
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
	return nil
}

// Publish broadcasts an agent event. It satisfies agent.EventSink.
func (h *Hub) Publish(ev agent.Event) {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = h.now()
	}
	_ = h.Broadcast(Message{Type: string(ev.Type), Message: ev.Message, Data: ev.Data, TS: ts.UnixMilli()})
}

// HandleWS upgrades the request and attaches the connection to the hub.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}
	client := &Client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if !h.Add(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub's handler.
func (c *Client) readPump() {
	defer func() {
		c.hub.Remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket client read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(frame, &msg); err != nil || msg.Type == "" {
			c.hub.logger.Warn("Ignoring malformed client message", zap.String("client_id", c.id), zap.ByteString("message", frame))
			continue
		}
		c.hub.logger.Debug("Received client message", zap.String("client_id", c.id), zap.String("type", msg.Type))
		if c.hub.handler != nil {
			c.hub.handler(msg)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
