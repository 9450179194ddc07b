package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/damianarielmauro/Shelly-App/internal/auth"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/logging"
)

// Frame types for the event stream protocol.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize bounds the outbound queue per client; a slow
	// consumer loses frames instead of stalling broadcasts.
	wsSendBufferSize = 256
)

// WSMessage is the envelope for every frame on the event stream.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels in subscribe and unsubscribe
// requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is handled by the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Hub fans bus events out to connected event-stream clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates an empty hub; clients arrive via handleEvents.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until shutdown, then drops every remaining client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	remaining := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		remaining = append(remaining, client)
	}
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for _, client := range remaining {
		client.shutdown()
	}
}

// Register adds a connected client to the broadcast set.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "user_id", client.userID, "clients", h.ClientCount())
}

// Unregister drops a client and tears its connection down. Safe to
// call more than once; only the caller that removes the client from
// the set performs the teardown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, known := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if known {
		client.shutdown()
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast delivers one event to every client whose filter admits the
// channel. The frame is marshalled once and shared.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	recipients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		recipients = append(recipients, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range recipients {
		if client.receives(channel) {
			client.enqueue(frame)
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", delivered)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WSClient is one upgraded event-stream connection. The zero filter
// admits every event; subscribing narrows the stream.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
	filter map[string]struct{}

	// Identity propagated from the session token.
	userID string
	role   auth.Role
}

// handleEvents upgrades the HTTP connection to a WebSocket event
// stream. The session token was already validated by the auth
// middleware, which accepts it from the "token" query parameter for
// this route.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, wsSendBufferSize),
		filter: make(map[string]struct{}),
		userID: claims.Subject,
		role:   claims.Role,
	}

	s.hub.Register(client)
	go client.writeLoop()
	go client.readLoop()
}

// shutdown closes the outbound channel exactly once; the write loop
// drains out on the closed channel and the connection is torn down.
func (c *WSClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		c.conn.Close()
	}
}

// enqueue hands a frame to the write loop, dropping it when the client
// has disconnected or its buffer is full.
func (c *WSClient) enqueue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// receives reports whether the client's filter admits the channel.
func (c *WSClient) receives(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.filter) == 0 {
		return true
	}
	_, ok := c.filter[channel]
	return ok
}

// readLoop consumes client frames until the connection drops. Any
// inbound frame resets the read deadline, so a browser that never
// answers protocol pings still stays connected while it talks.
func (c *WSClient) readLoop() {
	defer c.hub.Unregister(c)

	cfg := c.hub.cfg
	wait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(wait)) //nolint:errcheck // best-effort deadline
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(wait)) //nolint:errcheck // best-effort deadline
		c.dispatch(frame)
	}
}

// writeLoop drains the send channel and keeps the connection alive
// with periodic pings.
func (c *WSClient) writeLoop() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // best-effort close
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error caught below
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // ping error caught below
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound frame.
func (c *WSClient) dispatch(frame []byte) {
	var msg WSMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateFilter(msg, true)
	case WSTypeUnsubscribe:
		c.updateFilter(msg, false)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.replyError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateFilter applies a subscribe or unsubscribe request to the
// client's channel filter.
func (c *WSClient) updateFilter(msg WSMessage, add bool) {
	var sub WSSubscribePayload
	if err := decodePayload(msg.Payload, &sub); err != nil {
		c.replyError(msg.ID, "invalid channel list")
		return
	}

	c.mu.Lock()
	for _, channel := range sub.Channels {
		if add {
			c.filter[channel] = struct{}{}
		} else {
			delete(c.filter, channel)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if add {
		key = "subscribed"
		c.hub.logger.Info("websocket client subscribed", "user_id", c.userID, "channels", sub.Channels)
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

// decodePayload re-marshals the loosely typed payload field into its
// concrete shape.
func decodePayload(payload, dst any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (c *WSClient) reply(id, msgType string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (c *WSClient) replyError(id, reason string) {
	c.reply(id, WSTypeError, map[string]string{"message": reason})
}
