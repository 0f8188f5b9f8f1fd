package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/Scribe/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	// messagesPerSecond bounds live-parse requests per connection, with
	// bursts of twice that.
	messagesPerSecond = 10
)

// ProgressMessage is a job update broadcast to every client.
type ProgressMessage struct {
	Type      string         `json:"type"` // "progress", "complete", "error"
	Operation string         `json:"operation"`
	JobID     string         `json:"job_id,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Progress  int            `json:"progress"` // 0-100
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// LiveRequest is a parse request sent over the websocket. ID is echoed
// in the reply.
type LiveRequest struct {
	ID string `json:"id,omitempty"`
	ParseRequest
}

// LiveReply answers one LiveRequest.
type LiveReply struct {
	Type   string          `json:"type"` // "result" or "error"
	ID     string          `json:"id,omitempty"`
	Cached bool            `json:"cached,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *APIError       `json:"error,omitempty"`
}

// Client is one websocket connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *tokenBucket
}

// Hub maintains active websocket connections and broadcasts messages.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan []byte
	quit      chan struct{}
	quitOnce  sync.Once
	mu        sync.RWMutex
}

// NewHub creates a new websocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan []byte, 256),
		quit:      make(chan struct{}),
	}
}

// Run fans broadcast messages out until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client too slow, disconnect
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Close disconnects every client and stops Run.
func (h *Hub) Close() {
	h.quitOnce.Do(func() { close(h.quit) })
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	logging.WebSocketEvent("client_connected", n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	logging.WebSocketEvent("client_disconnected", n)
}

// sendTo queues message for one client. It reports false when the
// client is gone or its queue is full.
func (h *Hub) sendTo(c *Client, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a progress message to all connected clients. It
// never blocks; when the queue is full the message is dropped.
func (h *Hub) Broadcast(msg ProgressMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal progress message", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.Warn("broadcast channel full, dropping message")
	}
}

// isOriginAllowed checks origin against the allowed list. Entries are
// exact origins, "*", or "*.example.com" for any subdomain.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
		if domain, ok := strings.CutPrefix(allowed, "*."); ok && strings.HasSuffix(origin, "."+domain) {
			return true
		}
	}
	return false
}

// checkOrigin builds the upgrader's origin check. With no configured
// origins any client is accepted, including ones that send no Origin.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if !isOriginAllowed(origin, allowed) {
			logging.WarnContext(r.Context(), "websocket origin rejected", "origin", origin)
			return false
		}
		return true
	}
}

// handleWebSocket upgrades the connection. Authentication has already
// been checked by AuthMiddleware.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxBodyBytes)

	client := &Client{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		limiter: newTokenBucket(2*messagesPerSecond, messagesPerSecond),
	}
	s.hub.register(client)

	ctx := logging.WithRequestID(context.Background(), logging.GetRequestID(r.Context()))
	go client.writePump()
	go s.readPump(ctx, client)
}

// readPump answers live-parse requests until the connection closes.
func (s *Server) readPump(ctx context.Context, c *Client) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnContext(ctx, "websocket unexpected close", "error", err)
			}
			return
		}
		if !c.limiter.allow() {
			logging.WarnContext(ctx, "websocket message rate limit exceeded")
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Rate limit exceeded"),
				time.Now().Add(writeWait))
			return
		}

		reply := s.liveParse(ctx, message)
		data, err := json.Marshal(reply)
		if err != nil {
			logging.ErrorContext(ctx, "failed to marshal live reply", "error", err)
			continue
		}
		if !c.hub.sendTo(c, data) {
			return
		}
	}
}

func (s *Server) liveParse(ctx context.Context, message []byte) LiveReply {
	var req LiveRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return LiveReply{Type: "error", Error: &APIError{Code: "INVALID_JSON", Message: "Invalid JSON message"}}
	}
	data, cached, err := s.parse(ctx, req.ParseRequest)
	if err != nil {
		_, code := errorStatus(err)
		return LiveReply{Type: "error", ID: req.ID, Error: &APIError{Code: code, Message: err.Error()}}
	}
	return LiveReply{Type: "result", ID: req.ID, Cached: cached, Result: data}
}

// writePump writes queued messages, one per frame, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
