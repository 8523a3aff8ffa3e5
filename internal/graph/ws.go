package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/birlikkoshan/todohub/internal/logging"
)

// Subprotocol is the websocket subprotocol spoken by WSHandler.
const Subprotocol = "graphql-transport-ws"

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	defaultInitTimeout = 3 * time.Second
)

// Message types of the graphql-transport-ws protocol.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// Close codes of the graphql-transport-ws protocol.
const (
	closeBadRequest      = 4400
	closeUnauthorized    = 4401
	closeNotAcceptable   = 4406
	closeInitTimeout     = 4408
	closeDuplicateID     = 4409
	closeTooManyInitReqs = 4429
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsOutbound struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// frame is either a text message or, when closeCode is set, a close frame
// after which the connection is torn down.
type frame struct {
	data      []byte
	closeCode int
	reason    string
}

// WSHandler serves GraphQL operations over websocket connections.
type WSHandler struct {
	schema      graphql.Schema
	upgrader    websocket.Upgrader
	log         *logging.Logger
	initTimeout atomic.Int64

	mu          sync.Mutex
	connections map[*wsConnection]struct{}
}

// wsConnection tracks a single websocket connection and its operations.
type wsConnection struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	send   chan frame
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex // protects initSeen, acked, ops
	initSeen bool
	acked    bool
	ops      map[string]context.CancelFunc
}

// NewWSHandler creates a websocket transport for schema.
func NewWSHandler(schema graphql.Schema, log *logging.Logger) *WSHandler {
	h := &WSHandler{
		schema: schema,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{Subprotocol},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:         log.WithComponent("graphql-ws"),
		connections: make(map[*wsConnection]struct{}),
	}
	h.SetInitTimeout(defaultInitTimeout)
	return h
}

// SetInitTimeout changes how long a client may wait before connection_init.
func (h *WSHandler) SetInitTimeout(d time.Duration) { h.initTimeout.Store(int64(d)) }

// ServeHTTP handles websocket upgrade requests.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConnection{
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan frame, 256),
		done:   make(chan struct{}),
		ops:    make(map[string]context.CancelFunc),
	}

	h.mu.Lock()
	h.connections[c] = struct{}{}
	h.mu.Unlock()

	go h.readPump(c)
	go h.writePump(c)

	if conn.Subprotocol() != Subprotocol {
		h.closeWith(c, closeNotAcceptable, "Subprotocol not acceptable")
		return
	}
	time.AfterFunc(time.Duration(h.initTimeout.Load()), func() {
		c.mu.Lock()
		acked := c.acked
		c.mu.Unlock()
		if !acked {
			h.closeWith(c, closeInitTimeout, "Connection initialisation timeout")
		}
	})
}

// ConnectionCount returns the number of open connections.
func (h *WSHandler) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Close terminates every open connection.
func (h *WSHandler) Close() {
	h.mu.Lock()
	conns := make([]*wsConnection, 0, len(h.connections))
	for c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.closeWith(c, websocket.CloseGoingAway, "Server shutting down")
	}
}

func (h *WSHandler) readPump(c *wsConnection) {
	defer h.closeConnection(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "error", err)
			}
			return
		}
		h.handleMessage(c, data)
	}
}

func (h *WSHandler) writePump(c *wsConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if f.closeCode != 0 {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(f.closeCode, f.reason))
				h.closeConnection(c)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
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

func (h *WSHandler) handleMessage(c *wsConnection, data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		h.closeWith(c, closeBadRequest, "Invalid message received")
		return
	}

	switch msg.Type {
	case msgConnectionInit:
		c.mu.Lock()
		seen := c.initSeen
		c.initSeen = true
		c.acked = true
		c.mu.Unlock()
		if seen {
			h.closeWith(c, closeTooManyInitReqs, "Too many initialisation requests")
			return
		}
		h.sendJSON(c, wsOutbound{Type: msgConnectionAck})
	case msgPing:
		h.sendJSON(c, wsOutbound{Type: msgPong})
	case msgPong:
	case msgSubscribe:
		h.handleSubscribe(c, msg)
	case msgComplete:
		c.mu.Lock()
		cancel, ok := c.ops[msg.ID]
		delete(c.ops, msg.ID)
		c.mu.Unlock()
		if ok {
			cancel()
		}
	default:
		h.closeWith(c, closeBadRequest, "Invalid message received")
	}
}

func (h *WSHandler) handleSubscribe(c *wsConnection, msg wsMessage) {
	var req Request
	if msg.ID == "" || json.Unmarshal(msg.Payload, &req) != nil || req.Query == "" {
		h.closeWith(c, closeBadRequest, "Invalid message received")
		return
	}

	c.mu.Lock()
	if !c.acked {
		c.mu.Unlock()
		h.closeWith(c, closeUnauthorized, "Unauthorized")
		return
	}
	if _, exists := c.ops[msg.ID]; exists {
		c.mu.Unlock()
		h.closeWith(c, closeDuplicateID, "Subscriber for "+msg.ID+" already exists")
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.ops[msg.ID] = cancel
	c.mu.Unlock()

	go h.execute(ctx, c, msg.ID, req)
}

// execute runs one operation and streams its results until it completes,
// the client sends complete or the connection closes.
func (h *WSHandler) execute(ctx context.Context, c *wsConnection, id string, req Request) {
	defer func() {
		c.mu.Lock()
		if cancel, ok := c.ops[id]; ok {
			delete(c.ops, id)
			cancel()
		}
		c.mu.Unlock()
	}()

	params := req.params(ctx, h.schema)
	if req.operation() != ast.OperationTypeSubscription {
		res := graphql.Do(params)
		if res.Data == nil && res.HasErrors() {
			h.sendJSON(c, wsOutbound{Type: msgError, ID: id, Payload: res.Errors})
			return
		}
		h.sendJSON(c, wsOutbound{Type: msgNext, ID: id, Payload: res})
		h.sendJSON(c, wsOutbound{Type: msgComplete, ID: id})
		return
	}

	log := h.log.WithOperation(req.OperationName)
	log.Debug("Subscription started", "id", id)

	first, failed := true, false
	for res := range graphql.Subscribe(params) {
		// Keep draining after cancellation so the executor can exit.
		if ctx.Err() != nil || failed {
			continue
		}
		if first && res.Data == nil && res.HasErrors() {
			failed = true
			h.sendJSON(c, wsOutbound{Type: msgError, ID: id, Payload: res.Errors})
			continue
		}
		first = false
		h.sendJSON(c, wsOutbound{Type: msgNext, ID: id, Payload: res})
	}

	if ctx.Err() == nil && !failed {
		h.sendJSON(c, wsOutbound{Type: msgComplete, ID: id})
	}
	log.Debug("Subscription finished", "id", id)
}

// sendJSON queues v for the write pump. Messages are dropped when the
// client is too slow to drain its buffer.
func (h *WSHandler) sendJSON(c *wsConnection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to marshal websocket message", "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- frame{data: data}:
	default:
		h.log.Warn("websocket send buffer full, dropping message")
	}
}

// closeWith asks the write pump to send a close frame with code.
func (h *WSHandler) closeWith(c *wsConnection, code int, reason string) {
	h.log.Debug("Closing websocket", "code", code, "reason", reason)
	select {
	case <-c.done:
	case c.send <- frame{closeCode: code, reason: reason}:
	default:
		h.closeConnection(c)
	}
}

func (h *WSHandler) closeConnection(c *wsConnection) {
	c.once.Do(func() {
		close(c.done)
		c.cancel()

		h.mu.Lock()
		delete(h.connections, c)
		h.mu.Unlock()
	})
}
