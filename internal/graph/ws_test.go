package graph

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birlikkoshan/todohub/internal/eventbus"
	"github.com/birlikkoshan/todohub/internal/service"
)

func (e *env) dial(t *testing.T, protocols ...string) *websocket.Conn {
	t.Helper()
	if protocols == nil {
		protocols = []string{Subprotocol}
	}
	dialer := websocket.Dialer{Subprotocols: protocols, HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(e.server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

type wsReply struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func read(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsReply
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func closeCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.True(t, errors.As(err, &ce), "unexpected error: %v", err)
		return ce.Code
	}
}

func initConn(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, map[string]interface{}{"type": "connection_init"})
	assert.Equal(t, "connection_ack", read(t, conn).Type)
}

func subscribe(t *testing.T, conn *websocket.Conn, id, query string) {
	t.Helper()
	send(t, conn, map[string]interface{}{
		"type":    "subscribe",
		"id":      id,
		"payload": map[string]interface{}{"query": query},
	})
}

func TestWS_SubscriptionLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	conn := e.dial(t)
	initConn(t, conn)

	subscribe(t, conn, "1", `subscription { todoAdded { title priority user { email } } }`)
	require.Eventually(t, func() bool {
		return e.bus.SubscriberCount(eventbus.TodosAdded) == 1
	}, 2*time.Second, 10*time.Millisecond)

	user, err := e.users.Create(ctx, service.CreateUserInput{Email: "ann@example.com"})
	require.NoError(t, err)
	_, err = e.todos.Create(ctx, service.CreateTodoInput{Title: "Live", UserID: user.ID})
	require.NoError(t, err)

	msg := read(t, conn)
	assert.Equal(t, "next", msg.Type)
	assert.Equal(t, "1", msg.ID)
	assert.JSONEq(t,
		`{"data":{"todoAdded":{"title":"Live","priority":"MEDIUM","user":{"email":"ann@example.com"}}}}`,
		string(msg.Payload))

	send(t, conn, map[string]interface{}{"type": "complete", "id": "1"})
	require.Eventually(t, func() bool {
		return e.bus.SubscriberCount(eventbus.TodosAdded) == 0
	}, 2*time.Second, 10*time.Millisecond)

	send(t, conn, map[string]interface{}{"type": "ping"})
	assert.Equal(t, "pong", read(t, conn).Type)
}

func TestWS_OnlyMatchingEventsAreDelivered(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	conn := e.dial(t)
	initConn(t, conn)

	subscribe(t, conn, "tags", `subscription { tagRemoved { name } }`)
	require.Eventually(t, func() bool {
		return e.bus.SubscriberCount(eventbus.TagsDeleted) == 1
	}, 2*time.Second, 10*time.Millisecond)

	tag, err := e.tags.Create(ctx, service.CreateTagInput{Name: "Temp"})
	require.NoError(t, err)
	_, err = e.tags.Remove(ctx, tag.ID)
	require.NoError(t, err)

	msg := read(t, conn)
	assert.Equal(t, "next", msg.Type)
	assert.JSONEq(t, `{"data":{"tagRemoved":{"name":"Temp"}}}`, string(msg.Payload))
}

func TestWS_StreamCompletesOnShutdown(t *testing.T) {
	e := newEnv(t)
	conn := e.dial(t)
	initConn(t, conn)

	subscribe(t, conn, "u", `subscription { userCreated { id } }`)
	require.Eventually(t, func() bool {
		return e.bus.SubscriberCount(eventbus.UsersAdded) == 1
	}, 2*time.Second, 10*time.Millisecond)

	e.bus.Shutdown()
	msg := read(t, conn)
	assert.Equal(t, "complete", msg.Type)
	assert.Equal(t, "u", msg.ID)
}

func TestWS_QueryOverSocket(t *testing.T) {
	e := newEnv(t)
	conn := e.dial(t)
	initConn(t, conn)

	subscribe(t, conn, "q", `{ users { id } }`)
	msg := read(t, conn)
	assert.Equal(t, "next", msg.Type)
	assert.JSONEq(t, `{"data":{"users":[]}}`, string(msg.Payload))
	assert.Equal(t, "complete", read(t, conn).Type)

	subscribe(t, conn, "bad", `subscription { nope { id } }`)
	msg = read(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "bad", msg.ID)
	var errs []gqlError
	require.NoError(t, json.Unmarshal(msg.Payload, &errs))
	assert.NotEmpty(t, errs)
}

func TestWS_ProtocolViolations(t *testing.T) {
	e := newEnv(t)

	t.Run("subscribe before init", func(t *testing.T) {
		conn := e.dial(t)
		subscribe(t, conn, "1", `subscription { todoAdded { id } }`)
		assert.Equal(t, closeUnauthorized, closeCode(t, conn))
	})

	t.Run("duplicate init", func(t *testing.T) {
		conn := e.dial(t)
		initConn(t, conn)
		send(t, conn, map[string]interface{}{"type": "connection_init"})
		assert.Equal(t, closeTooManyInitReqs, closeCode(t, conn))
	})

	t.Run("duplicate id", func(t *testing.T) {
		conn := e.dial(t)
		initConn(t, conn)
		subscribe(t, conn, "1", `subscription { todoAdded { id } }`)
		subscribe(t, conn, "1", `subscription { todoAdded { id } }`)
		assert.Equal(t, closeDuplicateID, closeCode(t, conn))
	})

	t.Run("invalid message", func(t *testing.T) {
		conn := e.dial(t)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
		assert.Equal(t, closeBadRequest, closeCode(t, conn))
	})

	t.Run("missing subprotocol", func(t *testing.T) {
		conn := e.dial(t, "graphql-ws")
		assert.Equal(t, closeNotAcceptable, closeCode(t, conn))
	})

	t.Run("init timeout", func(t *testing.T) {
		e.handler.WS().SetInitTimeout(50 * time.Millisecond)
		t.Cleanup(func() { e.handler.WS().SetInitTimeout(defaultInitTimeout) })
		conn := e.dial(t)
		assert.Equal(t, closeInitTimeout, closeCode(t, conn))
	})
}

func TestWS_CloseDropsConnections(t *testing.T) {
	e := newEnv(t)
	conn := e.dial(t)
	initConn(t, conn)
	require.Equal(t, 1, e.handler.WS().ConnectionCount())

	e.handler.WS().Close()
	assert.Equal(t, websocket.CloseGoingAway, closeCode(t, conn))
	require.Eventually(t, func() bool {
		return e.handler.WS().ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
