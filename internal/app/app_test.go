package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/birlikkoshan/todohub/docs"
	"github.com/birlikkoshan/todohub/internal/config"
	"github.com/birlikkoshan/todohub/internal/db/dbtest"
	"github.com/birlikkoshan/todohub/internal/eventbus"
	"github.com/birlikkoshan/todohub/internal/graph"
	"github.com/birlikkoshan/todohub/internal/logging"
)

type testApp struct {
	app    *App
	redis  *miniredis.Miniredis
	server *httptest.Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		App:    config.AppConfig{Env: "test", Version: "1.2.3"},
		Redis:  config.RedisConfig{DefaultTTL: config.Duration(time.Minute)},
		Events: config.EventsConfig{BufferSize: 8},
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	a, err := Assemble(cfg, logging.Discard(), dbtest.Open(t), rdb)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Router())
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close(context.Background())
	})
	return &testApp{app: a, redis: mr, server: srv}
}

func (ta *testApp) request(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ta.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestRoutes_Meta(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.request(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"graphql":"/graphql"`)

	resp, body = ta.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true,"env":"test","db":"up","redis":"up"}`, string(body))

	resp, body = ta.request(t, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"version":"1.2.3"}`, string(body))

	resp, body = ta.request(t, http.MethodGet, "/swagger-doc.json", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Contains(t, doc["paths"], "/todos/{id}")

	resp, _ = ta.request(t, http.MethodGet, "/swagger", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/swagger/index.html", resp.Header.Get("Location"))
}

func TestRoutes_HealthReportsRedisOutage(t *testing.T) {
	ta := newTestApp(t)
	ta.redis.SetError("LOADING")

	resp, body := ta.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, true, out["ok"])
	assert.Contains(t, out["redis"], "LOADING")
}

func TestTransportsShareServicesAndBus(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.request(t, http.MethodPost, "/api/users", map[string]any{"email": "ann@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var user struct{ ID string }
	require.NoError(t, json.Unmarshal(body, &user))

	resp, body = ta.request(t, http.MethodPost, "/api/todos", map[string]any{"title": "Buy milk", "userId": user.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = ta.request(t, http.MethodPost, "/graphql", graph.Request{Query: `{ todos { title user { email } } }`})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":{"todos":[{"title":"Buy milk","user":{"email":"ann@example.com"}}]}}`, string(body))

	resp, body = ta.request(t, http.MethodGet, "/debug/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var metrics struct {
		Bus        eventbus.Metrics `json:"bus"`
		Websockets int              `json:"websockets"`
	}
	require.NoError(t, json.Unmarshal(body, &metrics))
	assert.EqualValues(t, 2, metrics.Bus.PublishCount)
	assert.Zero(t, metrics.Websockets)
}

func TestTodoListCacheFollowsTagDelete(t *testing.T) {
	ta := newTestApp(t)

	_, body := ta.request(t, http.MethodPost, "/api/users", map[string]any{"email": "bo@example.com"})
	var user struct{ ID string }
	require.NoError(t, json.Unmarshal(body, &user))
	_, body = ta.request(t, http.MethodPost, "/api/tags", map[string]any{"name": "Errand"})
	var tag struct{ ID string }
	require.NoError(t, json.Unmarshal(body, &tag))
	resp, body := ta.request(t, http.MethodPost, "/api/todos", map[string]any{
		"title": "post", "userId": user.ID, "tagIds": []string{tag.ID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	_, body = ta.request(t, http.MethodGet, "/api/todos", nil)
	assert.Contains(t, string(body), tag.ID)
	assert.True(t, ta.redis.Exists("todohub:todo:list"))

	resp, _ = ta.request(t, http.MethodDelete, "/api/tags/"+tag.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, ta.redis.Exists("todohub:todo:list"))

	_, body = ta.request(t, http.MethodGet, "/api/todos", nil)
	assert.NotContains(t, string(body), tag.ID)
	assert.Contains(t, string(body), `"tagIds":[]`)

	resp, body = ta.request(t, http.MethodDelete, "/api/users/"+user.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestGraphQLWebsocketRoute(t *testing.T) {
	ta := newTestApp(t)

	dialer := websocket.Dialer{Subprotocols: []string{graph.Subprotocol}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(ta.server.URL, "http")+"/graphql", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "connection_init"}))
	var ack struct{ Type string }
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "connection_ack", ack.Type)

	require.Eventually(t, func() bool {
		_, body := ta.request(t, http.MethodGet, "/debug/events", nil)
		return strings.Contains(string(body), `"websockets":1`)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestMCPOverHTTP(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: ta.server.URL + "/mcp"}, nil)
	require.NoError(t, err)
	defer cs.Close()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "create-tag",
		Arguments: map[string]any{"name": "Work"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "Created tag with ID: ")

	_, body := ta.request(t, http.MethodGet, "/api/tags", nil)
	assert.Contains(t, string(body), `"name":"Work"`)
}

func TestClose(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{Events: config.EventsConfig{BufferSize: 4}}
	a, err := Assemble(cfg, logging.Discard(), dbtest.Open(t), nil)
	require.NoError(t, err)

	require.NoError(t, a.Close(context.Background()))
	assert.True(t, a.Bus().IsShutdown())
	assert.Error(t, a.db.PingContext(context.Background()))
}

func TestClose_ExpiredContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{Events: config.EventsConfig{BufferSize: 4}}
	a, err := Assemble(cfg, logging.Discard(), dbtest.Open(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = a.Close(ctx)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.True(t, a.Bus().IsShutdown())
	assert.Eventually(t, func() bool {
		return a.db.PingContext(context.Background()) != nil
	}, time.Second, 10*time.Millisecond, "the database is released even when Close stops waiting")
}

func TestNoWriteDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	slow := func(c *gin.Context) {
		time.Sleep(300 * time.Millisecond)
		c.String(http.StatusOK, "late")
	}
	r := gin.New()
	r.GET("/plain", slow)
	r.GET("/stream", noWriteDeadline(logging.Discard()), slow)

	srv := httptest.NewUnstartedServer(r)
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stream")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "late", string(body))

	resp, err = http.Get(srv.URL + "/plain")
	if err == nil {
		_, err = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
	}
	assert.Error(t, err, "the write timeout still applies to other routes")
}
