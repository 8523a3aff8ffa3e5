package graph

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birlikkoshan/todohub/internal/db/dbtest"
	"github.com/birlikkoshan/todohub/internal/eventbus"
	"github.com/birlikkoshan/todohub/internal/logging"
	"github.com/birlikkoshan/todohub/internal/repo"
	"github.com/birlikkoshan/todohub/internal/service"
)

type env struct {
	bus     *eventbus.Bus
	todos   *service.TodoService
	tags    *service.TagService
	users   *service.UserService
	handler *Handler
	server  *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := dbtest.Open(t)
	bus := eventbus.New()
	t.Cleanup(bus.Shutdown)
	log := logging.Discard()

	e := &env{
		bus:   bus,
		todos: service.NewTodoService(repo.NewSQLTodoRepo(conn.DB), bus, log, nil),
		tags:  service.NewTagService(repo.NewSQLTagRepo(conn.DB), bus, log, nil),
		users: service.NewUserService(repo.NewSQLUserRepo(conn.DB), bus, log, nil),
	}
	schema, err := NewSchema(&Resolver{Todos: e.todos, Tags: e.tags, Users: e.users, Events: bus})
	require.NoError(t, err)

	e.handler = NewHandler(schema, log)
	e.server = httptest.NewServer(e.handler)
	t.Cleanup(func() {
		e.handler.WS().Close()
		e.server.Close()
	})
	return e
}

type gqlError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions"`
}

type gqlResponse struct {
	Data   map[string]interface{} `json:"data"`
	Errors []gqlError             `json:"errors"`
}

func (e *env) post(t *testing.T, query string, vars map[string]interface{}) gqlResponse {
	t.Helper()
	body, err := json.Marshal(Request{Query: query, Variables: vars})
	require.NoError(t, err)

	resp, err := http.Post(e.server.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func field(t *testing.T, m map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	v, ok := m[key].(map[string]interface{})
	require.True(t, ok, "%s is not an object: %v", key, m[key])
	return v
}

const createTodoMutation = `
mutation($input: CreateTodoInput!) {
  createTodo(createTodoInput: $input) {
    id title completed priority dueDate userId tagIds
    user { email }
    tags { name }
  }
}`

func TestSchema_TodoLifecycle(t *testing.T) {
	e := newEnv(t)

	res := e.post(t, `mutation { createUser(createUserInput: {email: "ann@example.com", name: "Ann"}) { id email } }`, nil)
	require.Empty(t, res.Errors)
	userID := field(t, res.Data, "createUser")["id"].(string)

	res = e.post(t, `mutation { createTag(createTagInput: {name: "Work", color: "#00FF00"}) { id name color } }`, nil)
	require.Empty(t, res.Errors)
	tag := field(t, res.Data, "createTag")
	assert.Equal(t, "#00FF00", tag["color"])

	res = e.post(t, createTodoMutation, map[string]interface{}{
		"input": map[string]interface{}{
			"title":    "Ship release",
			"priority": "HIGH",
			"dueDate":  "2030-01-02T15:04:05Z",
			"userId":   userID,
			"tagIds":   []string{tag["id"].(string)},
		},
	})
	require.Empty(t, res.Errors)
	todo := field(t, res.Data, "createTodo")
	assert.Equal(t, "Ship release", todo["title"])
	assert.Equal(t, false, todo["completed"])
	assert.Equal(t, "HIGH", todo["priority"])
	assert.Equal(t, "2030-01-02T15:04:05Z", todo["dueDate"])
	assert.Equal(t, "ann@example.com", field(t, todo, "user")["email"])
	assert.Equal(t, []interface{}{map[string]interface{}{"name": "Work"}}, todo["tags"])
	todoID := todo["id"].(string)

	res = e.post(t, `mutation($id: ID!) { updateTodo(id: $id, updateTodoInput: {completed: true, tagIds: []}) { completed tagIds } }`,
		map[string]interface{}{"id": todoID})
	require.Empty(t, res.Errors)
	updated := field(t, res.Data, "updateTodo")
	assert.Equal(t, true, updated["completed"])
	assert.Equal(t, []interface{}{}, updated["tagIds"])

	res = e.post(t, `{ users { email todos { title } } tags { name todos { id } } }`, nil)
	require.Empty(t, res.Errors)
	users := res.Data["users"].([]interface{})
	require.Len(t, users, 1)
	assert.Len(t, users[0].(map[string]interface{})["todos"], 1)
	tags := res.Data["tags"].([]interface{})
	assert.Empty(t, tags[0].(map[string]interface{})["todos"])

	res = e.post(t, `mutation($id: ID!) { deleteTodo(id: $id) { id title } }`, map[string]interface{}{"id": todoID})
	require.Empty(t, res.Errors)
	assert.Equal(t, "Ship release", field(t, res.Data, "deleteTodo")["title"])

	res = e.post(t, `query($id: ID!) { todo(id: $id) { id } }`, map[string]interface{}{"id": todoID})
	require.Len(t, res.Errors, 1)
	assert.Nil(t, res.Data["todo"])
	assert.Equal(t, "NOT_FOUND", res.Errors[0].Extensions["code"])
	assert.Equal(t, "Todo with ID "+todoID+" not found", res.Errors[0].Message)
}

func TestSchema_Errors(t *testing.T) {
	e := newEnv(t)

	res := e.post(t, createTodoMutation, map[string]interface{}{
		"input": map[string]interface{}{"title": "orphan", "userId": uuid.NewString()},
	})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "INVALID_RELATION", res.Errors[0].Extensions["code"])

	res = e.post(t, createTodoMutation, map[string]interface{}{
		"input": map[string]interface{}{"title": "bad", "userId": "not-a-uuid"},
	})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "INVALID_INPUT", res.Errors[0].Extensions["code"])

	res = e.post(t, `mutation { createTag(createTagInput: {name: "Dup"}) { id } }`, nil)
	require.Empty(t, res.Errors)
	res = e.post(t, `mutation { createTag(createTagInput: {name: "Dup"}) { id } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "CONFLICT", res.Errors[0].Extensions["code"])

	res = e.post(t, `{ todos { nope } }`, nil)
	require.NotEmpty(t, res.Errors)
	assert.Nil(t, res.Data)
}

func TestHandler_HTTP(t *testing.T) {
	e := newEnv(t)

	get := func(q url.Values) *http.Response {
		resp, err := http.Get(e.server.URL + "?" + q.Encode())
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := get(url.Values{"query": {`{ todos { id } }`}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []interface{}{}, out.Data["todos"])

	resp = get(url.Values{"query": {`mutation { removeTag(id: "x") { id } }`}})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = get(url.Values{"query": {`subscription { todoAdded { id } }`}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(url.Values{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	post, err := http.Post(e.server.URL, "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer post.Body.Close()
	assert.Equal(t, http.StatusBadRequest, post.StatusCode)

	req, err := http.NewRequest(http.MethodPut, e.server.URL, nil)
	require.NoError(t, err)
	put, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer put.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, put.StatusCode)
}

func TestRequest_Operation(t *testing.T) {
	tests := []struct {
		req  Request
		want string
	}{
		{Request{Query: `{ todos { id } }`}, "query"},
		{Request{Query: `mutation { deleteTodo(id: "1") { id } }`}, "mutation"},
		{Request{Query: `subscription S { todoAdded { id } }`}, "subscription"},
		{Request{Query: `query A { todos { id } } subscription B { todoAdded { id } }`, OperationName: "B"}, "subscription"},
		{Request{Query: `query A { todos { id } }`, OperationName: "C"}, ""},
		{Request{Query: `{`}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.req.operation(), tt.req.Query)
	}
}
