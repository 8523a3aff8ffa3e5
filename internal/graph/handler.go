package graph

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"

	"github.com/birlikkoshan/todohub/internal/logging"
)

// Request is a GraphQL request as sent over HTTP or inside a websocket
// subscribe message.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

func (r Request) params(ctx context.Context, schema graphql.Schema) graphql.Params {
	return graphql.Params{
		Schema:         schema,
		RequestString:  r.Query,
		VariableValues: r.Variables,
		OperationName:  r.OperationName,
		Context:        ctx,
	}
}

// operation returns the type of the operation the request will run, or ""
// when the document does not parse or names an unknown operation.
func (r Request) operation() string {
	doc, err := parser.Parse(parser.ParseParams{Source: r.Query})
	if err != nil {
		return ""
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if r.OperationName == "" || (op.Name != nil && op.Name.Value == r.OperationName) {
			return op.Operation
		}
	}
	return ""
}

// Handler serves GraphQL over HTTP and upgrades websocket requests to the
// graphql-transport-ws protocol.
type Handler struct {
	schema graphql.Schema
	log    *logging.Logger
	ws     *WSHandler
}

// NewHandler returns a Handler for schema.
func NewHandler(schema graphql.Schema, log *logging.Logger) *Handler {
	log = log.WithComponent("graphql")
	return &Handler{
		schema: schema,
		log:    log,
		ws:     NewWSHandler(schema, log),
	}
}

// WS returns the websocket transport.
func (h *Handler) WS() *WSHandler { return h.ws }

// ServeHTTP executes queries sent as POST JSON or GET query parameters.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.ws.ServeHTTP(w, r)
		return
	}

	var req Request
	switch r.Method {
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResult("Invalid request body: "+err.Error()))
			return
		}
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResult("Invalid variables: "+err.Error()))
				return
			}
		}
		if req.operation() == ast.OperationTypeMutation {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorResult("Mutations must be sent with POST"))
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResult("Method not allowed"))
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResult("Must provide query string"))
		return
	}
	if req.operation() == ast.OperationTypeSubscription {
		writeJSON(w, http.StatusBadRequest, errorResult("Subscriptions require a websocket connection"))
		return
	}

	res := graphql.Do(req.params(r.Context(), h.schema))
	if res.HasErrors() {
		h.log.Debug("GraphQL request returned errors", "operation", req.OperationName, "errors", len(res.Errors))
	}
	writeJSON(w, http.StatusOK, res)
}

func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{
		"errors": []map[string]string{{"message": msg}},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
