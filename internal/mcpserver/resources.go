package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const jsonMIME = "application/json"

// resourceDef exposes one entity type as entity://<entity>/{id} and
// entity://<plural>.
type resourceDef struct {
	entity string
	plural string
	title  string
	one    func(ctx context.Context, id string) (any, error)
	all    func(ctx context.Context) (any, error)
}

func (s *Server) resourceTable() []resourceDef {
	return []resourceDef{
		{
			entity: "todo", plural: "todos", title: "Todo",
			one: func(ctx context.Context, id string) (any, error) { return s.svc.Todos.FindOne(ctx, id) },
			all: func(ctx context.Context) (any, error) { return s.svc.Todos.FindAll(ctx) },
		},
		{
			entity: "tag", plural: "tags", title: "Tag",
			one: func(ctx context.Context, id string) (any, error) { return s.svc.Tags.FindOne(ctx, id) },
			all: func(ctx context.Context) (any, error) { return s.svc.Tags.FindAll(ctx) },
		},
		{
			entity: "user", plural: "users", title: "User",
			one: func(ctx context.Context, id string) (any, error) { return s.svc.Users.FindOne(ctx, id) },
			all: func(ctx context.Context) (any, error) { return s.svc.Users.FindAll(ctx) },
		},
	}
}

// registerResources adds every resource and template and returns how many
// were registered.
func (s *Server) registerResources() int {
	n := 0
	for _, def := range s.resourceTable() {
		prefix := "entity://" + def.entity + "/"

		s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
			Name:        def.title,
			URITemplate: prefix + "{id}",
			Description: "A single " + def.entity + " in JSON format",
			MIMEType:    jsonMIME,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			uri := req.Params.URI
			v, err := def.one(ctx, strings.TrimPrefix(uri, prefix))
			return s.resourceResult(uri, v, err), nil
		})

		s.mcpServer.AddResource(&mcp.Resource{
			Name:        def.title + "s",
			URI:         "entity://" + def.plural,
			Description: "All " + def.plural + " in JSON format",
			MIMEType:    jsonMIME,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			v, err := def.all(ctx)
			return s.resourceResult(req.Params.URI, v, err), nil
		})
		n += 2
	}
	return n
}

// resourceResult renders v, or {"error": message} when err is set.
func (s *Server) resourceResult(uri string, v any, err error) *mcp.ReadResourceResult {
	if err != nil {
		s.logger.Warn("Failed to read resource", slog.String("uri", uri), slog.Any("error", err))
		v = map[string]string{"error": err.Error()}
	}
	data, merr := json.Marshal(v)
	if merr != nil {
		data, _ = json.Marshal(map[string]string{"error": merr.Error()})
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: jsonMIME, Text: string(data)}},
	}
}
