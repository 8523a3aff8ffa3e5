// Package mcpserver exposes the services as Model Context Protocol tools and
// resources.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/birlikkoshan/todohub/internal/logging"
	"github.com/birlikkoshan/todohub/internal/service"
)

// Services are the operations the tools and resources call into.
type Services struct {
	Todos *service.TodoService
	Tags  *service.TagService
	Users *service.UserService
}

// Options configures the server instance.
type Options struct {
	Name    string
	Version string
	Logger  *logging.Logger
}

// Server wraps an mcp.Server with every todohub tool and resource registered.
type Server struct {
	mcpServer *mcp.Server
	svc       Services
	logger    *logging.Logger
	tools     []toolDef
}

// New creates the MCP server and registers the tool and resource tables.
func New(svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("info")
	}
	if opts.Name == "" {
		opts.Name = "todohub"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	logger := opts.Logger.WithComponent("mcp")

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, &mcp.ServerOptions{
			Instructions: "Manage todos, tags and users. Dates are RFC3339 or YYYY-MM-DD.",
			Logger:       logger.Logger,
		}),
		svc:    svc,
		logger: logger,
	}
	s.tools = s.toolTable()

	names := make([]string, 0, len(s.tools))
	for _, t := range s.tools {
		t.register(s.mcpServer)
		names = append(names, t.tool.Name)
	}
	resources := s.registerResources()

	s.logger.Debug("Registered MCP capabilities",
		slog.Int("tools", len(names)),
		slog.Any("names", names),
		slog.Int("resources", resources),
	)
	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.mcpServer }

// ToolNames returns the registered tool names in registration order.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for _, t := range s.tools {
		names = append(names, t.tool.Name)
	}
	return names
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, &mcp.StreamableHTTPOptions{Logger: s.logger.Logger})
}

// ServeStdio runs the server over stdin/stdout until the client disconnects
// or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve connects the server to transport and waits for either the session
// to complete or the context to be cancelled.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("Starting MCP server transport",
		slog.String("transport", fmt.Sprintf("%T", transport)),
	)

	session, err := s.mcpServer.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("failed to connect MCP server: %w", err)
	}

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- session.Wait()
	}()

	select {
	case err := <-sessionDone:
		s.logger.Info("MCP session finished")
		return err
	case <-ctx.Done():
		s.logger.Info("MCP server shutting down")
		_ = session.Close()
		return nil
	}
}
