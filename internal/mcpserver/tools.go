package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/birlikkoshan/todohub/internal/logging"
)

// toolDef pairs a tool description with the function that registers its
// typed handler.
type toolDef struct {
	tool     *mcp.Tool
	register func(*mcp.Server)
}

// idArgs is the input of every get and delete tool.
type idArgs struct {
	ID string `json:"id" jsonschema:"The unique identifier (UUID) of the record"`
}

type noArgs struct{}

func (s *Server) toolTable() []toolDef {
	return []toolDef{
		newTool(s, "create-todo", createTodoDoc, s.createTodo),
		newTool(s, "get-todo", "Retrieves a todo item by its unique identifier.", s.getTodo),
		newTool(s, "list-todos", "Retrieves all todo items in the system.", s.listTodos),
		newTool(s, "update-todo", updateTodoDoc, s.updateTodo),
		newTool(s, "delete-todo", "Deletes a todo item by its unique identifier.", s.deleteTodo),

		newTool(s, "create-tag", createTagDoc, s.createTag),
		newTool(s, "get-tag", "Retrieves a tag by its unique identifier.", s.getTag),
		newTool(s, "list-tags", "Retrieves all tags in the system.", s.listTags),
		newTool(s, "update-tag", "Updates the name or color of an existing tag.", s.updateTag),
		newTool(s, "delete-tag", "Deletes a tag by its unique identifier. Todos keep existing without it.", s.deleteTag),

		newTool(s, "create-user", createUserDoc, s.createUser),
		newTool(s, "get-user", "Retrieves a user by their unique identifier.", s.getUser),
		newTool(s, "list-users", "Retrieves all users in the system.", s.listUsers),
		newTool(s, "update-user", "Updates the email or name of an existing user.", s.updateUser),
		newTool(s, "delete-user", "Deletes a user and every todo they own.", s.deleteUser),
	}
}

type toolFunc[In any] func(ctx context.Context, log *logging.Logger, in In) *mcp.CallToolResult

func newTool[In any](s *Server, name, description string, run toolFunc[In]) toolDef {
	tool := &mcp.Tool{Name: name, Description: description}
	return toolDef{
		tool: tool,
		register: func(srv *mcp.Server) {
			mcp.AddTool(srv, tool, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
				log := s.logger.WithOperation(name)
				if req.Session != nil {
					log = log.WithSession(req.Session.ID())
				}
				return run(ctx, log, in), nil, nil
			})
		},
	}
}

func text(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: msg}}}
}

// jsonText renders v as indented JSON.
func jsonText(log *logging.Logger, v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return failure(log, "encode", "result", err)
	}
	return text(string(data))
}

// failure reports err as a tool error, e.g. "Failed to create tag: Duplicate entry".
func failure(log *logging.Logger, verb, entity string, err error) *mcp.CallToolResult {
	msg := "Failed to " + verb + " " + entity + ": " + err.Error()
	log.Warn(msg)
	res := text(msg)
	res.IsError = true
	return res
}
