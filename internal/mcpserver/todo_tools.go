package mcpserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/birlikkoshan/todohub/internal/apperr"
	dom "github.com/birlikkoshan/todohub/internal/domain"
	"github.com/birlikkoshan/todohub/internal/dto"
	"github.com/birlikkoshan/todohub/internal/logging"
	"github.com/birlikkoshan/todohub/internal/service"
)

const createTodoDoc = `Creates a new todo item with all available fields.
Example usage:
- Create a simple todo: {"title": "Buy groceries", "userId": "123e4567-e89b-12d3-a456-426614174000"}
- Create a detailed todo: {"title": "Write report", "description": "Complete the quarterly report",
  "priority": "HIGH", "startDate": "2024-03-20T09:00:00Z", "dueDate": "2024-03-25T17:00:00Z",
  "userId": "123e4567-e89b-12d3-a456-426614174000", "tagIds": ["<tag uuid>"]}`

const updateTodoDoc = `Updates an existing todo item with new values. Omitted fields keep their value;
tagIds replaces the whole tag set.
Example usage:
- Mark as completed: {"id": "<todo uuid>", "completed": true}
- Retitle and reprioritize: {"id": "<todo uuid>", "title": "New title", "priority": "LOW"}`

type createTodoArgs struct {
	Title       string        `json:"title" jsonschema:"The title of the todo item"`
	Description *string       `json:"description,omitempty" jsonschema:"Optional detailed description of the todo"`
	Completed   *bool         `json:"completed,omitempty" jsonschema:"Whether the todo is completed (default false)"`
	Priority    *dom.Priority `json:"priority,omitempty" jsonschema:"Priority level: LOW, MEDIUM (default) or HIGH"`
	StartDate   *string       `json:"startDate,omitempty" jsonschema:"Optional start date, RFC3339 or YYYY-MM-DD"`
	DueDate     *string       `json:"dueDate,omitempty" jsonschema:"Optional due date, RFC3339 or YYYY-MM-DD"`
	UserID      string        `json:"userId" jsonschema:"The ID of the user who owns this todo"`
	TagIDs      []string      `json:"tagIds,omitempty" jsonschema:"Optional tag IDs to associate with the todo"`
}

type updateTodoArgs struct {
	ID          string        `json:"id" jsonschema:"The unique identifier of the todo item to update"`
	Title       *string       `json:"title,omitempty" jsonschema:"New title for the todo"`
	Description *string       `json:"description,omitempty" jsonschema:"New description for the todo"`
	Completed   *bool         `json:"completed,omitempty" jsonschema:"New completion status for the todo"`
	Priority    *dom.Priority `json:"priority,omitempty" jsonschema:"New priority level: LOW, MEDIUM or HIGH"`
	StartDate   *string       `json:"startDate,omitempty" jsonschema:"New start date, RFC3339 or YYYY-MM-DD"`
	DueDate     *string       `json:"dueDate,omitempty" jsonschema:"New due date, RFC3339 or YYYY-MM-DD"`
	UserID      *string       `json:"userId,omitempty" jsonschema:"New owner of the todo"`
	TagIDs      []string      `json:"tagIds,omitempty" jsonschema:"Replacement set of tag IDs"`
}

func parseDates(start, due *string) (*time.Time, *time.Time, error) {
	parse := func(field string, s *string) (*time.Time, error) {
		if s == nil {
			return nil, nil
		}
		t, err := dto.ParseDate(*s)
		if err != nil {
			return nil, apperr.InvalidInput("Invalid %s: %v", field, err)
		}
		return &t, nil
	}
	startAt, err := parse("startDate", start)
	if err != nil {
		return nil, nil, err
	}
	dueAt, err := parse("dueDate", due)
	if err != nil {
		return nil, nil, err
	}
	return startAt, dueAt, nil
}

func (s *Server) createTodo(ctx context.Context, log *logging.Logger, in createTodoArgs) *mcp.CallToolResult {
	start, due, err := parseDates(in.StartDate, in.DueDate)
	if err != nil {
		return failure(log, "create", "todo", err)
	}
	todo, err := s.svc.Todos.Create(ctx, service.CreateTodoInput{
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		Priority:    in.Priority,
		StartDate:   start,
		DueDate:     due,
		UserID:      in.UserID,
		TagIDs:      in.TagIDs,
	})
	if err != nil {
		return failure(log, "create", "todo", err)
	}
	return text("Created todo with ID: " + todo.ID)
}

func (s *Server) getTodo(ctx context.Context, log *logging.Logger, in idArgs) *mcp.CallToolResult {
	todo, err := s.svc.Todos.FindOne(ctx, in.ID)
	if err != nil {
		return failure(log, "fetch", "todo", err)
	}
	return jsonText(log, todo)
}

func (s *Server) listTodos(ctx context.Context, log *logging.Logger, _ noArgs) *mcp.CallToolResult {
	todos, err := s.svc.Todos.FindAll(ctx)
	if err != nil {
		return failure(log, "list", "todos", err)
	}
	log.Debug("Found todos", slog.Int("count", len(todos)))
	return jsonText(log, todos)
}

func (s *Server) updateTodo(ctx context.Context, log *logging.Logger, in updateTodoArgs) *mcp.CallToolResult {
	start, due, err := parseDates(in.StartDate, in.DueDate)
	if err != nil {
		return failure(log, "update", "todo", err)
	}
	todo, err := s.svc.Todos.Update(ctx, in.ID, service.UpdateTodoInput{
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		Priority:    in.Priority,
		StartDate:   start,
		DueDate:     due,
		UserID:      in.UserID,
		TagIDs:      in.TagIDs,
	})
	if err != nil {
		return failure(log, "update", "todo", err)
	}
	return text("Updated todo with ID: " + todo.ID)
}

func (s *Server) deleteTodo(ctx context.Context, log *logging.Logger, in idArgs) *mcp.CallToolResult {
	todo, err := s.svc.Todos.Remove(ctx, in.ID)
	if err != nil {
		return failure(log, "delete", "todo", err)
	}
	return text("Deleted todo with ID: " + todo.ID)
}
