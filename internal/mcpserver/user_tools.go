package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/birlikkoshan/todohub/internal/logging"
	"github.com/birlikkoshan/todohub/internal/service"
)

const createUserDoc = `Creates a new user.
Example usage:
- Create a user: {"email": "ann@example.com", "name": "Ann"}`

type createUserArgs struct {
	Email string  `json:"email" jsonschema:"The email address of the user, unique across users"`
	Name  *string `json:"name,omitempty" jsonschema:"Optional display name"`
}

type updateUserArgs struct {
	ID    string  `json:"id" jsonschema:"The unique identifier of the user to update"`
	Email *string `json:"email,omitempty" jsonschema:"New email address"`
	Name  *string `json:"name,omitempty" jsonschema:"New display name"`
}

func (s *Server) createUser(ctx context.Context, log *logging.Logger, in createUserArgs) *mcp.CallToolResult {
	user, err := s.svc.Users.Create(ctx, service.CreateUserInput{Email: in.Email, Name: in.Name})
	if err != nil {
		return failure(log, "create", "user", err)
	}
	return text("Created user with ID: " + user.ID)
}

func (s *Server) getUser(ctx context.Context, log *logging.Logger, in idArgs) *mcp.CallToolResult {
	user, err := s.svc.Users.FindOne(ctx, in.ID)
	if err != nil {
		return failure(log, "fetch", "user", err)
	}
	return jsonText(log, user)
}

func (s *Server) listUsers(ctx context.Context, log *logging.Logger, _ noArgs) *mcp.CallToolResult {
	users, err := s.svc.Users.FindAll(ctx)
	if err != nil {
		return failure(log, "list", "users", err)
	}
	return jsonText(log, users)
}

func (s *Server) updateUser(ctx context.Context, log *logging.Logger, in updateUserArgs) *mcp.CallToolResult {
	user, err := s.svc.Users.Update(ctx, in.ID, service.UpdateUserInput{Email: in.Email, Name: in.Name})
	if err != nil {
		return failure(log, "update", "user", err)
	}
	return text("Updated user with ID: " + user.ID)
}

func (s *Server) deleteUser(ctx context.Context, log *logging.Logger, in idArgs) *mcp.CallToolResult {
	user, err := s.svc.Users.Remove(ctx, in.ID)
	if err != nil {
		return failure(log, "delete", "user", err)
	}
	return text("Deleted user with ID: " + user.ID)
}
