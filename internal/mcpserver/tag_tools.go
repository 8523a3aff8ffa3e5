package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/birlikkoshan/todohub/internal/logging"
	"github.com/birlikkoshan/todohub/internal/service"
)

const createTagDoc = `Creates a new tag with a name and optional color.
Example usage:
- Create a simple tag: {"name": "Work"}
- Create a colored tag: {"name": "Important", "color": "#FF0000"}`

type createTagArgs struct {
	Name  string  `json:"name" jsonschema:"The name of the tag"`
	Color *string `json:"color,omitempty" jsonschema:"Optional hex color code for the tag (e.g. #FF0000)"`
}

type updateTagArgs struct {
	ID    string  `json:"id" jsonschema:"The unique identifier of the tag to update"`
	Name  *string `json:"name,omitempty" jsonschema:"New name for the tag"`
	Color *string `json:"color,omitempty" jsonschema:"New hex color code for the tag (e.g. #FF0000)"`
}

func (s *Server) createTag(ctx context.Context, log *logging.Logger, in createTagArgs) *mcp.CallToolResult {
	tag, err := s.svc.Tags.Create(ctx, service.CreateTagInput{Name: in.Name, Color: in.Color})
	if err != nil {
		return failure(log, "create", "tag", err)
	}
	return text("Created tag with ID: " + tag.ID)
}

func (s *Server) getTag(ctx context.Context, log *logging.Logger, in idArgs) *mcp.CallToolResult {
	tag, err := s.svc.Tags.FindOne(ctx, in.ID)
	if err != nil {
		return failure(log, "fetch", "tag", err)
	}
	return jsonText(log, tag)
}

func (s *Server) listTags(ctx context.Context, log *logging.Logger, _ noArgs) *mcp.CallToolResult {
	tags, err := s.svc.Tags.FindAll(ctx)
	if err != nil {
		return failure(log, "list", "tags", err)
	}
	return jsonText(log, tags)
}

func (s *Server) updateTag(ctx context.Context, log *logging.Logger, in updateTagArgs) *mcp.CallToolResult {
	tag, err := s.svc.Tags.Update(ctx, in.ID, service.UpdateTagInput{Name: in.Name, Color: in.Color})
	if err != nil {
		return failure(log, "update", "tag", err)
	}
	return text("Updated tag with ID: " + tag.ID)
}

func (s *Server) deleteTag(ctx context.Context, log *logging.Logger, in idArgs) *mcp.CallToolResult {
	tag, err := s.svc.Tags.Remove(ctx, in.ID)
	if err != nil {
		return failure(log, "delete", "tag", err)
	}
	return text("Deleted tag with ID: " + tag.ID)
}
