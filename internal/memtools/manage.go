package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/memory"
)

// DeleteTool handles the memory_delete MCP tool.
type DeleteTool struct {
	store *memory.Store
}

// NewDeleteTool creates a DeleteTool with the given note store.
func NewDeleteTool(store *memory.Store) *DeleteTool {
	return &DeleteTool{store: store}
}

// Definition returns the MCP tool definition for memory_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_delete",
		mcp.WithDescription(
			"Delete a note by ID. Soft-delete by default; set hard_delete=true to remove it permanently.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Note ID to delete"),
		),
		mcp.WithBoolean("hard_delete",
			mcp.Description("If true, permanently deletes the note"),
		),
	)
}

// Handle processes the memory_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	hardDelete := boolArg(req, "hard_delete", false)
	if err := t.store.DeleteNote(int64(id), hardDelete); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete note: %v", err)), nil
	}

	action := "soft-deleted"
	if hardDelete {
		action = "permanently deleted"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Note %d %s", id, action)), nil
}
