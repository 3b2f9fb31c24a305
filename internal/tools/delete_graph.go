package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// DeleteGraphTool removes a graph from the store.
type DeleteGraphTool struct {
	store *taskgraph.Store
}

// NewDeleteGraphTool creates a new delete_graph tool instance.
func NewDeleteGraphTool(store *taskgraph.Store) *DeleteGraphTool {
	return &DeleteGraphTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *DeleteGraphTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_graph",
		mcp.WithDescription("Delete a task graph and all its nodes. This cannot be undone; finished graphs worth keeping should be snapshotted or summarized into memory first."),
		mcp.WithString("graph_id",
			mcp.Required(),
			mcp.Description("Graph to delete"),
		),
	)
}

// Handle processes a delete_graph request.
func (t *DeleteGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if strings.TrimSpace(graphID) == "" {
		return mcp.NewToolResultError("graph_id is required"), nil
	}

	g, err := t.store.Get(graphID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph %s not found", graphID)), nil
	}

	if err := t.store.Delete(graphID); err != nil {
		if expectedEngineFailure(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("deleting graph %s: %w", graphID, err)
	}

	record("agent", "graph.deleted", graphID, "", g.Name)

	var response strings.Builder
	response.WriteString("# Graph Deleted\n\n")
	fmt.Fprintf(&response, "Removed **%s** (`%s`), %d nodes.\n", g.Name, g.ID, len(g.Nodes))

	return mcp.NewToolResultText(response.String()), nil
}
