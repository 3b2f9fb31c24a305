package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// ListGraphsTool lists every graph in the store, optionally filtered by
// status.
type ListGraphsTool struct {
	store *taskgraph.Store
}

// NewListGraphsTool creates a new list_graphs tool instance.
func NewListGraphsTool(store *taskgraph.Store) *ListGraphsTool {
	return &ListGraphsTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *ListGraphsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_graphs",
		mcp.WithDescription("List all task graphs in creation order with a one-line progress summary each. Optionally filter by graph status."),
		mcp.WithString("status",
			mcp.Description("Only show graphs with this status"),
			mcp.Enum("pending", "running", "completed", "failed", "paused"),
		),
	)
}

// Handle processes a list_graphs request.
func (t *ListGraphsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := req.GetString("status", "")
	if filter != "" {
		if err := taskgraph.ValidateGraphStatus(taskgraph.GraphStatus(filter)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	graphs := t.store.List()

	var response strings.Builder
	response.WriteString("# Task Graphs\n\n")

	shown := 0
	for _, g := range graphs {
		if filter != "" && string(g.Status) != filter {
			continue
		}
		response.WriteString("- ")
		response.WriteString(graphSummaryLine(g))
		response.WriteString("\n")
		shown++
	}

	if shown == 0 {
		if filter != "" {
			response.WriteString("No graphs with status ")
			response.WriteString(filter)
			response.WriteString(".\n")
		} else {
			response.WriteString("No graphs yet. Call `create_graph` to plan a unit of work.\n")
		}
	}

	return mcp.NewToolResultText(response.String()), nil
}
