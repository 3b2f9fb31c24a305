package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// GetNextNodesTool reports which nodes of a graph are ready to run.
type GetNextNodesTool struct {
	store *taskgraph.Store
}

// NewGetNextNodesTool creates a new get_next_nodes tool instance.
func NewGetNextNodesTool(store *taskgraph.Store) *GetNextNodesTool {
	return &GetNextNodesTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *GetNextNodesTool) Definition() mcp.Tool {
	return mcp.NewTool("get_next_nodes",
		mcp.WithDescription("List the nodes that are ready to run right now: every dependency completed, ordered by priority. Returns an empty list when nothing is ready (all running, blocked, or the graph is finished)."),
		mcp.WithString("graph_id",
			mcp.Required(),
			mcp.Description("Graph to inspect"),
		),
	)
}

// Handle processes a get_next_nodes request.
func (t *GetNextNodesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if strings.TrimSpace(graphID) == "" {
		return mcp.NewToolResultError("graph_id is required"), nil
	}

	if _, err := t.store.Get(graphID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph %s not found", graphID)), nil
	}

	ready := t.store.NextNodes(graphID)

	var response strings.Builder
	response.WriteString("# Ready Nodes\n\n")
	if len(ready) == 0 {
		response.WriteString("Nothing is ready. Nodes are either running, blocked on dependencies, or the graph is finished.\n\n")
		fmt.Fprintf(&response, "Call `graph_status` with graph_id `%s` to see where things stand.\n", graphID)
		return mcp.NewToolResultText(response.String()), nil
	}

	fmt.Fprintf(&response, "%d node(s) can start now, highest priority first:\n\n", len(ready))
	for _, n := range ready {
		response.WriteString("- ")
		response.WriteString(nodeLine(n))
		response.WriteString("\n")
	}

	response.WriteString("\n## Next Step\n\n")
	fmt.Fprintf(&response, "Call `start_node` with graph_id `%s` and one of the node ids above. Nodes in the same batch are independent and can run in parallel.\n", graphID)

	return mcp.NewToolResultText(response.String()), nil
}
