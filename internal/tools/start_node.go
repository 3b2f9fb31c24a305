package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// StartNodeTool transitions a ready node to running.
type StartNodeTool struct {
	store *taskgraph.Store
}

// NewStartNodeTool creates a new start_node tool instance.
func NewStartNodeTool(store *taskgraph.Store) *StartNodeTool {
	return &StartNodeTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *StartNodeTool) Definition() mcp.Tool {
	return mcp.NewTool("start_node",
		mcp.WithDescription("Mark a ready node as running. Only ready nodes can start; the response includes the node's description, suggested tools, files, and constraints so work can begin immediately."),
		mcp.WithString("graph_id",
			mcp.Required(),
			mcp.Description("Graph the node belongs to"),
		),
		mcp.WithString("node_id",
			mcp.Required(),
			mcp.Description("Node to start"),
		),
	)
}

// Handle processes a start_node request.
func (t *StartNodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	nodeID := req.GetString("node_id", "")
	if strings.TrimSpace(graphID) == "" || strings.TrimSpace(nodeID) == "" {
		return mcp.NewToolResultError("graph_id and node_id are required"), nil
	}

	n, err := t.store.StartNode(graphID, nodeID)
	if err != nil {
		if expectedEngineFailure(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("starting node %s/%s: %w", graphID, nodeID, err)
	}

	record("agent", "node.started", graphID, nodeID, n.Name)

	var response strings.Builder
	response.WriteString("# Node Started\n\n")
	response.WriteString(nodeDetail(n))

	response.WriteString("\n## Next Step\n\n")
	fmt.Fprintf(&response, "Do the work, then call `complete_node` with the outcome and tokens used, or `fail_node` if it cannot be done. Use `memory_save` to capture decisions made along the way.\n")

	return mcp.NewToolResultText(response.String()), nil
}
