package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// CompleteNodeTool records a node's successful outcome and reports what the
// completion unblocked.
type CompleteNodeTool struct {
	store *taskgraph.Store
}

// NewCompleteNodeTool creates a new complete_node tool instance.
func NewCompleteNodeTool(store *taskgraph.Store) *CompleteNodeTool {
	return &CompleteNodeTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *CompleteNodeTool) Definition() mcp.Tool {
	return mcp.NewTool("complete_node",
		mcp.WithDescription("Mark a node as completed, record its result and token usage, and unblock dependents whose dependencies are now all satisfied. Completing an already finished node is a harmless no-op."),
		mcp.WithString("graph_id",
			mcp.Required(),
			mcp.Description("Graph the node belongs to"),
		),
		mcp.WithString("node_id",
			mcp.Required(),
			mcp.Description("Node to complete"),
		),
		mcp.WithString("result",
			mcp.Description("Short summary of what was produced"),
		),
		mcp.WithNumber("tokens_used",
			mcp.Description("Tokens actually spent on this node"),
		),
	)
}

// Handle processes a complete_node request.
func (t *CompleteNodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	nodeID := req.GetString("node_id", "")
	if strings.TrimSpace(graphID) == "" || strings.TrimSpace(nodeID) == "" {
		return mcp.NewToolResultError("graph_id and node_id are required"), nil
	}

	result := req.GetString("result", "")
	tokensUsed := intArg(req, "tokens_used", 0)

	res, err := t.store.CompleteNode(graphID, nodeID, result, tokensUsed)
	if err != nil {
		if expectedEngineFailure(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("completing node %s/%s: %w", graphID, nodeID, err)
	}

	var response strings.Builder
	if res.AlreadyDone {
		response.WriteString("# Already Finished\n\n")
		fmt.Fprintf(&response, "Node `%s` was already %s. Nothing changed.\n", nodeID, res.Node.Status)
		return mcp.NewToolResultText(response.String()), nil
	}

	record("agent", "node.completed", graphID, nodeID, fmt.Sprintf("%s (%d tokens)", res.Node.Name, tokensUsed))

	response.WriteString("# Node Completed\n\n")
	fmt.Fprintf(&response, "✅ `%s` %s", res.Node.ID, res.Node.Name)
	if tokensUsed > 0 {
		fmt.Fprintf(&response, " (%d tokens)", tokensUsed)
	}
	response.WriteString("\n\n")

	if len(res.NewlyReady) > 0 {
		response.WriteString("## Unblocked\n\n")
		for _, n := range res.NewlyReady {
			response.WriteString("- ")
			response.WriteString(nodeLine(n))
			response.WriteString("\n")
		}
		response.WriteString("\n## Next Step\n\n")
		fmt.Fprintf(&response, "Call `start_node` on one of the unblocked nodes, or `get_next_nodes` for the full ready set.\n")
		return mcp.NewToolResultText(response.String()), nil
	}

	if res.GraphStatus == taskgraph.GraphCompleted {
		response.WriteString("🎉 **The graph is complete.** Every node finished.\n\n")
		fmt.Fprintf(&response, "Call `analyze_graph` with graph_id `%s` for the final cost breakdown.\n", graphID)
		return mcp.NewToolResultText(response.String()), nil
	}

	response.WriteString("No new nodes were unblocked.\n\n")
	fmt.Fprintf(&response, "Call `get_next_nodes` with graph_id `%s` to see what is still ready, or `graph_status` for the full picture.\n", graphID)

	return mcp.NewToolResultText(response.String()), nil
}
