package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// FailNodeTool records a node failure, consuming a retry or cascading skips
// through its dependents.
type FailNodeTool struct {
	store *taskgraph.Store
}

// NewFailNodeTool creates a new fail_node tool instance.
func NewFailNodeTool(store *taskgraph.Store) *FailNodeTool {
	return &FailNodeTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *FailNodeTool) Definition() mcp.Tool {
	return mcp.NewTool("fail_node",
		mcp.WithDescription("Report that a running node failed. While retries remain the node goes back to ready for another attempt; once the budget is exhausted it fails permanently and everything depending on it is skipped."),
		mcp.WithString("graph_id",
			mcp.Required(),
			mcp.Description("Graph the node belongs to"),
		),
		mcp.WithString("node_id",
			mcp.Required(),
			mcp.Description("Node that failed"),
		),
		mcp.WithString("error",
			mcp.Description("What went wrong, kept on the node for later attempts"),
		),
	)
}

// Handle processes a fail_node request.
func (t *FailNodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	nodeID := req.GetString("node_id", "")
	if strings.TrimSpace(graphID) == "" || strings.TrimSpace(nodeID) == "" {
		return mcp.NewToolResultError("graph_id and node_id are required"), nil
	}

	errMsg := req.GetString("error", "")

	res, err := t.store.FailNode(graphID, nodeID, errMsg)
	if err != nil {
		if expectedEngineFailure(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("failing node %s/%s: %w", graphID, nodeID, err)
	}

	var response strings.Builder
	if res.AlreadyDone {
		response.WriteString("# Already Finished\n\n")
		fmt.Fprintf(&response, "Node `%s` was already %s. Nothing changed.\n", nodeID, res.Node.Status)
		return mcp.NewToolResultText(response.String()), nil
	}

	if res.WillRetry {
		record("agent", "node.retried", graphID, nodeID, errMsg)

		response.WriteString("# Retry Scheduled\n\n")
		fmt.Fprintf(&response, "🟢 `%s` %s is back in the ready set.\n\n", res.Node.ID, res.Node.Name)
		fmt.Fprintf(&response, "- **Attempt:** %d of %d\n", res.Node.RetryCount+1, res.Node.MaxRetries+1)
		fmt.Fprintf(&response, "- **Retries left:** %d\n", res.RetriesLeft)
		if errMsg != "" {
			fmt.Fprintf(&response, "- **Error:** %s\n", errMsg)
		}
		response.WriteString("\n## Next Step\n\n")
		fmt.Fprintf(&response, "Address the error, then call `start_node` again for `%s`. Consider `memory_save` with kind 'blocker' so the cause is on record.\n", nodeID)
		return mcp.NewToolResultText(response.String()), nil
	}

	record("agent", "node.failed", graphID, nodeID, errMsg)

	response.WriteString("# Node Failed Permanently\n\n")
	fmt.Fprintf(&response, "❌ `%s` %s exhausted its %d retries.\n", res.Node.ID, res.Node.Name, res.Node.MaxRetries)
	if errMsg != "" {
		fmt.Fprintf(&response, "\n**Error:** %s\n", errMsg)
	}

	if len(res.Skipped) > 0 {
		response.WriteString("\n## Skipped Downstream\n\n")
		for _, n := range res.Skipped {
			fmt.Fprintf(&response, "- ⏭️ `%s` %s\n", n.ID, n.Name)
		}
	}

	response.WriteString("\n## Next Step\n\n")
	fmt.Fprintf(&response, "The graph is now %s. Independent branches may still have runnable work; call `get_next_nodes` with graph_id `%s`. To start over with a different plan, create a new graph.\n", res.GraphStatus, graphID)

	return mcp.NewToolResultText(response.String()), nil
}
