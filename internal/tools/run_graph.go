package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// RunGraphTool produces an execution plan: the remaining nodes batched into
// dependency-safe waves sized to a parallelism limit.
type RunGraphTool struct {
	store *taskgraph.Store
}

// NewRunGraphTool creates a new run_graph tool instance.
func NewRunGraphTool(store *taskgraph.Store) *RunGraphTool {
	return &RunGraphTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *RunGraphTool) Definition() mcp.Tool {
	return mcp.NewTool("run_graph",
		mcp.WithDescription("Build an execution plan for a graph: the remaining nodes grouped into batches where everything in a batch can run in parallel and batches execute in order. Already finished nodes are left out."),
		mcp.WithString("graph_id",
			mcp.Required(),
			mcp.Description("Graph to plan"),
		),
		mcp.WithNumber("max_parallel",
			mcp.Description("Cap on nodes per batch. Omit or 0 for no cap"),
		),
	)
}

// Handle processes a run_graph request.
func (t *RunGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if strings.TrimSpace(graphID) == "" {
		return mcp.NewToolResultError("graph_id is required"), nil
	}
	maxParallel := intArg(req, "max_parallel", 0)
	if maxParallel < 0 {
		return mcp.NewToolResultError("max_parallel cannot be negative"), nil
	}

	plan, err := t.store.BuildRunPlan(graphID, maxParallel)
	if err != nil {
		if expectedEngineFailure(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("planning graph %s: %w", graphID, err)
	}

	var response strings.Builder
	response.WriteString("# Execution Plan\n\n")

	if plan.RemainingNodes == 0 {
		response.WriteString("Nothing left to run. Every node is completed or skipped.\n\n")
		fmt.Fprintf(&response, "Call `analyze_graph` with graph_id `%s` for the final numbers.\n", graphID)
		return mcp.NewToolResultText(response.String()), nil
	}

	fmt.Fprintf(&response, "%d node(s) remaining in %d batch(es)", plan.RemainingNodes, len(plan.Batches))
	if plan.MaxParallel > 0 {
		fmt.Fprintf(&response, " (at most %d per batch)", plan.MaxParallel)
	}
	response.WriteString(":\n\n")

	for i, batch := range plan.Batches {
		ids := make([]string, len(batch.NodeIDs))
		for j, id := range batch.NodeIDs {
			ids[j] = fmt.Sprintf("`%s`", id)
		}
		fmt.Fprintf(&response, "%d. %s\n", i+1, strings.Join(ids, ", "))
	}

	response.WriteString("\n## Next Step\n\n")
	response.WriteString("Work batch by batch: `start_node` each node in the current batch (they are mutually independent), `complete_node` or `fail_node` as they finish, then move on. Re-plan after a permanent failure, since skips change the remaining set.\n")

	return mcp.NewToolResultText(response.String()), nil
}
