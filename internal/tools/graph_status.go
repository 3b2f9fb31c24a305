package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// GraphStatusTool reports the state of one graph, or engine-wide aggregate
// statistics when no graph is named.
type GraphStatusTool struct {
	store *taskgraph.Store
}

// NewGraphStatusTool creates a new graph_status tool instance.
func NewGraphStatusTool(store *taskgraph.Store) *GraphStatusTool {
	return &GraphStatusTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *GraphStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_status",
		mcp.WithDescription("Show the full state of one graph (every node with status, dependencies, and token usage) or, with no graph_id, aggregate statistics across all graphs."),
		mcp.WithString("graph_id",
			mcp.Description("Graph to inspect. Omit for engine-wide statistics"),
		),
	)
}

// Handle processes a graph_status request.
func (t *GraphStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if strings.TrimSpace(graphID) == "" {
		return t.engineStats()
	}

	g, err := t.store.Get(graphID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph %s not found", graphID)), nil
	}

	var response strings.Builder
	response.WriteString("# Graph Status\n\n")
	fmt.Fprintf(&response, "%s **%s** (`%s`)\n\n", graphMarker[g.Status], g.Name, g.ID)
	fmt.Fprintf(&response, "- **Status:** %s\n", g.Status)
	if g.Description != "" {
		fmt.Fprintf(&response, "- **Description:** %s\n", g.Description)
	}
	if g.CurrentPhase != "" {
		fmt.Fprintf(&response, "- **Current phase:** %s\n", g.CurrentPhase)
	}
	fmt.Fprintf(&response, "- **Tokens:** %d used of ~%d estimated\n", g.ActualTokensUsed, g.TotalEstimatedTokens)
	fmt.Fprintf(&response, "- **Created:** %s\n", g.CreatedAt)
	if g.StartedAt != "" {
		fmt.Fprintf(&response, "- **Started:** %s\n", g.StartedAt)
	}
	if g.CompletedAt != "" {
		fmt.Fprintf(&response, "- **Completed:** %s\n", g.CompletedAt)
	}

	response.WriteString("\n## Nodes\n\n")
	for _, n := range g.NodesInOrder() {
		response.WriteString("- ")
		response.WriteString(nodeLine(n))
		if n.Error != "" {
			fmt.Fprintf(&response, " [error: %s]", n.Error)
		}
		response.WriteString("\n")
	}

	return mcp.NewToolResultText(response.String()), nil
}

// engineStats renders the cross-graph aggregate view.
func (t *GraphStatusTool) engineStats() (*mcp.CallToolResult, error) {
	stats := t.store.Stats()

	var response strings.Builder
	response.WriteString("# Engine Statistics\n\n")
	fmt.Fprintf(&response, "- **Graphs:** %d\n", stats.Graphs)
	fmt.Fprintf(&response, "- **Nodes:** %d\n", stats.Nodes)
	fmt.Fprintf(&response, "- **Tokens:** %d used of ~%d estimated\n\n", stats.ActualTokens, stats.EstimatedTokens)

	if stats.Graphs == 0 {
		response.WriteString("No graphs yet. Call `create_graph` to plan a unit of work.\n")
		return mcp.NewToolResultText(response.String()), nil
	}

	response.WriteString("## Graphs by Status\n\n")
	for _, st := range []taskgraph.GraphStatus{
		taskgraph.GraphPending, taskgraph.GraphRunning, taskgraph.GraphCompleted,
		taskgraph.GraphFailed, taskgraph.GraphPaused,
	} {
		if c := stats.GraphsByStatus[st]; c > 0 {
			fmt.Fprintf(&response, "- %s %s: %d\n", graphMarker[st], st, c)
		}
	}

	response.WriteString("\n## Nodes by Status\n\n")
	for _, st := range []taskgraph.NodeStatus{
		taskgraph.NodePending, taskgraph.NodeReady, taskgraph.NodeRunning,
		taskgraph.NodeCompleted, taskgraph.NodeFailed, taskgraph.NodeSkipped,
	} {
		if c := stats.NodesByStatus[st]; c > 0 {
			fmt.Fprintf(&response, "- %s %s: %d\n", statusMarker[st], st, c)
		}
	}

	return mcp.NewToolResultText(response.String()), nil
}
