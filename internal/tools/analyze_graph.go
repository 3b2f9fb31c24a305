package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// AnalyzeGraphTool computes the structural analytics of a graph: critical
// path, parallel levels, topological order, progress, and token accounting.
type AnalyzeGraphTool struct {
	store *taskgraph.Store
}

// NewAnalyzeGraphTool creates a new analyze_graph tool instance.
func NewAnalyzeGraphTool(store *taskgraph.Store) *AnalyzeGraphTool {
	return &AnalyzeGraphTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *AnalyzeGraphTool) Definition() mcp.Tool {
	return mcp.NewTool("analyze_graph",
		mcp.WithDescription("Analyze a graph's structure and progress: the critical path (the dependency chain with the highest total token cost), parallel execution levels, deterministic topological order, completion percentage, and tokens used versus remaining."),
		mcp.WithString("graph_id",
			mcp.Required(),
			mcp.Description("Graph to analyze"),
		),
	)
}

// Handle processes an analyze_graph request.
func (t *AnalyzeGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if strings.TrimSpace(graphID) == "" {
		return mcp.NewToolResultError("graph_id is required"), nil
	}

	g, err := t.store.Get(graphID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph %s not found", graphID)), nil
	}

	a, err := t.store.Analyze(graphID)
	if err != nil {
		// A cycle in a stored graph means construction validation was
		// bypassed somewhere. Surface it loudly rather than papering over.
		if errors.Is(err, taskgraph.ErrCycle) {
			log.Printf("WARNING: stored graph %s fails analysis: %v", graphID, err)
			return nil, err
		}
		if expectedEngineFailure(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("analyzing graph %s: %w", graphID, err)
	}

	var response strings.Builder
	response.WriteString("# Graph Analysis\n\n")
	fmt.Fprintf(&response, "%s **%s** (`%s`): %s\n\n", graphMarker[g.Status], g.Name, g.ID, g.Status)
	response.WriteString(analysisSection(a))

	response.WriteString("\n**Topological order:** ")
	response.WriteString(strings.Join(a.TopologicalOrder, " -> "))
	response.WriteString("\n")

	return mcp.NewToolResultText(response.String()), nil
}
