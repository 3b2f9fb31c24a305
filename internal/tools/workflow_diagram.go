package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
	"github.com/taskloom/taskloom/internal/workflowviz"
)

// WorkflowDiagramTool renders a Mermaid flowchart, either projected from a
// live task graph or assembled from inline steps and edges.
type WorkflowDiagramTool struct {
	store *taskgraph.Store
}

// NewWorkflowDiagramTool creates a new workflow_diagram tool instance.
func NewWorkflowDiagramTool(store *taskgraph.Store) *WorkflowDiagramTool {
	return &WorkflowDiagramTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *WorkflowDiagramTool) Definition() mcp.Tool {
	return mcp.NewTool("workflow_diagram",
		mcp.WithDescription("Render a Mermaid flowchart. Pass graph_id to diagram a live task graph with its current statuses, or describe a freeform workflow with steps and edges (cycles and decision branches allowed)."),
		mcp.WithString("graph_id",
			mcp.Description("Task graph to diagram. Takes precedence over inline steps"),
		),
		mcp.WithString("title",
			mcp.Description("Diagram title for inline workflows (default 'Workflow')"),
		),
		mcp.WithArray("steps",
			mcp.Description("Inline step objects: {id, label, kind: task|decision|join, status: pending|ready|active|done|failed|skipped}"),
		),
		mcp.WithArray("edges",
			mcp.Description("Inline edge objects: {from, to, condition}. Condition labels decision branches"),
		),
	)
}

// Handle processes a workflow_diagram request.
func (t *WorkflowDiagramTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphID := req.GetString("graph_id", "")
	if strings.TrimSpace(graphID) != "" {
		g, err := t.store.Get(graphID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("graph %s not found", graphID)), nil
		}
		return diagramResult(workflowviz.FromTaskGraph(g)), nil
	}

	steps := stepSpecsArg(req)
	if len(steps) == 0 {
		return mcp.NewToolResultError("'graph_id' or 'steps' is required"), nil
	}

	wf := workflowviz.New(req.GetString("title", "Workflow"))
	for _, s := range steps {
		if err := wf.AddStep(s); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid step: %v", err)), nil
		}
	}
	for _, e := range edgeSpecsArg(req) {
		if err := wf.AddEdge(e.From, e.To, e.Condition); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid edge: %v", err)), nil
		}
	}
	return diagramResult(wf), nil
}

func diagramResult(wf *workflowviz.Graph) *mcp.CallToolResult {
	var response strings.Builder
	fmt.Fprintf(&response, "# Workflow: %s\n\n", wf.Title)
	fmt.Fprintf(&response, "```mermaid\n%s```\n", wf.Mermaid())
	return mcp.NewToolResultText(response.String())
}

func stepSpecsArg(req mcp.CallToolRequest) []workflowviz.Step {
	raw, ok := req.GetArguments()["steps"].([]any)
	if !ok {
		return nil
	}
	steps := make([]workflowviz.Step, 0, len(raw))
	for _, e := range raw {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		steps = append(steps, workflowviz.Step{
			ID:     strArgOf(obj, "id"),
			Label:  strArgOf(obj, "label"),
			Kind:   workflowviz.StepKind(strArgOf(obj, "kind")),
			Status: workflowviz.Status(strArgOf(obj, "status")),
		})
	}
	return steps
}

func edgeSpecsArg(req mcp.CallToolRequest) []workflowviz.Edge {
	raw, ok := req.GetArguments()["edges"].([]any)
	if !ok {
		return nil
	}
	edges := make([]workflowviz.Edge, 0, len(raw))
	for _, e := range raw {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		edges = append(edges, workflowviz.Edge{
			From:      strArgOf(obj, "from"),
			To:        strArgOf(obj, "to"),
			Condition: strArgOf(obj, "condition"),
		})
	}
	return edges
}
