package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// CreateGraphTool builds a new task graph from an archetype template or an
// explicit node list.
type CreateGraphTool struct {
	store *taskgraph.Store
}

// NewCreateGraphTool creates a new create_graph tool instance.
func NewCreateGraphTool(store *taskgraph.Store) *CreateGraphTool {
	return &CreateGraphTool{store: store}
}

// Definition returns the MCP tool definition.
func (t *CreateGraphTool) Definition() mcp.Tool {
	return mcp.NewTool("create_graph",
		mcp.WithDescription("Create a task graph for a unit of work. Built-in task types expand into a phased dependency graph (analysis, planning, implementation, review, testing); task_type 'custom' takes an explicit node list. Returns the graph with its critical path and parallel execution levels."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Short name for the work, e.g. 'Add rate limiting to the API'"),
		),
		mcp.WithString("task_type",
			mcp.Required(),
			mcp.Description("Shape of the work"),
			mcp.Enum("feature", "bugfix", "refactor", "review", "custom"),
		),
		mcp.WithString("description",
			mcp.Description("Longer description of the goal, carried onto the graph"),
		),
		mcp.WithArray("files",
			mcp.Description("Files involved. Feature graphs split implementation into parallel lanes across these"),
		),
		mcp.WithArray("constraints",
			mcp.Description("Constraints that apply to every node, e.g. 'no new dependencies'"),
		),
		mcp.WithNumber("max_retries",
			mcp.Description("Retry budget per node before a failure cascades (default 2)"),
		),
		mcp.WithArray("nodes",
			mcp.Description("Node objects for task_type 'custom': {id, name, description, phase, depends_on, estimated_tokens, tools, priority, max_retries}"),
		),
	)
}

// Handle processes a create_graph request.
func (t *CreateGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	taskType := taskgraph.TaskType(req.GetString("task_type", ""))
	if err := taskgraph.ValidateTaskType(taskType); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	maxRetries := intArg(req, "max_retries", taskgraph.DefaultMaxRetries)
	nodes, err := nodeSpecsArg(req, "nodes", maxRetries)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	create := taskgraph.CreateRequest{
		Name:        name,
		TaskType:    taskType,
		Description: req.GetString("description", ""),
		Files:       stringListArg(req, "files"),
		Constraints: stringListArg(req, "constraints"),
		MaxRetries:  maxRetries,
		Nodes:       nodes,
	}

	g, err := t.store.CreateGraph(create)
	if err != nil {
		// Cycles and malformed node lists are caller mistakes, not faults.
		if expectedEngineFailure(err) || errors.Is(err, taskgraph.ErrCycle) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("creating graph: %w", err)
	}

	analysis, err := t.store.Analyze(g.ID)
	if err != nil {
		return nil, fmt.Errorf("analyzing new graph %s: %w", g.ID, err)
	}

	record("agent", "graph.created", g.ID, "", fmt.Sprintf("%s (%s, %d nodes)", g.Name, taskType, len(g.Nodes)))

	var response strings.Builder
	response.WriteString("# Graph Created\n\n")
	fmt.Fprintf(&response, "**ID:** %s\n", g.ID)
	fmt.Fprintf(&response, "**Name:** %s\n", g.Name)
	fmt.Fprintf(&response, "**Type:** %s\n", taskType)
	fmt.Fprintf(&response, "**Nodes:** %d (%d edges)\n\n", len(g.Nodes), g.EdgeCount())

	response.WriteString("## Nodes\n\n")
	for _, n := range g.NodesInOrder() {
		response.WriteString("- ")
		response.WriteString(nodeLine(n))
		response.WriteString("\n")
	}
	response.WriteString("\n")

	response.WriteString("## Plan\n\n")
	response.WriteString(analysisSection(analysis))

	response.WriteString("\n## Next Step\n\n")
	fmt.Fprintf(&response, "Call `get_next_nodes` with graph_id `%s` to see what is ready, then `start_node` to begin.\n", g.ID)

	return mcp.NewToolResultText(response.String()), nil
}
