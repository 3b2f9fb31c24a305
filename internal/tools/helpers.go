// Package tools provides the MCP tool handlers for the taskloom server.
//
// Every tool follows the same pattern: a struct with its dependencies
// injected via constructor, Definition() returning the mcp.Tool schema, and
// Handle() processing one request. Expected failures (unknown ids, invalid
// transitions, rejected input) come back as structured error results so the
// calling agent can react; only infrastructure faults surface as Go errors.
package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/docs"
	"github.com/taskloom/taskloom/internal/taskgraph"
)

// --- Argument extraction ---

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// stringListArg extracts a []string argument. Missing keys and non-string
// elements are dropped silently: tool schemas already describe the shape.
func stringListArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// nodeSpecsArg decodes the custom-graph node list: an array of objects with
// id, name, description, phase, depends_on, estimated_tokens, tools,
// priority, and max_retries keys. Shape errors are reported, not dropped,
// since a silently mangled graph is worse than a rejected call.
func nodeSpecsArg(req mcp.CallToolRequest, key string, defaultRetries int) ([]taskgraph.NodeSpec, error) {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil, nil
	}
	specs := make([]taskgraph.NodeSpec, 0, len(raw))
	for i, e := range raw {
		obj, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("nodes[%d] is not an object", i)
		}
		sp := taskgraph.NodeSpec{
			ID:          strArgOf(obj, "id"),
			Name:        strArgOf(obj, "name"),
			Description: strArgOf(obj, "description"),
			Phase:       taskgraph.Phase(strArgOf(obj, "phase")),
			DependsOn:   strListOf(obj, "depends_on"),
			Tools:       strListOf(obj, "tools"),
			MaxRetries:  defaultRetries,
		}
		if v, ok := obj["estimated_tokens"].(float64); ok {
			sp.EstimatedTokens = int(v)
		}
		if v, ok := obj["priority"].(float64); ok {
			sp.Priority = int(v)
		}
		if v, ok := obj["max_retries"].(float64); ok {
			sp.MaxRetries = int(v)
		}
		specs = append(specs, sp)
	}
	return specs, nil
}

func strArgOf(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func strListOf(obj map[string]any, key string) []string {
	raw, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// --- Engine error mapping ---

// expectedEngineFailure reports whether err is a normal outcome of caller
// and engine racing (unknown ids, wrong-state transitions, rejected input)
// rather than a fault.
func expectedEngineFailure(err error) bool {
	return errors.Is(err, taskgraph.ErrNotFound) ||
		errors.Is(err, taskgraph.ErrInvalidState) ||
		errors.Is(err, taskgraph.ErrInvalidGraph)
}

// --- Markdown rendering ---

// statusMarker maps node statuses to the emoji markers used in responses.
var statusMarker = map[taskgraph.NodeStatus]string{
	taskgraph.NodePending:   "⬜",
	taskgraph.NodeReady:     "🟢",
	taskgraph.NodeRunning:   "🔄",
	taskgraph.NodeCompleted: "✅",
	taskgraph.NodeFailed:    "❌",
	taskgraph.NodeSkipped:   "⏭️",
}

// graphMarker maps graph statuses to emoji markers.
var graphMarker = map[taskgraph.GraphStatus]string{
	taskgraph.GraphPending:   "⬜",
	taskgraph.GraphRunning:   "🔄",
	taskgraph.GraphCompleted: "✅",
	taskgraph.GraphFailed:    "❌",
	taskgraph.GraphPaused:    "⏸️",
}

// nodeLine renders one node as a compact list entry.
func nodeLine(n *taskgraph.TaskNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s `%s` %s (%s, ~%d tokens", statusMarker[n.Status], n.ID, n.Name, n.Phase, n.EstimatedTokens)
	if n.Priority != 0 {
		fmt.Fprintf(&b, ", priority %d", n.Priority)
	}
	if n.MaxRetries > 0 {
		fmt.Fprintf(&b, ", retries %d/%d", n.RetryCount, n.MaxRetries)
	}
	b.WriteString(")")
	if len(n.DependsOn) > 0 {
		fmt.Fprintf(&b, " after %s", strings.Join(n.DependsOn, ", "))
	}
	return b.String()
}

// nodeDetail renders a full node snapshot for single-node responses.
func nodeDetail(n *taskgraph.TaskNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s** (`%s`)\n\n", statusMarker[n.Status], n.Name, n.ID)
	fmt.Fprintf(&b, "- **Status:** %s\n", n.Status)
	fmt.Fprintf(&b, "- **Phase:** %s\n", n.Phase)
	if n.Description != "" {
		fmt.Fprintf(&b, "- **Description:** %s\n", n.Description)
	}
	if len(n.DependsOn) > 0 {
		fmt.Fprintf(&b, "- **Depends on:** %s\n", strings.Join(n.DependsOn, ", "))
	}
	if len(n.Dependents) > 0 {
		fmt.Fprintf(&b, "- **Unblocks:** %s\n", strings.Join(n.Dependents, ", "))
	}
	fmt.Fprintf(&b, "- **Tokens:** ~%d estimated", n.EstimatedTokens)
	if n.ActualTokens > 0 {
		fmt.Fprintf(&b, ", %d actual", n.ActualTokens)
	}
	b.WriteString("\n")
	if len(n.Tools) > 0 {
		fmt.Fprintf(&b, "- **Suggested tools:** %s\n", strings.Join(n.Tools, ", "))
	}
	if len(n.Files) > 0 {
		fmt.Fprintf(&b, "- **Files:** %s\n", strings.Join(n.Files, ", "))
	}
	if len(n.Constraints) > 0 {
		fmt.Fprintf(&b, "- **Constraints:** %s\n", strings.Join(n.Constraints, "; "))
	}
	if n.MaxRetries > 0 {
		fmt.Fprintf(&b, "- **Retries:** %d of %d used\n", n.RetryCount, n.MaxRetries)
	}
	if n.Error != "" {
		fmt.Fprintf(&b, "- **Last error:** %s\n", n.Error)
	}
	if n.Result != "" {
		fmt.Fprintf(&b, "- **Result:** %s\n", n.Result)
	}
	return b.String()
}

// analysisSection renders a GraphAnalysis as markdown, shared by
// create_graph and analyze_graph.
func analysisSection(a *taskgraph.Analysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Progress:** %d%% (%d/%d nodes completed)\n", a.Progress, a.StatusCounts[taskgraph.NodeCompleted], a.TotalNodes)
	fmt.Fprintf(&b, "**Tokens:** %d used, ~%d remaining of ~%d estimated\n\n", a.ActualTokensUsed, a.EstimatedRemainingTokens, a.TotalEstimatedTokens)

	b.WriteString("**Status counts:** ")
	var parts []string
	for _, st := range []taskgraph.NodeStatus{
		taskgraph.NodePending, taskgraph.NodeReady, taskgraph.NodeRunning,
		taskgraph.NodeCompleted, taskgraph.NodeFailed, taskgraph.NodeSkipped,
	} {
		if c := a.StatusCounts[st]; c > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c, st))
		}
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "**Critical path** (~%d tokens): %s\n\n", a.CriticalPathTokens, strings.Join(a.CriticalPath, " -> "))

	b.WriteString("**Parallel levels:**\n")
	for i, level := range a.Levels {
		names := make([]string, len(level))
		for j, id := range level {
			names[j] = fmt.Sprintf("`%s`", id)
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(names, ", "))
	}

	return b.String()
}

// --- Document rendering ---

// docLine renders one registry document as a compact list entry.
func docLine(d *docs.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- **%s** (`%s`, %s)", d.Title, d.Slug, d.DocType)
	if d.Summary != nil && *d.Summary != "" {
		s := *d.Summary
		if len(s) > 120 {
			s = s[:120] + "..."
		}
		fmt.Fprintf(&b, ": %s", s)
	}
	if len(d.Tags) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(d.Tags, ", "))
	}
	return b.String()
}

// docDetail renders a full document record for single-document responses.
func docDetail(d *docs.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	fmt.Fprintf(&b, "- **Slug:** `%s`\n", d.Slug)
	fmt.Fprintf(&b, "- **Type:** %s\n", d.DocType)
	if d.Path != nil && *d.Path != "" {
		fmt.Fprintf(&b, "- **Path:** `%s`\n", *d.Path)
	}
	if len(d.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(d.Tags, ", "))
	}
	fmt.Fprintf(&b, "- **Registered:** %s\n", d.CreatedAt)
	if d.UpdatedAt != d.CreatedAt {
		fmt.Fprintf(&b, "- **Updated:** %s\n", d.UpdatedAt)
	}
	if d.Summary != nil && *d.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", *d.Summary)
	}
	return b.String()
}

// graphSummaryLine renders one graph for list views.
func graphSummaryLine(g *taskgraph.TaskGraph) string {
	nodes := g.NodesInOrder()
	completed := 0
	for _, n := range nodes {
		if n.Status == taskgraph.NodeCompleted {
			completed++
		}
	}
	return fmt.Sprintf("%s `%s` **%s** (%s): %d/%d nodes completed, %d/%d tokens",
		graphMarker[g.Status], g.ID, g.Name, g.Status,
		completed, len(nodes), g.ActualTokensUsed, g.TotalEstimatedTokens)
}
