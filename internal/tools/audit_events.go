package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/audit"
)

// AuditEventsTool lists recorded lifecycle events, newest first.
type AuditEventsTool struct {
	log *audit.Log
}

// NewAuditEventsTool creates a new audit_events tool instance.
func NewAuditEventsTool(log *audit.Log) *AuditEventsTool {
	return &AuditEventsTool{log: log}
}

// Definition returns the MCP tool definition.
func (t *AuditEventsTool) Definition() mcp.Tool {
	return mcp.NewTool("audit_events",
		mcp.WithDescription("Show the audit trail of graph lifecycle events (created, started, completed, failed, retried), newest first. Useful for reconstructing what happened in a session."),
		mcp.WithString("graph_id",
			mcp.Description("Only events for this graph"),
		),
		mcp.WithString("action",
			mcp.Description("Only events with this action, e.g. 'node.failed'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum events to return (default 50, max 200)"),
		),
	)
}

// Handle processes an audit_events request.
func (t *AuditEventsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := t.log.Events(audit.QueryOptions{
		GraphID: req.GetString("graph_id", ""),
		Action:  req.GetString("action", ""),
		Limit:   intArg(req, "limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to query audit events: %v", err)), nil
	}

	if len(events) == 0 {
		return mcp.NewToolResultText("No audit events recorded yet."), nil
	}

	var response strings.Builder
	fmt.Fprintf(&response, "# Audit Events (%d)\n\n", len(events))
	for _, e := range events {
		fmt.Fprintf(&response, "- `%s` **%s** by %s", e.OccurredAt, e.Action, e.Actor)
		if e.GraphID != nil {
			fmt.Fprintf(&response, " [graph `%s`", *e.GraphID)
			if e.NodeID != nil {
				fmt.Fprintf(&response, ", node `%s`", *e.NodeID)
			}
			response.WriteString("]")
		}
		if e.Detail != "" {
			fmt.Fprintf(&response, ": %s", e.Detail)
		}
		response.WriteString("\n")
	}
	return mcp.NewToolResultText(response.String()), nil
}
