// Package memtools provides MCP tool handlers for the working-note store.
//
// Each tool handler follows the same pattern as internal/tools:
// - A struct with dependencies (memory.Store) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Tools are storage tools: they receive AI-generated content and persist it.
package memtools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/memory"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// renderNotes formats a note list at the requested detail level and appends
// the token footer so the caller can see what the read cost.
func renderNotes(header string, notes []memory.Note, level string) string {
	var b strings.Builder
	b.WriteString(header)

	for i, n := range notes {
		topic := ""
		if n.Topic != nil && *n.Topic != "" {
			topic = " " + *n.Topic
		}
		scope := ""
		if n.GraphID != nil {
			scope = fmt.Sprintf(" | graph: %s", *n.GraphID)
			if n.NodeID != nil {
				scope += fmt.Sprintf(" node: %s", *n.NodeID)
			}
		}
		rev := ""
		if n.Revisions > 1 {
			rev = fmt.Sprintf(" (rev %d)", n.Revisions)
		}

		fmt.Fprintf(&b, "[%d] #%d (%s)%s%s\n", i+1, n.ID, n.Kind, topic, rev)

		switch level {
		case memory.DetailSummary:
			fmt.Fprintf(&b, "    %s%s\n\n", n.UpdatedAt, scope)
		case memory.DetailFull:
			fmt.Fprintf(&b, "    %s\n    %s%s\n\n", n.Content, n.UpdatedAt, scope)
		default:
			fmt.Fprintf(&b, "    %s\n    %s%s\n\n", memory.Truncate(n.Content, 300), n.UpdatedAt, scope)
		}
	}

	if level == memory.DetailSummary {
		b.WriteString(memory.SummaryFooter)
	}
	out := b.String()
	return out + memory.TokenFooter(memory.EstimateTokens(out))
}
