package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/memory"
)

// SaveTool handles the memory_save MCP tool.
type SaveTool struct {
	store *memory.Store
}

// NewSaveTool creates a SaveTool with the given note store.
func NewSaveTool(store *memory.Store) *SaveTool {
	return &SaveTool{store: store}
}

// Definition returns the MCP tool definition for memory_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_save",
		mcp.WithDescription(
			"Save a working note to persistent memory. Call this PROACTIVELY while executing a graph — "+
				"record decisions, findings, blockers, user preferences, and progress markers so later sessions can resume with context.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Note kind: "+strings.Join(memory.KindValues(), ", ")),
			mcp.Enum(memory.KindValues()...),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The note body. Keep it self-contained: what happened, why it matters, what to do about it."),
		),
		mcp.WithString("topic",
			mcp.Description("Optional stable topic (e.g. 'storage/driver'). Saving the same kind+topic again revises the existing note instead of adding a duplicate."),
		),
		mcp.WithString("graph_id",
			mcp.Description("Graph this note belongs to, for scoped recall"),
		),
		mcp.WithString("node_id",
			mcp.Description("Node this note was written at"),
		),
	)
}

// Handle processes the memory_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("kind", "")
	content := req.GetString("content", "")
	if kind == "" {
		return mcp.NewToolResultError("'kind' is required"), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	n, err := t.store.SaveNote(memory.SaveNoteParams{
		Kind:    kind,
		Topic:   req.GetString("topic", ""),
		Content: content,
		GraphID: req.GetString("graph_id", ""),
		NodeID:  req.GetString("node_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save note: %v", err)), nil
	}

	response := fmt.Sprintf("Note saved: #%d (%s)", n.ID, n.Kind)
	if n.Topic != nil && *n.Topic != "" {
		if n.Revisions > 1 {
			response += fmt.Sprintf("\nTopic %q revised (revision %d).", *n.Topic, n.Revisions)
		} else {
			response += fmt.Sprintf("\nTopic: %s", *n.Topic)
		}
	}
	return mcp.NewToolResultText(response), nil
}
