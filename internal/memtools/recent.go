package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/memory"
)

// RecentTool handles the memory_recent MCP tool.
type RecentTool struct {
	store *memory.Store
}

// NewRecentTool creates a RecentTool.
func NewRecentTool(store *memory.Store) *RecentTool {
	return &RecentTool{store: store}
}

// Definition returns the MCP tool definition for memory_recent.
func (t *RecentTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_recent",
		mcp.WithDescription(
			"Show the newest working notes, newest first. Use this at the start of a session to pick up where the last one left off.",
		),
		mcp.WithString("kind",
			mcp.Description("Filter by kind"),
			mcp.Enum(memory.KindValues()...),
		),
		mcp.WithString("graph_id",
			mcp.Description("Filter by graph"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 20)"),
		),
		mcp.WithString("detail_level",
			mcp.Description("Verbosity: summary, standard, or full (default: standard)"),
			mcp.Enum(memory.DetailLevelValues()...),
		),
	)
}

// Handle processes the memory_recent tool call.
func (t *RecentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := t.store.RecentNotes(memory.RecentOptions{
		Kind:    req.GetString("kind", ""),
		GraphID: req.GetString("graph_id", ""),
		Limit:   intArg(req, "limit", 10),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load recent notes: %v", err)), nil
	}

	if len(notes) == 0 {
		return mcp.NewToolResultText("No notes yet. Save decisions and findings with `memory_save` as you work."), nil
	}

	level := memory.ParseDetailLevel(req.GetString("detail_level", ""))
	header := fmt.Sprintf("Recent notes (%d):\n\n", len(notes))
	return mcp.NewToolResultText(renderNotes(header, notes, level)), nil
}
