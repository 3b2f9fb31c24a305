package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/memory"
)

// SearchTool handles the memory_search MCP tool.
type SearchTool struct {
	store *memory.Store
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(store *memory.Store) *SearchTool {
	return &SearchTool{store: store}
}

// Definition returns the MCP tool definition for memory_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription(
			"Search saved working notes across all sessions. Use this before planning new work to find past decisions, "+
				"blockers hit on similar tasks, and preferences the user already stated.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query — natural language or keywords"),
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

// Handle processes the memory_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	notes, err := t.store.SearchNotes(query, memory.SearchOptions{
		Kind:    req.GetString("kind", ""),
		GraphID: req.GetString("graph_id", ""),
		Limit:   intArg(req, "limit", 10),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(notes) == 0 {
		return mcp.NewToolResultText("No notes found matching your query."), nil
	}

	level := memory.ParseDetailLevel(req.GetString("detail_level", ""))
	header := fmt.Sprintf("Found %d notes:\n\n", len(notes))
	return mcp.NewToolResultText(renderNotes(header, notes, level)), nil
}
