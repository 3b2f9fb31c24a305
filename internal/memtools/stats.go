package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/memory"
)

// StatsTool handles the memory_stats MCP tool.
type StatsTool struct {
	store *memory.Store
}

// NewStatsTool creates a StatsTool with the given note store.
func NewStatsTool(store *memory.Store) *StatsTool {
	return &StatsTool{store: store}
}

// Definition returns the MCP tool definition for memory_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_stats",
		mcp.WithDescription(
			"Show note store statistics — totals by kind, graphs covered, and database size.",
		),
	)
}

// Handle processes the memory_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Note Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Notes**: %d\n", stats.TotalNotes))

	for _, kind := range memory.KindValues() {
		if n := stats.ByKind[kind]; n > 0 {
			sb.WriteString(fmt.Sprintf("  - %s: %d\n", kind, n))
		}
	}

	sb.WriteString(fmt.Sprintf("- **Graphs covered**: %d\n", stats.Graphs))
	sb.WriteString(fmt.Sprintf("- **Stored tokens**: ~%d\n", stats.TotalTokens))
	sb.WriteString(fmt.Sprintf("- **Database size**: %.1f KB\n", float64(stats.DBSizeBytes)/1024))

	return mcp.NewToolResultText(sb.String()), nil
}
