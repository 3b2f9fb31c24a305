package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/docs"
)

// DocSearchTool runs a full-text search over registered documents.
type DocSearchTool struct {
	registry *docs.Registry
}

// NewDocSearchTool creates a new doc_search tool instance.
func NewDocSearchTool(registry *docs.Registry) *DocSearchTool {
	return &DocSearchTool{registry: registry}
}

// Definition returns the MCP tool definition.
func (t *DocSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("doc_search",
		mcp.WithDescription("Search registered documents by title, summary, and tags. Use this before starting work to find the governing spec or runbook."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search terms, e.g. 'retry policy'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum documents to return (default 20, max 50)"),
		),
	)
}

// Handle processes a doc_search request.
func (t *DocSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	found, err := t.registry.Search(query, intArg(req, "limit", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search documents: %v", err)), nil
	}

	if len(found) == 0 {
		return mcp.NewToolResultText("No documents found matching your query."), nil
	}

	var response strings.Builder
	fmt.Fprintf(&response, "Found %d documents:\n\n", len(found))
	for i := range found {
		response.WriteString(docLine(&found[i]))
		response.WriteString("\n")
	}
	return mcp.NewToolResultText(response.String()), nil
}
