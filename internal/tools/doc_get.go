package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/docs"
)

// DocGetTool looks up one registered document by slug.
type DocGetTool struct {
	registry *docs.Registry
}

// NewDocGetTool creates a new doc_get tool instance.
func NewDocGetTool(registry *docs.Registry) *DocGetTool {
	return &DocGetTool{registry: registry}
}

// Definition returns the MCP tool definition.
func (t *DocGetTool) Definition() mcp.Tool {
	return mcp.NewTool("doc_get",
		mcp.WithDescription("Fetch one registered document by its slug, including its path, tags, and summary."),
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("Document slug, e.g. 'retry-policy-adr'"),
		),
	)
}

// Handle processes a doc_get request.
func (t *DocGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug := req.GetString("slug", "")
	if strings.TrimSpace(slug) == "" {
		return mcp.NewToolResultError("'slug' is required"), nil
	}

	d, err := t.registry.Get(slug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(docDetail(d)), nil
}
