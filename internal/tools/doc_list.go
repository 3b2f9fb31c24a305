package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/docs"
)

// DocListTool lists registered documents, newest update first.
type DocListTool struct {
	registry *docs.Registry
}

// NewDocListTool creates a new doc_list tool instance.
func NewDocListTool(registry *docs.Registry) *DocListTool {
	return &DocListTool{registry: registry}
}

// Definition returns the MCP tool definition.
func (t *DocListTool) Definition() mcp.Tool {
	return mcp.NewTool("doc_list",
		mcp.WithDescription("List registered project documents, most recently updated first, optionally filtered by type."),
		mcp.WithString("doc_type",
			mcp.Description("Only list documents of this type"),
			mcp.Enum(docs.DocTypeValues()...),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum documents to return (default 20, max 50)"),
		),
	)
}

// Handle processes a doc_list request.
func (t *DocListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := t.registry.List(req.GetString("doc_type", ""), intArg(req, "limit", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list documents: %v", err)), nil
	}

	if len(list) == 0 {
		return mcp.NewToolResultText("No documents registered yet. Use `doc_register` to add the specs and runbooks that govern this project."), nil
	}

	var response strings.Builder
	fmt.Fprintf(&response, "# Documents (%d)\n\n", len(list))
	for i := range list {
		response.WriteString(docLine(&list[i]))
		response.WriteString("\n")
	}
	return mcp.NewToolResultText(response.String()), nil
}
