package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/docs"
)

// DocRegisterTool adds a project document to the registry, or updates one
// when an explicit slug is given.
type DocRegisterTool struct {
	registry *docs.Registry
}

// NewDocRegisterTool creates a new doc_register tool instance.
func NewDocRegisterTool(registry *docs.Registry) *DocRegisterTool {
	return &DocRegisterTool{registry: registry}
}

// Definition returns the MCP tool definition.
func (t *DocRegisterTool) Definition() mcp.Tool {
	return mcp.NewTool("doc_register",
		mcp.WithDescription("Register a project document (spec, ADR, runbook, design, guide) so it can be found later with doc_search. Pass slug to update an existing entry; omit it to create a new one."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Document title, e.g. 'Retry Policy ADR'"),
		),
		mcp.WithString("doc_type",
			mcp.Required(),
			mcp.Description("Kind of document"),
			mcp.Enum(docs.DocTypeValues()...),
		),
		mcp.WithString("slug",
			mcp.Description("Existing slug to update. Omit to derive one from the title"),
		),
		mcp.WithString("path",
			mcp.Description("Repository-relative path to the document file"),
		),
		mcp.WithString("summary",
			mcp.Description("Short abstract, indexed for search"),
		),
		mcp.WithArray("tags",
			mcp.Description("Freeform tags, indexed for search"),
		),
	)
}

// Handle processes a doc_register request.
func (t *DocRegisterTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	if strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	docType := req.GetString("doc_type", "")
	if docType == "" {
		return mcp.NewToolResultError("'doc_type' is required"), nil
	}

	d, err := t.registry.Register(docs.RegisterParams{
		Slug:    req.GetString("slug", ""),
		Title:   title,
		DocType: docType,
		Path:    req.GetString("path", ""),
		Summary: req.GetString("summary", ""),
		Tags:    stringListArg(req, "tags"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to register document: %v", err)), nil
	}

	record("agent", "doc.registered", "", "", fmt.Sprintf("%s (%s)", d.Slug, d.DocType))

	var response strings.Builder
	fmt.Fprintf(&response, "Document registered: **%s** (`%s`)\n", d.Title, d.Slug)
	fmt.Fprintf(&response, "- **Type:** %s\n", d.DocType)
	if d.Path != nil && *d.Path != "" {
		fmt.Fprintf(&response, "- **Path:** `%s`\n", *d.Path)
	}
	if len(d.Tags) > 0 {
		fmt.Fprintf(&response, "- **Tags:** %s\n", strings.Join(d.Tags, ", "))
	}
	return mcp.NewToolResultText(response.String()), nil
}
