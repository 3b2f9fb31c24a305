package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/guard"
)

// GuardRulesTool handles the guard_rules MCP tool.
type GuardRulesTool struct {
	checker *guard.Checker
}

// NewGuardRulesTool creates a GuardRulesTool with the given checker.
func NewGuardRulesTool(checker *guard.Checker) *GuardRulesTool {
	return &GuardRulesTool{checker: checker}
}

// Definition returns the MCP tool definition for guard_rules.
func (t *GuardRulesTool) Definition() mcp.Tool {
	return mcp.NewTool("guard_rules",
		mcp.WithDescription(
			"List the loaded guard rule packs and their rules, so you know what guard_check will enforce.",
		),
	)
}

// Handle processes the guard_rules tool call.
func (t *GuardRulesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	packs := t.checker.Packs()

	var b strings.Builder
	b.WriteString("# Guard Rules\n\n")
	fmt.Fprintf(&b, "%d rules across %d pack(s).\n", t.checker.RuleCount(), len(packs))

	for _, p := range packs {
		version := p.Version
		if version == "" {
			version = "unversioned"
		}
		fmt.Fprintf(&b, "\n## %s (%s)\n", p.Name, version)
		for _, r := range p.Rules {
			fmt.Fprintf(&b, "- %s `%s` (%s, weight %d): %s\n",
				severityMarker[r.Severity], r.ID, r.Category, r.Weight, r.Message)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}
