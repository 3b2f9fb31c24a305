package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/guard"
)

// GuardCheckTool handles the guard_check MCP tool.
type GuardCheckTool struct {
	checker *guard.Checker
}

// NewGuardCheckTool creates a GuardCheckTool with the given checker.
func NewGuardCheckTool(checker *guard.Checker) *GuardCheckTool {
	return &GuardCheckTool{checker: checker}
}

var severityMarker = map[guard.Severity]string{
	guard.SeverityError:   "❌",
	guard.SeverityWarning: "⚠️",
	guard.SeverityInfo:    "💡",
}

var verdictMarker = map[guard.Verdict]string{
	guard.VerdictPass: "✅",
	guard.VerdictWarn: "⚠️",
	guard.VerdictFail: "❌",
}

// Definition returns the MCP tool definition for guard_check.
func (t *GuardCheckTool) Definition() mcp.Tool {
	return mcp.NewTool("guard_check",
		mcp.WithDescription(
			"Validate code you just wrote against the loaded rule packs BEFORE completing a node. "+
				"Reports rule violations with line numbers and a weighted 0-100 score: pass at 85+, warn at 60+, fail below.",
		),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("The source code to check"),
		),
		mcp.WithString("filename",
			mcp.Description("File name for the report, e.g. 'server.go'"),
		),
		mcp.WithString("graph_id",
			mcp.Description("Graph this check belongs to, for the audit trail"),
		),
		mcp.WithString("node_id",
			mcp.Description("Node whose output is being checked"),
		),
	)
}

// Handle processes the guard_check tool call.
func (t *GuardCheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source := req.GetString("source", "")
	if source == "" {
		return mcp.NewToolResultError("'source' is required"), nil
	}
	filename := req.GetString("filename", "")

	report := t.checker.Check(source, filename)

	record("agent", "guard.checked", req.GetString("graph_id", ""), req.GetString("node_id", ""),
		fmt.Sprintf("%s score %d (%d findings)", report.Verdict, report.Score, len(report.Findings)))

	var b strings.Builder
	b.WriteString("# Guard Report\n\n")
	fmt.Fprintf(&b, "%s **%s** — score %d/100 (%d rules)\n",
		verdictMarker[report.Verdict], strings.ToUpper(string(report.Verdict)), report.Score, report.RulesRun)
	if filename != "" {
		fmt.Fprintf(&b, "- **File:** `%s`\n", filename)
	}

	if len(report.Findings) == 0 {
		b.WriteString("\nNo findings. The source is clean.\n")
		return mcp.NewToolResultText(b.String()), nil
	}

	b.WriteString("\n## Findings\n")
	for _, f := range report.Findings {
		fmt.Fprintf(&b, "- %s line %d `%s` (%s): %s\n  > %s\n",
			severityMarker[f.Severity], f.Line, f.RuleID, f.Category, f.Message, f.Excerpt)
	}

	b.WriteString("\n## Next Step\n\n")
	switch report.Verdict {
	case guard.VerdictFail:
		b.WriteString("Fix the findings above and run `guard_check` again before calling `complete_node`.\n")
	case guard.VerdictWarn:
		b.WriteString("Resolve the error and warning findings, or note why they stay with `memory_save`.\n")
	default:
		b.WriteString("Minor findings only. Clean them up if quick, then continue.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
