package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ResumeWorkPrompt handles the resume-work MCP prompt.
// It instructs the AI to pick up a graph where it was left off.
type ResumeWorkPrompt struct{}

// NewResumeWorkPrompt creates a ResumeWorkPrompt.
func NewResumeWorkPrompt() *ResumeWorkPrompt {
	return &ResumeWorkPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ResumeWorkPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("resume-work",
		mcp.WithPromptDescription(
			"Resume an in-flight task graph. "+
				"Shows where execution stands, recovers saved context, "+
				"and continues from the next ready nodes.",
		),
		mcp.WithArgument("graph_id",
			mcp.ArgumentDescription("Graph to resume. Omit to pick from the active graphs"),
		),
	)
}

// Handle processes the resume-work prompt request.
func (p *ResumeWorkPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	graphID := ""
	if args := req.Params.Arguments; args != nil {
		graphID = args["graph_id"]
	}

	var text string
	if graphID != "" {
		text = "Please resume the task graph '" + graphID + "'.\n\n" +
			"1. Run `graph_status` with graph_id='" + graphID + "' to see where it stands\n" +
			"2. Run `memory_recent` with graph_id='" + graphID + "' to recover saved context\n" +
			"3. Run `audit_events` with graph_id='" + graphID + "' if the history matters\n" +
			"4. Continue the loop: `get_next_nodes`, `start_node`, work, `complete_node`\n" +
			"5. Flag anything that looks stuck (failed or skipped nodes) before continuing"
	} else {
		text = "Please help me resume in-flight work.\n\n" +
			"1. Run `list_graphs` with status='running' to find active graphs\n" +
			"2. Show me each with its progress and ask which to resume\n" +
			"3. Once chosen, run `graph_status` and `memory_recent` for that graph\n" +
			"4. Continue the loop: `get_next_nodes`, `start_node`, work, `complete_node`"
	}

	return &mcp.GetPromptResult{
		Description: "Resume task graph",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}
