// Package prompts implements MCP prompt handlers for the task engine.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// PlanWorkPrompt handles the plan-work MCP prompt.
// It guides the AI to break a goal into a task graph and drive it.
type PlanWorkPrompt struct{}

// NewPlanWorkPrompt creates a PlanWorkPrompt.
func NewPlanWorkPrompt() *PlanWorkPrompt {
	return &PlanWorkPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlanWorkPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("plan-work",
		mcp.WithPromptDescription(
			"Plan a unit of work as a task graph. "+
				"Creates a dependency-ordered plan from your goal, then drives it "+
				"node by node with progress tracking and bounded retries.",
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What you want to get done, e.g. 'add rate limiting to the API'"),
		),
		mcp.WithArgument("task_type",
			mcp.ArgumentDescription(
				"Shape of the work: 'feature', 'bugfix', 'refactor', 'review', or 'custom'. Default: feature",
			),
		),
	)
}

// Handle processes the plan-work prompt request.
func (p *PlanWorkPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	goal := "the goal I describe next"
	taskType := "feature"
	if args := req.Params.Arguments; args != nil {
		if g, ok := args["goal"]; ok && g != "" {
			goal = g
		}
		if tt, ok := args["task_type"]; ok && tt != "" {
			taskType = tt
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan work: %s", goal),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to plan and execute this work: %s\n\n"+
						"Please:\n"+
						"1. Run `doc_search` and `memory_search` for anything relevant to this goal\n"+
						"2. Run `create_graph` with task_type='%s' and a name summarizing the goal\n"+
						"3. Poll `get_next_nodes` and work each ready node: `start_node`, do the work, "+
						"then `complete_node` with a short result and the tokens you spent\n"+
						"4. Run `guard_check` on any source you produce before completing its node\n"+
						"5. If a node's work fails, report it with `fail_node` and follow the retry guidance\n"+
						"6. Save decisions and findings with `memory_save` as you go\n"+
						"7. When `graph_status` shows 100%%, summarize what was done",
					goal, taskType,
				)),
			},
		},
	}, nil
}
