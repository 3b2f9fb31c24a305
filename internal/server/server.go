// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools/prompts/resources that depend on them.
// No business logic lives here, only wiring.
package server

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/taskloom/taskloom/internal/audit"
	"github.com/taskloom/taskloom/internal/config"
	"github.com/taskloom/taskloom/internal/docs"
	"github.com/taskloom/taskloom/internal/guard"
	"github.com/taskloom/taskloom/internal/memory"
	"github.com/taskloom/taskloom/internal/memtools"
	"github.com/taskloom/taskloom/internal/prompts"
	"github.com/taskloom/taskloom/internal/resources"
	"github.com/taskloom/taskloom/internal/taskgraph"
	"github.com/taskloom/taskloom/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts, and
// resources registered. This is the single place where all dependencies
// are resolved.
//
// The task graph engine is pure in-process state and always comes up. The
// SQLite-backed subsystems (memory, documents, audit) degrade
// independently: a failed open logs a warning and skips that subsystem's
// tools, and the rest of the server keeps working.
//
// The returned cleanup function closes whichever stores opened and must
// be called on shutdown (typically via defer). It is always non-nil.
func New() (*server.MCPServer, func(), error) {
	settings := config.Load()

	// --- Create shared dependencies ---

	store := taskgraph.NewStore()

	checker := guard.NewChecker()
	if loaded, errs := checker.LoadDir(settings.GuardPacksPath()); loaded > 0 || len(errs) > 0 {
		for _, err := range errs {
			log.Printf("WARNING: guard pack skipped: %v", err)
		}
		if loaded > 0 {
			log.Printf("guard: loaded %d rule pack(s) from %s", loaded, settings.GuardPacksPath())
		}
	}

	var closers []func() error
	cleanup := func() {
		for _, close := range closers {
			if err := close(); err != nil {
				log.Printf("WARNING: store close: %v", err)
			}
		}
	}

	memStore, memErr := memory.New(memory.Config{
		DataDir:          settings.DataDir,
		MaxContentLength: settings.MaxContentLength,
		MaxTopicLength:   settings.MaxTopicLength,
		MaxSearchResults: settings.MaxSearchResults,
	})
	if memErr != nil {
		log.Printf("WARNING: memory subsystem disabled: %v", memErr)
		memStore = nil
	} else {
		closers = append(closers, memStore.Close)
	}

	registry, docsErr := docs.Open(settings.DataDir)
	if docsErr != nil {
		log.Printf("WARNING: document registry disabled: %v", docsErr)
		registry = nil
	} else {
		closers = append(closers, registry.Close)
	}

	auditLog, auditErr := audit.Open(settings.DataDir)
	if auditErr != nil {
		log.Printf("WARNING: audit log disabled: %v", auditErr)
		auditLog = nil
	} else {
		closers = append(closers, auditLog.Close)
		// Lifecycle tools report through the bridge so the engine itself
		// never touches a database.
		tools.SetAuditBridge(auditLog)
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"taskloom",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register graph engine tools ---

	createTool := tools.NewCreateGraphTool(store)
	s.AddTool(createTool.Definition(), createTool.Handle)

	nextTool := tools.NewGetNextNodesTool(store)
	s.AddTool(nextTool.Definition(), nextTool.Handle)

	startTool := tools.NewStartNodeTool(store)
	s.AddTool(startTool.Definition(), startTool.Handle)

	completeTool := tools.NewCompleteNodeTool(store)
	s.AddTool(completeTool.Definition(), completeTool.Handle)

	failTool := tools.NewFailNodeTool(store)
	s.AddTool(failTool.Definition(), failTool.Handle)

	statusTool := tools.NewGraphStatusTool(store)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	analyzeTool := tools.NewAnalyzeGraphTool(store)
	s.AddTool(analyzeTool.Definition(), analyzeTool.Handle)

	listTool := tools.NewListGraphsTool(store)
	s.AddTool(listTool.Definition(), listTool.Handle)

	runTool := tools.NewRunGraphTool(store)
	s.AddTool(runTool.Definition(), runTool.Handle)

	deleteTool := tools.NewDeleteGraphTool(store)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	diagramTool := tools.NewWorkflowDiagramTool(store)
	s.AddTool(diagramTool.Definition(), diagramTool.Handle)

	// --- Register guard tools ---

	guardCheckTool := tools.NewGuardCheckTool(checker)
	s.AddTool(guardCheckTool.Definition(), guardCheckTool.Handle)

	guardRulesTool := tools.NewGuardRulesTool(checker)
	s.AddTool(guardRulesTool.Definition(), guardRulesTool.Handle)

	// --- Register memory tools ---

	if memStore != nil {
		registerMemoryTools(s, memStore)
	}

	// --- Register document tools ---

	if registry != nil {
		registerDocTools(s, registry)
	}

	// --- Register audit tools ---

	if auditLog != nil {
		auditTool := tools.NewAuditEventsTool(auditLog)
		s.AddTool(auditTool.Definition(), auditTool.Handle)
	}

	// --- Register prompts ---

	planPrompt := prompts.NewPlanWorkPrompt()
	s.AddPrompt(planPrompt.Definition(), planPrompt.Handle)

	resumePrompt := prompts.NewResumeWorkPrompt()
	s.AddPrompt(resumePrompt.Definition(), resumePrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(store, memStore, registry, auditLog)
	s.AddResource(resourceHandler.GraphsResource(), resourceHandler.HandleGraphs)
	s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)

	return s, cleanup, nil
}

// registerMemoryTools registers the note store tools with the server.
func registerMemoryTools(s *server.MCPServer, ms *memory.Store) {
	saveTool := memtools.NewSaveTool(ms)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	searchTool := memtools.NewSearchTool(ms)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	recentTool := memtools.NewRecentTool(ms)
	s.AddTool(recentTool.Definition(), recentTool.Handle)

	statsTool := memtools.NewStatsTool(ms)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	deleteTool := memtools.NewDeleteTool(ms)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)
}

// registerDocTools registers the document registry tools with the server.
func registerDocTools(s *server.MCPServer, registry *docs.Registry) {
	registerTool := tools.NewDocRegisterTool(registry)
	s.AddTool(registerTool.Definition(), registerTool.Handle)

	getTool := tools.NewDocGetTool(registry)
	s.AddTool(getTool.Definition(), getTool.Handle)

	listTool := tools.NewDocListTool(registry)
	s.AddTool(listTool.Definition(), listTool.Handle)

	searchTool := tools.NewDocSearchTool(registry)
	s.AddTool(searchTool.Definition(), searchTool.Handle)
}

// serverInstructions returns the system instructions that tell the AI how
// to drive the task engine effectively.
func serverInstructions() string {
	return `You have access to taskloom, a task graph orchestration MCP server.

## WHEN TO ACTIVATE taskloom

Proactively create a task graph when the user:
- Asks for a feature, bugfix, refactor, or code review with more than a
  couple of steps
- Describes work with natural ordering ("first migrate the schema, then...")
- Asks you to plan, split up, or parallelize work
- Resumes something from an earlier session

You do NOT need a graph for:
- One-shot questions, explanations, or documentation
- Single-file edits you can finish in one step
- Config tweaks and one-liners

## CRITICAL: How the engine works

taskloom is a SCHEDULER, not a worker. It tracks which tasks exist, what
depends on what, and what is ready to run. YOU do the actual work. The
loop for every graph is:

1. create_graph — pick a task_type archetype (feature, bugfix, refactor,
   review) or pass task_type='custom' with explicit nodes and depends_on
2. get_next_nodes — the engine returns the nodes whose dependencies are
   complete, highest priority first
3. start_node — claim a node before working on it
4. Do the work yourself
5. complete_node — report the result and tokens spent; this unblocks
   dependents and tells you which nodes became ready
6. Repeat from 2 until graph_status reports 100%

Do not skip start_node: the engine tolerates completing a node that was
never started, but phase tracking, timing, and the audit trail only make
sense when you claim nodes before working on them.

## Failures and retries

When the work for a node fails, call fail_node with the error message.
The engine decides what happens next:
- Retries remain: the node goes back to ready ('will retry') — fix the
  problem and start it again. Retry timing is yours; the engine imposes
  no delay.
- Budget exhausted: the node is marked failed and every transitive
  dependent is SKIPPED. Nodes on independent branches keep running.

After an exhausted failure, check analyze_graph: if the skipped set is
large, consider delete_graph and replanning with what you learned.

## Planning well

- Lean on analyze_graph before starting: the critical path tells you
  where the schedule pressure is, the parallel levels tell you what can
  run concurrently
- run_graph shows the full wave-by-wave execution plan with token
  estimates per wave
- workflow_diagram renders a Mermaid flowchart of any graph (or a
  freeform workflow) — useful when showing the user the plan
- Estimate tokens honestly on custom nodes; the engine tracks estimated
  vs actual so future plans calibrate

## Quality gate

Before completing any node that produced source code, run guard_check on
the code. It scores the source against rule packs (secrets, SQL string
building, panics in library paths, leftover debug prints):
- pass: proceed to complete_node
- warn: fix what's quick, note the rest with memory_save
- fail: fix the findings and re-run before completing the node

guard_rules lists the active rule packs. Teams can drop extra YAML packs
in the data directory's guard/ folder.

## Persistent memory

Notes survive across sessions; graphs do not. Use memory_save for
anything a future session will need:
- kind=decision: why you chose an approach
- kind=finding: what you learned about the codebase
- kind=blocker: what is stuck and why
- kind=preference: how the user likes things done
- kind=progress: where you are mid-task

Scope notes to a graph with graph_id/node_id so memory_recent can
rebuild context when resuming. At the start of a session, memory_recent
with the graph_id is the fastest way back in. Use detail_level=summary
to scan cheaply, then full for what matters.

## Documents

Register the specs, ADRs, runbooks, and designs that govern the project
with doc_register; find them later with doc_search before planning
related work. The registry stores metadata and a search index — the
files themselves stay in the repository.

## History

audit_events shows the lifecycle trail (who created, started, completed,
failed what, and when). Use it when the user asks what happened in an
earlier session or when a graph's state looks surprising.

## Important rules

- One node at a time unless running parallel sub-agents; the engine
  allows concurrent running nodes, but you should claim only what you
  are actually working on
- Report honest token counts to complete_node
- Never fabricate a node result — if the work failed, fail_node is the
  truthful call
- Custom graphs must be acyclic; the engine rejects cycles at creation`
}
