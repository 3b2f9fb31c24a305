// Package resources implements MCP resource handlers for the task engine.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (taskloom://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/audit"
	"github.com/taskloom/taskloom/internal/docs"
	"github.com/taskloom/taskloom/internal/memory"
	"github.com/taskloom/taskloom/internal/taskgraph"
)

// Handler manages the engine's resource endpoints. The optional stores may
// be nil when their subsystems failed to initialize; the handlers simply
// omit those sections.
type Handler struct {
	store    *taskgraph.Store
	mem      *memory.Store
	registry *docs.Registry
	log      *audit.Log
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store *taskgraph.Store, mem *memory.Store, registry *docs.Registry, log *audit.Log) *Handler {
	return &Handler{store: store, mem: mem, registry: registry, log: log}
}

// GraphsResource returns the MCP resource definition for the graph listing.
func (h *Handler) GraphsResource() mcp.Resource {
	return mcp.NewResource(
		"taskloom://graphs",
		"Task Graphs",
		mcp.WithResourceDescription("Every tracked task graph with progress and the nodes ready to run"),
		mcp.WithMIMEType("text/markdown"),
	)
}

// HandleGraphs renders the live graph listing as markdown.
func (h *Handler) HandleGraphs(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	graphs := h.store.List()

	var b strings.Builder
	b.WriteString("# Task Graphs\n\n")
	if len(graphs) == 0 {
		b.WriteString("No graphs yet. Call `create_graph` to plan a unit of work.\n")
		return markdownResource(req.Params.URI, b.String()), nil
	}

	for _, g := range graphs {
		nodes := g.NodesInOrder()
		completed := 0
		for _, n := range nodes {
			if n.Status == taskgraph.NodeCompleted {
				completed++
			}
		}
		fmt.Fprintf(&b, "- `%s` **%s** (%s): %d/%d nodes completed, %d/%d tokens\n",
			g.ID, g.Name, g.Status, completed, len(nodes), g.ActualTokensUsed, g.TotalEstimatedTokens)

		if ready := h.store.NextNodes(g.ID); len(ready) > 0 {
			ids := make([]string, len(ready))
			for i, n := range ready {
				ids[i] = fmt.Sprintf("`%s`", n.ID)
			}
			fmt.Fprintf(&b, "  - ready now: %s\n", strings.Join(ids, ", "))
		}
	}
	return markdownResource(req.Params.URI, b.String()), nil
}

// StatsResource returns the MCP resource definition for engine statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		"taskloom://stats",
		"Engine Statistics",
		mcp.WithResourceDescription("Aggregate counts across graphs, notes, documents, and audit events"),
		mcp.WithMIMEType("application/json"),
	)
}

// statsPayload is the stats resource wire shape. Optional sections are
// omitted when their stores are unavailable.
type statsPayload struct {
	Engine      taskgraph.EngineStats `json:"engine"`
	Memory      *memory.Stats         `json:"memory,omitempty"`
	Documents   *int                  `json:"documents,omitempty"`
	AuditEvents *int                  `json:"audit_events,omitempty"`
}

// HandleStats returns aggregate statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	payload := statsPayload{Engine: h.store.Stats()}

	if h.mem != nil {
		if ms, err := h.mem.Stats(); err == nil {
			payload.Memory = ms
		}
	}
	if h.registry != nil {
		if n, err := h.registry.Count(); err == nil {
			payload.Documents = &n
		}
	}
	if h.log != nil {
		if n, err := h.log.Count(); err == nil {
			payload.AuditEvents = &n
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling stats: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func markdownResource(uri, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     text,
		},
	}
}
