// Package taskgraph implements the task graph orchestration engine: a DAG
// scheduler that tracks units of work an external agent decomposes, reports
// on, and drives to completion.
//
// The engine never executes anything itself. It owns graph and node state,
// answers "what can run next", applies lifecycle transitions with bounded
// retry and cascading skip, and derives scheduling analytics (critical path,
// parallel levels, progress, remaining cost) from the live state on every
// query. Concurrency lives in the caller: many nodes may be running at once
// and outcomes may arrive in any order.
package taskgraph

import (
	"fmt"
	"sort"
	"sync"
)

// --- Phase enum ---

// Phase labels what kind of work a node represents. Phases drive token
// estimates and default tool suggestions, never scheduling.
type Phase string

const (
	PhaseAnalysis Phase = "analysis"
	PhasePlan     Phase = "plan"
	PhaseImpl     Phase = "impl"
	PhaseReview   Phase = "review"
	PhaseTest     Phase = "test"
)

// validPhases is the set of allowed node phases.
var validPhases = map[Phase]bool{
	PhaseAnalysis: true,
	PhasePlan:     true,
	PhaseImpl:     true,
	PhaseReview:   true,
	PhaseTest:     true,
}

// ValidatePhase returns an error if the phase is not recognized.
func ValidatePhase(p Phase) error {
	if !validPhases[p] {
		return fmt.Errorf("invalid phase %q: must be one of: analysis, plan, impl, review, test", p)
	}
	return nil
}

// --- Node status enum ---

// NodeStatus is a node's position in its lifecycle.
//
// Allowed transitions:
//
//	pending → ready          (all dependencies completed)
//	ready   → running        (caller started the node)
//	running → completed      (caller reported success)
//	running → ready          (failure with retry budget left)
//	running → failed         (failure past the retry budget)
//	pending | ready → skipped (an upstream node failed permanently)
//
// completed, failed, and skipped are terminal.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeReady     NodeStatus = "ready"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	NodeSkipped   NodeStatus = "skipped"
)

// Terminal reports whether the status is final. Terminal nodes never change
// status again; repeated complete/fail calls on them are no-ops.
func (s NodeStatus) Terminal() bool {
	return s == NodeCompleted || s == NodeFailed || s == NodeSkipped
}

// validNodeStatuses is the set of allowed node statuses.
var validNodeStatuses = map[NodeStatus]bool{
	NodePending:   true,
	NodeReady:     true,
	NodeRunning:   true,
	NodeCompleted: true,
	NodeFailed:    true,
	NodeSkipped:   true,
}

// ValidateNodeStatus returns an error if the status is not recognized.
func ValidateNodeStatus(s NodeStatus) error {
	if !validNodeStatuses[s] {
		return fmt.Errorf("invalid node status %q", s)
	}
	return nil
}

// --- Graph status enum ---

// GraphStatus is the graph-level rollup. It is derived from node statuses and
// recomputed at every lifecycle transition: failed if any node failed,
// completed when every node is completed or skipped with no failures,
// otherwise running once work has started. GraphPaused is part of the status
// vocabulary for callers that park a graph; the rollup itself never produces
// it.
type GraphStatus string

const (
	GraphPending   GraphStatus = "pending"
	GraphRunning   GraphStatus = "running"
	GraphCompleted GraphStatus = "completed"
	GraphFailed    GraphStatus = "failed"
	GraphPaused    GraphStatus = "paused"
)

// validGraphStatuses is the set of allowed graph statuses.
var validGraphStatuses = map[GraphStatus]bool{
	GraphPending:   true,
	GraphRunning:   true,
	GraphCompleted: true,
	GraphFailed:    true,
	GraphPaused:    true,
}

// ValidateGraphStatus returns an error if the status is not recognized.
func ValidateGraphStatus(s GraphStatus) error {
	if !validGraphStatuses[s] {
		return fmt.Errorf("invalid graph status %q", s)
	}
	return nil
}

// --- Core data structures ---

// TaskNode is a single unit of work inside a graph.
//
// DependsOn holds the ids that must be completed before this node can become
// ready. Dependents is the derived inverse, kept consistent with DependsOn
// and with the graph's edge map at all times; it exists for O(1) forward
// traversal and carries no ownership.
type TaskNode struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Phase           Phase      `json:"phase"`
	Status          NodeStatus `json:"status"`
	DependsOn       []string   `json:"depends_on"`
	Dependents      []string   `json:"dependents"`
	EstimatedTokens int        `json:"estimated_tokens"`
	ActualTokens    int        `json:"actual_tokens"`
	Tools           []string   `json:"tools,omitempty"`
	Result          string     `json:"result,omitempty"`
	Error           string     `json:"error,omitempty"`
	Priority        int        `json:"priority"`
	RetryCount      int        `json:"retry_count"`
	MaxRetries      int        `json:"max_retries"`
	Files           []string   `json:"files,omitempty"`
	Constraints     []string   `json:"constraints,omitempty"`
	CreatedAt       string     `json:"created_at"`
	StartedAt       string     `json:"started_at,omitempty"`
	CompletedAt     string     `json:"completed_at,omitempty"`

	// seq is the insertion index within the graph, used as the stable
	// tie-break for readiness ordering and critical-path reconstruction.
	seq int
}

// clone returns a deep copy safe to hand to callers outside the graph lock.
func (n *TaskNode) clone() *TaskNode {
	c := *n
	c.DependsOn = append([]string(nil), n.DependsOn...)
	c.Dependents = append([]string(nil), n.Dependents...)
	c.Tools = append([]string(nil), n.Tools...)
	c.Files = append([]string(nil), n.Files...)
	c.Constraints = append([]string(nil), n.Constraints...)
	return &c
}

// TaskGraph is one unit of decomposed work: nodes keyed by id plus the edge
// map in dependency direction (Edges[a] lists the nodes that depend on a).
// The edge map is redundant with the per-node DependsOn/Dependents sets and
// is kept in agreement with them by construction and by every mutation.
type TaskGraph struct {
	ID                   string               `json:"id"`
	Name                 string               `json:"name"`
	Description          string               `json:"description,omitempty"`
	RootID               string               `json:"root_id"`
	Nodes                map[string]*TaskNode `json:"nodes"`
	Edges                map[string][]string  `json:"edges"`
	Status               GraphStatus          `json:"status"`
	CurrentPhase         Phase                `json:"current_phase,omitempty"`
	TotalEstimatedTokens int                  `json:"total_estimated_tokens"`
	ActualTokensUsed     int                  `json:"actual_tokens_used"`
	CreatedAt            string               `json:"created_at"`
	StartedAt            string               `json:"started_at,omitempty"`
	CompletedAt          string               `json:"completed_at,omitempty"`

	// mu serializes all mutation and inspection of node state for this
	// graph. Cross-graph operations need no coordination.
	mu sync.Mutex
}

// nodesBySeq returns the graph's nodes in insertion order. Callers must hold
// g.mu.
func (g *TaskGraph) nodesBySeq() []*TaskNode {
	out := make([]*TaskNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// EdgeCount returns the number of dependency edges. Safe on a detached copy;
// on a live graph callers must hold g.mu.
func (g *TaskGraph) EdgeCount() int {
	total := 0
	for _, succ := range g.Edges {
		total += len(succ)
	}
	return total
}

// clone returns a deep copy of the graph with no live internal pointers.
// Copies are safe for callers to read and render without holding any lock.
// The clone's mutex is fresh and unlocked.
func (g *TaskGraph) clone() *TaskGraph {
	c := &TaskGraph{
		ID:                   g.ID,
		Name:                 g.Name,
		Description:          g.Description,
		RootID:               g.RootID,
		Nodes:                make(map[string]*TaskNode, len(g.Nodes)),
		Edges:                make(map[string][]string, len(g.Edges)),
		Status:               g.Status,
		CurrentPhase:         g.CurrentPhase,
		TotalEstimatedTokens: g.TotalEstimatedTokens,
		ActualTokensUsed:     g.ActualTokensUsed,
		CreatedAt:            g.CreatedAt,
		StartedAt:            g.StartedAt,
		CompletedAt:          g.CompletedAt,
	}
	for id, n := range g.Nodes {
		c.Nodes[id] = n.clone()
	}
	for id, succ := range g.Edges {
		c.Edges[id] = append([]string(nil), succ...)
	}
	return c
}

// NodesInOrder returns the graph's nodes sorted by insertion order. Intended
// for detached copies returned by the store; on a live graph callers must
// hold g.mu.
func (g *TaskGraph) NodesInOrder() []*TaskNode {
	return g.nodesBySeq()
}
