// Package workflowviz builds presentation-only workflow diagrams.
//
// A workflow Graph is deliberately not a task graph: it may contain cycles
// and conditionally labeled edges, carries no readiness or retry semantics,
// and exists purely to be rendered. Execution state lives in the taskgraph
// package; this one only draws it.
package workflowviz

import (
	"fmt"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// StepKind selects the shape a step renders with.
type StepKind string

const (
	StepTask     StepKind = "task"
	StepDecision StepKind = "decision"
	StepJoin     StepKind = "join"
)

var validKinds = map[StepKind]bool{
	StepTask:     true,
	StepDecision: true,
	StepJoin:     true,
}

// Status selects the color class a step renders with.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusActive  Status = "active"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

var validStatuses = map[Status]bool{
	StatusPending: true,
	StatusReady:   true,
	StatusActive:  true,
	StatusDone:    true,
	StatusFailed:  true,
	StatusSkipped: true,
}

// statusOrder fixes the emission order of style classes so rendered output
// is deterministic.
var statusOrder = []Status{
	StatusPending, StatusReady, StatusActive, StatusDone, StatusFailed, StatusSkipped,
}

// Step is one box in a workflow diagram.
type Step struct {
	ID     string
	Label  string
	Kind   StepKind
	Status Status
}

// Edge connects two steps. Condition labels the edge for decision branches
// ("yes", "tests pass"); plain edges leave it empty.
type Edge struct {
	From      string
	To        string
	Condition string
}

// Graph is an ordered collection of steps and edges. Steps and edges render
// in insertion order.
type Graph struct {
	Title string
	steps []Step
	index map[string]int
	edges []Edge
}

// New creates an empty workflow graph.
func New(title string) *Graph {
	return &Graph{
		Title: title,
		index: make(map[string]int),
	}
}

// AddStep appends a step. Missing kind and status default to a pending
// task; a missing label defaults to the id.
func (g *Graph) AddStep(s Step) error {
	if s.ID == "" {
		return fmt.Errorf("workflowviz: step id cannot be empty")
	}
	if _, exists := g.index[s.ID]; exists {
		return fmt.Errorf("workflowviz: duplicate step id %q", s.ID)
	}
	if s.Kind == "" {
		s.Kind = StepTask
	}
	if !validKinds[s.Kind] {
		return fmt.Errorf("workflowviz: unknown step kind %q", s.Kind)
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	if !validStatuses[s.Status] {
		return fmt.Errorf("workflowviz: unknown step status %q", s.Status)
	}
	if s.Label == "" {
		s.Label = s.ID
	}
	g.index[s.ID] = len(g.steps)
	g.steps = append(g.steps, s)
	return nil
}

// AddEdge connects two existing steps. Unlike a task graph, edges may form
// cycles: a retry loop back to an earlier step is a normal thing to draw.
func (g *Graph) AddEdge(from, to, condition string) error {
	if _, ok := g.index[from]; !ok {
		return fmt.Errorf("workflowviz: edge references unknown step %q", from)
	}
	if _, ok := g.index[to]; !ok {
		return fmt.Errorf("workflowviz: edge references unknown step %q", to)
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Condition: condition})
	return nil
}

// Steps returns the steps in insertion order.
func (g *Graph) Steps() []Step {
	out := make([]Step, len(g.steps))
	copy(out, g.steps)
	return out
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// FromTaskGraph projects an execution graph into a drawable workflow.
// Fan-in points (two or more dependencies) become join steps; everything
// else is a task. Statuses carry over so the diagram shows progress.
func FromTaskGraph(tg *taskgraph.TaskGraph) *Graph {
	g := New(tg.Name)
	for _, n := range tg.NodesInOrder() {
		kind := StepTask
		if len(n.DependsOn) >= 2 {
			kind = StepJoin
		}
		// Ids come from a validated graph, so AddStep cannot fail here.
		g.AddStep(Step{
			ID:     n.ID,
			Label:  n.Name,
			Kind:   kind,
			Status: statusFor(n.Status),
		})
	}
	for _, n := range tg.NodesInOrder() {
		for _, dep := range n.DependsOn {
			g.AddEdge(dep, n.ID, "")
		}
	}
	return g
}

func statusFor(ns taskgraph.NodeStatus) Status {
	switch ns {
	case taskgraph.NodeReady:
		return StatusReady
	case taskgraph.NodeRunning:
		return StatusActive
	case taskgraph.NodeCompleted:
		return StatusDone
	case taskgraph.NodeFailed:
		return StatusFailed
	case taskgraph.NodeSkipped:
		return StatusSkipped
	default:
		return StatusPending
	}
}
