package taskgraph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// newGraphID mints graph ids. Package-level variable so tests can pin ids.
var newGraphID = uuid.NewString

// NodeSpec describes one node of a graph under construction. Specs are the
// input to both the template instantiator and custom graph assembly; the
// order of the slice fixes each node's insertion sequence.
type NodeSpec struct {
	ID              string
	Name            string
	Description     string
	Phase           Phase
	DependsOn       []string
	EstimatedTokens int
	Tools           []string
	Priority        int
	MaxRetries      int
	Files           []string
	Constraints     []string
}

// assembleGraph validates the specs and builds a fully wired TaskGraph.
//
// Validation fails fast: any duplicate id, unknown or self dependency,
// invalid phase, negative budget, or dependency cycle rejects the whole
// input and nothing is returned. On success every node carries consistent
// DependsOn/Dependents sets, the edge map agrees with both, nodes without
// dependencies start ready, and the rest start pending.
func assembleGraph(name, description string, specs []NodeSpec) (*TaskGraph, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: graph name is required", ErrInvalidGraph)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: graph needs at least one node", ErrInvalidGraph)
	}

	seen := make(map[string]bool, len(specs))
	for _, sp := range specs {
		if strings.TrimSpace(sp.ID) == "" {
			return nil, fmt.Errorf("%w: node id is required", ErrInvalidGraph)
		}
		if seen[sp.ID] {
			return nil, fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, sp.ID)
		}
		seen[sp.ID] = true
		if err := ValidatePhase(sp.Phase); err != nil {
			return nil, fmt.Errorf("%w: node %q: %v", ErrInvalidGraph, sp.ID, err)
		}
		if sp.EstimatedTokens < 0 {
			return nil, fmt.Errorf("%w: node %q: estimated tokens must be non-negative", ErrInvalidGraph, sp.ID)
		}
		if sp.MaxRetries < 0 {
			return nil, fmt.Errorf("%w: node %q: max retries must be non-negative", ErrInvalidGraph, sp.ID)
		}
	}

	for _, sp := range specs {
		depSeen := make(map[string]bool, len(sp.DependsOn))
		for _, dep := range sp.DependsOn {
			if dep == sp.ID {
				return nil, fmt.Errorf("%w: node %q depends on itself", ErrInvalidGraph, sp.ID)
			}
			if !seen[dep] {
				return nil, fmt.Errorf("%w: node %q depends on unknown node %q", ErrInvalidGraph, sp.ID, dep)
			}
			if depSeen[dep] {
				return nil, fmt.Errorf("%w: node %q lists dependency %q twice", ErrInvalidGraph, sp.ID, dep)
			}
			depSeen[dep] = true
		}
	}

	now := nowStamp()
	g := &TaskGraph{
		ID:          newGraphID(),
		Name:        name,
		Description: description,
		Nodes:       make(map[string]*TaskNode, len(specs)),
		Edges:       make(map[string][]string, len(specs)),
		Status:      GraphPending,
		CreatedAt:   now,
	}

	for i, sp := range specs {
		n := &TaskNode{
			ID:              sp.ID,
			Name:            sp.Name,
			Description:     sp.Description,
			Phase:           sp.Phase,
			Status:          NodePending,
			DependsOn:       append([]string(nil), sp.DependsOn...),
			Dependents:      []string{},
			EstimatedTokens: sp.EstimatedTokens,
			Tools:           append([]string(nil), sp.Tools...),
			Priority:        sp.Priority,
			MaxRetries:      sp.MaxRetries,
			Files:           append([]string(nil), sp.Files...),
			Constraints:     append([]string(nil), sp.Constraints...),
			CreatedAt:       now,
			seq:             i,
		}
		if n.Name == "" {
			n.Name = n.ID
		}
		g.Nodes[n.ID] = n
		g.Edges[n.ID] = []string{}
		g.TotalEstimatedTokens += n.EstimatedTokens
	}

	// Wire the derived relations in spec order so edge lists and dependent
	// lists are deterministic.
	for _, sp := range specs {
		for _, dep := range sp.DependsOn {
			g.Edges[dep] = append(g.Edges[dep], sp.ID)
			g.Nodes[dep].Dependents = append(g.Nodes[dep].Dependents, sp.ID)
		}
	}

	if cycle := findCycle(g); cycle != nil {
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
	}

	// An acyclic graph always has at least one source; the first one in
	// insertion order becomes the designated root.
	for _, n := range g.nodesBySeq() {
		if len(n.DependsOn) == 0 {
			n.Status = NodeReady
			if g.RootID == "" {
				g.RootID = n.ID
			}
		}
	}

	return g, nil
}

// findCycle runs a depth-first search over the dependency edges and returns
// one cycle as an id path (closed, first id repeated at the end), or nil if
// the graph is acyclic. Traversal follows insertion order so the witness is
// stable for a given input.
func findCycle(g *TaskGraph) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(g.Nodes))
	parent := make(map[string]string, len(g.Nodes))

	var cycle []string

	var dfs func(u string) bool
	dfs = func(u string) bool {
		color[u] = gray
		for _, v := range g.Edges[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back edge u -> v closes a cycle. Walk parents from u
				// back to v to reconstruct it.
				path := []string{v}
				for cur := u; cur != v; cur = parent[cur] {
					path = append(path, cur)
				}
				path = append(path, v)
				for i := len(path) - 1; i >= 0; i-- {
					cycle = append(cycle, path[i])
				}
				return true
			}
		}
		color[u] = black
		return false
	}

	for _, n := range g.nodesBySeq() {
		if color[n.ID] != white {
			continue
		}
		if dfs(n.ID) {
			break
		}
	}

	return cycle
}
