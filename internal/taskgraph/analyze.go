package taskgraph

import (
	"container/heap"
	"fmt"
	"math"
)

// Analysis is the scheduling picture of one graph, derived from live state
// on every call and never cached. Node references are ids; callers that
// need names resolve them against the graph copy they already hold.
type Analysis struct {
	GraphID                  string              `json:"graph_id"`
	GraphStatus              GraphStatus         `json:"graph_status"`
	TotalNodes               int                 `json:"total_nodes"`
	StatusCounts             map[NodeStatus]int  `json:"status_counts"`
	Progress                 int                 `json:"progress"`
	CriticalPath             []string            `json:"critical_path"`
	CriticalPathTokens       int                 `json:"critical_path_tokens"`
	Levels                   [][]string          `json:"levels"`
	TopologicalOrder         []string            `json:"topological_order"`
	TotalEstimatedTokens     int                 `json:"total_estimated_tokens"`
	ActualTokensUsed         int                 `json:"actual_tokens_used"`
	EstimatedRemainingTokens int                 `json:"estimated_remaining_tokens"`
}

// Analyze derives counts, critical path, parallel levels, progress, and
// remaining cost for one graph.
//
// Construction already rejected cyclic inputs, so a cycle surfacing here
// means the engine's own invariant broke: the error wraps ErrCycle and the
// caller is expected to log it loudly instead of treating it as a normal
// failure.
func (s *Store) Analyze(graphID string) (*Analysis, error) {
	var out *Analysis
	err := s.withGraph(graphID, func(g *TaskGraph) error {
		a, err := analyzeLocked(g)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// analyzeLocked does the real work. Callers must hold g.mu.
func analyzeLocked(g *TaskGraph) (*Analysis, error) {
	nodes, outgoing, incoming := indexGraph(g)

	order := topoOrder(nodes, outgoing)
	if len(order) != len(nodes) {
		return nil, fmt.Errorf("%w: graph %q has %d nodes unreachable by topological sort", ErrCycle, g.ID, len(nodes)-len(order))
	}

	a := &Analysis{
		GraphID:              g.ID,
		GraphStatus:          g.Status,
		TotalNodes:           len(nodes),
		StatusCounts:         make(map[NodeStatus]int),
		TotalEstimatedTokens: g.TotalEstimatedTokens,
		ActualTokensUsed:     g.ActualTokensUsed,
	}

	for _, n := range nodes {
		a.StatusCounts[n.Status]++
		if n.Status != NodeCompleted && n.Status != NodeSkipped {
			a.EstimatedRemainingTokens += n.EstimatedTokens
		}
	}
	a.Progress = int(math.Round(float64(a.StatusCounts[NodeCompleted]) / float64(len(nodes)) * 100))

	a.TopologicalOrder = make([]string, len(order))
	for i, idx := range order {
		a.TopologicalOrder[i] = nodes[idx].ID
	}

	a.CriticalPath, a.CriticalPathTokens = criticalPath(nodes, incoming, order)
	a.Levels = levelize(nodes, incoming, order)

	return a, nil
}

// indexGraph flattens the graph into canonical arrays indexed by insertion
// order: the node list, forward adjacency (dependents), and reverse
// adjacency (dependencies). Callers must hold g.mu.
func indexGraph(g *TaskGraph) (nodes []*TaskNode, outgoing, incoming [][]int) {
	nodes = g.nodesBySeq()
	idx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		idx[n.ID] = i
	}
	outgoing = make([][]int, len(nodes))
	incoming = make([][]int, len(nodes))
	for i, n := range nodes {
		for _, succ := range g.Edges[n.ID] {
			outgoing[i] = append(outgoing[i], idx[succ])
		}
		for _, dep := range n.DependsOn {
			incoming[i] = append(incoming[i], idx[dep])
		}
	}
	return nodes, outgoing, incoming
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder runs Kahn's algorithm over the canonical indices. The ready
// queue is a min-heap by index, so the ordering is deterministic for a given
// graph. A short result means a cycle: the remaining nodes all sit on one.
func topoOrder(nodes []*TaskNode, outgoing [][]int) []int {
	indeg := make([]int, len(nodes))
	for _, succs := range outgoing {
		for _, m := range succs {
			indeg[m]++
		}
	}

	ready := &intMinHeap{}
	heap.Init(ready)
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		out = append(out, i)
		for _, m := range outgoing[i] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// criticalPath finds the dependency chain with the highest cumulative token
// estimate in one pass over the topological order:
//
//	longest[v] = tokens[v] + max(longest[u] for u in deps(v))
//
// Predecessor pointers reconstruct the path; ties go to the
// earliest-inserted predecessor so the answer is stable.
func criticalPath(nodes []*TaskNode, incoming [][]int, order []int) ([]string, int) {
	longest := make([]int, len(nodes))
	pred := make([]int, len(nodes))
	for i := range pred {
		pred[i] = -1
	}

	for _, v := range order {
		best, bestPred := 0, -1
		for _, u := range incoming[v] {
			switch {
			case bestPred == -1, longest[u] > best:
				best, bestPred = longest[u], u
			case longest[u] == best && u < bestPred:
				bestPred = u
			}
		}
		longest[v] = nodes[v].EstimatedTokens + best
		pred[v] = bestPred
	}

	// Later topological positions win ties: costs are non-negative, so a
	// deeper node with the same total extends the path for free.
	end := -1
	for _, v := range order {
		if end == -1 || longest[v] >= longest[end] {
			end = v
		}
	}
	if end == -1 {
		return nil, 0
	}

	var rev []string
	for v := end; v != -1; v = pred[v] {
		rev = append(rev, nodes[v].ID)
	}
	path := make([]string, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path, longest[end]
}

// levelize partitions nodes into earliest-possible-start levels: a node's
// level is the length of its longest dependency chain from any source.
// Nodes inside a level share no dependency and could start together.
func levelize(nodes []*TaskNode, incoming [][]int, order []int) [][]string {
	depth := make([]int, len(nodes))
	maxDepth := 0
	for _, v := range order {
		for _, u := range incoming[v] {
			if depth[u]+1 > depth[v] {
				depth[v] = depth[u] + 1
			}
		}
		if depth[v] > maxDepth {
			maxDepth = depth[v]
		}
	}

	levels := make([][]string, maxDepth+1)
	for i, n := range nodes {
		levels[depth[i]] = append(levels[depth[i]], n.ID)
	}
	return levels
}
