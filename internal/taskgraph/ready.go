package taskgraph

import "sort"

// depsSatisfied reports whether every dependency of n is completed. Nodes
// without dependencies are trivially satisfied. Callers must hold g.mu.
func depsSatisfied(g *TaskGraph, n *TaskNode) bool {
	for _, dep := range n.DependsOn {
		d, ok := g.Nodes[dep]
		if !ok || d.Status != NodeCompleted {
			return false
		}
	}
	return true
}

// NextNodes returns every node currently eligible to run, ordered by
// priority descending with insertion order as the stable tie-break.
//
// An unknown graph id or a graph with nothing ready both return an empty
// result: "nothing runnable right now" is a normal answer while work is in
// flight or finished, not an error. The call never mutates state.
func (s *Store) NextNodes(graphID string) []*TaskNode {
	out := []*TaskNode{}
	err := s.withGraph(graphID, func(g *TaskGraph) error {
		for _, n := range g.nodesBySeq() {
			if n.Status == NodeReady {
				out = append(out, n.clone())
			}
		}
		return nil
	})
	if err != nil {
		return []*TaskNode{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
