package taskgraph

import "fmt"

// CompleteResult reports what a completion changed: the node itself, any
// dependents that flipped to ready because their whole dependency set is now
// satisfied, and the graph rollup after the call.
type CompleteResult struct {
	Node        *TaskNode
	NewlyReady  []*TaskNode
	AlreadyDone bool
	GraphStatus GraphStatus
}

// FailResult reports the outcome of a failure: whether the node re-entered
// the ready pool, how much retry budget remains, and which dependents were
// skipped if the budget is exhausted.
type FailResult struct {
	Node        *TaskNode
	WillRetry   bool
	RetriesLeft int
	Skipped     []*TaskNode
	AlreadyDone bool
	GraphStatus GraphStatus
}

// StartNode transitions a ready node to running and stamps StartedAt. Only
// ready nodes can start: anything else, including an unknown node id, is an
// expected failure the caller reports and moves past, not a fault.
func (s *Store) StartNode(graphID, nodeID string) (*TaskNode, error) {
	var out *TaskNode
	err := s.withGraph(graphID, func(g *TaskGraph) error {
		n, ok := g.Nodes[nodeID]
		if !ok {
			return fmt.Errorf("%w: node %q in graph %q", ErrNotFound, nodeID, graphID)
		}
		if n.Status != NodeReady {
			return fmt.Errorf("%w: node %q is %s, not ready", ErrInvalidState, nodeID, n.Status)
		}
		n.Status = NodeRunning
		n.StartedAt = nowStamp()
		g.CurrentPhase = n.Phase
		if g.StartedAt == "" {
			g.StartedAt = n.StartedAt
		}
		rollupStatus(g)
		out = n.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteNode marks a node completed, records its result and token spend,
// and re-evaluates every dependent against the full current state: each one
// whose entire dependency set is now completed flips from pending to ready.
//
// Completion is tolerated from any non-terminal status, so a caller that
// never reported start_node still gets its work recorded. Completing an
// already terminal node is an idempotent no-op: no second token accrual, no
// re-propagation, AlreadyDone set on the result.
func (s *Store) CompleteNode(graphID, nodeID, result string, tokensUsed int) (*CompleteResult, error) {
	var res *CompleteResult
	err := s.withGraph(graphID, func(g *TaskGraph) error {
		n, ok := g.Nodes[nodeID]
		if !ok {
			return fmt.Errorf("%w: node %q in graph %q", ErrNotFound, nodeID, graphID)
		}
		if n.Status.Terminal() {
			res = &CompleteResult{Node: n.clone(), AlreadyDone: true, GraphStatus: g.Status}
			return nil
		}

		n.Status = NodeCompleted
		n.CompletedAt = nowStamp()
		if result != "" {
			n.Result = result
		}
		if tokensUsed > 0 {
			n.ActualTokens += tokensUsed
			g.ActualTokensUsed += tokensUsed
		}

		var newlyReady []*TaskNode
		for _, depID := range g.Edges[n.ID] {
			d := g.Nodes[depID]
			if d.Status == NodePending && depsSatisfied(g, d) {
				d.Status = NodeReady
				newlyReady = append(newlyReady, d.clone())
			}
		}

		rollupStatus(g)
		res = &CompleteResult{Node: n.clone(), NewlyReady: newlyReady, GraphStatus: g.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FailNode records a failure for a running node. With retry budget left the
// node goes straight back to ready and the caller decides when to try again;
// the engine imposes no delay. Past the budget the node is terminally failed
// and every transitive dependent still waiting is skipped, because a failed
// prerequisite makes all downstream work unreachable.
//
// Failing an already terminal node is an idempotent no-op. Failing a node
// that is neither running nor terminal is an invalid transition.
func (s *Store) FailNode(graphID, nodeID, errMsg string) (*FailResult, error) {
	var res *FailResult
	err := s.withGraph(graphID, func(g *TaskGraph) error {
		n, ok := g.Nodes[nodeID]
		if !ok {
			return fmt.Errorf("%w: node %q in graph %q", ErrNotFound, nodeID, graphID)
		}
		if n.Status.Terminal() {
			res = &FailResult{Node: n.clone(), AlreadyDone: true, GraphStatus: g.Status}
			return nil
		}
		if n.Status != NodeRunning {
			return fmt.Errorf("%w: node %q is %s, only running nodes can fail", ErrInvalidState, nodeID, n.Status)
		}

		n.Error = errMsg
		if n.RetryCount < n.MaxRetries {
			n.RetryCount++
			n.Status = NodeReady
			rollupStatus(g)
			res = &FailResult{
				Node:        n.clone(),
				WillRetry:   true,
				RetriesLeft: n.MaxRetries - n.RetryCount,
				GraphStatus: g.Status,
			}
			return nil
		}

		n.Status = NodeFailed
		n.CompletedAt = nowStamp()
		skipped := cascadeSkip(g, n.ID)
		rollupStatus(g)
		res = &FailResult{Node: n.clone(), Skipped: skipped, GraphStatus: g.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// cascadeSkip marks every transitive dependent of the failed node as
// skipped, breadth first, following the forward edge map. Nodes that are
// already terminal end the walk there: an earlier cascade has handled them
// and their subtree. Nothing outside the dependent closure is touched.
// Callers must hold g.mu.
func cascadeSkip(g *TaskGraph, failedID string) []*TaskNode {
	var skipped []*TaskNode
	queue := append([]string(nil), g.Edges[failedID]...)
	visited := map[string]bool{failedID: true}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		n := g.Nodes[id]
		if n.Status.Terminal() {
			continue
		}
		n.Status = NodeSkipped
		skipped = append(skipped, n.clone())
		queue = append(queue, g.Edges[id]...)
	}
	return skipped
}

// rollupStatus recomputes the graph-level status from node statuses: failed
// wins over everything, a fully terminal graph with no failures is
// completed, anything else with work in flight is running. CompletedAt is
// stamped once, when the last node reaches a terminal status. Callers must
// hold g.mu.
func rollupStatus(g *TaskGraph) {
	anyFailed := false
	allDone := true
	for _, n := range g.Nodes {
		if n.Status == NodeFailed {
			anyFailed = true
		}
		if !n.Status.Terminal() {
			allDone = false
		}
	}

	switch {
	case anyFailed:
		g.Status = GraphFailed
	case allDone:
		g.Status = GraphCompleted
	default:
		g.Status = GraphRunning
	}

	if allDone && g.CompletedAt == "" {
		g.CompletedAt = nowStamp()
	}
}
