package taskgraph

// RunBatch is one advisory dispatch group: nodes from a single level that
// the caller could start together.
type RunBatch struct {
	Level   int      `json:"level"`
	NodeIDs []string `json:"node_ids"`
}

// RunPlan is the batched execution plan for whatever work remains in a
// graph. It is advice, not a reservation: building it mutates nothing, and
// the caller still drives every node through start/complete/fail.
type RunPlan struct {
	GraphID        string     `json:"graph_id"`
	MaxParallel    int        `json:"max_parallel"`
	Batches        []RunBatch `json:"batches"`
	RemainingNodes int        `json:"remaining_nodes"`
}

// BuildRunPlan derives the plan from the parallel levels: batch by batch in
// level order, each level stripped of nodes already completed or skipped,
// then chunked so no batch exceeds maxParallel. A maxParallel of zero or
// less means unchunked, one batch per level.
func (s *Store) BuildRunPlan(graphID string, maxParallel int) (*RunPlan, error) {
	var plan *RunPlan
	err := s.withGraph(graphID, func(g *TaskGraph) error {
		a, err := analyzeLocked(g)
		if err != nil {
			return err
		}

		plan = &RunPlan{GraphID: g.ID, MaxParallel: maxParallel}
		for levelIdx, level := range a.Levels {
			var remaining []string
			for _, id := range level {
				switch g.Nodes[id].Status {
				case NodeCompleted, NodeSkipped:
					continue
				default:
					remaining = append(remaining, id)
				}
			}
			for len(remaining) > 0 {
				chunk := remaining
				if maxParallel > 0 && len(chunk) > maxParallel {
					chunk = chunk[:maxParallel]
				}
				plan.Batches = append(plan.Batches, RunBatch{
					Level:   levelIdx,
					NodeIDs: append([]string(nil), chunk...),
				})
				plan.RemainingNodes += len(chunk)
				remaining = remaining[len(chunk):]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}
