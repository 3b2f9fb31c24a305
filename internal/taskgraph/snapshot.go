package taskgraph

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// The engine is ephemeral on purpose: graphs live in process memory and die
// with the process. Snapshot and Restore are the one explicit boundary for
// callers that want more. Nothing in the engine calls them implicitly, so
// crash-recovery semantics stay exactly as observed unless a caller opts in.

const snapshotVersion = 1

type snapshotFile struct {
	Version int              `json:"version"`
	SavedAt string           `json:"saved_at"`
	Graphs  []*graphSnapshot `json:"graphs"`
}

// graphSnapshot is the wire form of one graph. Nodes are a slice in
// insertion order, since the in-memory sequence numbers are not part of the
// JSON surface.
type graphSnapshot struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	Description          string              `json:"description,omitempty"`
	RootID               string              `json:"root_id"`
	Nodes                []*TaskNode         `json:"nodes"`
	Edges                map[string][]string `json:"edges"`
	Status               GraphStatus         `json:"status"`
	CurrentPhase         Phase               `json:"current_phase,omitempty"`
	TotalEstimatedTokens int                 `json:"total_estimated_tokens"`
	ActualTokensUsed     int                 `json:"actual_tokens_used"`
	CreatedAt            string              `json:"created_at"`
	StartedAt            string              `json:"started_at,omitempty"`
	CompletedAt          string              `json:"completed_at,omitempty"`
}

// Snapshot writes every graph in the store to w as indented JSON, in
// creation order.
func (s *Store) Snapshot(w io.Writer) error {
	file := snapshotFile{
		Version: snapshotVersion,
		SavedAt: nowStamp(),
	}
	for _, g := range s.List() {
		file.Graphs = append(file.Graphs, toSnapshot(g))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Restore replaces the store's entire contents with the graphs from r.
// Each graph is re-validated on the way in; a corrupt snapshot leaves the
// store untouched.
func (s *Store) Restore(r io.Reader) error {
	var file snapshotFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	if file.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", ErrInvalidGraph, file.Version)
	}

	graphs := make([]*TaskGraph, 0, len(file.Graphs))
	for _, snap := range file.Graphs {
		g, err := fromSnapshot(snap)
		if err != nil {
			return err
		}
		graphs = append(graphs, g)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs = make(map[string]*TaskGraph, len(graphs))
	s.order = s.order[:0]
	for _, g := range graphs {
		s.graphs[g.ID] = g
		s.order = append(s.order, g.ID)
	}
	return nil
}

// toSnapshot converts a detached graph copy into its wire form.
func toSnapshot(g *TaskGraph) *graphSnapshot {
	return &graphSnapshot{
		ID:                   g.ID,
		Name:                 g.Name,
		Description:          g.Description,
		RootID:               g.RootID,
		Nodes:                g.NodesInOrder(),
		Edges:                g.Edges,
		Status:               g.Status,
		CurrentPhase:         g.CurrentPhase,
		TotalEstimatedTokens: g.TotalEstimatedTokens,
		ActualTokensUsed:     g.ActualTokensUsed,
		CreatedAt:            g.CreatedAt,
		StartedAt:            g.StartedAt,
		CompletedAt:          g.CompletedAt,
	}
}

// fromSnapshot rebuilds a live graph, reassigning insertion sequence from
// slice position and refusing snapshots whose edges disagree with the node
// set or close a cycle.
func fromSnapshot(snap *graphSnapshot) (*TaskGraph, error) {
	if snap.ID == "" {
		return nil, fmt.Errorf("%w: snapshot graph without id", ErrInvalidGraph)
	}
	if len(snap.Nodes) == 0 {
		return nil, fmt.Errorf("%w: graph %q needs at least one node", ErrInvalidGraph, snap.ID)
	}
	g := &TaskGraph{
		ID:                   snap.ID,
		Name:                 snap.Name,
		Description:          snap.Description,
		RootID:               snap.RootID,
		Nodes:                make(map[string]*TaskNode, len(snap.Nodes)),
		Edges:                make(map[string][]string, len(snap.Nodes)),
		Status:               snap.Status,
		CurrentPhase:         snap.CurrentPhase,
		TotalEstimatedTokens: snap.TotalEstimatedTokens,
		ActualTokensUsed:     snap.ActualTokensUsed,
		CreatedAt:            snap.CreatedAt,
		StartedAt:            snap.StartedAt,
		CompletedAt:          snap.CompletedAt,
	}

	for i, n := range snap.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: graph %q: node without id", ErrInvalidGraph, snap.ID)
		}
		if _, dup := g.Nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: graph %q: duplicate node id %q", ErrInvalidGraph, snap.ID, n.ID)
		}
		c := n.clone()
		c.seq = i
		g.Nodes[n.ID] = c
		g.Edges[n.ID] = []string{}
	}

	for from, succs := range snap.Edges {
		if _, ok := g.Nodes[from]; !ok {
			return nil, fmt.Errorf("%w: graph %q: edge from unknown node %q", ErrInvalidGraph, snap.ID, from)
		}
		for _, to := range succs {
			if _, ok := g.Nodes[to]; !ok {
				return nil, fmt.Errorf("%w: graph %q: edge to unknown node %q", ErrInvalidGraph, snap.ID, to)
			}
		}
		g.Edges[from] = append([]string(nil), succs...)
	}

	if cycle := findCycle(g); cycle != nil {
		return nil, fmt.Errorf("%w: graph %q: %s", ErrCycle, snap.ID, strings.Join(cycle, " -> "))
	}
	return g, nil
}
