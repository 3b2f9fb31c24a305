package taskgraph

import (
	"fmt"
	"sync"
)

// Store owns every live task graph, keyed by graph id. It is the one
// stateful object of the engine: construct it explicitly and pass it to
// whatever needs graphs, so independent engines can coexist in tests.
//
// All state is process memory. Graphs are gone on restart unless the caller
// uses the explicit Snapshot/Restore boundary; the engine never persists on
// its own.
//
// Reads hand out deep copies, so callers can render results without holding
// any lock. Mutations run under the target graph's own mutex, giving the
// single-writer guarantee per graph id that out-of-order completion
// reporting requires. Operations on different graphs never block each other.
type Store struct {
	mu     sync.RWMutex
	graphs map[string]*TaskGraph
	order  []string
}

// NewStore returns an empty engine store.
func NewStore() *Store {
	return &Store{
		graphs: make(map[string]*TaskGraph),
	}
}

// add registers a freshly assembled graph.
func (s *Store) add(g *TaskGraph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[g.ID] = g
	s.order = append(s.order, g.ID)
}

// live returns the live graph pointer, or ErrNotFound.
func (s *Store) live(graphID string) (*TaskGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.graphs[graphID]
	if !ok {
		return nil, fmt.Errorf("%w: graph %q", ErrNotFound, graphID)
	}
	return g, nil
}

// withGraph runs fn on the live graph with that graph's mutex held. Every
// lifecycle mutation goes through here.
func (s *Store) withGraph(graphID string, fn func(*TaskGraph) error) error {
	g, err := s.live(graphID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g)
}

// Get returns a deep copy of the graph, safe to read and render freely.
func (s *Store) Get(graphID string) (*TaskGraph, error) {
	g, err := s.live(graphID)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clone(), nil
}

// List returns deep copies of all graphs in creation order.
func (s *Store) List() []*TaskGraph {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	out := make([]*TaskGraph, 0, len(ids))
	for _, id := range ids {
		g, err := s.Get(id)
		if err != nil {
			// Deleted between the id scan and the copy; skip.
			continue
		}
		out = append(out, g)
	}
	return out
}

// Delete removes a graph from the store. Deleting an unknown id returns
// ErrNotFound so the caller can report it, nothing else changes.
func (s *Store) Delete(graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.graphs[graphID]; !ok {
		return fmt.Errorf("%w: graph %q", ErrNotFound, graphID)
	}
	delete(s.graphs, graphID)
	for i, id := range s.order {
		if id == graphID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of live graphs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.graphs)
}

// EngineStats aggregates state across every graph in the store.
type EngineStats struct {
	Graphs          int                 `json:"graphs"`
	GraphsByStatus  map[GraphStatus]int `json:"graphs_by_status"`
	Nodes           int                 `json:"nodes"`
	NodesByStatus   map[NodeStatus]int  `json:"nodes_by_status"`
	EstimatedTokens int                 `json:"estimated_tokens"`
	ActualTokens    int                 `json:"actual_tokens"`
}

// Stats rolls up graph and node counts for the whole engine.
func (s *Store) Stats() EngineStats {
	stats := EngineStats{
		GraphsByStatus: make(map[GraphStatus]int),
		NodesByStatus:  make(map[NodeStatus]int),
	}
	for _, g := range s.List() {
		stats.Graphs++
		stats.GraphsByStatus[g.Status]++
		stats.EstimatedTokens += g.TotalEstimatedTokens
		stats.ActualTokens += g.ActualTokensUsed
		for _, n := range g.Nodes {
			stats.Nodes++
			stats.NodesByStatus[n.Status]++
		}
	}
	return stats
}
