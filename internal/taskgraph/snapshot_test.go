package taskgraph

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	s := NewStore()
	g1 := createCustom(t, s, "first", diamondSpecs())
	g2, err := s.CreateGraph(CreateRequest{Name: "second", TaskType: TypeBugfix})
	if err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}
	runAndComplete(t, s, g1.ID, "A", 25)

	var buf bytes.Buffer
	if err := s.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	restored := NewStore()
	if err := restored.Restore(&buf); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if restored.Count() != 2 {
		t.Fatalf("restored count = %d, want 2", restored.Count())
	}
	got, err := restored.Get(g1.ID)
	if err != nil {
		t.Fatalf("Get after restore failed: %v", err)
	}
	if got.Nodes["A"].Status != NodeCompleted {
		t.Errorf("A status = %s, want completed preserved", got.Nodes["A"].Status)
	}
	if got.ActualTokensUsed != 25 {
		t.Errorf("ActualTokensUsed = %d, want 25", got.ActualTokensUsed)
	}

	// Insertion order survives: ready ordering and analysis still work.
	ready := restored.NextNodes(g1.ID)
	if !reflect.DeepEqual(readyIDs(ready), []string{"B", "C"}) {
		t.Errorf("ready after restore = %v, want [B C]", readyIDs(ready))
	}
	a, err := restored.Analyze(g1.ID)
	if err != nil {
		t.Fatalf("Analyze after restore failed: %v", err)
	}
	if !reflect.DeepEqual(a.CriticalPath, []string{"A", "B", "D"}) {
		t.Errorf("critical path after restore = %v, want [A B D]", a.CriticalPath)
	}

	if _, err := restored.Get(g2.ID); err != nil {
		t.Errorf("second graph missing after restore: %v", err)
	}
}

func TestRestore_ReplacesExistingContents(t *testing.T) {
	donor := NewStore()
	createCustom(t, donor, "only", diamondSpecs())
	var buf bytes.Buffer
	if err := donor.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	s := NewStore()
	stale := createCustom(t, s, "stale", diamondSpecs())
	if err := s.Restore(&buf); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if s.Count() != 1 {
		t.Errorf("count = %d, want 1: restore replaces the arena", s.Count())
	}
	if _, err := s.Get(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale graph should be gone, got: %v", err)
	}
}

func TestRestore_RejectsUnknownEdgeTarget(t *testing.T) {
	in := `{
  "version": 1,
  "graphs": [
    {
      "id": "g1",
      "name": "broken",
      "root_id": "a",
      "nodes": [{"id": "a", "name": "a", "phase": "impl", "status": "ready", "depends_on": [], "dependents": [], "estimated_tokens": 1, "actual_tokens": 0, "priority": 0, "retry_count": 0, "max_retries": 0, "created_at": "2026-03-01T09:30:00Z"}],
      "edges": {"a": ["ghost"]},
      "status": "pending",
      "total_estimated_tokens": 1,
      "actual_tokens_used": 0,
      "created_at": "2026-03-01T09:30:00Z"
    }
  ]
}`
	s := NewStore()
	err := s.Restore(strings.NewReader(in))
	if !errors.Is(err, ErrInvalidGraph) {
		t.Errorf("edge to unknown node should wrap ErrInvalidGraph, got: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("count = %d, want 0: a corrupt snapshot must leave the store untouched", s.Count())
	}
}

func TestRestore_RejectsCycle(t *testing.T) {
	in := `{
  "version": 1,
  "graphs": [
    {
      "id": "g1",
      "name": "loop",
      "root_id": "a",
      "nodes": [
        {"id": "a", "name": "a", "phase": "impl", "status": "ready", "depends_on": [], "dependents": [], "estimated_tokens": 1, "actual_tokens": 0, "priority": 0, "retry_count": 0, "max_retries": 0, "created_at": "2026-03-01T09:30:00Z"},
        {"id": "b", "name": "b", "phase": "impl", "status": "pending", "depends_on": [], "dependents": [], "estimated_tokens": 1, "actual_tokens": 0, "priority": 0, "retry_count": 0, "max_retries": 0, "created_at": "2026-03-01T09:30:00Z"}
      ],
      "edges": {"a": ["b"], "b": ["a"]},
      "status": "pending",
      "total_estimated_tokens": 2,
      "actual_tokens_used": 0,
      "created_at": "2026-03-01T09:30:00Z"
    }
  ]
}`
	s := NewStore()
	err := s.Restore(strings.NewReader(in))
	if !errors.Is(err, ErrCycle) {
		t.Errorf("cyclic snapshot should wrap ErrCycle, got: %v", err)
	}
}

func TestRestore_RejectsWrongVersion(t *testing.T) {
	s := NewStore()
	err := s.Restore(strings.NewReader(`{"version": 99, "graphs": []}`))
	if !errors.Is(err, ErrInvalidGraph) {
		t.Errorf("wrong version should wrap ErrInvalidGraph, got: %v", err)
	}
}

func TestRestore_RejectsNodelessGraph(t *testing.T) {
	in := `{
  "version": 1,
  "graphs": [
    {
      "id": "g1",
      "name": "hollow",
      "root_id": "",
      "nodes": [],
      "edges": {},
      "status": "pending",
      "total_estimated_tokens": 0,
      "actual_tokens_used": 0,
      "created_at": "2026-03-01T09:30:00Z"
    }
  ]
}`
	s := NewStore()
	err := s.Restore(strings.NewReader(in))
	if !errors.Is(err, ErrInvalidGraph) {
		t.Errorf("nodeless graph should wrap ErrInvalidGraph, got: %v", err)
	}
}

func TestSnapshot_EmptyStore(t *testing.T) {
	s := NewStore()
	var buf bytes.Buffer
	if err := s.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot of empty store failed: %v", err)
	}
	restored := NewStore()
	if err := restored.Restore(&buf); err != nil {
		t.Fatalf("Restore of empty snapshot failed: %v", err)
	}
	if restored.Count() != 0 {
		t.Errorf("count = %d, want 0", restored.Count())
	}
}
