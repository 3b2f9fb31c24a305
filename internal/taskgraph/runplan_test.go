package taskgraph

import (
	"errors"
	"reflect"
	"testing"
)

func TestBuildRunPlan_OneBatchPerLevelUnchunked(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	plan, err := s.BuildRunPlan(g.ID, 0)
	if err != nil {
		t.Fatalf("BuildRunPlan failed: %v", err)
	}
	if len(plan.Batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(plan.Batches))
	}
	want := [][]string{{"A"}, {"B", "C"}, {"D"}}
	for i, batch := range plan.Batches {
		if !reflect.DeepEqual(batch.NodeIDs, want[i]) {
			t.Errorf("batch %d = %v, want %v", i, batch.NodeIDs, want[i])
		}
		if batch.Level != i {
			t.Errorf("batch %d level = %d, want %d", i, batch.Level, i)
		}
	}
	if plan.RemainingNodes != 4 {
		t.Errorf("RemainingNodes = %d, want 4", plan.RemainingNodes)
	}
}

func TestBuildRunPlan_ChunksByMaxParallel(t *testing.T) {
	s := NewStore()
	specs := []NodeSpec{
		{ID: "w1", Phase: PhaseImpl, EstimatedTokens: 1},
		{ID: "w2", Phase: PhaseImpl, EstimatedTokens: 1},
		{ID: "w3", Phase: PhaseImpl, EstimatedTokens: 1},
		{ID: "w4", Phase: PhaseImpl, EstimatedTokens: 1},
		{ID: "w5", Phase: PhaseImpl, EstimatedTokens: 1},
	}
	g := createCustom(t, s, "wide", specs)

	plan, err := s.BuildRunPlan(g.ID, 2)
	if err != nil {
		t.Fatalf("BuildRunPlan failed: %v", err)
	}
	wantSizes := []int{2, 2, 1}
	if len(plan.Batches) != len(wantSizes) {
		t.Fatalf("batches = %d, want %d", len(plan.Batches), len(wantSizes))
	}
	for i, batch := range plan.Batches {
		if len(batch.NodeIDs) != wantSizes[i] {
			t.Errorf("batch %d size = %d, want %d", i, len(batch.NodeIDs), wantSizes[i])
		}
		if batch.Level != 0 {
			t.Errorf("batch %d level = %d, want 0: chunks stay in their level", i, batch.Level)
		}
	}
}

func TestBuildRunPlan_SkipsFinishedWork(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	runAndComplete(t, s, g.ID, "A", 0)
	runAndComplete(t, s, g.ID, "B", 0)

	plan, err := s.BuildRunPlan(g.ID, 0)
	if err != nil {
		t.Fatalf("BuildRunPlan failed: %v", err)
	}
	want := [][]string{{"C"}, {"D"}}
	if len(plan.Batches) != 2 {
		t.Fatalf("batches = %v, want C then D", plan.Batches)
	}
	for i, batch := range plan.Batches {
		if !reflect.DeepEqual(batch.NodeIDs, want[i]) {
			t.Errorf("batch %d = %v, want %v", i, batch.NodeIDs, want[i])
		}
	}
	if plan.RemainingNodes != 2 {
		t.Errorf("RemainingNodes = %d, want 2", plan.RemainingNodes)
	}
}

func TestBuildRunPlan_DoesNotMutate(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	if _, err := s.BuildRunPlan(g.ID, 1); err != nil {
		t.Fatalf("BuildRunPlan failed: %v", err)
	}
	got, _ := s.Get(g.ID)
	if got.Nodes["A"].Status != NodeReady {
		t.Errorf("A status = %s, want ready: planning is advisory only", got.Nodes["A"].Status)
	}
	if got.Status != GraphPending {
		t.Errorf("graph status = %s, want pending", got.Status)
	}
}

func TestBuildRunPlan_UnknownGraph(t *testing.T) {
	s := NewStore()
	_, err := s.BuildRunPlan("nope", 2)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown graph should wrap ErrNotFound, got: %v", err)
	}
}
