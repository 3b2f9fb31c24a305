package workflowviz_test

import (
	"testing"

	"github.com/taskloom/taskloom/internal/taskgraph"
	"github.com/taskloom/taskloom/internal/workflowviz"
)

func addStep(t *testing.T, g *workflowviz.Graph, s workflowviz.Step) {
	t.Helper()
	if err := g.AddStep(s); err != nil {
		t.Fatalf("AddStep(%s): %v", s.ID, err)
	}
}

func TestAddStep_Defaults(t *testing.T) {
	g := workflowviz.New("wf")
	addStep(t, g, workflowviz.Step{ID: "build"})

	steps := g.Steps()
	if len(steps) != 1 {
		t.Fatalf("len = %d, want 1", len(steps))
	}
	s := steps[0]
	if s.Kind != workflowviz.StepTask {
		t.Errorf("Kind = %q, want task", s.Kind)
	}
	if s.Status != workflowviz.StatusPending {
		t.Errorf("Status = %q, want pending", s.Status)
	}
	if s.Label != "build" {
		t.Errorf("Label = %q, want id fallback", s.Label)
	}
}

func TestAddStep_Validation(t *testing.T) {
	g := workflowviz.New("wf")
	addStep(t, g, workflowviz.Step{ID: "a"})

	cases := []struct {
		name string
		step workflowviz.Step
	}{
		{"empty id", workflowviz.Step{}},
		{"duplicate id", workflowviz.Step{ID: "a"}},
		{"bad kind", workflowviz.Step{ID: "b", Kind: "loop"}},
		{"bad status", workflowviz.Step{ID: "c", Status: "on-fire"}},
	}
	for _, tc := range cases {
		if err := g.AddStep(tc.step); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestAddEdge_UnknownEndpointRejected(t *testing.T) {
	g := workflowviz.New("wf")
	addStep(t, g, workflowviz.Step{ID: "a"})

	if err := g.AddEdge("a", "ghost", ""); err == nil {
		t.Error("expected error for unknown target")
	}
	if err := g.AddEdge("ghost", "a", ""); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestAddEdge_CyclesAllowed(t *testing.T) {
	g := workflowviz.New("wf")
	addStep(t, g, workflowviz.Step{ID: "test"})
	addStep(t, g, workflowviz.Step{ID: "fix"})

	if err := g.AddEdge("test", "fix", "failing"); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := g.AddEdge("fix", "test", ""); err != nil {
		t.Fatalf("cycle edge rejected: %v", err)
	}
	if len(g.Edges()) != 2 {
		t.Errorf("edges = %d, want 2", len(g.Edges()))
	}
}

func TestSteps_ReturnsCopies(t *testing.T) {
	g := workflowviz.New("wf")
	addStep(t, g, workflowviz.Step{ID: "a", Label: "original"})

	g.Steps()[0].Label = "mutated"
	if g.Steps()[0].Label != "original" {
		t.Error("caller mutation leaked into the graph")
	}
}

func newDiamond(t *testing.T) (*taskgraph.Store, *taskgraph.TaskGraph) {
	t.Helper()
	store := taskgraph.NewStore()
	g, err := store.CreateGraph(taskgraph.CreateRequest{
		Name:     "diamond",
		TaskType: taskgraph.TypeCustom,
		Nodes: []taskgraph.NodeSpec{
			{ID: "a", Name: "Plan"},
			{ID: "b", Name: "Left", DependsOn: []string{"a"}},
			{ID: "c", Name: "Right", DependsOn: []string{"a"}},
			{ID: "d", Name: "Merge", DependsOn: []string{"b", "c"}},
		},
	})
	if err != nil {
		t.Fatalf("CreateGraph: %v", err)
	}
	return store, g
}

func TestFromTaskGraph_ProjectsDiamond(t *testing.T) {
	_, tg := newDiamond(t)
	g := workflowviz.FromTaskGraph(tg)

	if g.Title != "diamond" {
		t.Errorf("Title = %q", g.Title)
	}

	steps := g.Steps()
	if len(steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(steps))
	}
	byID := make(map[string]workflowviz.Step)
	for _, s := range steps {
		byID[s.ID] = s
	}

	if byID["d"].Kind != workflowviz.StepJoin {
		t.Errorf("fan-in step kind = %q, want join", byID["d"].Kind)
	}
	for _, id := range []string{"a", "b", "c"} {
		if byID[id].Kind != workflowviz.StepTask {
			t.Errorf("step %s kind = %q, want task", id, byID[id].Kind)
		}
	}
	if byID["a"].Label != "Plan" {
		t.Errorf("label = %q, want node name", byID["a"].Label)
	}

	if len(g.Edges()) != 4 {
		t.Errorf("edges = %d, want 4", len(g.Edges()))
	}
}

func TestFromTaskGraph_CarriesStatus(t *testing.T) {
	store, tg := newDiamond(t)
	if _, err := store.StartNode(tg.ID, "a"); err != nil {
		t.Fatalf("StartNode: %v", err)
	}

	g := workflowviz.FromTaskGraph(tg)
	var got workflowviz.Status
	for _, s := range g.Steps() {
		if s.ID == "a" {
			got = s.Status
		}
	}
	if got != workflowviz.StatusActive {
		t.Errorf("running node projected as %q, want active", got)
	}
}
