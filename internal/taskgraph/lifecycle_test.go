package taskgraph

import (
	"errors"
	"testing"
)

// --- StartNode ---

func TestStartNode_FromReady(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	n := mustStart(t, s, g.ID, "A")
	if n.Status != NodeRunning {
		t.Errorf("status = %s, want running", n.Status)
	}
	if n.StartedAt != "2026-03-01T09:30:00Z" {
		t.Errorf("StartedAt = %s, want frozen stamp", n.StartedAt)
	}

	got, _ := s.Get(g.ID)
	if got.Status != GraphRunning {
		t.Errorf("graph status = %s, want running", got.Status)
	}
	if got.StartedAt == "" {
		t.Error("graph StartedAt should be stamped on first start")
	}
	if got.CurrentPhase != PhaseAnalysis {
		t.Errorf("CurrentPhase = %s, want analysis", got.CurrentPhase)
	}
}

func TestStartNode_PendingRejected(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	_, err := s.StartNode(g.ID, "D")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("starting a pending node should wrap ErrInvalidState, got: %v", err)
	}
	if !containsStr(err.Error(), "not ready") {
		t.Errorf("error should say not ready, got: %v", err)
	}
}

func TestStartNode_AlreadyRunningRejected(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())
	mustStart(t, s, g.ID, "A")

	_, err := s.StartNode(g.ID, "A")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("double start should wrap ErrInvalidState, got: %v", err)
	}
}

func TestStartNode_UnknownNode(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	_, err := s.StartNode(g.ID, "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown node should wrap ErrNotFound, got: %v", err)
	}
}

func TestStartNode_UnknownGraph(t *testing.T) {
	s := NewStore()
	_, err := s.StartNode("nope", "A")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown graph should wrap ErrNotFound, got: %v", err)
	}
}

// --- CompleteNode ---

func TestCompleteNode_FlipsSatisfiedDependents(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	res := runAndComplete(t, s, g.ID, "A", 10)
	if res.Node.Status != NodeCompleted {
		t.Errorf("A status = %s, want completed", res.Node.Status)
	}
	if res.Node.CompletedAt == "" {
		t.Error("CompletedAt should be stamped")
	}
	if len(res.NewlyReady) != 2 {
		t.Fatalf("newly ready = %d nodes, want 2", len(res.NewlyReady))
	}
	if res.NewlyReady[0].ID != "B" || res.NewlyReady[1].ID != "C" {
		t.Errorf("newly ready = [%s %s], want [B C]", res.NewlyReady[0].ID, res.NewlyReady[1].ID)
	}
}

func TestCompleteNode_NoPrematureReadiness(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	runAndComplete(t, s, g.ID, "A", 0)
	res := runAndComplete(t, s, g.ID, "B", 0)

	if len(res.NewlyReady) != 0 {
		t.Errorf("D flipped ready while C is incomplete: newly ready = %v", res.NewlyReady)
	}
	got, _ := s.Get(g.ID)
	if got.Nodes["D"].Status != NodePending {
		t.Errorf("D status = %s, want pending until every dependency completes", got.Nodes["D"].Status)
	}
}

func TestCompleteNode_JoinFlipsWhenLastDependencyCompletes(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	runAndComplete(t, s, g.ID, "A", 0)
	runAndComplete(t, s, g.ID, "B", 0)
	res := runAndComplete(t, s, g.ID, "C", 0)

	if len(res.NewlyReady) != 1 || res.NewlyReady[0].ID != "D" {
		t.Fatalf("completing the last dependency should flip D, got %v", res.NewlyReady)
	}
}

func TestCompleteNode_AccruesTokens(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	res := runAndComplete(t, s, g.ID, "A", 37)
	if res.Node.ActualTokens != 37 {
		t.Errorf("node ActualTokens = %d, want 37", res.Node.ActualTokens)
	}
	got, _ := s.Get(g.ID)
	if got.ActualTokensUsed != 37 {
		t.Errorf("graph ActualTokensUsed = %d, want 37", got.ActualTokensUsed)
	}
}

func TestCompleteNode_SecondCallIsNoOp(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	runAndComplete(t, s, g.ID, "A", 37)
	res := mustComplete(t, s, g.ID, "A", 37)

	if !res.AlreadyDone {
		t.Error("second completion should report AlreadyDone")
	}
	if len(res.NewlyReady) != 0 {
		t.Errorf("second completion should not re-propagate, got %v", res.NewlyReady)
	}
	got, _ := s.Get(g.ID)
	if got.ActualTokensUsed != 37 {
		t.Errorf("graph ActualTokensUsed = %d, want 37: tokens must not double count", got.ActualTokensUsed)
	}
	if got.Nodes["A"].ActualTokens != 37 {
		t.Errorf("node ActualTokens = %d, want 37", got.Nodes["A"].ActualTokens)
	}
}

func TestCompleteNode_ToleratedWithoutStart(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	// Caller never reported start_node. The work still counts.
	res := mustComplete(t, s, g.ID, "A", 5)
	if res.Node.Status != NodeCompleted {
		t.Errorf("status = %s, want completed", res.Node.Status)
	}
	if len(res.NewlyReady) != 2 {
		t.Errorf("dependents should still flip, got %d", len(res.NewlyReady))
	}
}

func TestCompleteNode_RecordsResult(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	mustStart(t, s, g.ID, "A")
	res, err := s.CompleteNode(g.ID, "A", "parsed 3 files", 0)
	if err != nil {
		t.Fatalf("CompleteNode failed: %v", err)
	}
	if res.Node.Result != "parsed 3 files" {
		t.Errorf("Result = %q, want recorded payload", res.Node.Result)
	}
}

func TestCompleteNode_UnknownNode(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	_, err := s.CompleteNode(g.ID, "ghost", "", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown node should wrap ErrNotFound, got: %v", err)
	}
}

// --- FailNode ---

func TestFailNode_RetryReentersReady(t *testing.T) {
	s := NewStore()
	specs := []NodeSpec{
		{ID: "flaky", Phase: PhaseTest, EstimatedTokens: 10, MaxRetries: 2},
	}
	g := createCustom(t, s, "retry", specs)

	mustStart(t, s, g.ID, "flaky")
	res := mustFail(t, s, g.ID, "flaky", "assertion blew up")

	if !res.WillRetry {
		t.Fatal("first failure with budget left should retry")
	}
	if res.RetriesLeft != 1 {
		t.Errorf("RetriesLeft = %d, want 1", res.RetriesLeft)
	}
	if res.Node.Status != NodeReady {
		t.Errorf("status = %s, want ready", res.Node.Status)
	}
	if res.Node.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", res.Node.RetryCount)
	}
	if res.Node.Error != "assertion blew up" {
		t.Errorf("Error = %q, want the reported message", res.Node.Error)
	}
}

func TestFailNode_RetryBoundary(t *testing.T) {
	s := NewStore()
	specs := []NodeSpec{
		{ID: "flaky", Phase: PhaseTest, EstimatedTokens: 10, MaxRetries: 2},
	}
	g := createCustom(t, s, "retry", specs)

	// Failures one and two re-enter ready.
	for attempt := 1; attempt <= 2; attempt++ {
		mustStart(t, s, g.ID, "flaky")
		res := mustFail(t, s, g.ID, "flaky", "boom")
		if !res.WillRetry {
			t.Fatalf("failure %d should retry", attempt)
		}
		if res.Node.Status != NodeReady {
			t.Fatalf("failure %d: status = %s, want ready", attempt, res.Node.Status)
		}
	}

	// Third failure exhausts the budget.
	mustStart(t, s, g.ID, "flaky")
	res := mustFail(t, s, g.ID, "flaky", "boom")
	if res.WillRetry {
		t.Fatal("third failure must not retry with maxRetries = 2")
	}
	if res.Node.Status != NodeFailed {
		t.Errorf("status = %s, want failed", res.Node.Status)
	}
	if res.Node.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2: it never exceeds the budget", res.Node.RetryCount)
	}
}

func TestFailNode_CascadeSkipsTransitiveDependents(t *testing.T) {
	s := NewStore()
	specs := []NodeSpec{
		{ID: "doomed", Phase: PhaseImpl, EstimatedTokens: 1},
		{ID: "child", Phase: PhaseImpl, EstimatedTokens: 1, DependsOn: []string{"doomed"}},
		{ID: "grandchild", Phase: PhaseImpl, EstimatedTokens: 1, DependsOn: []string{"child"}},
		{ID: "sibling", Phase: PhaseImpl, EstimatedTokens: 1, DependsOn: []string{"doomed"}},
		{ID: "bystander", Phase: PhaseImpl, EstimatedTokens: 1},
	}
	g := createCustom(t, s, "cascade", specs)

	mustStart(t, s, g.ID, "doomed")
	res := mustFail(t, s, g.ID, "doomed", "no retries budgeted")

	if res.WillRetry {
		t.Fatal("maxRetries 0 should fail terminally on first failure")
	}
	if len(res.Skipped) != 3 {
		t.Fatalf("skipped %d nodes, want 3", len(res.Skipped))
	}

	got, _ := s.Get(g.ID)
	for _, id := range []string{"child", "grandchild", "sibling"} {
		if got.Nodes[id].Status != NodeSkipped {
			t.Errorf("%s status = %s, want skipped", id, got.Nodes[id].Status)
		}
	}
	if got.Nodes["bystander"].Status != NodeReady {
		t.Errorf("bystander status = %s, want ready: nodes outside the closure must not change", got.Nodes["bystander"].Status)
	}
	if got.Status != GraphFailed {
		t.Errorf("graph status = %s, want failed", got.Status)
	}
}

func TestFailNode_CascadeStopsAtTerminal(t *testing.T) {
	s := NewStore()
	specs := []NodeSpec{
		{ID: "left", Phase: PhaseImpl, EstimatedTokens: 1},
		{ID: "right", Phase: PhaseImpl, EstimatedTokens: 1},
		{ID: "join", Phase: PhaseImpl, EstimatedTokens: 1, DependsOn: []string{"left", "right"}},
	}
	g := createCustom(t, s, "double-fail", specs)

	mustStart(t, s, g.ID, "left")
	first := mustFail(t, s, g.ID, "left", "boom")
	if len(first.Skipped) != 1 || first.Skipped[0].ID != "join" {
		t.Fatalf("first cascade should skip join, got %v", first.Skipped)
	}

	mustStart(t, s, g.ID, "right")
	second := mustFail(t, s, g.ID, "right", "boom")
	if len(second.Skipped) != 0 {
		t.Errorf("second cascade should stop at already skipped join, got %v", second.Skipped)
	}
}

func TestFailNode_OnlyRunningCanFail(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	_, err := s.FailNode(g.ID, "A", "never started")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("failing a ready node should wrap ErrInvalidState, got: %v", err)
	}
}

func TestFailNode_TerminalIsNoOp(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	runAndComplete(t, s, g.ID, "A", 0)
	res := mustFail(t, s, g.ID, "A", "too late")

	if !res.AlreadyDone {
		t.Error("failing a completed node should report AlreadyDone")
	}
	got, _ := s.Get(g.ID)
	if got.Nodes["A"].Status != NodeCompleted {
		t.Errorf("A status = %s, want completed untouched", got.Nodes["A"].Status)
	}
	if got.Nodes["A"].Error != "" {
		t.Errorf("A error = %q, want empty: no-op must not record the message", got.Nodes["A"].Error)
	}
}

func TestFailNode_UnknownGraph(t *testing.T) {
	s := NewStore()
	_, err := s.FailNode("nope", "A", "boom")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown graph should wrap ErrNotFound, got: %v", err)
	}
}

// --- Graph rollup ---

func TestRollup_CompletedWhenAllNodesSucceed(t *testing.T) {
	s := NewStore()
	g := createCustom(t, s, "diamond", diamondSpecs())

	for _, id := range []string{"A", "B", "C", "D"} {
		runAndComplete(t, s, g.ID, id, 1)
	}

	got, _ := s.Get(g.ID)
	if got.Status != GraphCompleted {
		t.Errorf("graph status = %s, want completed", got.Status)
	}
	if got.CompletedAt == "" {
		t.Error("graph CompletedAt should be stamped when the last node finishes")
	}
}

func TestRollup_FailedWinsOverInFlightWork(t *testing.T) {
	s := NewStore()
	specs := []NodeSpec{
		{ID: "a", Phase: PhaseImpl, EstimatedTokens: 1},
		{ID: "b", Phase: PhaseImpl, EstimatedTokens: 1},
	}
	g := createCustom(t, s, "split", specs)

	mustStart(t, s, g.ID, "a")
	mustStart(t, s, g.ID, "b")
	mustFail(t, s, g.ID, "a", "boom")

	got, _ := s.Get(g.ID)
	if got.Status != GraphFailed {
		t.Errorf("graph status = %s, want failed while b still runs", got.Status)
	}
	if got.Nodes["b"].Status != NodeRunning {
		t.Errorf("b status = %s, want running: rollup must not touch nodes", got.Nodes["b"].Status)
	}
}

// --- End to end at engine level ---

func TestEngine_BugfixDrivesToCompletion(t *testing.T) {
	s := NewStore()
	g, err := s.CreateGraph(CreateRequest{
		Name:        "fix crash on empty query",
		TaskType:    TypeBugfix,
		Description: "FTS5 panics when the query is empty",
		MaxRetries:  2,
	})
	if err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	order := []string{"reproduce", "diagnose", "fix", "verify", "review"}
	for i, id := range order {
		ready := s.NextNodes(g.ID)
		if len(ready) != 1 || ready[0].ID != id {
			t.Fatalf("step %d: ready = %v, want exactly [%s]", i, readyIDs(ready), id)
		}
		runAndComplete(t, s, g.ID, id, 100)
	}

	a, err := s.Analyze(g.ID)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a.Progress != 100 {
		t.Errorf("progress = %d, want 100", a.Progress)
	}
	if a.GraphStatus != GraphCompleted {
		t.Errorf("graph status = %s, want completed", a.GraphStatus)
	}
	if a.ActualTokensUsed != 500 {
		t.Errorf("ActualTokensUsed = %d, want 500", a.ActualTokensUsed)
	}
}

func readyIDs(nodes []*TaskNode) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
