package audit_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/taskloom/taskloom/internal/audit"
)

func newTestLog(t *testing.T) *audit.Log {
	t.Helper()
	l, err := audit.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func record(t *testing.T, l *audit.Log, actor, action, graphID, nodeID, detail string) {
	t.Helper()
	if err := l.Record(actor, action, graphID, nodeID, detail); err != nil {
		t.Fatalf("Record(%s): %v", action, err)
	}
}

func TestOpen_CreatesDBFile(t *testing.T) {
	dir := t.TempDir()
	l, err := audit.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(filepath.Join(dir, "audit.db")); err != nil {
		t.Errorf("expected audit.db to exist: %v", err)
	}
}

func TestRecord_Basic(t *testing.T) {
	l := newTestLog(t)
	record(t, l, "agent", "graph.created", "g-1", "", "bugfix: flaky watcher")

	events, err := l.Events(audit.QueryOptions{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len = %d, want 1", len(events))
	}

	e := events[0]
	if _, err := uuid.Parse(e.EventID); err != nil {
		t.Errorf("EventID %q is not a uuid: %v", e.EventID, err)
	}
	if e.OccurredAt == "" {
		t.Error("OccurredAt not set")
	}
	if e.Actor != "agent" || e.Action != "graph.created" {
		t.Errorf("actor/action = %q/%q", e.Actor, e.Action)
	}
	if e.GraphID == nil || *e.GraphID != "g-1" {
		t.Errorf("GraphID = %v", e.GraphID)
	}
	if e.NodeID != nil {
		t.Errorf("NodeID = %v, want nil", e.NodeID)
	}
	if e.Detail != "bugfix: flaky watcher" {
		t.Errorf("Detail = %q", e.Detail)
	}
}

func TestRecord_EmptyActionRejected(t *testing.T) {
	l := newTestLog(t)
	if err := l.Record("agent", "  ", "", "", ""); err == nil {
		t.Error("expected error for empty action")
	}
}

func TestRecord_EmptyActorDefaults(t *testing.T) {
	l := newTestLog(t)
	record(t, l, "", "node.started", "g-1", "impl", "")

	events, _ := l.Events(audit.QueryOptions{})
	if len(events) != 1 || events[0].Actor != "agent" {
		t.Errorf("events = %+v, want default actor", events)
	}
}

func TestEvents_NewestFirst(t *testing.T) {
	l := newTestLog(t)
	record(t, l, "agent", "graph.created", "g-1", "", "")
	record(t, l, "agent", "node.started", "g-1", "analysis", "")
	record(t, l, "agent", "node.completed", "g-1", "analysis", "")

	events, err := l.Events(audit.QueryOptions{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len = %d, want 3", len(events))
	}
	want := []string{"node.completed", "node.started", "graph.created"}
	for i, action := range want {
		if events[i].Action != action {
			t.Errorf("events[%d].Action = %q, want %q", i, events[i].Action, action)
		}
	}
}

func TestEvents_Filters(t *testing.T) {
	l := newTestLog(t)
	record(t, l, "agent", "graph.created", "g-1", "", "")
	record(t, l, "agent", "node.started", "g-1", "impl", "")
	record(t, l, "agent", "graph.created", "g-2", "", "")

	byGraph, err := l.Events(audit.QueryOptions{GraphID: "g-1"})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(byGraph) != 2 {
		t.Errorf("graph filter: len = %d, want 2", len(byGraph))
	}

	byAction, err := l.Events(audit.QueryOptions{Action: "graph.created"})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(byAction) != 2 {
		t.Errorf("action filter: len = %d, want 2", len(byAction))
	}

	both, err := l.Events(audit.QueryOptions{GraphID: "g-1", Action: "graph.created"})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(both) != 1 || both[0].GraphID == nil || *both[0].GraphID != "g-1" {
		t.Errorf("combined filter: %+v", both)
	}
}

func TestEvents_LimitApplied(t *testing.T) {
	l := newTestLog(t)
	for i := 0; i < 5; i++ {
		record(t, l, "agent", "node.completed", "g-1", "impl", "")
	}

	events, err := l.Events(audit.QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("len = %d, want 2", len(events))
	}
}

func TestEvents_Empty(t *testing.T) {
	l := newTestLog(t)
	events, err := l.Events(audit.QueryOptions{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("len = %d, want 0", len(events))
	}
}

func TestCount(t *testing.T) {
	l := newTestLog(t)
	record(t, l, "agent", "graph.created", "g-1", "", "")
	record(t, l, "agent", "graph.deleted", "g-1", "", "")

	n, err := l.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestLog_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	l1, err := audit.Open(dir)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	record(t, l1, "agent", "graph.created", "g-1", "", "")
	l1.Close()

	l2, err := audit.Open(dir)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer l2.Close()

	n, _ := l2.Count()
	if n != 1 {
		t.Errorf("Count after reopen = %d, want 1", n)
	}
}
