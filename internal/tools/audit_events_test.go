package tools

import (
	"strings"
	"testing"

	"github.com/taskloom/taskloom/internal/audit"
)

func newAuditLog(t *testing.T) *audit.Log {
	t.Helper()
	l, err := audit.Open(t.TempDir())
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAuditEventsTool_Handle_Empty(t *testing.T) {
	tool := NewAuditEventsTool(newAuditLog(t))
	result := callTool(t, tool.Handle, map[string]interface{}{})
	if !strings.Contains(getResultText(result), "No audit events recorded yet") {
		t.Errorf("expected empty message, got: %s", getResultText(result))
	}
}

func TestAuditEventsTool_Handle_ListsNewestFirst(t *testing.T) {
	log := newAuditLog(t)
	for _, action := range []string{"graph.created", "node.started", "node.completed"} {
		if err := log.Record("agent", action, "g-1", "impl", "step"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	tool := NewAuditEventsTool(log)
	result := callTool(t, tool.Handle, map[string]interface{}{})
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", getResultText(result))
	}
	text := getResultText(result)

	if !strings.Contains(text, "# Audit Events (3)") {
		t.Errorf("missing header: %s", text)
	}
	completed := strings.Index(text, "node.completed")
	created := strings.Index(text, "graph.created")
	if completed == -1 || created == -1 || completed > created {
		t.Errorf("events not newest first: %s", text)
	}
	if !strings.Contains(text, "[graph `g-1`, node `impl`]") {
		t.Errorf("missing scope: %s", text)
	}
	if !strings.Contains(text, ": step") {
		t.Errorf("missing detail: %s", text)
	}
}

func TestAuditEventsTool_Handle_Filters(t *testing.T) {
	log := newAuditLog(t)
	log.Record("agent", "graph.created", "g-1", "", "")
	log.Record("agent", "graph.created", "g-2", "", "")
	log.Record("agent", "node.failed", "g-2", "impl", "timeout")

	tool := NewAuditEventsTool(log)

	result := callTool(t, tool.Handle, map[string]interface{}{"graph_id": "g-2"})
	text := getResultText(result)
	if !strings.Contains(text, "# Audit Events (2)") {
		t.Errorf("graph filter: %s", text)
	}

	result = callTool(t, tool.Handle, map[string]interface{}{"action": "node.failed"})
	text = getResultText(result)
	if !strings.Contains(text, "# Audit Events (1)") || !strings.Contains(text, "timeout") {
		t.Errorf("action filter: %s", text)
	}
}

func TestAuditEventsTool_EndToEndThroughBridge(t *testing.T) {
	log := newAuditLog(t)
	SetAuditBridge(log)
	defer SetAuditBridge(nil)

	store, graphID := newBugfixGraph(t, 0)
	start := NewStartNodeTool(store)
	callTool(t, start.Handle, map[string]interface{}{
		"graph_id": graphID, "node_id": "reproduce",
	})

	tool := NewAuditEventsTool(log)
	result := callTool(t, tool.Handle, map[string]interface{}{"action": "node.started"})
	text := getResultText(result)
	if !strings.Contains(text, "node.started") || !strings.Contains(text, "`reproduce`") {
		t.Errorf("bridge event not recorded: %s", text)
	}
}

func TestAuditEventsTool_Definition(t *testing.T) {
	tool := NewAuditEventsTool(newAuditLog(t))
	def := tool.Definition()
	if def.Name != "audit_events" {
		t.Errorf("Name = %q", def.Name)
	}
}
