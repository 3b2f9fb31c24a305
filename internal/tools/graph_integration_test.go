package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskloom/taskloom/internal/taskgraph"
)

// callTool is the integration-test driver: invokes a handler and fails the
// test on an infrastructure error.
func callTool(t *testing.T, handle func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handle(context.Background(), req)
	if err != nil {
		t.Fatalf("tool call failed: %v", err)
	}
	return result
}

// TestGraphTools_BugfixEndToEnd drives a bugfix graph through the whole
// tool surface: creation, readiness queries, a failed attempt with a retry,
// and completion of every node, ending at 100% progress.
func TestGraphTools_BugfixEndToEnd(t *testing.T) {
	store := taskgraph.NewStore()
	create := NewCreateGraphTool(store)
	next := NewGetNextNodesTool(store)
	start := NewStartNodeTool(store)
	complete := NewCompleteNodeTool(store)
	fail := NewFailNodeTool(store)
	analyze := NewAnalyzeGraphTool(store)
	status := NewGraphStatusTool(store)

	// Create.
	result := callTool(t, create.Handle, map[string]interface{}{
		"name":        "Fix the cache stampede",
		"task_type":   "bugfix",
		"max_retries": float64(1),
	})
	if isErrorResult(result) {
		t.Fatalf("create failed: %s", getResultText(result))
	}

	graphs := store.List()
	if len(graphs) != 1 {
		t.Fatalf("store should hold 1 graph, got %d", len(graphs))
	}
	graphID := graphs[0].ID

	// Drive the chain. The verify step fails once and retries.
	chain := []string{"reproduce", "diagnose", "fix", "verify", "review"}
	for _, nodeID := range chain {
		result = callTool(t, next.Handle, map[string]interface{}{"graph_id": graphID})
		if !strings.Contains(getResultText(result), "`"+nodeID+"`") {
			t.Fatalf("%s should be the ready node: %s", nodeID, getResultText(result))
		}

		result = callTool(t, start.Handle, map[string]interface{}{
			"graph_id": graphID,
			"node_id":  nodeID,
		})
		if isErrorResult(result) {
			t.Fatalf("start %s failed: %s", nodeID, getResultText(result))
		}

		if nodeID == "verify" {
			result = callTool(t, fail.Handle, map[string]interface{}{
				"graph_id": graphID,
				"node_id":  nodeID,
				"error":    "regression test still red",
			})
			if !strings.Contains(getResultText(result), "Retry Scheduled") {
				t.Fatalf("first verify failure should schedule a retry: %s", getResultText(result))
			}

			result = callTool(t, start.Handle, map[string]interface{}{
				"graph_id": graphID,
				"node_id":  nodeID,
			})
			if isErrorResult(result) {
				t.Fatalf("verify retry start failed: %s", getResultText(result))
			}
		}

		result = callTool(t, complete.Handle, map[string]interface{}{
			"graph_id":    graphID,
			"node_id":     nodeID,
			"result":      "done: " + nodeID,
			"tokens_used": float64(300),
		})
		if isErrorResult(result) {
			t.Fatalf("complete %s failed: %s", nodeID, getResultText(result))
		}
	}

	// Final analysis: everything done, all tokens accounted for.
	result = callTool(t, analyze.Handle, map[string]interface{}{"graph_id": graphID})
	text := getResultText(result)
	if !strings.Contains(text, "Progress:** 100%") {
		t.Errorf("finished graph should be at 100%%: %s", text)
	}
	if !strings.Contains(text, "5 completed") {
		t.Errorf("all five nodes should be completed: %s", text)
	}
	if !strings.Contains(text, fmt.Sprintf("%d used", 5*300)) {
		t.Errorf("token spend should sum across nodes: %s", text)
	}

	result = callTool(t, status.Handle, map[string]interface{}{"graph_id": graphID})
	text = getResultText(result)
	if !strings.Contains(text, "Status:** completed") {
		t.Errorf("graph rollup should be completed: %s", text)
	}
	if !strings.Contains(text, "Completed:") {
		t.Errorf("finished graph should carry a completion timestamp: %s", text)
	}
}

// TestGraphTools_FailureLeavesSiblingBranchRunnable exercises the cascade
// boundary: a permanent failure skips its own subtree and nothing else.
func TestGraphTools_FailureLeavesSiblingBranchRunnable(t *testing.T) {
	store := taskgraph.NewStore()
	create := NewCreateGraphTool(store)
	next := NewGetNextNodesTool(store)

	result := callTool(t, create.Handle, map[string]interface{}{
		"name":        "Fan out",
		"task_type":   "custom",
		"max_retries": float64(0),
		"nodes": []interface{}{
			map[string]interface{}{"id": "root"},
			map[string]interface{}{"id": "left", "depends_on": []interface{}{"root"}},
			map[string]interface{}{"id": "right", "depends_on": []interface{}{"root"}},
			map[string]interface{}{"id": "left-child", "depends_on": []interface{}{"left"}},
		},
	})
	if isErrorResult(result) {
		t.Fatalf("create failed: %s", getResultText(result))
	}
	graphID := store.List()[0].ID

	startNode(t, store, graphID, "root")
	completeNode(t, store, graphID, "root")
	startNode(t, store, graphID, "left")

	fail := NewFailNodeTool(store)
	result = callTool(t, fail.Handle, map[string]interface{}{
		"graph_id": graphID,
		"node_id":  "left",
		"error":    "dead end",
	})
	text := getResultText(result)
	if !strings.Contains(text, "`left-child`") {
		t.Errorf("left-child should be skipped: %s", text)
	}
	if strings.Contains(text, "`right`") {
		t.Errorf("the sibling branch must not be skipped: %s", text)
	}

	result = callTool(t, next.Handle, map[string]interface{}{"graph_id": graphID})
	if !strings.Contains(getResultText(result), "`right`") {
		t.Errorf("the sibling branch should still be runnable: %s", getResultText(result))
	}
}

// --- Audit bridge ---

// capturingRecorder collects audit events in memory.
type capturedEvent struct {
	actor, action, graphID, nodeID, detail string
}

type capturingRecorder struct {
	actions []string
	events  []capturedEvent
}

func (r *capturingRecorder) Record(actor, action, graphID, nodeID, detail string) error {
	r.actions = append(r.actions, action)
	r.events = append(r.events, capturedEvent{actor, action, graphID, nodeID, detail})
	return nil
}

func TestAuditBridge_RecordsLifecycle(t *testing.T) {
	rec := &capturingRecorder{}
	SetAuditBridge(rec)
	defer SetAuditBridge(nil)

	store := taskgraph.NewStore()
	create := NewCreateGraphTool(store)
	start := NewStartNodeTool(store)
	complete := NewCompleteNodeTool(store)

	callTool(t, create.Handle, map[string]interface{}{
		"name":      "Audited work",
		"task_type": "bugfix",
	})
	graphID := store.List()[0].ID

	callTool(t, start.Handle, map[string]interface{}{"graph_id": graphID, "node_id": "reproduce"})
	callTool(t, complete.Handle, map[string]interface{}{"graph_id": graphID, "node_id": "reproduce"})

	want := []string{"graph.created", "node.started", "node.completed"}
	if len(rec.actions) != len(want) {
		t.Fatalf("recorded %d events, want %d: %v", len(rec.actions), len(want), rec.actions)
	}
	for i, action := range want {
		if rec.actions[i] != action {
			t.Errorf("event[%d] = %s, want %s", i, rec.actions[i], action)
		}
	}
}

func TestAuditBridge_NilRecorderIsSafe(t *testing.T) {
	SetAuditBridge(nil)

	store := taskgraph.NewStore()
	create := NewCreateGraphTool(store)

	result := callTool(t, create.Handle, map[string]interface{}{
		"name":      "Unaudited work",
		"task_type": "review",
	})
	if isErrorResult(result) {
		t.Fatalf("create without a recorder should still work: %s", getResultText(result))
	}
}
