package workflowviz

import (
	"fmt"
	"strings"
)

// Style classes keyed by status. Skipped steps get a dashed border so dead
// branches read as unreachable at a glance.
var classDefs = map[Status]string{
	StatusPending: "fill:#f8f9fa,stroke:#adb5bd",
	StatusReady:   "fill:#e7f1ff,stroke:#0d6efd",
	StatusActive:  "fill:#fff3cd,stroke:#ffc107",
	StatusDone:    "fill:#d4edda,stroke:#198754",
	StatusFailed:  "fill:#f8d7da,stroke:#dc3545",
	StatusSkipped: "fill:#e9ecef,stroke:#6c757d,stroke-dasharray: 5 5",
}

// Mermaid renders the graph as a top-down flowchart. Output is
// deterministic: steps and edges appear in insertion order, style classes
// in a fixed order.
func (g *Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	for _, s := range g.steps {
		fmt.Fprintf(&b, "    %s%s\n", mermaidID(s.ID), shapeFor(s))
	}

	for _, e := range g.edges {
		if cond := sanitizeLabel(e.Condition); cond != "" {
			fmt.Fprintf(&b, "    %s -->|%s| %s\n", mermaidID(e.From), cond, mermaidID(e.To))
		} else {
			fmt.Fprintf(&b, "    %s --> %s\n", mermaidID(e.From), mermaidID(e.To))
		}
	}

	used := make(map[Status]bool)
	for _, s := range g.steps {
		fmt.Fprintf(&b, "    class %s %s\n", mermaidID(s.ID), s.Status)
		used[s.Status] = true
	}
	for _, st := range statusOrder {
		if used[st] {
			fmt.Fprintf(&b, "    classDef %s %s\n", st, classDefs[st])
		}
	}

	return b.String()
}

// shapeFor wraps a label in the bracket pair for the step kind: rectangles
// for tasks, diamonds for decisions, circles for joins.
func shapeFor(s Step) string {
	label := sanitizeLabel(s.Label)
	switch s.Kind {
	case StepDecision:
		return fmt.Sprintf(`{"%s"}`, label)
	case StepJoin:
		return fmt.Sprintf(`(("%s"))`, label)
	default:
		return fmt.Sprintf(`["%s"]`, label)
	}
}

// mermaidID strips characters that collide with flowchart syntax. Labels
// keep the original text, so nothing readable is lost.
func mermaidID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// sanitizeLabel removes the delimiters mermaid treats as structure.
func sanitizeLabel(label string) string {
	r := strings.NewReplacer(`"`, "'", "|", "/", "\n", " ")
	return strings.TrimSpace(r.Replace(label))
}
