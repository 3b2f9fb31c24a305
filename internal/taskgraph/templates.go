package taskgraph

import (
	"fmt"
	"strings"
)

// --- Task type enum ---

// TaskType names the archetype a graph is instantiated from.
type TaskType string

const (
	TypeFeature  TaskType = "feature"
	TypeBugfix   TaskType = "bugfix"
	TypeRefactor TaskType = "refactor"
	TypeReview   TaskType = "review"
	TypeCustom   TaskType = "custom"
)

// validTaskTypes is the set of allowed task types.
var validTaskTypes = map[TaskType]bool{
	TypeFeature:  true,
	TypeBugfix:   true,
	TypeRefactor: true,
	TypeReview:   true,
	TypeCustom:   true,
}

// ValidateTaskType returns an error if the type is not recognized.
func ValidateTaskType(t TaskType) error {
	if !validTaskTypes[t] {
		return fmt.Errorf("invalid task type %q: must be one of: feature, bugfix, refactor, review, custom", t)
	}
	return nil
}

// --- Phase heuristics ---

// DefaultMaxRetries is the retry budget applied when the caller does not set
// one. Two retries means three attempts total before a failure cascades.
const DefaultMaxRetries = 2

// phaseEstimates is the default token cost per phase. Thinking phases are
// cheap, implementation and testing dominate the budget.
var phaseEstimates = map[Phase]int{
	PhaseAnalysis: 600,
	PhasePlan:     500,
	PhaseImpl:     2000,
	PhaseReview:   800,
	PhaseTest:     1200,
}

// DefaultEstimate returns the default token estimate for a phase.
func DefaultEstimate(p Phase) int {
	return phaseEstimates[p]
}

// phaseTools suggests which tools the caller should reach for while
// executing a node of each phase. Purely informational to the engine.
var phaseTools = map[Phase][]string{
	PhaseAnalysis: {"read_file", "grep_search", "memory_search"},
	PhasePlan:     {"memory_save", "doc_register"},
	PhaseImpl:     {"read_file", "edit_file"},
	PhaseReview:   {"read_file", "guard_check"},
	PhaseTest:     {"edit_file", "run_tests"},
}

// defaultTools returns a copy of the suggested tool list for a phase.
func defaultTools(p Phase) []string {
	return append([]string(nil), phaseTools[p]...)
}

// CreateRequest carries everything needed to instantiate a graph. Files and
// Constraints ride along as node metadata and never influence scheduling.
// Nodes is consulted only by the custom archetype.
type CreateRequest struct {
	Name        string
	TaskType    TaskType
	Description string
	Files       []string
	Constraints []string
	MaxRetries  int
	Nodes       []NodeSpec
}

// CreateGraph instantiates the archetype, validates the result, and
// registers it in the store under a freshly minted id.
//
// Unknown task types, duplicate ids, unknown edge references, and cycles all
// reject the request outright: no partial graph is ever stored. The returned
// graph is a detached copy.
func (s *Store) CreateGraph(req CreateRequest) (*TaskGraph, error) {
	if err := ValidateTaskType(req.TaskType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}

	var specs []NodeSpec
	if req.TaskType == TypeCustom {
		if len(req.Nodes) == 0 {
			return nil, fmt.Errorf("%w: custom graph needs at least one node", ErrInvalidGraph)
		}
		specs = fillDefaults(req.Nodes, req.Constraints)
	} else {
		specs = templateSpecs(req)
	}

	g, err := assembleGraph(req.Name, req.Description, specs)
	if err != nil {
		return nil, err
	}

	detached := g.clone()
	s.add(g)
	return detached, nil
}

// fillDefaults completes caller-supplied custom specs: empty phases become
// impl, zero estimates take the phase default, missing tool lists take the
// phase suggestion, and shared constraints are attached to every node.
func fillDefaults(specs []NodeSpec, constraints []string) []NodeSpec {
	out := make([]NodeSpec, len(specs))
	for i, sp := range specs {
		if sp.Phase == "" {
			sp.Phase = PhaseImpl
		}
		if sp.EstimatedTokens == 0 {
			sp.EstimatedTokens = DefaultEstimate(sp.Phase)
		}
		if len(sp.Tools) == 0 {
			sp.Tools = defaultTools(sp.Phase)
		}
		if len(sp.Constraints) == 0 && len(constraints) > 0 {
			sp.Constraints = append([]string(nil), constraints...)
		}
		out[i] = sp
	}
	return out
}

// templateSpecs builds the node set for the built-in archetypes.
func templateSpecs(req CreateRequest) []NodeSpec {
	switch req.TaskType {
	case TypeFeature:
		return featureSpecs(req)
	case TypeBugfix:
		return bugfixSpecs(req)
	case TypeRefactor:
		return refactorSpecs(req)
	case TypeReview:
		return reviewSpecs(req)
	}
	return nil
}

// node is the shorthand constructor the archetypes are written in.
func node(id, name string, phase Phase, deps []string, req CreateRequest) NodeSpec {
	return NodeSpec{
		ID:              id,
		Name:            name,
		Phase:           phase,
		DependsOn:       deps,
		EstimatedTokens: DefaultEstimate(phase),
		Tools:           defaultTools(phase),
		MaxRetries:      req.MaxRetries,
		Constraints:     append([]string(nil), req.Constraints...),
	}
}

// featureSpecs is the feature archetype: analysis and planning up front,
// implementation fanned out in parallel, joined again by review, closed by
// tests. With a file list the fan-out follows the files (capped at three
// lanes); without one it defaults to two lanes.
func featureSpecs(req CreateRequest) []NodeSpec {
	specs := []NodeSpec{
		node("analysis", "Analyze requirements", PhaseAnalysis, nil, req),
		node("plan", "Design implementation plan", PhasePlan, []string{"analysis"}, req),
	}

	lanes := 2
	if n := len(req.Files); n > 0 {
		lanes = n
		if lanes > 3 {
			lanes = 3
		}
	}

	implIDs := make([]string, 0, lanes)
	for i := 0; i < lanes; i++ {
		id := fmt.Sprintf("impl-%d", i+1)
		implIDs = append(implIDs, id)
		sp := node(id, fmt.Sprintf("Implement part %d", i+1), PhaseImpl, []string{"plan"}, req)
		for j := i; j < len(req.Files); j += lanes {
			sp.Files = append(sp.Files, req.Files[j])
		}
		if len(sp.Files) == 1 {
			sp.Name = "Implement " + sp.Files[0]
		}
		specs = append(specs, sp)
	}

	specs = append(specs,
		node("review", "Review implementation", PhaseReview, implIDs, req),
		node("test", "Write and run tests", PhaseTest, []string{"review"}, req),
	)
	return specs
}

// bugfixSpecs is the bugfix archetype: a strict chain where verification
// carries the retry budget, since a fix that does not hold sends the caller
// straight back to verifying the next attempt.
func bugfixSpecs(req CreateRequest) []NodeSpec {
	return []NodeSpec{
		node("reproduce", "Reproduce the bug", PhaseAnalysis, nil, req),
		node("diagnose", "Diagnose root cause", PhaseAnalysis, []string{"reproduce"}, req),
		node("fix", "Apply the fix", PhaseImpl, []string{"diagnose"}, req),
		node("verify", "Verify the fix holds", PhaseTest, []string{"fix"}, req),
		node("review", "Review the change", PhaseReview, []string{"verify"}, req),
	}
}

// refactorSpecs is the refactor archetype: scope first, behavior-preserving
// verification before review.
func refactorSpecs(req CreateRequest) []NodeSpec {
	return []NodeSpec{
		node("scope", "Map the refactor surface", PhaseAnalysis, nil, req),
		node("plan", "Plan the refactor steps", PhasePlan, []string{"scope"}, req),
		node("impl", "Apply the refactor", PhaseImpl, []string{"plan"}, req),
		node("test", "Verify behavior unchanged", PhaseTest, []string{"impl"}, req),
		node("review", "Review the change", PhaseReview, []string{"test"}, req),
	}
}

// reviewSpecs is the review archetype: one survey node fanning out into
// parallel review angles that a summary node joins.
func reviewSpecs(req CreateRequest) []NodeSpec {
	return []NodeSpec{
		node("survey", "Survey the changes", PhaseAnalysis, nil, req),
		node("correctness", "Review correctness", PhaseReview, []string{"survey"}, req),
		node("style", "Review style and idiom", PhaseReview, []string{"survey"}, req),
		node("tests", "Review test coverage", PhaseReview, []string{"survey"}, req),
		node("summary", "Consolidate findings", PhaseReview, []string{"correctness", "style", "tests"}, req),
	}
}

// DescribeTemplates returns a short human-readable summary of the built-in
// archetypes, used by the tool layer for its documentation strings.
func DescribeTemplates() string {
	var b strings.Builder
	b.WriteString("feature: analysis -> plan -> parallel impl -> review -> test\n")
	b.WriteString("bugfix: reproduce -> diagnose -> fix -> verify (retries) -> review\n")
	b.WriteString("refactor: scope -> plan -> impl -> test -> review\n")
	b.WriteString("review: survey -> parallel review angles -> summary\n")
	b.WriteString("custom: caller-supplied nodes and edges\n")
	return b.String()
}
