package taskgraph

import "errors"

// Sentinel errors for the engine. Callers branch with errors.Is; the tool
// layer translates them into structured failure results rather than
// surfacing them as protocol errors.
var (
	// ErrNotFound covers unknown graph ids and unknown node ids. Expected
	// during normal polling and caller races, never fatal.
	ErrNotFound = errors.New("not found")

	// ErrInvalidGraph marks a construction input the engine refuses to
	// store: duplicate ids, edges referencing unknown nodes, self
	// dependencies, or empty node sets.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrCycle marks a dependency cycle. At construction time the graph is
	// rejected and nothing is stored. At analysis time it signals a broken
	// engine invariant and is logged loudly by the caller.
	ErrCycle = errors.New("dependency cycle")

	// ErrInvalidState marks a lifecycle call against a node in the wrong
	// status, such as starting a node that is not ready.
	ErrInvalidState = errors.New("invalid state")
)
