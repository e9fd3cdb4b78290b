package workflow

import (
	"fmt"
	"sort"
)

// Graph is the immutable per-process-type transition map, fixed at
// process-definition time. A stage with no outgoing edges is terminal and
// must be one of the shared terminal stages so an outcome status can be
// derived from it.
type Graph struct {
	processType ProcessType
	start       Stage
	edges       map[Stage][]Stage
}

// NewGraph builds and validates a transition graph. It returns an error if
// the start stage is not part of the graph, an edge points at an undeclared
// non-terminal stage, or a declared stage can never be reached.
func NewGraph(processType ProcessType, start Stage, edges map[Stage][]Stage) (*Graph, error) {
	if _, ok := edges[start]; !ok {
		return nil, fmt.Errorf("process %s: start stage %s has no outgoing transitions", processType, start)
	}

	reachable := map[Stage]bool{start: true}
	for from, targets := range edges {
		if _, terminal := terminalOutcomes[from]; terminal {
			return nil, fmt.Errorf("process %s: terminal stage %s must not have outgoing transitions", processType, from)
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("process %s: stage %s declares an empty transition set", processType, from)
		}
		seen := map[Stage]bool{}
		for _, to := range targets {
			if seen[to] {
				return nil, fmt.Errorf("process %s: duplicate transition %s -> %s", processType, from, to)
			}
			seen[to] = true
			reachable[to] = true
			if _, ok := edges[to]; !ok {
				if _, terminal := terminalOutcomes[to]; !terminal {
					return nil, fmt.Errorf("process %s: transition %s -> %s targets an undeclared stage", processType, from, to)
				}
			}
		}
	}

	for from := range edges {
		if !reachable[from] {
			return nil, fmt.Errorf("process %s: stage %s is unreachable from %s", processType, from, start)
		}
	}

	// Copy the adjacency map so later mutation of the input cannot leak in.
	copied := make(map[Stage][]Stage, len(edges))
	for from, targets := range edges {
		copied[from] = append([]Stage(nil), targets...)
	}

	return &Graph{processType: processType, start: start, edges: copied}, nil
}

// MustNewGraph is NewGraph that panics on a malformed definition. Process
// definitions are static, so a failure here is a programming error caught at
// startup.
func MustNewGraph(processType ProcessType, start Stage, edges map[Stage][]Stage) *Graph {
	g, err := NewGraph(processType, start, edges)
	if err != nil {
		panic(err)
	}
	return g
}

// Type returns the process type this graph governs.
func (g *Graph) Type() ProcessType {
	return g.processType
}

// Start returns the designated start stage.
func (g *Graph) Start() Stage {
	return g.start
}

// Allows reports whether the transition from -> to is statically permitted.
func (g *Graph) Allows(from, to Stage) bool {
	for _, t := range g.edges[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Targets returns the stages legally reachable from the given stage.
func (g *Graph) Targets(from Stage) []Stage {
	return append([]Stage(nil), g.edges[from]...)
}

// IsTerminal reports whether the stage has no outgoing transitions.
func (g *Graph) IsTerminal(stage Stage) bool {
	_, hasEdges := g.edges[stage]
	return !hasEdges
}

// OutcomeOf returns the instance status implied by reaching the given stage:
// a terminal outcome for terminal stages, StatusActive otherwise.
func (g *Graph) OutcomeOf(stage Stage) Status {
	if outcome, ok := terminalOutcomes[stage]; ok && g.IsTerminal(stage) {
		return outcome
	}
	return StatusActive
}

// Stages returns every stage that appears in the graph, sorted for stable
// iteration in diagnostics and tests.
func (g *Graph) Stages() []Stage {
	set := map[Stage]bool{}
	for from, targets := range g.edges {
		set[from] = true
		for _, to := range targets {
			set[to] = true
		}
	}
	stages := make([]Stage, 0, len(set))
	for s := range set {
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	return stages
}
