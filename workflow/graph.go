package workflow

import (
	"fmt"

	"github.com/stemtutor/tutorflow/checkpoint"
)

// conditionalEdge routes by evaluating a label function against the state.
type conditionalEdge[S any] struct {
	route   func(state S) string
	targets map[string]string
}

// Graph is a directed graph of steps. A node with no outgoing edge is
// terminal; reaching one completes the session.
type Graph[S any] struct {
	nodes        map[string]Step[S]
	edges        map[string]string
	conditionals map[string]*conditionalEdge[S]
	halts        map[string]checkpoint.Status
	entry        string
	resumeFrom   string
}

// NewGraph creates an empty graph.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:        make(map[string]Step[S]),
		edges:        make(map[string]string),
		conditionals: make(map[string]*conditionalEdge[S]),
		halts:        make(map[string]checkpoint.Status),
	}
}

// AddStep registers a step. The first registered step is the entry point
// unless SetEntry overrides it.
func (g *Graph[S]) AddStep(step Step[S]) *Graph[S] {
	if g.entry == "" {
		g.entry = step.Name()
	}
	g.nodes[step.Name()] = step
	return g
}

// SetEntry sets the node execution starts from.
func (g *Graph[S]) SetEntry(name string) *Graph[S] {
	g.entry = name
	return g
}

// AddEdge adds an unconditional edge.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes from a node by evaluating route against the
// state and mapping the returned label through targets.
func (g *Graph[S]) AddConditionalEdge(from string, route func(state S) string, targets map[string]string) *Graph[S] {
	g.conditionals[from] = &conditionalEdge[S]{route: route, targets: targets}
	return g
}

// AddHaltPoint marks a node as a suspension point: after the node runs,
// the engine persists the given halted status and stops instead of
// following an edge.
func (g *Graph[S]) AddHaltPoint(name string, status checkpoint.Status) *Graph[S] {
	g.halts[name] = status
	return g
}

// SetResumePoint names the node whose conditional edge is re-evaluated
// when a suspended session resumes. The node itself is not re-run; the
// merged state decides the route.
func (g *Graph[S]) SetResumePoint(name string) *Graph[S] {
	g.resumeFrom = name
	return g
}

// Validate checks the graph for structural problems before execution.
func (g *Graph[S]) Validate() error {
	if g.entry == "" {
		return fmt.Errorf("graph has no entry point")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return fmt.Errorf("entry point %q is not a registered step", g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("edge from unknown step %q", from)
		}
		if _, ok := g.nodes[to]; !ok {
			return fmt.Errorf("edge from %q to unknown step %q", from, to)
		}
	}
	for from, cond := range g.conditionals {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("conditional edge from unknown step %q", from)
		}
		for label, to := range cond.targets {
			if _, ok := g.nodes[to]; !ok {
				return fmt.Errorf("conditional edge %q label %q targets unknown step %q", from, label, to)
			}
		}
	}
	if g.resumeFrom != "" {
		if _, ok := g.conditionals[g.resumeFrom]; !ok {
			return fmt.Errorf("resume point %q has no conditional edge", g.resumeFrom)
		}
	}
	return nil
}

// next resolves the node after from, given the current state. done is true
// when from is terminal.
func (g *Graph[S]) next(from string, state S) (to string, done bool, err error) {
	if cond, ok := g.conditionals[from]; ok {
		label := cond.route(state)
		target, ok := cond.targets[label]
		if !ok {
			return "", false, fmt.Errorf("step %q routed to unknown label %q", from, label)
		}
		return target, false, nil
	}
	if target, ok := g.edges[from]; ok {
		return target, false, nil
	}
	return "", true, nil
}
