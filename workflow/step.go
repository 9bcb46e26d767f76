// Package workflow provides a resumable step-graph execution engine.
//
// A graph is a set of named steps joined by edges. Steps return state
// deltas that a caller-supplied merge function folds into the session
// state; the engine checkpoints the merged state after every step, so a
// crashed or suspended session can be resumed from its last snapshot.
package workflow

import "context"

// Step is one unit of work in a graph. Run receives the current state and
// returns a delta; the engine merges the delta into the state before
// moving on. Steps must not mutate the state they receive.
type Step[S any] interface {
	// Name identifies the step within its graph.
	Name() string

	// Run executes the step and returns a state delta.
	Run(ctx context.Context, state S) (S, error)
}

// StepFunc adapts a function to the Step interface.
type StepFunc[S any] struct {
	name string
	fn   func(ctx context.Context, state S) (S, error)
}

// NewStep wraps fn as a named Step.
func NewStep[S any](name string, fn func(ctx context.Context, state S) (S, error)) *StepFunc[S] {
	return &StepFunc[S]{name: name, fn: fn}
}

// Name implements Step.
func (s *StepFunc[S]) Name() string { return s.name }

// Run implements Step.
func (s *StepFunc[S]) Run(ctx context.Context, state S) (S, error) {
	return s.fn(ctx, state)
}
