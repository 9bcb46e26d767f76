package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Parallel runs several steps concurrently against the same input state
// and folds their deltas in registration order, so a later branch wins
// when two branches write the same field. The join waits for every
// branch; one branch's error cancels the rest and fails the step.
type Parallel[S any] struct {
	name     string
	branches []Step[S]
	merge    MergeFunc[S]
}

// NewParallel builds a fan-out step over the given branches.
func NewParallel[S any](name string, merge MergeFunc[S], branches ...Step[S]) *Parallel[S] {
	return &Parallel[S]{name: name, branches: branches, merge: merge}
}

// Name implements Step.
func (p *Parallel[S]) Name() string { return p.name }

// Run implements Step.
func (p *Parallel[S]) Run(ctx context.Context, state S) (S, error) {
	deltas := make([]S, len(p.branches))

	g, gctx := errgroup.WithContext(ctx)
	for i, branch := range p.branches {
		g.Go(func() error {
			delta, err := branch.Run(gctx, state)
			if err != nil {
				return err
			}
			deltas[i] = delta
			return nil
		})
	}

	var combined S
	if err := g.Wait(); err != nil {
		return combined, err
	}

	for _, delta := range deltas {
		combined = p.merge(combined, delta)
	}
	return combined, nil
}
