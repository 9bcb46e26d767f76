package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stemtutor/tutorflow/checkpoint"
	"github.com/stemtutor/tutorflow/types"
)

// MergeFunc folds a step's delta into the session state. It must be pure:
// no I/O, no mutation of its inputs.
type MergeFunc[S any] func(state, delta S) S

// Result is the outcome of a run or resume.
type Result[S any] struct {
	SessionID string
	State     S
	Status    checkpoint.Status
	LastStep  string
}

// StepObserver is notified after every step, for metrics.
type StepObserver func(step string, duration time.Duration, err error)

// Executor drives a graph over a checkpoint store. The state is
// checkpointed after every step, so execution can stop at a halt point
// and resume later, on any node sharing the store.
type Executor[S any] struct {
	graph    *Graph[S]
	store    checkpoint.Store
	merge    MergeFunc[S]
	logger   *zap.Logger
	observer StepObserver
}

// NewExecutor builds an executor and validates the graph.
func NewExecutor[S any](graph *Graph[S], store checkpoint.Store, merge MergeFunc[S], logger *zap.Logger) (*Executor[S], error) {
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor[S]{
		graph:  graph,
		store:  store,
		merge:  merge,
		logger: logger.With(zap.String("component", "workflow")),
	}, nil
}

// WithObserver registers a per-step callback.
func (e *Executor[S]) WithObserver(obs StepObserver) *Executor[S] {
	e.observer = obs
	return e
}

// Run starts a new session at the graph's entry point and executes until
// the session completes or reaches a halt point.
func (e *Executor[S]) Run(ctx context.Context, sessionID string, initial S) (*Result[S], error) {
	return e.run(ctx, sessionID, initial, e.graph.entry, 0)
}

// Resume continues a suspended session. The override delta is merged into
// the stored state, then execution re-enters at the resume point's
// conditional edge so the merged state decides the route.
func (e *Executor[S]) Resume(ctx context.Context, sessionID string, override S) (*Result[S], error) {
	cp, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch {
	case cp.Status.IsTerminal():
		return nil, types.NewError(types.ErrSessionCompleted,
			fmt.Sprintf("session %s already finished with status %s", sessionID, cp.Status))
	case !cp.Status.IsHalted():
		return nil, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("session %s is not awaiting input (status %s)", sessionID, cp.Status))
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, types.NewError(types.ErrExecutorFatal, "failed to decode checkpointed state").WithCause(err)
	}
	state = e.merge(state, override)

	node, done, err := e.graph.next(e.graph.resumeFrom, state)
	if err != nil {
		return nil, types.NewError(types.ErrExecutorFatal, "resume routing failed").WithCause(err)
	}
	if done {
		return nil, types.NewError(types.ErrExecutorFatal, "resume point has no outgoing route")
	}

	e.logger.Info("resuming session",
		zap.String("session_id", sessionID),
		zap.String("from", string(cp.Status)),
		zap.String("next_step", node),
	)

	return e.run(ctx, sessionID, state, node, cp.Version)
}

// GetState loads a session's checkpointed state.
func (e *Executor[S]) GetState(ctx context.Context, sessionID string) (S, checkpoint.Status, error) {
	var state S
	cp, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return state, "", err
	}
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return state, "", types.NewError(types.ErrExecutorFatal, "failed to decode checkpointed state").WithCause(err)
	}
	return state, cp.Status, nil
}

func (e *Executor[S]) run(ctx context.Context, sessionID string, state S, node string, version int) (*Result[S], error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, types.NewError(types.ErrExecutorFatal, "execution canceled").WithCause(err)
		}

		step, ok := e.graph.nodes[node]
		if !ok {
			return nil, types.NewError(types.ErrExecutorFatal, fmt.Sprintf("unknown step %q", node))
		}

		started := time.Now()
		delta, err := step.Run(ctx, state)
		elapsed := time.Since(started)

		if e.observer != nil {
			e.observer(node, elapsed, err)
		}

		if err != nil {
			e.logger.Error("step failed",
				zap.String("session_id", sessionID),
				zap.String("step", node),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			e.saveBestEffort(ctx, sessionID, state, node, checkpoint.StatusFailed, version+1)
			return nil, types.NewError(types.ErrExecutorFatal,
				fmt.Sprintf("step %q failed", node)).WithCause(err)
		}

		state = e.merge(state, delta)
		version++

		e.logger.Debug("step completed",
			zap.String("session_id", sessionID),
			zap.String("step", node),
			zap.Duration("elapsed", elapsed),
			zap.Int("version", version),
		)

		status := checkpoint.StatusRunning
		haltStatus, halted := e.graph.halts[node]

		next, done, routeErr := "", false, error(nil)
		if halted {
			status = haltStatus
		} else {
			next, done, routeErr = e.graph.next(node, state)
			if routeErr != nil {
				e.saveBestEffort(ctx, sessionID, state, node, checkpoint.StatusFailed, version)
				return nil, types.NewError(types.ErrExecutorFatal, "routing failed").WithCause(routeErr)
			}
			if done {
				status = checkpoint.StatusCompleted
			}
		}

		if err := e.save(ctx, sessionID, state, node, status, version); err != nil {
			return nil, err
		}

		if halted || done {
			return &Result[S]{
				SessionID: sessionID,
				State:     state,
				Status:    status,
				LastStep:  node,
			}, nil
		}
		node = next
	}
}

func (e *Executor[S]) save(ctx context.Context, sessionID string, state S, lastStep string, status checkpoint.Status, version int) error {
	data, err := json.Marshal(state)
	if err != nil {
		return types.NewError(types.ErrExecutorFatal, "failed to encode state").WithCause(err)
	}
	cp := &checkpoint.Checkpoint{
		SessionID: sessionID,
		State:     data,
		LastStep:  lastStep,
		Status:    status,
		Version:   version,
	}
	if err := e.store.Save(ctx, cp); err != nil {
		return types.NewError(types.ErrExecutorFatal, "failed to persist checkpoint").WithCause(err)
	}
	return nil
}

// saveBestEffort records a failed snapshot; persistence errors here are
// logged, not returned, because a fatal error is already on its way out.
func (e *Executor[S]) saveBestEffort(ctx context.Context, sessionID string, state S, lastStep string, status checkpoint.Status, version int) {
	if err := e.save(ctx, sessionID, state, lastStep, status, version); err != nil {
		e.logger.Warn("failed to persist failure checkpoint",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
