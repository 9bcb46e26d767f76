package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stemtutor/tutorflow/checkpoint"
	"github.com/stemtutor/tutorflow/types"
)

// testState is the toy domain state used by engine tests. Merge semantics:
// Trace entries append, Fields entries override per key, Score overrides
// when non-zero.
type testState struct {
	Trace  []string          `json:"trace"`
	Fields map[string]string `json:"fields"`
	Score  float64           `json:"score"`
}

func mergeTestState(state, delta testState) testState {
	out := testState{
		Trace:  append(append([]string(nil), state.Trace...), delta.Trace...),
		Fields: make(map[string]string, len(state.Fields)+len(delta.Fields)),
		Score:  state.Score,
	}
	for k, v := range state.Fields {
		out.Fields[k] = v
	}
	for k, v := range delta.Fields {
		out.Fields[k] = v
	}
	if delta.Score != 0 {
		out.Score = delta.Score
	}
	return out
}

func traceStep(name string) Step[testState] {
	return NewStep(name, func(ctx context.Context, s testState) (testState, error) {
		return testState{Trace: []string{name}}, nil
	})
}

func newLinearGraph() *Graph[testState] {
	g := NewGraph[testState]()
	g.AddStep(traceStep("a"))
	g.AddStep(traceStep("b"))
	g.AddStep(traceStep("c"))
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	return g
}

// newBranchingGraph models the shape the tutoring pipeline uses: a scoring
// step followed by a conditional edge into either a halt node or a
// terminal node.
func newBranchingGraph(score float64) *Graph[testState] {
	g := NewGraph[testState]()
	g.AddStep(NewStep("score", func(ctx context.Context, s testState) (testState, error) {
		return testState{Trace: []string{"score"}, Score: score}, nil
	}))
	g.AddStep(traceStep("ask"))
	g.AddStep(traceStep("finish"))
	g.AddConditionalEdge("score", func(s testState) string {
		if s.Score < 0.5 {
			return "low"
		}
		return "high"
	}, map[string]string{"low": "ask", "high": "finish"})
	g.AddHaltPoint("ask", checkpoint.StatusHaltedClarify)
	g.SetResumePoint("score")
	return g
}

func newTestExecutor(t *testing.T, g *Graph[testState]) (*Executor[testState], checkpoint.Store) {
	t.Helper()
	store := checkpoint.NewMemoryStore()
	exec, err := NewExecutor(g, store, mergeTestState, zap.NewNop())
	require.NoError(t, err)
	return exec, store
}

func TestExecutorRunsToCompletion(t *testing.T) {
	exec, store := newTestExecutor(t, newLinearGraph())

	res, err := exec.Run(context.Background(), "s1", testState{})
	require.NoError(t, err)

	assert.Equal(t, checkpoint.StatusCompleted, res.Status)
	assert.Equal(t, []string{"a", "b", "c"}, res.State.Trace)
	assert.Equal(t, "c", res.LastStep)

	cp, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, cp.Status)
	assert.Equal(t, 3, cp.Version, "one checkpoint per executed step")
}

func TestExecutorHaltsAtSuspensionPoint(t *testing.T) {
	exec, store := newTestExecutor(t, newBranchingGraph(0.2))

	res, err := exec.Run(context.Background(), "s1", testState{})
	require.NoError(t, err)

	assert.Equal(t, checkpoint.StatusHaltedClarify, res.Status)
	assert.Equal(t, []string{"score", "ask"}, res.State.Trace)

	cp, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusHaltedClarify, cp.Status)
	assert.Equal(t, "ask", cp.LastStep)
}

func TestExecutorResumeReroutesOnMergedState(t *testing.T) {
	exec, _ := newTestExecutor(t, newBranchingGraph(0.2))
	ctx := context.Background()

	_, err := exec.Run(ctx, "s1", testState{})
	require.NoError(t, err)

	// The override lifts the score past the threshold, so the resume
	// routes to the terminal branch without re-running the score step.
	res, err := exec.Resume(ctx, "s1", testState{Score: 0.9})
	require.NoError(t, err)

	assert.Equal(t, checkpoint.StatusCompleted, res.Status)
	assert.Equal(t, []string{"score", "ask", "finish"}, res.State.Trace,
		"score must not run a second time")
	assert.InDelta(t, 0.9, res.State.Score, 1e-9)
}

func TestExecutorResumeCanHaltAgain(t *testing.T) {
	exec, _ := newTestExecutor(t, newBranchingGraph(0.2))
	ctx := context.Background()

	_, err := exec.Run(ctx, "s1", testState{})
	require.NoError(t, err)

	// An override that still scores low routes straight back to the
	// halt node.
	res, err := exec.Resume(ctx, "s1", testState{Score: 0.1})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusHaltedClarify, res.Status)
	assert.Equal(t, []string{"score", "ask", "ask"}, res.State.Trace)
}

func TestExecutorResumeUnknownSession(t *testing.T) {
	exec, store := newTestExecutor(t, newBranchingGraph(0.2))

	_, err := exec.Resume(context.Background(), "ghost", testState{})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrSessionNotFound))

	// A failed resume must not create a session.
	_, err = store.Load(context.Background(), "ghost")
	assert.True(t, types.HasCode(err, types.ErrSessionNotFound))
}

func TestExecutorResumeCompletedSession(t *testing.T) {
	exec, _ := newTestExecutor(t, newBranchingGraph(0.9))
	ctx := context.Background()

	res, err := exec.Run(ctx, "s1", testState{})
	require.NoError(t, err)
	require.Equal(t, checkpoint.StatusCompleted, res.Status)

	_, err = exec.Resume(ctx, "s1", testState{Score: 0.1})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrSessionCompleted))
}

func TestExecutorStepErrorIsFatal(t *testing.T) {
	g := NewGraph[testState]()
	g.AddStep(traceStep("a"))
	g.AddStep(NewStep("boom", func(ctx context.Context, s testState) (testState, error) {
		return testState{}, errors.New("kaput")
	}))
	g.AddEdge("a", "boom")

	exec, store := newTestExecutor(t, g)

	_, err := exec.Run(context.Background(), "s1", testState{})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrExecutorFatal))

	cp, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusFailed, cp.Status)
}

func TestExecutorUnknownRouteLabelIsFatal(t *testing.T) {
	g := NewGraph[testState]()
	g.AddStep(traceStep("a"))
	g.AddStep(traceStep("b"))
	g.AddConditionalEdge("a", func(s testState) string { return "nowhere" },
		map[string]string{"somewhere": "b"})

	exec, _ := newTestExecutor(t, g)

	_, err := exec.Run(context.Background(), "s1", testState{})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrExecutorFatal))
}

func TestExecutorGetState(t *testing.T) {
	exec, _ := newTestExecutor(t, newBranchingGraph(0.2))
	ctx := context.Background()

	_, err := exec.Run(ctx, "s1", testState{Fields: map[string]string{"who": "learner"}})
	require.NoError(t, err)

	state, status, err := exec.GetState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusHaltedClarify, status)
	assert.Equal(t, "learner", state.Fields["who"])

	_, _, err = exec.GetState(ctx, "ghost")
	assert.True(t, types.HasCode(err, types.ErrSessionNotFound))
}

func TestExecutorObserverSeesEveryStep(t *testing.T) {
	exec, _ := newTestExecutor(t, newLinearGraph())

	var seen []string
	exec.WithObserver(func(step string, _ time.Duration, err error) {
		require.NoError(t, err)
		seen = append(seen, step)
	})

	_, err := exec.Run(context.Background(), "s1", testState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestGraphValidation(t *testing.T) {
	g := NewGraph[testState]()
	_, err := NewExecutor(g, checkpoint.NewMemoryStore(), mergeTestState, nil)
	assert.Error(t, err, "empty graph has no entry point")

	g = NewGraph[testState]()
	g.AddStep(traceStep("a"))
	g.AddEdge("a", "missing")
	_, err = NewExecutor(g, checkpoint.NewMemoryStore(), mergeTestState, nil)
	assert.Error(t, err, "edge into an unregistered step")

	g = NewGraph[testState]()
	g.AddStep(traceStep("a"))
	g.SetResumePoint("a")
	_, err = NewExecutor(g, checkpoint.NewMemoryStore(), mergeTestState, nil)
	assert.Error(t, err, "resume point without a conditional edge")
}
