package tutor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemtutor/tutorflow/collab"
)

func TestMergeKeepsIdentityFields(t *testing.T) {
	state := State{SessionID: "s1", Identity: "u1", InputKind: InputText, Problem: "old"}
	delta := State{SessionID: "other", Identity: "other", Problem: "new"}

	out := Merge(state, delta)

	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, "u1", out.Identity)
	assert.Equal(t, "new", out.Problem)
}

func TestMergeAbsentFieldsRetained(t *testing.T) {
	state := State{
		Problem:        "solve 2x = 4",
		Classification: &Outcome{Topic: "Math - Algebra", Confidence: 0.6},
		Plan:           &collab.TeachingPlan{HTML: "<p>Plan</p>"},
	}

	out := Merge(state, State{Solution: &collab.WorkedSolution{FinalAnswer: "x = 2"}})

	assert.Equal(t, "solve 2x = 4", out.Problem)
	assert.Equal(t, "Math - Algebra", out.Classification.Topic)
	assert.NotNil(t, out.Plan)
	assert.Equal(t, "x = 2", out.Solution.FinalAnswer)
}

func TestMergeFreshClassificationClearsPending(t *testing.T) {
	state := State{
		Classification: &Outcome{Confidence: 0.6, Ambiguous: true},
		Pending:        &PendingInput{Kind: "disambiguate", Prompt: "<p>?</p>"},
	}

	out := Merge(state, State{Classification: &Outcome{
		Topic:      "Math - Calculus",
		Confidence: 1.0,
	}})

	assert.Nil(t, out.Pending, "an answered question must not linger")
	assert.Equal(t, "Math - Calculus", out.Classification.Topic)
	assert.False(t, out.Classification.Ambiguous)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	state := State{Pending: &PendingInput{Kind: "clarify"}}
	snapshot := *state.Pending

	_ = Merge(state, State{Classification: &Outcome{Confidence: 1.0}})

	assert.Equal(t, snapshot, *state.Pending)
}
