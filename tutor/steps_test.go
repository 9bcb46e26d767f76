package tutor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemtutor/tutorflow/collab"
)

func TestApplyOverridesBumpsResolvedLowConfidence(t *testing.T) {
	c := &collab.Classification{
		Subject:       "Math",
		Category:      "Algebra",
		SpecificTopic: "Linear Equations",
		Confidence:    0.3,
	}

	out := applyOverrides(c, "what is a linear equation")

	assert.InDelta(t, 0.95, out.Confidence, 1e-9,
		"a fully resolved topic with low raw confidence is trusted")
	assert.Equal(t, "Math - Algebra - Linear Equations", out.Topic)
}

func TestApplyOverridesLeavesUnresolvedLowConfidence(t *testing.T) {
	c := &collab.Classification{Subject: "Unknown", Confidence: 0.3, Ambiguous: true}

	out := applyOverrides(c, "help me with this")

	assert.InDelta(t, 0.3, out.Confidence, 1e-9)
	assert.Empty(t, out.Topic)
	assert.True(t, out.Ambiguous)
}

func TestApplyOverridesConcreteExpressionIsCertain(t *testing.T) {
	c := &collab.Classification{
		Subject:    "Math",
		Category:   "Algebra",
		Confidence: 0.55,
		Ambiguous:  true,
	}

	out := applyOverrides(c, "solve 2x + 3 = 7")

	assert.InDelta(t, 1.0, out.Confidence, 1e-9)
	assert.False(t, out.Ambiguous, "an explicit expression is not ambiguous")
}

func TestApplyOverridesSymbolicExpressionIsCertain(t *testing.T) {
	c := &collab.Classification{
		Subject:    "Math",
		Category:   "Algebra",
		Confidence: 0.6,
	}

	out := applyOverrides(c, "solve x + y = z for x")

	assert.InDelta(t, 1.0, out.Confidence, 1e-9,
		"operator tokens force certainty even without digits")
}

func TestLooksLikeExpression(t *testing.T) {
	tests := []struct {
		problem string
		want    bool
	}{
		{"solve 2x + 3 = 7", true},
		{"integrate √x from 0 to 4", true},
		{"solve x + y = z for x", true},
		{"what is a derivative", true},
		{"x + y", true},
		{"chapter 3 review", false},
		{"why is the sky blue", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, looksLikeExpression(tt.problem), tt.problem)
	}
}

func TestClarifyCandidatesFallback(t *testing.T) {
	got := clarifyCandidates(State{Classification: &Outcome{Confidence: 0.3}})
	assert.Equal(t, collab.FallbackClassification().Alternatives, got)

	got = clarifyCandidates(State{Classification: &Outcome{
		Candidates: []string{"Math - Algebra", "Math - Calculus"},
	}})
	assert.Equal(t, []string{"Math - Algebra", "Math - Calculus"}, got)
}
