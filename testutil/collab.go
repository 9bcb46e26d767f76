// Package testutil provides scripted collaborator fakes for service and
// handler tests.
package testutil

import (
	"context"

	"go.uber.org/zap"

	"github.com/stemtutor/tutorflow/collab"
	"github.com/stemtutor/tutorflow/internal/retry"
)

// FakeCollaborators implements every collaborator contract with canned
// results, counting calls per method.
type FakeCollaborators struct {
	Classification *collab.Classification
	ClassifyErr    error

	Plan        *collab.TeachingPlan
	PlanErr     error
	Solution    *collab.WorkedSolution
	SolutionErr error
	Practice    *collab.Practice
	PracticeErr error
	Media       *collab.MediaRef
	MediaErr    error

	ClassifyTextCalls  int
	ClassifyImageCalls int
	PlanCalls          int
	SolutionCalls      int
	PracticeCalls      int
	MediaCalls         int
}

// NewFakeCollaborators returns fakes that succeed with sensible defaults:
// a confident algebra classification and minimal teaching artifacts.
func NewFakeCollaborators() *FakeCollaborators {
	return &FakeCollaborators{
		Classification: &collab.Classification{
			Subject:       "Math",
			Category:      "Algebra",
			SpecificTopic: "Linear Equations",
			Confidence:    0.95,
		},
		Plan: &collab.TeachingPlan{HTML: "<p>Plan</p>", Keywords: []string{"algebra"}},
		Solution: &collab.WorkedSolution{
			Restatement: "Solve for x",
			Steps:       []collab.SolutionStep{{Index: 1, Title: "Isolate x", Explanation: "Divide both sides by 2"}},
			FinalAnswer: "x = 2",
		},
		Practice: &collab.Practice{Markdown: "1. Solve 3y = 9"},
		Media:    &collab.MediaRef{URL: "https://example.com/v", Title: "Linear equations"},
	}
}

func (f *FakeCollaborators) ClassifyText(ctx context.Context, problem string) (*collab.Classification, error) {
	f.ClassifyTextCalls++
	return f.Classification, f.ClassifyErr
}

func (f *FakeCollaborators) ClassifyImage(ctx context.Context, imageB64 string) (*collab.Classification, error) {
	f.ClassifyImageCalls++
	return f.Classification, f.ClassifyErr
}

func (f *FakeCollaborators) GeneratePlan(ctx context.Context, topic, problem string) (*collab.TeachingPlan, error) {
	f.PlanCalls++
	return f.Plan, f.PlanErr
}

func (f *FakeCollaborators) GenerateSolution(ctx context.Context, topic, problem string) (*collab.WorkedSolution, error) {
	f.SolutionCalls++
	return f.Solution, f.SolutionErr
}

func (f *FakeCollaborators) GeneratePractice(ctx context.Context, topic, problem string) (*collab.Practice, error) {
	f.PracticeCalls++
	return f.Practice, f.PracticeErr
}

func (f *FakeCollaborators) FindMedia(ctx context.Context, topic string) (*collab.MediaRef, error) {
	f.MediaCalls++
	return f.Media, f.MediaErr
}

// Adapters wraps the fakes in the production adapter layer with retries
// disabled down to a single attempt, so failure tests stay fast.
func (f *FakeCollaborators) Adapters() *collab.Adapters {
	policy := &retry.Policy{MaxAttempts: 1}
	return collab.NewAdapters(f, f, f, f, f, policy, zap.NewNop())
}
