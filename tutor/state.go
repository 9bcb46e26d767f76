// Package tutor implements the tutoring pipeline: classification of a
// learner's problem, confidence-based routing, human-in-the-loop
// clarification, and fan-out content generation.
package tutor

import (
	"github.com/stemtutor/tutorflow/collab"
)

// InputKind distinguishes how the learner submitted the problem.
type InputKind string

const (
	// InputText is a typed problem statement.
	InputText InputKind = "text"

	// InputImage is a photographed or scanned problem.
	InputImage InputKind = "image"
)

// Outcome is the classification result the router branches on.
type Outcome struct {
	// Topic is the composed "Subject - Category - SpecificTopic" label,
	// empty when the subject is unknown.
	Topic string `json:"topic,omitempty"`

	// Confidence is the classifier's certainty in [0, 1].
	Confidence float64 `json:"confidence"`

	// Ambiguous reports that the classifier saw several plausible topics.
	Ambiguous bool `json:"ambiguous"`

	// Candidates are alternative topics, shown when disambiguating.
	Candidates []string `json:"candidates,omitempty"`
}

// PendingInput describes the question a suspended session is waiting on.
type PendingInput struct {
	// Kind is "clarify" or "disambiguate".
	Kind string `json:"kind"`

	// Prompt is the HTML message shown to the learner.
	Prompt string `json:"prompt"`

	// Candidates are the topic choices offered when disambiguating.
	Candidates []string `json:"candidates,omitempty"`
}

// State is the session state threaded through the tutoring graph. Steps
// return partial States as deltas; Merge folds them together.
type State struct {
	SessionID string    `json:"session_id"`
	Identity  string    `json:"identity"`
	InputKind InputKind `json:"input_kind"`

	// Problem is the problem statement. For image inputs the classify
	// step replaces it with the text extracted from the image.
	Problem string `json:"problem"`

	// ImageB64 carries the raw image for image inputs.
	ImageB64 string `json:"image_b64,omitempty"`

	// Classification is the latest classification outcome.
	Classification *Outcome `json:"classification,omitempty"`

	// Pending is set while the session awaits learner input.
	Pending *PendingInput `json:"pending,omitempty"`

	Plan     *collab.TeachingPlan   `json:"plan,omitempty"`
	Solution *collab.WorkedSolution `json:"solution,omitempty"`
	Practice *collab.Practice       `json:"practice,omitempty"`
	Media    *collab.MediaRef       `json:"media,omitempty"`

	// FinalOutput is the assembled lesson, set by the terminal step.
	FinalOutput string `json:"final_output,omitempty"`
}

// Merge folds a delta into the state and returns the result. Rules:
//
//   - Identity fields (session, identity, input kind, image) are set
//     once at session start and kept thereafter.
//   - Problem is replaced when the delta carries a non-empty one.
//   - Pointer fields are replaced when the delta carries a non-nil one.
//   - A new Classification supersedes any pending question, so a resume
//     override clears Pending by carrying a fresh outcome.
//   - FinalOutput is replaced when non-empty.
//
// Merge never mutates its inputs.
func Merge(state, delta State) State {
	out := state

	if out.SessionID == "" {
		out.SessionID = delta.SessionID
	}
	if out.Identity == "" {
		out.Identity = delta.Identity
	}
	if out.InputKind == "" {
		out.InputKind = delta.InputKind
	}
	if out.ImageB64 == "" {
		out.ImageB64 = delta.ImageB64
	}

	if delta.Problem != "" {
		out.Problem = delta.Problem
	}
	if delta.Classification != nil {
		out.Classification = delta.Classification
		out.Pending = nil
	}
	if delta.Pending != nil {
		out.Pending = delta.Pending
	}
	if delta.Plan != nil {
		out.Plan = delta.Plan
	}
	if delta.Solution != nil {
		out.Solution = delta.Solution
	}
	if delta.Practice != nil {
		out.Practice = delta.Practice
	}
	if delta.Media != nil {
		out.Media = delta.Media
	}
	if delta.FinalOutput != "" {
		out.FinalOutput = delta.FinalOutput
	}

	return out
}
