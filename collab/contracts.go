// Package collab defines the typed contracts for the external classification
// and content-generation collaborators, together with resilient adapters that
// bound retries and convert failures into documented fallback artifacts.
package collab

import (
	"context"
	"strings"
)

// Classification is the result of topic classification.
type Classification struct {
	Subject       string   `json:"subject"`
	Category      string   `json:"category"`
	SpecificTopic string   `json:"specific_topic"`
	Confidence    float64  `json:"confidence"`
	Ambiguous     bool     `json:"ambiguous"`
	Alternatives  []string `json:"alternatives"`
	// ExtractedProblem is populated by image classification: the problem text
	// read out of the image, which replaces the session input downstream.
	ExtractedProblem string `json:"extracted_problem,omitempty"`
}

// FullTopic composes the canonical "Subject - Category - SpecificTopic"
// string. An unknown or empty subject yields no topic.
func (c *Classification) FullTopic() string {
	if c.Subject == "" || c.Subject == "Unknown" {
		return ""
	}
	parts := []string{c.Subject}
	if c.Category != "" {
		parts = append(parts, c.Category)
	}
	if c.SpecificTopic != "" {
		parts = append(parts, c.SpecificTopic)
	}
	return strings.Join(parts, " - ")
}

// TeachingPlan is the lesson-plan artifact.
type TeachingPlan struct {
	HTML     string   `json:"html_content"`
	Keywords []string `json:"keywords"`
}

// SolutionStep is a single step of a worked solution.
type SolutionStep struct {
	Index       int    `json:"step_number"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	Expression  string `json:"math_expression"`
}

// WorkedSolution is the step-by-step solution artifact.
type WorkedSolution struct {
	Restatement string         `json:"problem_restatement"`
	Steps       []SolutionStep `json:"steps"`
	FinalAnswer string         `json:"final_answer"`
	KeyConcepts []string       `json:"key_concepts"`
}

// Practice is the supplementary practice artifact.
type Practice struct {
	Markdown string `json:"markdown"`
}

// MediaRef points at reference media for a topic.
type MediaRef struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Classifier classifies a problem into a topic. Implementations must return
// typed errors: types.Transient for server-reported overload/quota, and
// types.Permanent for malformed or undecodable responses. Adapters never
// branch on raw error text.
type Classifier interface {
	ClassifyText(ctx context.Context, problem string) (*Classification, error)
	ClassifyImage(ctx context.Context, imageB64 string) (*Classification, error)
}

// PlanGenerator produces a teaching plan for a topic.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, topic, problem string) (*TeachingPlan, error)
}

// SolutionGenerator produces a worked solution.
type SolutionGenerator interface {
	GenerateSolution(ctx context.Context, topic, problem string) (*WorkedSolution, error)
}

// PracticeGenerator produces supplementary practice content.
type PracticeGenerator interface {
	GeneratePractice(ctx context.Context, topic, problem string) (*Practice, error)
}

// MediaFinder locates reference media for a topic.
type MediaFinder interface {
	FindMedia(ctx context.Context, topic string) (*MediaRef, error)
}
