package collab

import (
	"context"
	"fmt"
	"strings"

	"github.com/stemtutor/tutorflow/types"
)

// ModelClient is the minimal surface a language-model backend must provide.
// Implementations map transport failures to retryable typed errors and
// refusals or malformed requests to permanent ones.
type ModelClient interface {
	// Complete returns the raw model output for a prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithImage returns the raw model output for a prompt plus a
	// base64-encoded image attachment.
	CompleteWithImage(ctx context.Context, prompt, imageB64 string) (string, error)
}

// ModelCollaborators implements every collaborator contract against a single
// ModelClient, decoding responses leniently. It satisfies Classifier,
// PlanGenerator, SolutionGenerator, PracticeGenerator and MediaFinder.
type ModelCollaborators struct {
	client ModelClient
}

// NewModelCollaborators builds the model-backed collaborator set.
func NewModelCollaborators(client ModelClient) *ModelCollaborators {
	return &ModelCollaborators{client: client}
}

const classifyPrompt = `Classify the following problem into a subject taxonomy.
Respond with JSON only:
{"subject": "...", "category": "...", "specific_topic": "...", "confidence": 0.0,
 "ambiguous": false, "alternatives": ["Subject - Category", "..."]}

Problem:
%s`

const classifyImagePrompt = `Extract the problem from the attached image, then classify it.
Respond with JSON only:
{"subject": "...", "category": "...", "specific_topic": "...", "confidence": 0.0,
 "ambiguous": false, "alternatives": [], "extracted_problem": "..."}`

const planPrompt = `Create a short teaching plan for the topic %q applied to this problem.
Respond with JSON only:
{"html_content": "<p>...</p>", "keywords": ["..."]}

Problem:
%s`

const solutionPrompt = `Solve the following %s problem step by step.
Respond with JSON only:
{"problem_restatement": "...",
 "steps": [{"step_number": 1, "title": "...", "explanation": "...", "math_expression": "..."}],
 "final_answer": "...", "key_concepts": ["..."]}

Problem:
%s`

const practicePrompt = `Write three practice problems for the topic %q, similar to this one.
Respond with JSON only:
{"markdown": "..."}

Problem:
%s`

const mediaPrompt = `Suggest one instructional video for the topic %q.
Respond with JSON only:
{"url": "...", "title": "..."}`

// ClassifyText implements Classifier.
func (m *ModelCollaborators) ClassifyText(ctx context.Context, problem string) (*Classification, error) {
	raw, err := m.client.Complete(ctx, fmt.Sprintf(classifyPrompt, problem))
	if err != nil {
		return nil, err
	}
	var c Classification
	if err := DecodeLenient(raw, &c); err != nil {
		return nil, err
	}
	if err := validateClassification(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ClassifyImage implements Classifier for image inputs.
func (m *ModelCollaborators) ClassifyImage(ctx context.Context, imageB64 string) (*Classification, error) {
	raw, err := m.client.CompleteWithImage(ctx, classifyImagePrompt, imageB64)
	if err != nil {
		return nil, err
	}
	var c Classification
	if err := DecodeLenient(raw, &c); err != nil {
		return nil, err
	}
	if err := validateClassification(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GeneratePlan implements PlanGenerator.
func (m *ModelCollaborators) GeneratePlan(ctx context.Context, topic, problem string) (*TeachingPlan, error) {
	raw, err := m.client.Complete(ctx, fmt.Sprintf(planPrompt, topic, problem))
	if err != nil {
		return nil, err
	}
	var p TeachingPlan
	if err := DecodeLenient(raw, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.HTML) == "" {
		return nil, types.Permanent("model returned empty teaching plan", nil)
	}
	return &p, nil
}

// GenerateSolution implements SolutionGenerator.
func (m *ModelCollaborators) GenerateSolution(ctx context.Context, topic, problem string) (*WorkedSolution, error) {
	raw, err := m.client.Complete(ctx, fmt.Sprintf(solutionPrompt, topic, problem))
	if err != nil {
		return nil, err
	}
	var s WorkedSolution
	if err := DecodeLenient(raw, &s); err != nil {
		return nil, err
	}
	if len(s.Steps) == 0 {
		return nil, types.Permanent("model returned solution with no steps", nil)
	}
	return &s, nil
}

// GeneratePractice implements PracticeGenerator.
func (m *ModelCollaborators) GeneratePractice(ctx context.Context, topic, problem string) (*Practice, error) {
	raw, err := m.client.Complete(ctx, fmt.Sprintf(practicePrompt, topic, problem))
	if err != nil {
		return nil, err
	}
	var p Practice
	if err := DecodeLenient(raw, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Markdown) == "" {
		return nil, types.Permanent("model returned empty practice set", nil)
	}
	return &p, nil
}

// FindMedia implements MediaFinder.
func (m *ModelCollaborators) FindMedia(ctx context.Context, topic string) (*MediaRef, error) {
	raw, err := m.client.Complete(ctx, fmt.Sprintf(mediaPrompt, topic))
	if err != nil {
		return nil, err
	}
	var ref MediaRef
	if err := DecodeLenient(raw, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func validateClassification(c *Classification) error {
	if strings.TrimSpace(c.Subject) == "" {
		return types.Permanent("model returned classification without a subject", nil)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return types.Permanent(
			fmt.Sprintf("model returned out-of-range confidence %.2f", c.Confidence), nil)
	}
	return nil
}
