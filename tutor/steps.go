package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/stemtutor/tutorflow/checkpoint"
	"github.com/stemtutor/tutorflow/collab"
	"github.com/stemtutor/tutorflow/config"
	"github.com/stemtutor/tutorflow/workflow"
)

// Step names within the tutoring graph.
const (
	StepClassify     = "classify"
	StepClarify      = "clarify"
	StepDisambiguate = "disambiguate"
	StepArchitect    = "architect"
	StepSolve        = "solve"
	StepEnrich       = "enrich"
	StepAssemble     = "assemble"
)

// mathIndicators are tokens whose presence marks the input as a concrete
// mathematical problem rather than a topic to discuss. Presence alone is
// enough; symbolic inputs without digits still count.
var mathIndicators = []string{
	"+", "-", "*", "/", "=", "^", "√", "∫", "∑", "≤", "≥",
	"derivative", "integral", "equation",
}

func looksLikeExpression(problem string) bool {
	p := strings.ToLower(problem)
	for _, tok := range mathIndicators {
		if strings.Contains(p, tok) {
			return true
		}
	}
	return false
}

// applyOverrides adjusts raw classifier confidence. A resolved topic with
// implausibly low confidence is bumped, and a concrete math expression is
// treated as certain.
func applyOverrides(c *collab.Classification, problem string) *Outcome {
	out := &Outcome{
		Topic:      c.FullTopic(),
		Confidence: c.Confidence,
		Ambiguous:  c.Ambiguous,
		Candidates: c.Alternatives,
	}

	if out.Topic != "" && out.Confidence < 0.5 {
		out.Confidence = 0.95
	}
	if looksLikeExpression(problem) {
		out.Confidence = 1.0
		out.Ambiguous = false
	}

	return out
}

// classifyStep classifies the problem. Image inputs are transcribed first
// and the extracted text becomes the session's problem statement.
func classifyStep(adapters *collab.Adapters) workflow.Step[State] {
	return workflow.NewStep(StepClassify, func(ctx context.Context, s State) (State, error) {
		var delta State

		if s.InputKind == InputImage {
			c := adapters.ClassifyImage(ctx, s.ImageB64)
			problem := s.Problem
			if c.ExtractedProblem != "" {
				problem = c.ExtractedProblem
				delta.Problem = problem
			}
			delta.Classification = applyOverrides(c, problem)
			return delta, nil
		}

		c := adapters.ClassifyText(ctx, s.Problem)
		delta.Classification = applyOverrides(c, s.Problem)
		return delta, nil
	})
}

// clarifyStep prepares the question shown when the classifier could not
// make sense of the input.
func clarifyStep() workflow.Step[State] {
	return workflow.NewStep(StepClarify, func(ctx context.Context, s State) (State, error) {
		return State{
			Pending: &PendingInput{
				Kind: workflow.RouteClarify,
				Prompt: "<p>I couldn't quite work out what this problem is about. " +
					"Could you restate it, or add a bit more detail?</p>",
			},
		}, nil
	})
}

// clarifyCandidates returns the topic choices for a disambiguation
// question, falling back to a default set when the classifier offered
// none.
func clarifyCandidates(s State) []string {
	if s.Classification != nil && len(s.Classification.Candidates) > 0 {
		return s.Classification.Candidates
	}
	return collab.FallbackClassification().Alternatives
}

// disambiguateStep prepares the topic-choice question for uncertain or
// ambiguous classifications.
func disambiguateStep() workflow.Step[State] {
	return workflow.NewStep(StepDisambiguate, func(ctx context.Context, s State) (State, error) {
		candidates := clarifyCandidates(s)

		var b strings.Builder
		b.WriteString("<p>This could be about a few different topics. Which one fits best?</p><ul>")
		for _, c := range candidates {
			fmt.Fprintf(&b, "<li>%s</li>", c)
		}
		b.WriteString("</ul>")

		return State{
			Pending: &PendingInput{
				Kind:       workflow.RouteDisambiguate,
				Prompt:     b.String(),
				Candidates: candidates,
			},
		}, nil
	})
}

func topicOf(s State) string {
	if s.Classification != nil {
		return s.Classification.Topic
	}
	return ""
}

// architectStep drafts the teaching plan.
func architectStep(adapters *collab.Adapters) workflow.Step[State] {
	return workflow.NewStep(StepArchitect, func(ctx context.Context, s State) (State, error) {
		return State{Plan: adapters.GeneratePlan(ctx, topicOf(s), s.Problem)}, nil
	})
}

// solveStep produces the worked solution.
func solveStep(adapters *collab.Adapters) workflow.Step[State] {
	return workflow.NewStep(StepSolve, func(ctx context.Context, s State) (State, error) {
		return State{Solution: adapters.GenerateSolution(ctx, topicOf(s), s.Problem)}, nil
	})
}

// enrichStep fans out practice generation and media lookup concurrently.
func enrichStep(adapters *collab.Adapters) workflow.Step[State] {
	practice := workflow.NewStep("practice", func(ctx context.Context, s State) (State, error) {
		return State{Practice: adapters.GeneratePractice(ctx, topicOf(s), s.Problem)}, nil
	})
	media := workflow.NewStep("media", func(ctx context.Context, s State) (State, error) {
		return State{Media: adapters.FindMedia(ctx, topicOf(s))}, nil
	})
	return workflow.NewParallel(StepEnrich, Merge, practice, media)
}

// assembleStep renders the final lesson from the collected artifacts.
func assembleStep() workflow.Step[State] {
	return workflow.NewStep(StepAssemble, func(ctx context.Context, s State) (State, error) {
		var b strings.Builder

		topic := topicOf(s)
		if topic != "" {
			fmt.Fprintf(&b, "<h2>%s</h2>", topic)
		}
		if s.Plan != nil && s.Plan.HTML != "" {
			b.WriteString(s.Plan.HTML)
		}
		if s.Solution != nil {
			if s.Solution.Restatement != "" {
				fmt.Fprintf(&b, "<p><em>%s</em></p>", s.Solution.Restatement)
			}
			b.WriteString("<ol>")
			for _, step := range s.Solution.Steps {
				fmt.Fprintf(&b, "<li><strong>%s</strong> %s", step.Title, step.Explanation)
				if step.Expression != "" {
					fmt.Fprintf(&b, " <code>%s</code>", step.Expression)
				}
				b.WriteString("</li>")
			}
			b.WriteString("</ol>")
			if s.Solution.FinalAnswer != "" {
				fmt.Fprintf(&b, "<p><strong>Answer:</strong> %s</p>", s.Solution.FinalAnswer)
			}
		}
		if s.Practice != nil && s.Practice.Markdown != "" {
			fmt.Fprintf(&b, "<h3>Practice</h3><pre>%s</pre>", s.Practice.Markdown)
		}
		if s.Media != nil && s.Media.URL != "" {
			fmt.Fprintf(&b, `<p>Watch: <a href="%s">%s</a></p>`, s.Media.URL, s.Media.Title)
		}

		out := b.String()
		if out == "" {
			out = "<p>No lesson content could be produced for this problem.</p>"
		}
		return State{FinalOutput: out}, nil
	})
}

// BuildGraph wires the tutoring pipeline:
//
//	classify --(confidence route)--> clarify | disambiguate | architect
//	architect -> solve -> enrich(practice ∥ media) -> assemble
//
// clarify and disambiguate are halt points; a resume re-evaluates the
// route on the merged state without re-running classify.
func BuildGraph(adapters *collab.Adapters, routing config.RoutingConfig) *workflow.Graph[State] {
	g := workflow.NewGraph[State]()

	g.AddStep(classifyStep(adapters))
	g.AddStep(clarifyStep())
	g.AddStep(disambiguateStep())
	g.AddStep(architectStep(adapters))
	g.AddStep(solveStep(adapters))
	g.AddStep(enrichStep(adapters))
	g.AddStep(assembleStep())

	g.SetEntry(StepClassify)
	g.AddConditionalEdge(StepClassify, func(s State) string {
		var confidence float64
		var ambiguous bool
		if s.Classification != nil {
			confidence = s.Classification.Confidence
			ambiguous = s.Classification.Ambiguous
		}
		return workflow.RouteByConfidence(confidence, ambiguous, routing.ConfidenceLow, routing.ConfidenceHigh)
	}, map[string]string{
		workflow.RouteClarify:      StepClarify,
		workflow.RouteDisambiguate: StepDisambiguate,
		workflow.RouteTeach:        StepArchitect,
	})

	g.AddEdge(StepArchitect, StepSolve)
	g.AddEdge(StepSolve, StepEnrich)
	g.AddEdge(StepEnrich, StepAssemble)

	g.AddHaltPoint(StepClarify, checkpoint.StatusHaltedClarify)
	g.AddHaltPoint(StepDisambiguate, checkpoint.StatusHaltedDisambiguate)
	g.SetResumePoint(StepClassify)

	return g
}
