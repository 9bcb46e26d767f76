package collab

import "fmt"

// Fallback artifacts substituted when a collaborator call fails permanently
// or exhausts its retries. Steps built on these adapters therefore never
// propagate a collaborator failure.

// FallbackClassification is a low-confidence, ambiguous classification that
// routes the session toward clarification or disambiguation rather than
// teaching on bad data.
func FallbackClassification() *Classification {
	return &Classification{
		Confidence: 0.3,
		Ambiguous:  true,
		Alternatives: []string{
			"Math - Algebra",
			"Math - Calculus",
			"Physics - Mechanics",
		},
	}
}

// FallbackPlan is a minimal placeholder teaching plan.
func FallbackPlan(topic string) *TeachingPlan {
	return &TeachingPlan{
		HTML: fmt.Sprintf("<p>Step-by-step approach for %s</p>", topic),
	}
}

// FallbackSolution is a single placeholder step.
func FallbackSolution() *WorkedSolution {
	return &WorkedSolution{
		Steps: []SolutionStep{{
			Index:       1,
			Title:       "Solution unavailable",
			Explanation: "The solution could not be generated. Please try again.",
		}},
		FinalAnswer: "Solution generation failed",
	}
}

// FallbackPractice is a placeholder practice prompt.
func FallbackPractice(topic string) *Practice {
	return &Practice{
		Markdown: fmt.Sprintf("## Try it yourself\n\nRevisit the core idea of %s and attempt a similar problem.", topic),
	}
}

// FallbackMedia is an empty media reference.
func FallbackMedia() *MediaRef {
	return &MediaRef{}
}
