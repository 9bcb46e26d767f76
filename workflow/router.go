package workflow

// Route labels returned by RouteByConfidence.
const (
	// RouteClarify asks the learner to restate the problem.
	RouteClarify = "clarify"

	// RouteDisambiguate asks the learner to pick among candidate topics.
	RouteDisambiguate = "disambiguate"

	// RouteTeach proceeds to content generation.
	RouteTeach = "teach"
)

// RouteByConfidence picks the branch for a classification outcome.
// Confidence below low clarifies; confidence below high, or an ambiguous
// classification at any confidence, disambiguates; everything else
// teaches.
func RouteByConfidence(confidence float64, ambiguous bool, low, high float64) string {
	switch {
	case confidence < low:
		return RouteClarify
	case confidence < high || ambiguous:
		return RouteDisambiguate
	default:
		return RouteTeach
	}
}
