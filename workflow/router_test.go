package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRouteByConfidence(t *testing.T) {
	const low, high = 0.4, 0.75

	tests := []struct {
		name       string
		confidence float64
		ambiguous  bool
		want       string
	}{
		{"very low confidence clarifies", 0.1, false, RouteClarify},
		{"just under low clarifies", 0.39, false, RouteClarify},
		{"low ambiguous still clarifies", 0.2, true, RouteClarify},
		{"mid confidence disambiguates", 0.6, false, RouteDisambiguate},
		{"at low boundary disambiguates", 0.4, false, RouteDisambiguate},
		{"just under high disambiguates", 0.74, false, RouteDisambiguate},
		{"high but ambiguous disambiguates", 0.9, true, RouteDisambiguate},
		{"at high boundary teaches", 0.75, false, RouteTeach},
		{"high confidence teaches", 0.95, false, RouteTeach},
		{"full confidence teaches", 1.0, false, RouteTeach},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RouteByConfidence(tt.confidence, tt.ambiguous, low, high)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteByConfidenceProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		low := rapid.Float64Range(0.01, 0.5).Draw(t, "low")
		high := rapid.Float64Range(low, 0.99).Draw(t, "high")
		confidence := rapid.Float64Range(0, 1).Draw(t, "confidence")
		ambiguous := rapid.Bool().Draw(t, "ambiguous")

		route := RouteByConfidence(confidence, ambiguous, low, high)

		switch route {
		case RouteClarify:
			if confidence >= low {
				t.Fatalf("clarify with confidence %v >= low %v", confidence, low)
			}
		case RouteDisambiguate:
			if confidence < low {
				t.Fatalf("disambiguate with confidence %v < low %v", confidence, low)
			}
			if confidence >= high && !ambiguous {
				t.Fatalf("disambiguate with unambiguous confidence %v >= high %v", confidence, high)
			}
		case RouteTeach:
			if confidence < high {
				t.Fatalf("teach with confidence %v < high %v", confidence, high)
			}
			if ambiguous {
				t.Fatal("teach despite ambiguous classification")
			}
		default:
			t.Fatalf("unknown route %q", route)
		}
	})
}
