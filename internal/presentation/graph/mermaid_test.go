package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/onramp/internal/presentation/graph"
	"github.com/aretw0/onramp/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		steps    []domain.StepDefinition
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "Step Shapes",
			steps: []domain.StepDefinition{
				{ID: "intro"},
				{ID: "issue", TriggersIdentityIssuance: true},
				{ID: "scan", TriggersRiskAssessment: true},
				{ID: "plain"},
			},
			contains: []string{
				`intro(("intro"))`,
				`issue[["issue"]]`,
				`scan{{"scan"}}`,
				`plain["plain"]`,
			},
		},
		{
			name: "Order And Prerequisites",
			steps: []domain.StepDefinition{
				{ID: "a"},
				{ID: "b", RequiresPriorStep: "a"},
				{ID: "c", RequiresPriorStep: "a"},
			},
			contains: []string{
				"a --> b",
				"b --> c",
				"a -. requires .-> c",
			},
			excludes: []string{"a -. requires .-> b"},
		},
		{
			name: "Title And Sanitization",
			steps: []domain.StepDefinition{
				{ID: "step-1.x", Title: `Say "hi"`},
			},
			contains: []string{`step_1_x(("step-1.x <br/> Say 'hi'"))`},
		},
		{
			name:  "Overlay",
			steps: []domain.StepDefinition{{ID: "a"}, {ID: "b"}},
			overlay: graph.OverlayFor(&domain.Session{
				CompletedSteps: []string{"a", "a"},
				CurrentStep:    "b",
			}),
			contains: []string{
				"class a completed;",
				"class b current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.steps, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, bad)
				}
			}
			if strings.Count(got, "class a completed;") > 1 {
				t.Errorf("completed steps must be deduplicated:\n%v", got)
			}
		})
	}

	if graph.OverlayFor(nil) != nil {
		t.Error("OverlayFor(nil) should be nil")
	}
}
