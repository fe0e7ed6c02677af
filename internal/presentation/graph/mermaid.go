package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/onramp/pkg/domain"
)

// Overlay contains a user's progress to visualize on the protocol graph.
type Overlay struct {
	CompletedSteps []string
	CurrentStep    string
}

// OverlayFor builds the overlay of a stored session.
func OverlayFor(s *domain.Session) *Overlay {
	if s == nil {
		return nil
	}
	return &Overlay{
		CompletedSteps: s.CompletedSteps,
		CurrentStep:    s.CurrentStep,
	}
}

// GenerateMermaid produces a Mermaid flowchart of the protocol, in order.
// Shapes:
// - First step: ((Circle))
// - Issues identity: [[Subroutine]]
// - Assesses risk: {{Hexagon}}
// - Default: [Rectangle]
// Solid arrows follow the protocol order; dotted arrows mark a prerequisite
// that is not the immediately preceding step.
func GenerateMermaid(steps []domain.StepDefinition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i, step := range steps {
		safeID := sanitizeMermaidID(step.ID)

		opener, closer := "[", "]"
		switch {
		case i == 0:
			opener, closer = "((", "))"
		case step.TriggersIdentityIssuance:
			opener, closer = "[[", "]]"
		case step.TriggersRiskAssessment:
			opener, closer = "{{", "}}"
		}

		label := step.ID
		if step.Title != "" {
			label = fmt.Sprintf("%s <br/> %s", step.ID, strings.ReplaceAll(step.Title, "\"", "'"))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		if i > 0 {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(steps[i-1].ID), safeID))
		}
		if req := step.RequiresPriorStep; req != "" && (i == 0 || steps[i-1].ID != req) {
			sb.WriteString(fmt.Sprintf("    %s -. requires .-> %s\n", sanitizeMermaidID(req), safeID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on light and dark themes.
		sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.CompletedSteps {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s completed;\n", safeID))
			}
		}

		if overlay.CurrentStep != "" && !seen[sanitizeMermaidID(overlay.CurrentStep)] {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
