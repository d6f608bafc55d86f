// internal/workers/discovery/generate-brief/prompt.go
package generatebrief

import (
	"fmt"
	"strings"
)

// buildPrompt assembles the deterministic template prompt for one scored
// pair. Same input, same prompt: no timestamps, no randomness.
func buildPrompt(input *Input) string {
	var parts []string

	parts = append(parts, "You are a brand-partnership strategist. Draft a structured collaboration brief for the two brands below.")
	parts = append(parts, fmt.Sprintf("\nAnchor brand: %s (%s)", input.Anchor.Name, input.Anchor.CountryCode))
	parts = append(parts, fmt.Sprintf("Candidate brand: %s (%s)", input.Candidate.Name, input.Candidate.CountryCode))

	c := input.Score.Components
	parts = append(parts, "\nResonance assessment:")
	parts = append(parts, fmt.Sprintf("- category overlap: %.3f", c.CategoryOverlap))
	parts = append(parts, fmt.Sprintf("- audience overlap: %.3f", c.AudienceOverlap))
	parts = append(parts, fmt.Sprintf("- media co-mention: %.3f", c.MediaCoMention))
	parts = append(parts, fmt.Sprintf("- market-positioning alignment: %.3f", c.PositioningAlignment))
	parts = append(parts, fmt.Sprintf("- geographic overlap: %.3f", c.GeographicOverlap))
	parts = append(parts, fmt.Sprintf("- total: %.2f (%s)", input.Score.Total, input.Score.Tier))

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Propose 3 collaboration ideas, each with an estimated impact")
	parts = append(parts, "- Propose concrete next steps")
	parts = append(parts, "- Ground every idea in the component scores above")
	parts = append(parts, `- Respond with JSON only: {"title": string, "ideas": [{"description": string, "estimatedImpact": string}], "nextSteps": [string]}`)

	return strings.Join(parts, "\n")
}
