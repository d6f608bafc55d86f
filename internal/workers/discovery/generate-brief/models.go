// internal/workers/discovery/generate-brief/models.go
package generatebrief

import "resonance-pipeline/internal/models"

type Input struct {
	Anchor    *models.BrandProfile  `json:"anchor"`
	Candidate *models.BrandProfile  `json:"candidate"`
	Score     models.ResonanceScore `json:"score"`
}

type Output struct {
	Brief   *models.CollaborationBrief `json:"brief"`
	Backend string                     `json:"backend"`
}

// briefPayload is the JSON shape the backends are instructed to return.
type briefPayload struct {
	Title string `json:"title"`
	Ideas []struct {
		Description     string `json:"description"`
		EstimatedImpact string `json:"estimatedImpact"`
	} `json:"ideas"`
	NextSteps []string `json:"nextSteps"`
}
