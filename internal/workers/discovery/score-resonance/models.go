// internal/workers/discovery/score-resonance/models.go
package scoreresonance

import "resonance-pipeline/internal/models"

type Input struct {
	Anchor    *models.BrandProfile `json:"anchor"`
	Candidate *models.BrandProfile `json:"candidate"`
	Profile   models.WeightProfile `json:"weightProfile"`
}

type Output struct {
	Score models.ResonanceScore `json:"score"`
}
