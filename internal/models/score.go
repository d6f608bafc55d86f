// internal/models/score.go
package models

type Tier string

const (
	Tier1 Tier = "TIER1"
	Tier2 Tier = "TIER2"
	Tier3 Tier = "TIER3"
	Tier4 Tier = "TIER4"
)

// TierBreakpoints are the score thresholds for tier assignment. A total equal
// to a breakpoint rounds to the higher tier.
type TierBreakpoints struct {
	Tier1 float64 `json:"tier1" mapstructure:"tier1"`
	Tier2 float64 `json:"tier2" mapstructure:"tier2"`
	Tier3 float64 `json:"tier3" mapstructure:"tier3"`
}

func DefaultTierBreakpoints() TierBreakpoints {
	return TierBreakpoints{Tier1: 80, Tier2: 60, Tier3: 40}
}

// Classify maps a total in [0,100] to a tier.
func (b TierBreakpoints) Classify(total float64) Tier {
	switch {
	case total >= b.Tier1:
		return Tier1
	case total >= b.Tier2:
		return Tier2
	case total >= b.Tier3:
		return Tier3
	default:
		return Tier4
	}
}

// ComponentScores are the five synergy factors, each in [0,1].
type ComponentScores struct {
	CategoryOverlap      float64 `json:"categoryOverlap"`
	AudienceOverlap      float64 `json:"audienceOverlap"`
	MediaCoMention       float64 `json:"mediaCoMention"`
	PositioningAlignment float64 `json:"positioningAlignment"`
	GeographicOverlap    float64 `json:"geographicOverlap"`
}

// ResonanceScore is the computed synergy for exactly one anchor/candidate
// pair. Total is a pure function of Components and the named weight version.
type ResonanceScore struct {
	AnchorID      string          `json:"anchorId"`
	CandidateID   string          `json:"candidateId"`
	CandidateName string          `json:"candidateName,omitempty"`
	Components    ComponentScores `json:"components"`
	WeightVersion string          `json:"weightVersion"`
	Total         float64         `json:"total"`
	Tier          Tier            `json:"tier"`
}
