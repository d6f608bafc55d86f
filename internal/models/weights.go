// internal/models/weights.go
package models

import (
	"fmt"
	"math"
	"time"
)

const weightSumTolerance = 1e-9

// Weights is the five-element weight vector applied to component scores.
// A valid vector sums to 1.0 within tolerance.
type Weights struct {
	CategoryOverlap      float64 `json:"categoryOverlap" mapstructure:"category_overlap"`
	AudienceOverlap      float64 `json:"audienceOverlap" mapstructure:"audience_overlap"`
	MediaCoMention       float64 `json:"mediaCoMention" mapstructure:"media_co_mention"`
	PositioningAlignment float64 `json:"positioningAlignment" mapstructure:"positioning_alignment"`
	GeographicOverlap    float64 `json:"geographicOverlap" mapstructure:"geographic_overlap"`
}

func (w Weights) Sum() float64 {
	return w.CategoryOverlap + w.AudienceOverlap + w.MediaCoMention +
		w.PositioningAlignment + w.GeographicOverlap
}

// Validate rejects vectors with negative entries or a sum off 1.0.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"categoryOverlap":      w.CategoryOverlap,
		"audienceOverlap":      w.AudienceOverlap,
		"mediaCoMention":       w.MediaCoMention,
		"positioningAlignment": w.PositioningAlignment,
		"geographicOverlap":    w.GeographicOverlap,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s is negative: %f", name, v)
		}
	}
	if diff := math.Abs(w.Sum() - 1.0); diff > weightSumTolerance {
		return fmt.Errorf("weights sum to %.12f, want 1.0", w.Sum())
	}
	return nil
}

func EqualWeights() Weights {
	return Weights{
		CategoryOverlap:      0.2,
		AudienceOverlap:      0.2,
		MediaCoMention:       0.2,
		PositioningAlignment: 0.2,
		GeographicOverlap:    0.2,
	}
}

// VersionStats tracks realized outcomes for one weight version.
type VersionStats struct {
	Version   string `json:"version"`
	Outcomes  int    `json:"outcomes"`
	Successes int    `json:"successes"`
}

// SuccessRate is the realized outcome rate, 0 when nothing was observed.
func (s VersionStats) SuccessRate() float64 {
	if s.Outcomes == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Outcomes)
}

// WeightProfile is a versioned weight vector. Tuning produces a new version
// rather than editing an existing one, so a run scores under exactly one
// named version for its whole lifetime.
type WeightProfile struct {
	Version   string    `json:"version"`
	Weights   Weights   `json:"weights"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns an independent copy so a run cannot observe later mutation.
func (p WeightProfile) Clone() WeightProfile {
	return WeightProfile{Version: p.Version, Weights: p.Weights, UpdatedAt: p.UpdatedAt}
}
