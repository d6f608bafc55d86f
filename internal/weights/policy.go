// internal/weights/policy.go
package weights

import (
	"math"
	"math/rand"

	"resonance-pipeline/internal/models"
)

// ProfileStats pairs a historical weight profile with its realized outcomes.
type ProfileStats struct {
	Profile models.WeightProfile
	Stats   models.VersionStats
}

// Policy decides the next weight vector from the active profile and the
// outcome history. The bool is false when the active vector should stay.
type Policy interface {
	Next(active models.WeightProfile, history []ProfileStats) (models.Weights, string, bool)
}

// EpsilonGreedy explores a perturbed vector with probability epsilon and
// otherwise exploits the best-performing version with enough observations.
type EpsilonGreedy struct {
	Epsilon         float64
	PerturbDelta    float64
	MinObservations int
	rng             *rand.Rand
}

func NewEpsilonGreedy(epsilon, delta float64, minObservations int, seed int64) *EpsilonGreedy {
	return &EpsilonGreedy{
		Epsilon:         epsilon,
		PerturbDelta:    delta,
		MinObservations: minObservations,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

func (p *EpsilonGreedy) Next(active models.WeightProfile, history []ProfileStats) (models.Weights, string, bool) {
	if p.rng.Float64() < p.Epsilon {
		return p.perturb(active.Weights), "explore", true
	}

	best := active.Version
	bestRate := -1.0
	var bestWeights models.Weights
	for _, entry := range history {
		if entry.Stats.Outcomes < p.MinObservations {
			continue
		}
		if rate := entry.Stats.SuccessRate(); rate > bestRate {
			best = entry.Profile.Version
			bestRate = rate
			bestWeights = entry.Profile.Weights
		}
	}
	if best == active.Version || bestRate < 0 {
		return active.Weights, "hold", false
	}
	return bestWeights, "exploit", true
}

// perturb shifts mass between two distinct components by PerturbDelta and
// renormalizes, so the result still sums to 1.0 with no negative entries.
func (p *EpsilonGreedy) perturb(w models.Weights) models.Weights {
	vec := []float64{
		w.CategoryOverlap,
		w.AudienceOverlap,
		w.MediaCoMention,
		w.PositioningAlignment,
		w.GeographicOverlap,
	}

	up := p.rng.Intn(len(vec))
	down := p.rng.Intn(len(vec) - 1)
	if down >= up {
		down++
	}

	shift := math.Min(p.PerturbDelta, vec[down])
	vec[up] += shift
	vec[down] -= shift

	sum := 0.0
	for _, v := range vec {
		sum += v
	}
	if sum <= 0 {
		return models.EqualWeights()
	}
	for i := range vec {
		vec[i] /= sum
	}

	return models.Weights{
		CategoryOverlap:      vec[0],
		AudienceOverlap:      vec[1],
		MediaCoMention:       vec[2],
		PositioningAlignment: vec[3],
		GeographicOverlap:    vec[4],
	}
}
