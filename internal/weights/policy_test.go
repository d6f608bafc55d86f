// internal/weights/policy_test.go
package weights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resonance-pipeline/internal/models"
)

func activeProfile() models.WeightProfile {
	return models.WeightProfile{Version: "w-active", Weights: models.EqualWeights()}
}

func statsFor(version string, outcomes, successes int, weights models.Weights) ProfileStats {
	return ProfileStats{
		Profile: models.WeightProfile{Version: version, Weights: weights},
		Stats:   models.VersionStats{Version: version, Outcomes: outcomes, Successes: successes},
	}
}

func TestEpsilonGreedy_ExploreProducesValidPerturbation(t *testing.T) {
	// epsilon 1: every call explores.
	policy := NewEpsilonGreedy(1.0, 0.05, 10, 1)

	for i := 0; i < 100; i++ {
		next, reason, changed := policy.Next(activeProfile(), nil)
		require.True(t, changed)
		assert.Equal(t, "explore", reason)
		assert.NoError(t, next.Validate())
		assert.NotEqual(t, models.EqualWeights(), next, "perturbation must move the vector")
	}
}

func TestEpsilonGreedy_ExploitPicksBestObservedVersion(t *testing.T) {
	// epsilon 0: every call exploits.
	policy := NewEpsilonGreedy(0, 0.05, 10, 1)

	better := models.Weights{
		CategoryOverlap:      0.4,
		AudienceOverlap:      0.2,
		MediaCoMention:       0.1,
		PositioningAlignment: 0.2,
		GeographicOverlap:    0.1,
	}
	history := []ProfileStats{
		statsFor("w-active", 20, 8, models.EqualWeights()),
		statsFor("w-better", 20, 16, better),
	}

	next, reason, changed := policy.Next(activeProfile(), history)
	require.True(t, changed)
	assert.Equal(t, "exploit", reason)
	assert.Equal(t, better, next)
}

func TestEpsilonGreedy_HoldsWhenActiveIsBest(t *testing.T) {
	policy := NewEpsilonGreedy(0, 0.05, 10, 1)

	history := []ProfileStats{
		statsFor("w-active", 30, 25, models.EqualWeights()),
		statsFor("w-worse", 30, 5, models.EqualWeights()),
	}

	_, reason, changed := policy.Next(activeProfile(), history)
	assert.False(t, changed)
	assert.Equal(t, "hold", reason)
}

func TestEpsilonGreedy_IgnoresUnderobservedVersions(t *testing.T) {
	policy := NewEpsilonGreedy(0, 0.05, 10, 1)

	// Perfect success rate, but below the observation floor.
	history := []ProfileStats{
		statsFor("w-lucky", 3, 3, models.EqualWeights()),
	}

	_, _, changed := policy.Next(activeProfile(), history)
	assert.False(t, changed)
}

func TestEpsilonGreedy_HoldsOnEmptyHistory(t *testing.T) {
	policy := NewEpsilonGreedy(0, 0.05, 10, 1)

	_, _, changed := policy.Next(activeProfile(), nil)
	assert.False(t, changed)
}
