package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKnownPairs(t *testing.T) {
	// Paris -> London is roughly 344 km.
	d := Distance(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 344, d, 10)

	// Same point is zero.
	assert.InDelta(t, 0, Distance(10, 10, 10, 10), 0.0001)

	// Antipodal-ish points approach half the Earth's circumference.
	d = Distance(0, 0, 0, 180)
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 1)
}

func TestScoreGuessTierBoundaries(t *testing.T) {
	cases := []struct {
		distance float64
		points   int
	}{
		{0, 1000},
		{49, 1000},
		{50, 1000},
		{51, 750},
		{150, 750},
		{151, 500},
		{500, 500},
		{501, 250},
		{1000, 250},
		{1001, 100},
		{2000, 100},
		{2001, 0},
		{TimeoutDistance, 0},
	}

	for _, tc := range cases {
		got := ScoreGuess(tc.distance, 0)
		assert.Equalf(t, tc.points, got.BasePoints, "distance %.0f", tc.distance)
	}
}

func TestScoreGuessTimeBonus(t *testing.T) {
	// Bonus only applies when base points were earned.
	scored := ScoreGuess(40, 12)
	assert.Equal(t, 1000, scored.BasePoints)
	assert.Equal(t, 120, scored.TimeBonus)
	assert.Equal(t, 1120, scored.TotalPoints)

	missed := ScoreGuess(5000, 12)
	assert.Equal(t, 0, missed.BasePoints)
	assert.Equal(t, 0, missed.TimeBonus)
	assert.Equal(t, 0, missed.TotalPoints)
}

func TestScoringTiersExcludesCatchAll(t *testing.T) {
	tiers := ScoringTiers()
	assert.Len(t, tiers, 5)
	for _, tier := range tiers {
		assert.False(t, math.IsInf(tier.MaxDistanceKm, 1))
		assert.Greater(t, tier.Points, 0)
	}
}
