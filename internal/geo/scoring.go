package geo

import "math"

// TimeoutDistance is the sentinel distance assigned to an expired round.
// It is beyond every scoring tier, guaranteeing zero base points.
const TimeoutDistance = 99999.0

// TimeBonusPerSecond is awarded for each second left on the round clock,
// but only when the guess itself earned points.
const TimeBonusPerSecond = 10

// Tier maps a maximum distance to the points it is worth.
type Tier struct {
	MaxDistanceKm float64
	Points        int
	Feedback      string
}

// scoringTiers is ordered by ascending threshold; the first tier whose
// MaxDistanceKm covers the guess wins.
var scoringTiers = []Tier{
	{MaxDistanceKm: 50, Points: 1000, Feedback: "Perfect!"},
	{MaxDistanceKm: 150, Points: 750, Feedback: "Excellent!"},
	{MaxDistanceKm: 500, Points: 500, Feedback: "Great!"},
	{MaxDistanceKm: 1000, Points: 250, Feedback: "Good"},
	{MaxDistanceKm: 2000, Points: 100, Feedback: "Close-ish"},
	{MaxDistanceKm: math.Inf(1), Points: 0, Feedback: "Too far"},
}

// GuessScore is the scored outcome of a single Pin Drop guess.
type GuessScore struct {
	DistanceKm  float64
	BasePoints  int
	TimeBonus   int
	TotalPoints int
	Feedback    string
}

// ScoreGuess resolves a distance against the tier table and applies the
// time bonus for remaining seconds when base points were earned.
func ScoreGuess(distanceKm float64, secondsLeft int) GuessScore {
	tier := tierFor(distanceKm)

	bonus := 0
	if tier.Points > 0 && secondsLeft > 0 {
		bonus = TimeBonusPerSecond * secondsLeft
	}

	return GuessScore{
		DistanceKm:  distanceKm,
		BasePoints:  tier.Points,
		TimeBonus:   bonus,
		TotalPoints: tier.Points + bonus,
		Feedback:    tier.Feedback,
	}
}

func tierFor(distanceKm float64) Tier {
	for _, t := range scoringTiers {
		if distanceKm <= t.MaxDistanceKm {
			return t
		}
	}
	return scoringTiers[len(scoringTiers)-1]
}

// ScoringTiers returns the finite tiers for display purposes.
func ScoringTiers() []Tier {
	out := make([]Tier, 0, len(scoringTiers)-1)
	for _, t := range scoringTiers {
		if !math.IsInf(t.MaxDistanceKm, 1) {
			out = append(out, t)
		}
	}
	return out
}
