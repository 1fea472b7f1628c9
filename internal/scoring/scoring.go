// Package scoring implements the C6 scoring engine: per-muscle compliance,
// bilateral symmetry, subjective effort, game score, the BFR safety gate,
// and the weighted overall score with null-component redistribution.
package scoring

import (
	"math"

	"github.com/clinictrack/emgcore/pkg/models"
)

// muscleCompliance computes S_comp for one muscle per §4.6.
func muscleCompliance(cfg models.ScoringConfiguration, total, mvcCompliant, durationCompliant, expected int) (score float64, completionRate, intensityRate, durationRate float64) {
	if expected <= 0 {
		expected = 1
	}
	completionRate = math.Min(float64(total)/float64(expected), 1.0)
	intensityRate = rateOf(mvcCompliant, total)
	durationRate = rateOf(durationCompliant, total)

	score = 100 * (cfg.SubWeightCompletion*completionRate +
		cfg.SubWeightIntensity*intensityRate +
		cfg.SubWeightDuration*durationRate)
	return score, completionRate, intensityRate, durationRate
}

func rateOf(numerator, denominator int) float64 {
	if denominator <= 0 {
		return 0
	}
	rate := float64(numerator) / float64(denominator)
	if rate > 1 {
		rate = 1
	}
	return rate
}

// symmetry computes (1 - |L-R|/(L+R)) * 100, or 0 if both sides are zero.
func symmetry(left, right float64) float64 {
	sum := left + right
	if sum == 0 {
		return 0
	}
	return (1 - math.Abs(left-right)/sum) * 100
}

// bfrSafetyGate returns 1.0 when pressure is in the optimal band [45,55]
// %AOP or when no BFR data exists at all (assume non-BFR session); 0.0
// otherwise (§4.6).
func bfrSafetyGate(pressureAOP *float64) (gate float64, compliant bool) {
	if pressureAOP == nil {
		return 1.0, true
	}
	if *pressureAOP >= 45 && *pressureAOP <= 55 {
		return 1.0, true
	}
	return 0.0, false
}

// effortScore looks up the RPE mapping; returns nil if RPE is absent.
func effortScore(cfg models.ScoringConfiguration, rpe *int) *float64 {
	if rpe == nil {
		return nil
	}
	if v, ok := cfg.RPEMapping[*rpe]; ok {
		return &v
	}
	return nil
}

// gameScore is 100*achieved/max, or nil if either input is absent.
func gameScore(achieved, max *float64) *float64 {
	if achieved == nil || max == nil || *max == 0 {
		return nil
	}
	v := 100 * *achieved / *max
	return &v
}

// weightedOverall sums the present components weighted by cfg, redistributing
// the weight of any nil component proportionally across the present ones so
// the effective weight sum stays 1.0 (§4.6).
func weightedOverall(cfg models.ScoringConfiguration, compliance, symmetryScore float64, effort, game *float64) float64 {
	type component struct {
		value  float64
		weight float64
		present bool
	}
	comps := []component{
		{compliance, cfg.WeightCompliance, true},
		{symmetryScore, cfg.WeightSymmetry, true},
		{0, cfg.WeightEffort, effort != nil},
		{0, cfg.WeightGame, game != nil},
	}
	if effort != nil {
		comps[2].value = *effort
	}
	if game != nil {
		comps[3].value = *game
	}

	var presentWeight float64
	for _, c := range comps {
		if c.present {
			presentWeight += c.weight
		}
	}
	if presentWeight == 0 {
		return 0
	}

	var sum float64
	for _, c := range comps {
		if c.present {
			sum += c.value * (c.weight / presentWeight)
		}
	}
	return sum
}

// Score computes the full §4.6 PerformanceScores for one session.
func Score(cfg models.ScoringConfiguration, metrics models.SessionMetrics, sessionID string) models.PerformanceScores {
	leftScore, leftCompletion, leftIntensity, leftDuration := muscleCompliance(
		cfg, metrics.LeftTotal, metrics.LeftMVCCompliant, metrics.LeftDurationCompliant, metrics.ExpectedContractionsPerMuscle)
	rightScore, rightCompletion, rightIntensity, rightDuration := muscleCompliance(
		cfg, metrics.RightTotal, metrics.RightMVCCompliant, metrics.RightDurationCompliant, metrics.ExpectedContractionsPerMuscle)

	gate, bfrCompliant := bfrSafetyGate(metrics.BFRPressureAOP)
	overallCompliance := (leftScore + rightScore) / 2 * gate
	sym := symmetry(leftScore, rightScore)
	effort := effortScore(cfg, metrics.RPE)
	game := gameScore(metrics.GamePointsAchieved, metrics.GamePointsMax)

	overall := weightedOverall(cfg, overallCompliance, sym, effort, game)

	scores := models.PerformanceScores{
		SessionID:             sessionID,
		Overall:                overall,
		Compliance:             overallCompliance,
		Symmetry:               sym,
		Effort:                 effort,
		Game:                   game,
		LeftMuscleCompliance:   leftScore,
		RightMuscleCompliance:  rightScore,
		CompletionRateLeft:     leftCompletion,
		IntensityRateLeft:      leftIntensity,
		DurationRateLeft:       leftDuration,
		CompletionRateRight:    rightCompletion,
		IntensityRateRight:     rightIntensity,
		DurationRateRight:      rightDuration,
		BFRCompliant:           bfrCompliant,
		RPEPostSession:         metrics.RPE,
		ScoringConfigID:        cfg.ID,
	}
	return scores
}
