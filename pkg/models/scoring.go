package models

import "time"

// ScoringConfiguration is process-global and versioned (§3). Immutable by
// convention once a session references it (§4.6 weight resolution).
type ScoringConfiguration struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// Main weights; must sum to 1.0 +/- 0.01.
	WeightCompliance float64 `json:"weight_compliance"`
	WeightSymmetry   float64 `json:"weight_symmetry"`
	WeightEffort     float64 `json:"weight_effort"`
	WeightGame       float64 `json:"weight_game"`

	// Sub-weights; must sum to 1.0 +/- 0.01.
	SubWeightCompletion float64 `json:"sub_weight_completion"`
	SubWeightIntensity  float64 `json:"sub_weight_intensity"`
	SubWeightDuration   float64 `json:"sub_weight_duration"`

	// RPEMapping maps integer RPE (0-10) to an effort score 0-100.
	RPEMapping map[int]float64 `json:"rpe_mapping"`

	// IsDefault marks the system-default config seeded at startup. Used by
	// the weight-resolution priority chain (§4.6 step 4).
	IsDefault bool `json:"is_default"`
}

const weightSumTolerance = 0.01

// ValidateWeights enforces the §3 sum invariants.
func (c *ScoringConfiguration) ValidateWeights() error {
	mainSum := c.WeightCompliance + c.WeightSymmetry + c.WeightEffort + c.WeightGame
	if absf(mainSum-1.0) > weightSumTolerance {
		return errMainWeightsNotNormalized
	}
	subSum := c.SubWeightCompletion + c.SubWeightIntensity + c.SubWeightDuration
	if absf(subSum-1.0) > weightSumTolerance {
		return errSubWeightsNotNormalized
	}
	return nil
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// DefaultRPEMapping returns the §4.6 piecewise-constant bands. The DB seed is
// the single source of truth (§9 open question): these constants exist only
// as the fallback when no configuration has been persisted yet.
func DefaultRPEMapping() map[int]float64 {
	m := make(map[int]float64, 11)
	optimal := []int{4, 5, 6}
	acceptable := []int{3, 7}
	suboptimal := []int{2, 8}
	poor := []int{0, 1, 9, 10}
	for _, r := range optimal {
		m[r] = 100
	}
	for _, r := range acceptable {
		m[r] = 80
	}
	for _, r := range suboptimal {
		m[r] = 60
	}
	for _, r := range poor {
		m[r] = 20
	}
	return m
}

// DefaultScoringConfiguration is the system default seeded from configuration
// constants (§4.6 resolution step 4). The DB-seeded 0.50/0.25/0.25/0.00 split
// (§9 open question) is the canonical one used here; the 0.40/0.25/0.20/0.15
// variant observed in the original source is not carried forward.
func DefaultScoringConfiguration() ScoringConfiguration {
	return ScoringConfiguration{
		ID:                  "default",
		Name:                "system-default",
		WeightCompliance:    0.50,
		WeightSymmetry:      0.25,
		WeightEffort:        0.25,
		WeightGame:          0.00,
		SubWeightCompletion: 1.0 / 3,
		SubWeightIntensity:  1.0 / 3,
		SubWeightDuration:   1.0 / 3,
		RPEMapping:          DefaultRPEMapping(),
		IsDefault:           true,
	}
}

// PerformanceScores is 1 per session (§3).
type PerformanceScores struct {
	SessionID string `json:"session_id"`

	Overall    float64 `json:"overall"`
	Compliance float64 `json:"compliance"`
	Symmetry   float64 `json:"symmetry"`
	Effort     *float64 `json:"effort,omitempty"`
	Game       *float64 `json:"game,omitempty"`

	LeftMuscleCompliance  float64 `json:"left_muscle_compliance"`
	RightMuscleCompliance float64 `json:"right_muscle_compliance"`

	CompletionRateLeft  float64 `json:"completion_rate_left"`
	IntensityRateLeft   float64 `json:"intensity_rate_left"`
	DurationRateLeft    float64 `json:"duration_rate_left"`
	CompletionRateRight float64 `json:"completion_rate_right"`
	IntensityRateRight  float64 `json:"intensity_rate_right"`
	DurationRateRight   float64 `json:"duration_rate_right"`

	BFRCompliant   bool     `json:"bfr_compliant"`
	RPEPostSession *int     `json:"rpe_post_session,omitempty"`

	ScoringConfigID string `json:"scoring_config_id"`

	FallbackMode bool   `json:"fallback_mode,omitempty"`
	ScoringError string `json:"scoring_error,omitempty"`
}

// Validate checks §8 invariants 2 and 3.
func (p *PerformanceScores) Validate() error {
	rates := []float64{
		p.CompletionRateLeft, p.IntensityRateLeft, p.DurationRateLeft,
		p.CompletionRateRight, p.IntensityRateRight, p.DurationRateRight,
	}
	for _, r := range rates {
		if r < 0 || r > 1 {
			return errRateOutOfBounds
		}
	}
	scores := []float64{p.Overall, p.Compliance, p.Symmetry, p.LeftMuscleCompliance, p.RightMuscleCompliance}
	if p.Effort != nil {
		scores = append(scores, *p.Effort)
	}
	if p.Game != nil {
		scores = append(scores, *p.Game)
	}
	for _, s := range scores {
		if s < 0 || s > 100 {
			return errScoreOutOfBounds
		}
	}
	return nil
}

// SessionMetrics are the inputs to the scoring engine (§4.6).
type SessionMetrics struct {
	LeftTotal           int
	LeftMVCCompliant    int
	LeftDurationCompliant int
	RightTotal          int
	RightMVCCompliant   int
	RightDurationCompliant int

	ExpectedContractionsPerMuscle int

	BFRPressureAOP *float64 // nil => no BFR data for this session

	RPE *int // nil => absent

	GamePointsAchieved *float64
	GamePointsMax      *float64
}

// AnalyticsCacheEntry is the out-of-band hot store payload (§3, §4.9).
type AnalyticsCacheEntry struct {
	SessionID    string                       `json:"session_id"`
	Channels     map[string]ChannelAnalytics  `json:"channels"`
	Summary      AnalyticsCacheSummary        `json:"summary"`
	C3DMetadata  map[string]any               `json:"c3d_metadata,omitempty"`
	CacheVersion string                       `json:"cache_version"`
	CachedAt     time.Time                    `json:"cached_at"`
}

type AnalyticsCacheSummary struct {
	Channels          []string `json:"channels"`
	TotalChannels     int      `json:"total_channels"`
	OverallCompliance float64  `json:"overall_compliance"`
	ProcessedAt       time.Time `json:"processed_at"`
}
