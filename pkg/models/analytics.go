package models

// Contraction is one detected above-threshold region on a channel's timing
// signal, after duration/merge/refractory gating (§4.3).
type Contraction struct {
	StartMS        float64 `json:"start_ms"`
	EndMS          float64 `json:"end_ms"`
	DurationMS     float64 `json:"duration_ms"`
	MeanAmplitude  float64 `json:"mean_amplitude"`
	MaxAmplitude   float64 `json:"max_amplitude"`
	MeetsMVC       bool    `json:"meets_mvc"`
	MeetsDuration  bool    `json:"meets_duration"`
	IsGood         bool    `json:"is_good"`
}

// Classify sets MeetsMVC / MeetsDuration / IsGood per the table in §4.3.
// mvcThreshold and durationThresholdMS are pointers because "undefined" and
// "defined as zero" are clinically distinct.
func (c *Contraction) Classify(mvcThreshold *float64, durationThresholdMS *float64) {
	c.MeetsMVC = mvcThreshold != nil && c.MaxAmplitude >= *mvcThreshold
	c.MeetsDuration = durationThresholdMS != nil && c.DurationMS >= *durationThresholdMS
	switch {
	case mvcThreshold != nil && durationThresholdMS != nil:
		c.IsGood = c.MeetsMVC && c.MeetsDuration
	case mvcThreshold != nil:
		c.IsGood = c.MeetsMVC
	case durationThresholdMS != nil:
		c.IsGood = c.MeetsDuration
	default:
		c.IsGood = false
	}
}

// TemporalStat is the shape produced by every sliding-window metric (RMS,
// MAV, MPF, MDF, fatigue index) once enough windows exist.
type TemporalStat struct {
	Mean                  float64 `json:"mean"`
	Std                   float64 `json:"std"`
	Min                   float64 `json:"min"`
	Max                   float64 `json:"max"`
	ValidWindows          int     `json:"valid_windows"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	Valid                 bool    `json:"valid"`
}

// AmplitudeStats summarizes per-contraction amplitude.
type AmplitudeStats struct {
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
	Avg  float64 `json:"avg"`
}

// DurationStats summarizes per-contraction duration.
type DurationStats struct {
	MinMS             float64 `json:"min_ms"`
	MaxMS             float64 `json:"max_ms"`
	MeanMS            float64 `json:"mean_ms"`
	TotalTimeUnderTensionMS float64 `json:"total_time_under_tension_ms"`
}

// ChannelAnalytics is one row per (session, channel_name) (§3).
type ChannelAnalytics struct {
	SessionID   string `json:"session_id"`
	ChannelName string `json:"channel_name"`

	TotalContractions   int `json:"total_contractions"`
	MVCCompliantCount   int `json:"mvc_compliant_count"`
	DurationCompliantCount int `json:"duration_compliant_count"`
	GoodCount            int `json:"good_count"`

	Amplitude AmplitudeStats `json:"amplitude"`
	Duration  DurationStats  `json:"duration"`

	RMS  TemporalStat `json:"rms"`
	MAV  TemporalStat `json:"mav"`
	MPF  TemporalStat `json:"mpf"`
	MDF  TemporalStat `json:"mdf"`
	FatigueIndexFI_NSM5 TemporalStat `json:"fatigue_index_fi_nsm5"`

	// MPFFull/MDFFull/FatigueIndexFullFI_NSM5 are the §4.4 full-signal
	// spectral scalars (one PSD over the whole raw rectified signal), distinct from the
	// MPF/MDF/FatigueIndexFI_NSM5 sliding-window series above.
	MPFFull                  float64 `json:"mpf_full"`
	MDFFull                  float64 `json:"mdf_full"`
	FatigueIndexFullFI_NSM5  float64 `json:"fatigue_index_full_fi_nsm5"`

	SignalQualityScore float64 `json:"signal_quality_score"`

	Contractions []Contraction `json:"contractions"`

	// MVCValue is the resolved MVC amplitude the threshold was derived from
	// (§4.4): an explicit per-muscle/global override, or the backend
	// estimator's 95th-percentile value. Persisted so RecalculateFromExisting
	// (§4.7) can re-derive a threshold under new settings without it.
	MVCValue            float64 `json:"mvc_value"`
	MVCEstimationMethod string  `json:"mvc_estimation_method,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// Validate checks the §8 invariant 1: good <= min(mvc_compliant, duration_compliant).
func (c *ChannelAnalytics) Validate() error {
	if c.GoodCount < 0 || c.MVCCompliantCount < 0 || c.DurationCompliantCount < 0 || c.TotalContractions < 0 {
		return errNegativeCount
	}
	min := c.MVCCompliantCount
	if c.DurationCompliantCount < min {
		min = c.DurationCompliantCount
	}
	if c.GoodCount > min {
		return errGoodExceedsCompliant
	}
	return nil
}

// BaseName strips the " Raw" / " activated" suffix to derive the logical
// muscle name shared by sibling channel views (§4.1).
func BaseName(channelName string) string {
	for _, suffix := range []string{" Raw", " activated"} {
		if len(channelName) > len(suffix) && channelName[len(channelName)-len(suffix):] == suffix {
			return channelName[:len(channelName)-len(suffix)]
		}
	}
	return channelName
}
