// Package mvc implements the C5 standalone maximum-voluntary-contraction
// estimator, used both in-pipeline (as the C4 backend-estimation fallback)
// and as a calibration operation invoked directly by callers.
package mvc

import (
	"math"
	"sort"
	"time"
)

// ChannelInput is one channel's calibration input. RMSEnvelope is preferred
// when present (cleaner estimate); RawSignal is the fallback (§4.5).
type ChannelInput struct {
	ChannelName string
	RMSEnvelope []float64
	RawSignal   []float64
}

// Estimation is the §4.5 per-channel calibration result.
type Estimation struct {
	MVCValue           float64        `json:"mvc_value"`
	ThresholdValue      float64        `json:"threshold_value"`
	ThresholdPercentage float64        `json:"threshold_percentage"`
	EstimationMethod    string         `json:"estimation_method"`
	ConfidenceScore     float64        `json:"confidence_score"`
	Metadata            map[string]any `json:"metadata"`
	Timestamp           time.Time      `json:"timestamp"`
}

// Estimate computes {mvc_value, threshold_value, ...} for every channel in
// inputs against the given threshold percentage (e.g. 0.75 for 75%).
func Estimate(inputs []ChannelInput, thresholdPercentage float64, now time.Time) map[string]Estimation {
	out := make(map[string]Estimation, len(inputs))
	for _, in := range inputs {
		out[in.ChannelName] = estimateOne(in, thresholdPercentage, now)
	}
	return out
}

func estimateOne(in ChannelInput, thresholdPct float64, now time.Time) Estimation {
	var source []float64
	method := "rms_envelope"
	if len(in.RMSEnvelope) > 0 {
		source = in.RMSEnvelope
	} else {
		method = "raw_rms_fallback"
		source = rectify(in.RawSignal)
	}

	mvcValue := percentile95(source)
	confidence := confidenceFor(source, method)

	return Estimation{
		MVCValue:            mvcValue,
		ThresholdValue:       mvcValue * thresholdPct,
		ThresholdPercentage: thresholdPct,
		EstimationMethod:     method,
		ConfidenceScore:      confidence,
		Metadata: map[string]any{
			"channel":     in.ChannelName,
			"sample_count": len(source),
		},
		Timestamp: now,
	}
}

func rectify(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Abs(x)
	}
	return out
}

func percentile95(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// confidenceFor is lower for the raw-signal fallback, since it lacks the
// envelope's noise suppression (§4.5: "must prefer pre-computed RMS
// envelopes ... cleaner estimate").
func confidenceFor(xs []float64, method string) float64 {
	if len(xs) == 0 {
		return 0
	}
	base := 0.9
	if method == "raw_rms_fallback" {
		base = 0.6
	}
	if len(xs) < 100 {
		base *= 0.5
	}
	return base
}

// ForChannel converts a models.ChannelAnalytics lookup key into a
// ChannelInput convenience constructor for callers recalibrating from an
// existing analysis rather than a fresh file.
func ForChannel(name string, envelope, raw []float64) ChannelInput {
	return ChannelInput{ChannelName: name, RMSEnvelope: envelope, RawSignal: raw}
}
