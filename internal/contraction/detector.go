// Package contraction implements the C3 dual-signal contraction detector:
// thresholding, duration gating, merging, and refractory enforcement.
package contraction

import (
	"math"

	"github.com/clinictrack/emgcore/internal/emgerrors"
	"github.com/clinictrack/emgcore/pkg/models"
)

const stageName = "contraction"

// Config mirrors the §6.5 detector tuning constants.
type Config struct {
	EnvelopeThresholdFactor   float64 // default 0.10
	ActivatedThresholdFactor  float64 // default 0.05
	MinDurationMS             float64
	MergeThresholdMS          float64 // default 200
	RefractoryPeriodMS        float64 // default 50
}

// Defaults returns the process-level defaults named in §6.5.
func Defaults() Config {
	return Config{
		EnvelopeThresholdFactor:  0.10,
		ActivatedThresholdFactor: 0.05,
		MinDurationMS:            0,
		MergeThresholdMS:         200,
		RefractoryPeriodMS:       50,
	}
}

// Input bundles one muscle's detector inputs (§4.3).
type Input struct {
	Envelope       []float64 // amplitude signal; required
	Activated      []float64 // optional timing sibling; nil if absent
	SamplingRateHz float64
	MVCThreshold   *float64
	DurationThresholdMS *float64
	Config         Config
}

// Result is the per-muscle detector output: the contraction list plus the
// §4.7 aggregate counters.
type Result struct {
	Contractions        []models.Contraction
	Total                int
	MVCCompliantCount    int
	DurationCompliantCount int
	GoodCount            int
}

// Detect runs the full §4.3 algorithm for one muscle.
func Detect(in Input) (*Result, error) {
	if len(in.Envelope) == 0 {
		return nil, emgerrors.NoRawSignal(stageName, "")
	}
	cfg := in.Config

	timingSignal := in.Envelope
	factor := cfg.EnvelopeThresholdFactor
	if in.Activated != nil {
		timingSignal = in.Activated
		factor = cfg.ActivatedThresholdFactor
	}

	threshold := factor * maxAbs(timingSignal)
	regions := aboveThresholdRegions(timingSignal, threshold)

	msPerSample := 1000.0 / in.SamplingRateHz
	regions = filterByDuration(regions, cfg.MinDurationMS, msPerSample)
	regions = mergeClose(regions, cfg.MergeThresholdMS, msPerSample)
	regions = enforceRefractory(regions, cfg.RefractoryPeriodMS, msPerSample)

	result := &Result{}
	for _, r := range regions {
		start, end := r[0], r[1]
		mean, maxAmp := amplitudeStats(in.Envelope, start, end)
		c := models.Contraction{
			StartMS:       float64(start) * msPerSample,
			EndMS:         float64(end) * msPerSample,
			DurationMS:    float64(end-start+1) * msPerSample,
			MeanAmplitude: mean,
			MaxAmplitude:  maxAmp,
		}
		c.Classify(in.MVCThreshold, in.DurationThresholdMS)
		result.Contractions = append(result.Contractions, c)
		result.Total++
		if c.MeetsMVC {
			result.MVCCompliantCount++
		}
		if c.MeetsDuration {
			result.DurationCompliantCount++
		}
		if c.IsGood {
			result.GoodCount++
		}
	}
	return result, nil
}

func maxAbs(xs []float64) float64 {
	max := 0.0
	for _, x := range xs {
		a := math.Abs(x)
		if a > max {
			max = a
		}
	}
	return max
}

// aboveThresholdRegions returns [start,end] index pairs (inclusive) of
// contiguous samples strictly above threshold.
func aboveThresholdRegions(xs []float64, threshold float64) [][2]int {
	var regions [][2]int
	start := -1
	for i, x := range xs {
		above := x > threshold
		if above && start == -1 {
			start = i
		}
		if !above && start != -1 {
			regions = append(regions, [2]int{start, i - 1})
			start = -1
		}
	}
	if start != -1 {
		regions = append(regions, [2]int{start, len(xs) - 1})
	}
	return regions
}

func filterByDuration(regions [][2]int, minDurationMS, msPerSample float64) [][2]int {
	if minDurationMS <= 0 {
		return regions
	}
	out := regions[:0:0]
	for _, r := range regions {
		durMS := float64(r[1]-r[0]+1) * msPerSample
		if durMS >= minDurationMS {
			out = append(out, r)
		}
	}
	return out
}

func mergeClose(regions [][2]int, mergeThresholdMS, msPerSample float64) [][2]int {
	if len(regions) < 2 {
		return regions
	}
	gapSamples := int(math.Round(mergeThresholdMS / msPerSample))
	out := [][2]int{regions[0]}
	for _, r := range regions[1:] {
		last := &out[len(out)-1]
		if r[0]-last[1] <= gapSamples {
			last[1] = r[1]
		} else {
			out = append(out, r)
		}
	}
	return out
}

func enforceRefractory(regions [][2]int, refractoryMS, msPerSample float64) [][2]int {
	if len(regions) < 2 {
		return regions
	}
	refSamples := int(math.Round(refractoryMS / msPerSample))
	out := [][2]int{regions[0]}
	for _, r := range regions[1:] {
		last := out[len(out)-1]
		if r[0]-last[1] < refSamples {
			// too close after the previous accepted region: drop it rather
			// than merging, since it failed to clear the refractory gate.
			continue
		}
		out = append(out, r)
	}
	return out
}

func amplitudeStats(envelope []float64, start, end int) (mean, max float64) {
	if end >= len(envelope) {
		end = len(envelope) - 1
	}
	if start > end {
		return 0, 0
	}
	var sum float64
	for i := start; i <= end; i++ {
		v := envelope[i]
		sum += v
		if v > max {
			max = v
		}
	}
	mean = sum / float64(end-start+1)
	return mean, max
}
