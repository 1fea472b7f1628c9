// Package analytics implements the C4 channel analytics stage: full-signal
// spectral metrics, sliding-window temporal statistics, signal quality
// scoring, and MVC threshold resolution.
package analytics

import (
	"math"
	"sort"

	"github.com/clinictrack/emgcore/pkg/models"
)

// MinTemporalWindowsRequired is the §4.4 gate below which a temporal metric
// is reported invalid rather than misleadingly precise.
const MinTemporalWindowsRequired = 3

// Config mirrors the §6.5 constants this stage consumes.
type Config struct {
	WindowSeconds    float64 // default 1.0
	OverlapFraction  float64 // default 0.5
	MVCThresholdPct  float64 // default; used by backend estimation fallback
}

func Defaults() Config {
	return Config{WindowSeconds: 1.0, OverlapFraction: 0.5, MVCThresholdPct: 0.75}
}

// MVCResolution is the outcome of the §4.4 four-step priority chain.
type MVCResolution struct {
	Threshold         float64
	EstimationMethod  string // "explicit" | "backend_estimation"
}

// MVCInputs bundles the per-muscle and global override values considered by
// the resolution order. A nil pointer means "not provided at this level".
type MVCInputs struct {
	MuscleMVCValue      *float64
	MuscleThresholdPct  *float64
	GlobalMVCValue      *float64
	GlobalThresholdPct  *float64
	DefaultThresholdPct float64
}

// ResolveMVCThreshold implements the §4.4 four-step order, falling back to
// the 95th percentile of the rectified signal when nothing is configured.
func ResolveMVCThreshold(in MVCInputs, rectifiedSignal []float64) MVCResolution {
	if in.MuscleMVCValue != nil && in.MuscleThresholdPct != nil {
		return MVCResolution{Threshold: *in.MuscleMVCValue * *in.MuscleThresholdPct, EstimationMethod: "explicit"}
	}
	if in.MuscleMVCValue != nil && in.GlobalThresholdPct != nil {
		return MVCResolution{Threshold: *in.MuscleMVCValue * *in.GlobalThresholdPct, EstimationMethod: "explicit"}
	}
	if in.GlobalMVCValue != nil && in.GlobalThresholdPct != nil {
		return MVCResolution{Threshold: *in.GlobalMVCValue * *in.GlobalThresholdPct, EstimationMethod: "explicit"}
	}
	pct := in.DefaultThresholdPct
	if pct == 0 {
		pct = Defaults().MVCThresholdPct
	}
	p95 := percentile(rectifiedSignal, 95)
	return MVCResolution{Threshold: p95 * pct, EstimationMethod: "backend_estimation"}
}

func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Compute derives the full §4.4 channel analytics for one muscle: full-signal
// spectral metrics on the raw (unfiltered, rectified) signal, temporal
// sliding-window statistics on the envelope, and a composite signal quality
// score. Contraction-derived counters are merged in by the caller.
func Compute(cfg Config, channelName string, rawRectified, envelope []float64, samplingRateHz float64) models.ChannelAnalytics {
	freqs, power := psd(rawRectified, samplingRateHz)
	mpfFull := meanPowerFrequency(freqs, power)
	mdfFull := medianPowerFrequency(freqs, power)
	fiFull := fatigueIndexFINSM5(freqs, power)

	windowSamples := int(cfg.WindowSeconds * samplingRateHz)
	stepSamples := int(float64(windowSamples) * (1 - cfg.OverlapFraction))
	if stepSamples < 1 {
		stepSamples = 1
	}

	rmsStat := slidingWindowStat(envelope, windowSamples, stepSamples, rmsOf)
	mavStat := slidingWindowStat(envelope, windowSamples, stepSamples, mavOf)
	mpfStat := slidingSpectralStat(rawRectified, samplingRateHz, windowSamples, stepSamples, meanPowerFrequency)
	mdfStat := slidingSpectralStat(rawRectified, samplingRateHz, windowSamples, stepSamples, medianPowerFrequency)
	fiStat := slidingSpectralStat(rawRectified, samplingRateHz, windowSamples, stepSamples, fatigueIndexFINSM5)

	return models.ChannelAnalytics{
		ChannelName:             channelName,
		RMS:                     rmsStat,
		MAV:                     mavStat,
		MPF:                     mpfStat,
		MDF:                     mdfStat,
		FatigueIndexFI_NSM5:     fiStat,
		MPFFull:                 mpfFull,
		MDFFull:                 mdfFull,
		FatigueIndexFullFI_NSM5: fiFull,
		SignalQualityScore:      signalQualityScore(envelope, rawRectified),
	}
}

// AggregateContractions rolls up the §3 per-channel Amplitude and Duration
// summaries (mean/max amplitude, min/max/mean duration, total time under
// tension) from the channel's detected contractions. Called after C3
// detection so counters and these summaries stay derived from the same
// contraction list.
func AggregateContractions(contractions []models.Contraction) (models.AmplitudeStats, models.DurationStats) {
	var amp models.AmplitudeStats
	var dur models.DurationStats
	if len(contractions) == 0 {
		return amp, dur
	}

	var sumAmp, sumDur float64
	dur.MinMS = contractions[0].DurationMS
	for _, c := range contractions {
		sumAmp += c.MeanAmplitude
		if c.MaxAmplitude > amp.Max {
			amp.Max = c.MaxAmplitude
		}
		sumDur += c.DurationMS
		if c.DurationMS < dur.MinMS {
			dur.MinMS = c.DurationMS
		}
		if c.DurationMS > dur.MaxMS {
			dur.MaxMS = c.DurationMS
		}
	}
	n := float64(len(contractions))
	amp.Mean = sumAmp / n
	amp.Avg = amp.Mean
	dur.MeanMS = sumDur / n
	dur.TotalTimeUnderTensionMS = sumDur
	return amp, dur
}

func rmsOf(xs []float64) float64 {
	var sumSq float64
	for _, x := range xs {
		sumSq += x * x
	}
	if len(xs) == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func mavOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += math.Abs(x)
	}
	if len(xs) == 0 {
		return 0
	}
	return sum / float64(len(xs))
}

// slidingWindowStat computes metricFn over each window and aggregates into
// the §4.4 {mean, std, min, max, valid_windows, cv} shape, gated by
// MinTemporalWindowsRequired.
func slidingWindowStat(xs []float64, windowSamples, stepSamples int, metricFn func([]float64) float64) models.TemporalStat {
	var values []float64
	for start := 0; start+windowSamples <= len(xs); start += stepSamples {
		values = append(values, metricFn(xs[start:start+windowSamples]))
	}
	return aggregateTemporal(values)
}

func slidingSpectralStat(xs []float64, sampleRateHz float64, windowSamples, stepSamples int, metricFn func(freqs, power []float64) float64) models.TemporalStat {
	var values []float64
	for start := 0; start+windowSamples <= len(xs); start += stepSamples {
		freqs, power := psd(xs[start:start+windowSamples], sampleRateHz)
		values = append(values, metricFn(freqs, power))
	}
	return aggregateTemporal(values)
}

func aggregateTemporal(values []float64) models.TemporalStat {
	stat := models.TemporalStat{ValidWindows: len(values)}
	if len(values) < MinTemporalWindowsRequired {
		stat.Valid = false
		return stat
	}
	var sum float64
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(values)))
	cv := 0.0
	if mean != 0 {
		cv = std / mean
	}
	stat.Mean, stat.Std, stat.Min, stat.Max, stat.CoefficientOfVariation = mean, std, min, max, cv
	stat.Valid = true
	return stat
}

// signalQualityScore is a [0,100] heuristic derived from envelope variability
// alone: 100·clamp(1 − CV/3, 0, 1), where CV is the envelope's std/mean. The
// raw argument is not used. It is a
// supplemented feature (the distilled spec does not define it; the original
// service computes a comparable quality composite) rather than a clinical
// gold-standard metric.
func signalQualityScore(envelope, raw []float64) float64 {
	if len(envelope) == 0 {
		return 0
	}
	mean, std := 0.0, 0.0
	var sum float64
	for _, v := range envelope {
		sum += v
	}
	mean = sum / float64(len(envelope))
	var sq float64
	for _, v := range envelope {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(envelope)))

	if mean == 0 {
		return 0
	}
	snrLike := std / mean
	score := 100 * clamp(1-snrLike/3, 0, 1)
	return score
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
