// Package signal implements the C2 per-channel conditioning pipeline:
// bandpass filter, full-wave rectification, and moving-RMS envelope
// smoothing. No third-party Butterworth design library exists anywhere in
// the retrieved corpus, so the biquad cascade below is hand-rolled from the
// standard RBJ cookbook transfer functions (see DESIGN.md).
package signal

import (
	"fmt"
	"math"

	"github.com/clinictrack/emgcore/internal/emgerrors"
	"github.com/clinictrack/emgcore/pkg/models"
)

const stageName = "signal"

// Config mirrors the §6.5 process-level constants relevant to conditioning.
type Config struct {
	FilterOrder          int     // default 4
	LowCutoffHz          float64 // default 20
	HighCutoffHz         float64 // default 500, clamped to 0.9*Nyquist
	SmoothingWindowMS    float64 // default ~50ms
	MinClinicalDurationS float64 // default drives MIN_SAMPLES_REQUIRED
}

// Defaults returns the process-level defaults named in §6.5.
func Defaults() Config {
	return Config{
		FilterOrder:          4,
		LowCutoffHz:          20,
		HighCutoffHz:         500,
		SmoothingWindowMS:    50,
		MinClinicalDurationS: 1.0,
	}
}

// ChannelReport is the per-channel audit trail described in §4.2: which
// steps ran, window sizes, input/output statistics, and validity.
type ChannelReport struct {
	ChannelName       string
	StepsApplied      []string
	WindowSamples     int
	InputMean         float64
	InputStd          float64
	OutputMean        float64
	OutputStd         float64
	EffectiveLowHz    float64
	EffectiveHighHz   float64
	Valid             bool
}

// Conditioned holds the result of conditioning one channel: the processed
// envelope used for all downstream amplitude decisions, and the raw (only
// rectified, unfiltered) signal retained for spectral analysis in C4.
type Conditioned struct {
	Envelope  []float64
	Rectified []float64
	Report    ChannelReport
}

// MinSamplesRequired derives MIN_SAMPLES_REQUIRED from the configured
// clinical minimum duration at the file's sampling rate (§4.2).
func MinSamplesRequired(cfg Config, samplingRateHz float64) int {
	return int(math.Ceil(cfg.MinClinicalDurationS * samplingRateHz))
}

// Condition runs the full §4.2 pipeline for one channel's raw analog
// samples. It never fabricates a sampling rate: the caller resolves
// DEFAULT_SAMPLING_RATE before calling in, per §4.1.
func Condition(cfg Config, channelName string, raw []float64, samplingRateHz float64) (*Conditioned, error) {
	report := ChannelReport{ChannelName: channelName}

	if len(raw) == 0 {
		report.Valid = false
		return nil, emgerrors.InsufficientBandwidth(stageName, "empty channel signal")
	}
	if isConstant(raw) {
		report.Valid = false
		flat := make([]float64, len(raw))
		return &Conditioned{Envelope: flat, Rectified: flat, Report: report}, nil
	}

	minRequired := MinSamplesRequired(Defaults(), samplingRateHz)
	if minRequired > 0 && len(raw) < minRequired {
		detail := &models.EMGValidationFail{
			MinSamplesRequired: minRequired,
			ActualSamples:      len(raw),
			Reason:             fmt.Sprintf("channel %q has %d samples, below the %.1fs clinical minimum at %.0f Hz", channelName, len(raw), Defaults().MinClinicalDurationS, samplingRateHz),
			UserGuidancePrimary: fmt.Sprintf(
				"Record at least %.1f seconds of continuous EMG per channel (minimum %d samples at this device's sampling rate) and resubmit.",
				Defaults().MinClinicalDurationS, minRequired),
		}
		return nil, emgerrors.InsufficientDuration(stageName,
			"signal shorter than clinical minimum", nil).WithValidationDetail(detail)
	}

	nyquist := samplingRateHz / 2
	if nyquist <= cfg.LowCutoffHz {
		return nil, emgerrors.InsufficientBandwidth(stageName, "sampling rate too low for bandpass low cutoff")
	}
	highCutoff := cfg.HighCutoffHz
	if highCutoff > 0.9*nyquist {
		highCutoff = 0.9 * nyquist
	}
	if highCutoff <= cfg.LowCutoffHz {
		return nil, emgerrors.InsufficientBandwidth(stageName, "effective bandwidth collapsed to zero")
	}

	inMean, inStd := meanStd(raw)

	sections := cfg.FilterOrder / 2
	if sections < 1 {
		sections = 1
	}
	filtered := zeroPhaseBandpass(raw, samplingRateHz, cfg.LowCutoffHz, highCutoff, sections)

	rectified := make([]float64, len(filtered))
	for i, v := range filtered {
		rectified[i] = math.Abs(v)
	}

	windowSamples := int(math.Round(cfg.SmoothingWindowMS / 1000 * samplingRateHz))
	if windowSamples < 1 {
		windowSamples = 1
	}
	envelope := movingRMS(rectified, windowSamples)

	outMean, outStd := meanStd(envelope)

	report.StepsApplied = []string{"bandpass", "rectify", "moving_rms"}
	report.WindowSamples = windowSamples
	report.InputMean, report.InputStd = inMean, inStd
	report.OutputMean, report.OutputStd = outMean, outStd
	report.EffectiveLowHz, report.EffectiveHighHz = cfg.LowCutoffHz, highCutoff
	report.Valid = true

	rawRectified := make([]float64, len(raw))
	for i, v := range raw {
		rawRectified[i] = math.Abs(v)
	}
	return &Conditioned{Envelope: envelope, Rectified: rawRectified, Report: report}, nil
}

func isConstant(xs []float64) bool {
	if len(xs) == 0 {
		return true
	}
	first := xs[0]
	for _, x := range xs[1:] {
		if x != first {
			return false
		}
	}
	return true
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(xs)))
	return mean, std
}

// movingRMS computes the windowed RMS envelope with a centered window
// reaching window/2 samples to each side (2*(window/2)+1 samples, fewer at
// the edges), reusing the same window the detector will reuse (§4.2).
func movingRMS(xs []float64, window int) []float64 {
	n := len(xs)
	out := make([]float64, n)
	if window < 1 {
		window = 1
	}
	half := window / 2
	for i := 0; i < n; i++ {
		lo := i - half
		hi := i + half
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}
		var sumSq float64
		for j := lo; j <= hi; j++ {
			sumSq += xs[j] * xs[j]
		}
		out[i] = math.Sqrt(sumSq / float64(hi-lo+1))
	}
	return out
}
